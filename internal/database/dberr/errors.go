// Package dberr defines the error taxonomy shared by the persistence layer and
// everything built on top of it. Backend specific errors are translated into
// these sentinels so callers only ever match with errors.Is.
package dberr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrBackendUnavailable means the networked store could not be reached at startup.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrConflict means an insert-only path hit a duplicate key.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means an entity required by an update or decision path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means a business rule rejected the operation.
	ErrValidation = errors.New("validation failed")
	// ErrTransientIO means a momentary backend failure that may succeed on retry.
	ErrTransientIO = errors.New("transient i/o failure")
)

// transientSQLStates are the PostgreSQL SQLSTATE codes worth retrying.
var transientSQLStates = map[string]struct{}{
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
	"08001": {}, // sqlclient_unable_to_establish_sqlconnection
	"08004": {}, // sqlserver_rejected_establishment_of_sqlconnection
	"08007": {}, // transaction_resolution_unknown
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53000": {}, // insufficient_resources
	"53300": {}, // too_many_connections
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
	"55P03": {}, // lock_not_available
}

// IsUniqueViolation reports whether err is a duplicate key error from either backend.
func IsUniqueViolation(err error) bool {
	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		return pgerr.Field('C') == "23505"
	}

	var sqerr *sqlite.Error
	if errors.As(err, &sqerr) {
		switch sqerr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Without extended result codes only the message tells the constraints apart
			return strings.Contains(sqerr.Error(), "UNIQUE constraint failed")
		}
	}

	return false
}

// IsTransient reports whether err is a momentary failure that may succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTransientIO) {
		return true
	}

	// Caller cancellation is final; a per-operation deadline is a pool or I/O timeout
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		_, ok := transientSQLStates[pgerr.Field('C')]
		return ok
	}

	var sqerr *sqlite.Error
	if errors.As(err, &sqerr) {
		switch sqerr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}

		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errMsg := err.Error()

	return strings.Contains(errMsg, "connection reset by peer") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "i/o timeout")
}

// Translate maps a backend error onto the taxonomy. Errors that already carry a
// taxonomy sentinel, and nil, are returned unchanged.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation), errors.Is(err, ErrTransientIO):
		return err
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	case IsTransient(err):
		return fmt.Errorf("%w: %s", ErrTransientIO, err.Error())
	default:
		return err
	}
}
