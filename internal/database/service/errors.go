package service

import (
	"fmt"

	"github.com/akguild/guildkeeper/internal/database/dberr"
)

// Validation errors. Each wraps dberr.ErrValidation so callers can match either level.
var (
	ErrDuplicatePending = fmt.Errorf("%w: a join request is already pending", dberr.ErrValidation)
	ErrAlreadyMember    = fmt.Errorf("%w: requester is already a member", dberr.ErrValidation)
	ErrBelowThreshold   = fmt.Errorf("%w: below threshold", dberr.ErrValidation)
	ErrInvalidPower     = fmt.Errorf("%w: power must not be negative", dberr.ErrValidation)
	ErrInvalidDecision  = fmt.Errorf("%w: unknown decision", dberr.ErrValidation)

	ErrInvalidBuild     = fmt.Errorf("%w: unknown build", dberr.ErrValidation)
	ErrNoWeapons        = fmt.Errorf("%w: at least one weapon is required", dberr.ErrValidation)
	ErrTooManyWeapons   = fmt.Errorf("%w: too many weapons", dberr.ErrValidation)
	ErrDuplicateWeapon  = fmt.Errorf("%w: weapon selected twice", dberr.ErrValidation)
	ErrWeaponNotAllowed = fmt.Errorf("%w: weapon not available for build", dberr.ErrValidation)
	ErrInvalidName      = fmt.Errorf("%w: invalid in-game name", dberr.ErrValidation)
	ErrInvalidStats     = fmt.Errorf("%w: invalid stats", dberr.ErrValidation)

	ErrInvalidResponse = fmt.Errorf("%w: unknown war response", dberr.ErrValidation)
	ErrInvalidSchedule = fmt.Errorf("%w: invalid poll schedule", dberr.ErrValidation)
	ErrInvalidOffsets  = fmt.Errorf("%w: invalid reminder offsets", dberr.ErrValidation)
	ErrInvalidTimezone = fmt.Errorf("%w: unknown timezone", dberr.ErrValidation)
	ErrInvalidLanguage = fmt.Errorf("%w: unsupported language", dberr.ErrValidation)
	ErrInvalidSetting  = fmt.Errorf("%w: invalid setting", dberr.ErrValidation)
	ErrPollClosed      = fmt.Errorf("%w: the war poll has closed", dberr.ErrValidation)
)

// Lookup errors. Each wraps dberr.ErrNotFound.
var (
	ErrProfileNotFound = fmt.Errorf("%w: profile", dberr.ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("%w: pending join request", dberr.ErrNotFound)
	ErrNoLiveCycle     = fmt.Errorf("%w: no war poll is open", dberr.ErrNotFound)
)

// ErrCycleAlreadyLive is returned when a poll is opened while another one is live.
var ErrCycleAlreadyLive = fmt.Errorf("%w: a war poll is already open", dberr.ErrConflict)
