// Package commands maps slash command names to typed handlers. The gateway
// bot flattens each interaction into an Invocation and dispatches it here, so
// every handler can be exercised without a chat connection.
package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnknownCommand is returned for names without a registered handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrPermissionDenied is returned when a member without admin rights runs an admin command.
	ErrPermissionDenied = errors.New("administrator permission required")
	// ErrNotInGuild is returned for commands invoked outside a guild.
	ErrNotInGuild = errors.New("command must be used in a server")
	// ErrInvalidOption is returned for missing or malformed options.
	ErrInvalidOption = fmt.Errorf("%w: invalid option", dberr.ErrValidation)
)

// Outcome labels how a dispatch ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected"
	OutcomeDenied   Outcome = "denied"
	OutcomeInternal Outcome = "internal"
	OutcomeUnknown  Outcome = "unknown"
)

// OptionKind is the input type of a command option.
type OptionKind int

const (
	OptionString OptionKind = iota
	OptionInteger
	OptionBoolean
	OptionUser
	OptionChannel
	OptionRole
)

// Option describes one command option.
type Option struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
	Choices     []string
}

// Spec describes a command for registration with the chat platform.
type Spec struct {
	Name        string
	Description string
	AdminOnly   bool
	Options     []Option
}

// Invocation is a transport independent command call.
type Invocation struct {
	GuildID  snowflake.ID
	MemberID snowflake.ID
	IsAdmin  bool
	Options  map[string]string
	Now      time.Time
}

// Result is the reply shown to the invoking member.
type Result struct {
	Content string
	Outcome Outcome
}

// Parser builds a typed request from an invocation.
type Parser[Req any] func(inv *Invocation) (Req, error)

// Handler runs a typed request.
type Handler[Req any] func(ctx context.Context, inv *Invocation, req Req) (*Result, error)

type entry struct {
	spec Spec
	run  func(ctx context.Context, inv *Invocation) (*Result, error)
}

// Registry is the explicit command-name-to-handler map built at startup.
type Registry struct {
	entries map[string]*entry
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger.Named("commands"),
	}
}

// Register adds a command. Registering a name twice panics, as it is a programming error.
func Register[Req any](r *Registry, spec Spec, parse Parser[Req], handle Handler[Req]) {
	if _, exists := r.entries[spec.Name]; exists {
		panic("command registered twice: " + spec.Name)
	}

	r.entries[spec.Name] = &entry{
		spec: spec,
		run: func(ctx context.Context, inv *Invocation) (*Result, error) {
			req, err := parse(inv)
			if err != nil {
				return nil, err
			}

			return handle(ctx, inv, req)
		},
	}
}

// Specs returns every registered command sorted by name.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.entries))
	for _, e := range r.entries {
		specs = append(specs, e.spec)
	}

	slices.SortFunc(specs, func(a, b Spec) int {
		return strings.Compare(a.Name, b.Name)
	})

	return specs
}

// Dispatch runs a command and always returns a reply. Business rule
// violations become a user-facing message; anything else is logged and
// reported as an internal failure.
func (r *Registry) Dispatch(ctx context.Context, name string, inv *Invocation) *Result {
	start := time.Now()

	result, err := r.dispatch(ctx, name, inv)
	if err != nil {
		result = r.errorResult(name, inv, err)
	} else if result.Outcome == "" {
		result.Outcome = OutcomeOK
	}

	commandsTotal.WithLabelValues(name, string(result.Outcome)).Inc()
	r.logger.Debug("Command handled",
		zap.String("command", name),
		zap.Uint64("guildID", uint64(inv.GuildID)),
		zap.Uint64("memberID", uint64(inv.MemberID)),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", time.Since(start)))

	return result
}

func (r *Registry) dispatch(ctx context.Context, name string, inv *Invocation) (*Result, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if inv.GuildID == 0 {
		return nil, ErrNotInGuild
	}

	if e.spec.AdminOnly && !inv.IsAdmin {
		return nil, ErrPermissionDenied
	}

	if inv.Now.IsZero() {
		inv.Now = time.Now()
	}

	if inv.Options == nil {
		inv.Options = map[string]string{}
	}

	return e.run(ctx, inv)
}

func (r *Registry) errorResult(name string, inv *Invocation, err error) *Result {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return &Result{Content: "This command is not available.", Outcome: OutcomeUnknown}
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotInGuild):
		return &Result{Content: "❌ " + capitalize(err.Error()) + ".", Outcome: OutcomeDenied}
	case errors.Is(err, dberr.ErrValidation), errors.Is(err, dberr.ErrNotFound), errors.Is(err, dberr.ErrConflict):
		return &Result{Content: "❌ " + UserMessage(err), Outcome: OutcomeRejected}
	default:
		r.logger.Error("Command failed",
			zap.Error(err),
			zap.String("command", name),
			zap.Uint64("guildID", uint64(inv.GuildID)),
			zap.Uint64("memberID", uint64(inv.MemberID)))

		return &Result{
			Content: "Internal error. Please report this to an administrator.",
			Outcome: OutcomeInternal,
		}
	}
}

// UserMessage strips the taxonomy prefix from a business error.
func UserMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{dberr.ErrValidation, dberr.ErrNotFound, dberr.ErrConflict} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}

	return capitalize(msg) + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

// String returns a trimmed option value.
func (inv *Invocation) String(name string) string {
	return strings.TrimSpace(inv.Options[name])
}

// RequireString returns an option value that must be present.
func (inv *Invocation) RequireString(name string) (string, error) {
	value := inv.String(name)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidOption, name)
	}

	return value, nil
}

// Int returns an integer option, or def when it is absent.
func (inv *Invocation) Int(name string, def int64) (int64, error) {
	value := inv.String(name)
	if value == "" {
		return def, nil
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidOption, name)
	}

	return n, nil
}

// RequireInt returns an integer option that must be present.
func (inv *Invocation) RequireInt(name string) (int64, error) {
	if _, err := inv.RequireString(name); err != nil {
		return 0, err
	}

	return inv.Int(name, 0)
}

// Bool returns a boolean option, or def when it is absent.
func (inv *Invocation) Bool(name string, def bool) (bool, error) {
	value := inv.String(name)
	if value == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", ErrInvalidOption, name)
	}

	return b, nil
}

// ID returns a user, channel or role option, or def when it is absent.
func (inv *Invocation) ID(name string, def snowflake.ID) (snowflake.ID, error) {
	value := inv.String(name)
	if value == "" {
		return def, nil
	}

	id, err := snowflake.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a valid id", ErrInvalidOption, name)
	}

	return id, nil
}

// RequireID returns a user, channel or role option that must be present.
func (inv *Invocation) RequireID(name string) (snowflake.ID, error) {
	if _, err := inv.RequireString(name); err != nil {
		return 0, err
	}

	return inv.ID(name, 0)
}
