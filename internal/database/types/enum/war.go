package enum

import (
	"fmt"
	"strings"
)

// WarResponse is a member's answer to a war poll.
type WarResponse string

const (
	WarResponseYes       WarResponse = "yes"
	WarResponseNo        WarResponse = "no"
	WarResponseTentative WarResponse = "tentative"
)

// WarResponseValues returns every valid response.
func WarResponseValues() []WarResponse {
	return []WarResponse{WarResponseYes, WarResponseNo, WarResponseTentative}
}

func (r WarResponse) String() string {
	return string(r)
}

// WarResponseString parses a response case-insensitively.
func WarResponseString(s string) (WarResponse, error) {
	for _, r := range WarResponseValues() {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}

	return "", fmt.Errorf("%w: war response %q", ErrInvalidEnum, s)
}

// CycleStatus is the persisted status of a war poll cycle.
type CycleStatus string

const (
	// CycleStatusOpen means the poll accepts responses and no reminder went out yet.
	CycleStatusOpen CycleStatus = "open"
	// CycleStatusReminded means at least one reminder was sent.
	CycleStatusReminded CycleStatus = "reminded"
	// CycleStatusClosed means the cycle ended on schedule and holds a frozen summary.
	CycleStatusClosed CycleStatus = "closed"
	// CycleStatusReset means an admin forced the cycle back to idle.
	CycleStatusReset CycleStatus = "reset"
)

// IsLive reports whether the cycle still accepts responses.
func (s CycleStatus) IsLive() bool {
	return s == CycleStatusOpen || s == CycleStatusReminded
}

func (s CycleStatus) String() string {
	return string(s)
}
