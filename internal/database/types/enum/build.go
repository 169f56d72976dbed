package enum

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEnum is returned when a string does not name a known enum value.
var ErrInvalidEnum = errors.New("invalid enum value")

// BuildType represents the role a player fills in guild wars.
type BuildType string

const (
	// BuildTypeUnset marks a profile whose build has not been finalized yet.
	BuildTypeUnset   BuildType = ""
	BuildTypeDPS     BuildType = "DPS"
	BuildTypeTank    BuildType = "Tank"
	BuildTypeSupport BuildType = "Support"
	BuildTypeHealer  BuildType = "Healer"
)

// BuildTypeValues returns every selectable build in display order.
func BuildTypeValues() []BuildType {
	return []BuildType{BuildTypeDPS, BuildTypeTank, BuildTypeSupport, BuildTypeHealer}
}

// String returns the display name of the build.
func (b BuildType) String() string {
	if b == BuildTypeUnset {
		return "Unset"
	}

	return string(b)
}

// BuildTypeString parses a build name case-insensitively.
func BuildTypeString(s string) (BuildType, error) {
	for _, b := range BuildTypeValues() {
		if strings.EqualFold(string(b), strings.TrimSpace(s)) {
			return b, nil
		}
	}

	return BuildTypeUnset, fmt.Errorf("%w: build %q", ErrInvalidEnum, s)
}
