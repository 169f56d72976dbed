//go:build !integration

package dbtest

import "testing"

// descriptor selects the embedded backend.
func descriptor(testing.TB) string {
	return ""
}
