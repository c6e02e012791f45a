package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NowFunc returns the current time; mockable in tests.
var NowFunc = time.Now

// Now returns the current UTC time truncated to microseconds, which is what Postgres keeps.
func Now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

// NewID returns a new random UUID string.
func NewID() string {
	return uuid.New().String()
}

// IsID reports whether s is a well formed UUID string.
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}
