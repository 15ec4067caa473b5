package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique violation.
// When constraintName is provided and appears in the error message the match is
// exact; otherwise the helper falls back to driver-level phrasing, which also
// covers the sqlite databases used in tests.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
