// Package ids generates the opaque unique identifiers used for Jobs,
// Iterations, Reports, Events, Cases, and SafetyEvents.
package ids

import "github.com/google/uuid"

// New returns a new opaque identifier string.
func New() string {
	return uuid.NewString()
}
