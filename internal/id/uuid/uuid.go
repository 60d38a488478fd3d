// Package uuid mints run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID returns a time-ordered UUIDv7 string that tags every log line of
// one acquisition run.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// RunIDOrRandom returns NewRunID, falling back to a UUIDv4 when the clock
// source fails.
func RunIDOrRandom() string {
	if id, err := NewRunID(); err == nil {
		return id
	}
	return uuid.NewString()
}
