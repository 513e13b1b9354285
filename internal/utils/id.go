package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a process-unique identifier.
func NewID() string {
	return uuid.NewString()
}

// GuestName builds a display name for an unauthenticated session.
func GuestName(id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return "guest-" + short
}
