package crypto

import (
	"github.com/google/uuid"
)

// NewConnectionID generates a time-ordered UUID v7 string. Connection ids
// are server-owned and never accepted from clients.
func NewConnectionID() string {
	return uuid.Must(uuid.NewV7()).String()
}
