package taskgraph

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562). Tasks
// and Workflows each carry one in addition to their human name.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// normalizeName NFC-normalizes a user-supplied name and, if it is empty,
// defaults it to prefix-<shortID> using the first 8 characters of id.
func normalizeName(name, prefix, id string) string {
	if name == "" {
		short := id
		if len(short) > 8 {
			short = short[:8]
		}
		return fmt.Sprintf("%s-%s", prefix, short)
	}
	return norm.NFC.String(name)
}
