package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a short unique identifier for a job record
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// DeterministicID derives a stable identifier from an input string.
// Used to give conversion jobs an idempotent id keyed by canonical URL.
func DeterministicID(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
