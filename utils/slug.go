package utils

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultIDLength is the length of generated paste identifiers
	DefaultIDLength = 8
	// MinIDLength and MaxIDLength bound configurable identifier lengths
	MinIDLength = 4
	MaxIDLength = 32
)

// GenerateID returns a random hex identifier of the given length taken from a
// v4 UUID. Lengths outside [MinIDLength, MaxIDLength] fall back to
// DefaultIDLength. An error means the system entropy source failed.
func GenerateID(length int) (string, error) {
	if length < MinIDLength || length > MaxIDLength {
		length = DefaultIDLength
	}
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	clean := strings.ReplaceAll(u.String(), "-", "")
	return clean[:length], nil
}

// IsValidID checks that id could have been produced by GenerateID
func IsValidID(id string) bool {
	if len(id) < MinIDLength || len(id) > MaxIDLength {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
