// Package id generates identifiers for analysis runs and staging directories.
package id

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Generate returns a random UUID string. Runs are identified this way.
func Generate() string {
	return uuid.NewString()
}

// GenerateShort returns eight hex digits taken from a random UUID, short
// enough for directory names.
func GenerateShort() string {
	u := uuid.New()
	return hex.EncodeToString(u[:4])
}
