package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecureKey creates a cryptographically secure random key and returns
// it as a hex string, suitable for JWT signing secrets.
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length/2) // each byte becomes two hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
