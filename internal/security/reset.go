package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// NewResetToken returns a fresh 256-bit password-reset token. Only its hash
// is ever persisted; the plaintext goes out-of-band to the user.
func NewResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashResetToken maps a plaintext reset token to its stored form,
// sha256(token) base64url-encoded. Lookup by hash keeps comparison out of
// application code entirely.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
