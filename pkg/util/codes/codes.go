// Package codes generates the random tokens handed out by the clinic: invite
// links and token ids.
package codes

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrInvalidLength = errors.New("invalid code length")

const (
	// TokenByteLength yields 32 hex characters.
	TokenByteLength = 16

	// InviteTokenByteLength yields 43 URL-safe characters.
	InviteTokenByteLength = 32
)

// GenerateInvitationToken creates the single-use token mailed to invited
// patients.
func GenerateInvitationToken() (string, error) {
	return GenerateURLSafeToken(InviteTokenByteLength)
}

func GenerateSecureToken(byteLength int) (string, error) {
	b, err := randomBytes(byteLength)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateURLSafeToken is unpadded base64url.
func GenerateURLSafeToken(byteLength int) (string, error) {
	b, err := randomBytes(byteLength)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Fingerprint is the value stored in place of a bearer token, so a dump of
// the store cannot be replayed.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomBytes(n int) ([]byte, error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}
