package password

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidHash         = errors.New("invalid password hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
	ErrMismatch            = errors.New("password does not match")
	ErrTooLong             = errors.New("password exceeds 72 bytes")
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"

	// MinBcryptCost is the lowest work factor Hasher accepts.
	MinBcryptCost = 10
)

// Hasher produces salted one-way hashes with the configured algorithm.
// Verify accepts hashes from either algorithm so a deployment can switch
// algorithms without invalidating stored credentials.
type Hasher struct {
	algorithm  string
	bcryptCost int
	params     *Params
}

func New(cfg Config) *Hasher {
	h := &Hasher{
		algorithm:  cfg.Algorithm,
		bcryptCost: cfg.BcryptCost,
		params:     cfg.ToParams(),
	}
	if h.algorithm == "" {
		h.algorithm = AlgorithmBcrypt
	}
	if h.bcryptCost < MinBcryptCost {
		h.bcryptCost = MinBcryptCost
	}
	return h
}

func (h *Hasher) Hash(password string) (string, error) {
	switch h.algorithm {
	case AlgorithmArgon2id:
		return HashWithParams(password, h.params)
	case AlgorithmBcrypt:
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrTooLong
		}
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unknown password algorithm %q", h.algorithm)
	}
}

// Verify returns nil if password matches hash, ErrMismatch if it doesn't, or
// ErrInvalidHash if hash is not a recognised encoding.
func (h *Hasher) Verify(hash, password string) error {
	return Verify(hash, password)
}

// NeedsRehash reports whether hash was produced by a different algorithm or
// with weaker parameters than h is configured for.
func (h *Hasher) NeedsRehash(hash string) bool {
	switch {
	case isBcrypt(hash):
		if h.algorithm != AlgorithmBcrypt {
			return true
		}
		cost, err := bcrypt.Cost([]byte(hash))
		return err != nil || cost < h.bcryptCost
	case strings.HasPrefix(hash, "$argon2id$"):
		if h.algorithm != AlgorithmArgon2id {
			return true
		}
		return argon2NeedsRehash(hash, h.params)
	default:
		return true
	}
}

// Verify dispatches on the hash prefix.
func Verify(hash, password string) error {
	switch {
	case isBcrypt(hash):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return ErrMismatch
		default:
			return ErrInvalidHash
		}
	case strings.HasPrefix(hash, "$argon2"):
		return verifyArgon2(hash, password)
	default:
		return ErrInvalidHash
	}
}

// Match is a convenience wrapper that returns true if password matches hash.
func Match(hash, password string) bool {
	return Verify(hash, password) == nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// Generate creates a random password of the specified length.
// Uses URL-safe base64 characters (a-z, A-Z, 0-9, -, _).
func Generate(length int) string {
	if length <= 0 {
		length = 16
	}

	byteLen := (length*6 + 7) / 8
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("failed to generate random password: %w", err))
	}

	encoded := base64.RawURLEncoding.EncodeToString(b)
	if len(encoded) > length {
		return encoded[:length]
	}
	return encoded
}
