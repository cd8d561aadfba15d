// Package extauth verifies bearer tokens minted by an external identity
// provider. The subject claim must be the id of an identity known to this
// service; role and profile are always loaded locally.
package extauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/config"
)

var (
	ErrDisabled     = errors.New("external authentication disabled")
	ErrInvalidToken = errors.New("invalid external token")
)

type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	// Leeway tolerates clock skew with the provider.
	Leeway time.Duration
}

type Verifier struct {
	cfg  Config
	opts []jwt.ParserOption
}

func New(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("extauth: secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	return &Verifier{cfg: cfg, opts: opts}, nil
}

// FromCentralConfig returns (nil, nil) when external auth is switched off.
func FromCentralConfig(c config.ExternalAuthConfig) (*Verifier, error) {
	if !c.Enabled {
		return nil, nil
	}
	return New(Config{
		Secret:   []byte(c.Secret),
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Leeway:   30 * time.Second,
	})
}

// Verify validates signature, expiry, issuer and audience and returns the
// identity id carried in the subject.
func (v *Verifier) Verify(tokenStr string) (uuid.UUID, error) {
	if v == nil {
		return uuid.Nil, ErrDisabled
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	}, v.opts...)
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not an identity id", ErrInvalidToken)
	}
	return id, nil
}

// Sign mints a token the Verifier accepts. Used by tests and local tooling
// standing in for the provider.
func (v *Verifier) Sign(identityID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   identityID.String(),
		Issuer:    v.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{v.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.cfg.Secret)
}
