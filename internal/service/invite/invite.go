// Package invite keeps single-use registration tokens for patients created
// without a login.
package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/pkg/redis"
	"github.com/Alijeyrad/clinic_backend/pkg/util/codes"
)

var ErrInvalid = errors.New("invitation is invalid or expired")

const DefaultTTL = 72 * time.Hour

// Keys hold the token fingerprint, never the token itself.
func key(token string) string { return "invite:" + codes.Fingerprint(token) }

type Store struct {
	kv  redis.KV
	ttl time.Duration
}

func NewStore(kv redis.KV, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: kv, ttl: ttl}
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Create issues a token bound to patientID.
func (s *Store) Create(ctx context.Context, patientID uuid.UUID) (string, time.Time, error) {
	token, err := codes.GenerateInvitationToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate invite token: %w", err)
	}
	if err := s.kv.Set(ctx, key(token), patientID.String(), s.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("store invite: %w", err)
	}
	return token, time.Now().Add(s.ttl), nil
}

// Lookup returns the patient bound to token without consuming it.
func (s *Store) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalid
	}
	v, err := s.kv.Get(ctx, key(token))
	if errors.Is(err, redis.ErrNotFound) {
		return uuid.Nil, ErrInvalid
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load invite: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, ErrInvalid
	}
	return id, nil
}

// Consume deletes token. It is called once the invite has been honored.
func (s *Store) Consume(ctx context.Context, token string) error {
	return s.kv.Delete(ctx, key(token))
}

// URL appends token to the accept page.
func URL(base, token string) string {
	if base == "" {
		return token
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + token
}
