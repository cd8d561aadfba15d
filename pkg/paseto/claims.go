package pasetotoken

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Custom claim names carried next to the registered ones.
const (
	claimType    = "typ"
	claimRole    = "role"
	claimSession = "sid"
)

// Claims is what a verified token says about its bearer.
type Claims struct {
	Type TokenType

	// Role is carried so the gate can reject a token whose identity changed
	// role since issuance.
	IdentityID uuid.UUID
	Role       string
	SessionID  *uuid.UUID

	Issuer    string
	Audience  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *Claims) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
