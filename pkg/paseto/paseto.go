package pasetotoken

import (
	"errors"
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/pkg/util/codes"
)

type Config struct {
	Mode Mode

	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Implicit []byte
}

type Manager struct {
	cfg   Config
	keys  Keys
	parse paseto.Parser
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, ErrConfig{Msg: "cfg.Mode must match keys.Mode"}
	}
	if cfg.Issuer == "" {
		return nil, ErrConfig{Msg: "Issuer is required"}
	}
	if cfg.Audience == "" {
		return nil, ErrConfig{Msg: "Audience is required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}

	// NotExpired is one of the parser's default rules.
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(cfg.Issuer))
	p.AddRule(paseto.ForAudience(cfg.Audience))

	return &Manager{cfg: cfg, keys: keys, parse: p}, nil
}

// Subject identifies who a token is minted for.
type Subject struct {
	IdentityID uuid.UUID
	Role       string
	SessionID  *uuid.UUID
}

func (m *Manager) AccessTTL() time.Duration  { return m.cfg.AccessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

func (m *Manager) IssueAccess(sub Subject) (string, time.Time, error) {
	return m.issue(TokenTypeAccess, sub, m.cfg.AccessTTL)
}

func (m *Manager) IssueRefresh(sub Subject) (string, time.Time, error) {
	return m.issue(TokenTypeRefresh, sub, m.cfg.RefreshTTL)
}

// Verify parses a token, checks issuer, audience and expiry, and returns its
// claims. Every failure is an ErrInvalidToken except a key misconfiguration.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	tok, err := m.keys.open(m.parse, tokenStr, m.cfg.Implicit)
	if err != nil {
		var cfgErr ErrConfig
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, ErrInvalidToken{Err: err}
	}

	claims, err := extractClaims(tok, m.cfg.Issuer, m.cfg.Audience)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	return claims, nil
}

func (m *Manager) issue(tt TokenType, sub Subject, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	jti, err := codes.GenerateSecureToken(codes.TokenByteLength)
	if err != nil {
		return "", time.Time{}, err
	}
	tok.SetJti(jti)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetSubject(sub.IdentityID.String())

	tok.SetString(claimType, string(tt))
	tok.SetString(claimRole, sub.Role)
	if sub.SessionID != nil {
		tok.SetString(claimSession, sub.SessionID.String())
	}

	raw, err := m.keys.seal(tok, m.cfg.Implicit)
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, exp, nil
}

// extractClaims reads the registered claims the parser has already checked
// plus the clinic claims. sid is optional; tokens from a bootstrap flow carry
// no session.
func extractClaims(tok *paseto.Token, iss, aud string) (*Claims, error) {
	out := &Claims{Issuer: iss, Audience: aud}
	var err error

	if out.TokenID, err = tok.GetJti(); err != nil {
		return nil, err
	}
	if out.IssuedAt, err = tok.GetIssuedAt(); err != nil {
		return nil, err
	}
	if out.ExpiresAt, err = tok.GetExpiration(); err != nil {
		return nil, err
	}

	sub, err := tok.GetSubject()
	if err != nil {
		return nil, err
	}
	if out.IdentityID, err = uuid.Parse(sub); err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}

	typ, err := tok.GetString(claimType)
	if err != nil {
		return nil, err
	}
	out.Type = TokenType(typ)
	if out.Type != TokenTypeAccess && out.Type != TokenTypeRefresh {
		return nil, fmt.Errorf("unknown token type %q", typ)
	}

	if out.Role, err = tok.GetString(claimRole); err != nil {
		return nil, err
	}

	if raw, err := tok.GetString(claimSession); err == nil {
		sid, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("session id: %w", err)
		}
		out.SessionID = &sid
	}
	return out, nil
}

// NewFromCentralConfig builds the manager from the authentication section.
func NewFromCentralConfig(cfg *config.Config) (*Manager, error) {
	p := cfg.Authentication.Paseto

	keys, err := LoadKeys(KeyStrings{
		Mode:         Mode(p.Mode),
		SymmetricHex: p.LocalKeyHex,
		SecretHex:    p.SecretKeyHex,
		PublicHex:    p.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}

	return New(Config{
		Mode:       Mode(p.Mode),
		Issuer:     p.Issuer,
		Audience:   p.Audience,
		AccessTTL:  time.Duration(p.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(p.RefreshTTLDays) * 24 * time.Hour,
	}, keys)
}
