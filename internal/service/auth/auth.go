package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/service/invite"
	"github.com/Alijeyrad/clinic_backend/pkg/extauth"
	pasetotoken "github.com/Alijeyrad/clinic_backend/pkg/paseto"
	"github.com/Alijeyrad/clinic_backend/pkg/redis"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
	"github.com/Alijeyrad/clinic_backend/pkg/util/password"
)

const minPasswordLength = 8

// redisKeySession returns the key holding the identity id of a live session.
func redisKeySession(sessionID string) string { return "session:" + sessionID }

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type LoginRequest struct {
	Email    string
	Password string
}

type SignupRequest struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Age      *int
	Gender   string
}

type AcceptInviteRequest struct {
	Token    string
	Password string
}

// User is the public view of a principal.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}

type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

func UserFromPrincipal(p *reqctx.Principal) User {
	return User{ID: p.IdentityID, Email: p.Email, Name: p.Name, Role: p.Role, PatientID: p.PatientID}
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Signup(ctx context.Context, req SignupRequest) (*repo.Patient, error)
	AcceptInvite(ctx context.Context, req AcceptInviteRequest) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, p *reqctx.Principal) error

	// Authenticate resolves a bearer credential to a principal. It fails with
	// ErrUnauthenticated, ErrInvalidToken, ErrSessionNotFound,
	// ErrProfileMissing or ErrPendingApproval.
	Authenticate(ctx context.Context, bearer string) (*reqctx.Principal, error)

	// CreateDoctor provisions a doctor login. It is only reachable from the CLI.
	CreateDoctor(ctx context.Context, email, name, plain string) (*repo.Identity, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type authService struct {
	store   *repo.Store
	kv      redis.KV
	tokens  *pasetotoken.Manager
	hasher  *password.Hasher
	invites *invite.Store
	ext     *extauth.Verifier
}

// New wires the service. ext may be nil when no external identity provider
// is configured.
func New(
	store *repo.Store,
	kv redis.KV,
	tokens *pasetotoken.Manager,
	hasher *password.Hasher,
	invites *invite.Store,
	ext *extauth.Verifier,
) (Service, error) {
	if store == nil || kv == nil || tokens == nil || hasher == nil || invites == nil {
		return nil, errors.New("auth: missing dependency")
	}
	return &authService{
		store:   store,
		kv:      kv,
		tokens:  tokens,
		hasher:  hasher,
		invites: invites,
		ext:     ext,
	}, nil
}

// ---------------------------------------------------------------------------
// Login / signup
// ---------------------------------------------------------------------------

func (s *authService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	addr := normalizeEmail(req.Email)
	if addr == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	ident, err := s.store.Identities.GetByEmail(ctx, addr)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if err := s.hasher.Verify(ident.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Approval is checked after the password so a pending account is not
	// revealed to someone who does not know it.
	principal, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}

	if s.hasher.NeedsRehash(ident.PasswordHash) {
		if hash, err := s.hasher.Hash(req.Password); err == nil {
			if err := s.store.Identities.UpdatePassword(ctx, ident.ID, hash); err != nil {
				slog.WarnContext(ctx, "auth: rehash failed", "identity_id", ident.ID, "err", err)
			}
		}
	}

	return s.createSession(ctx, principal)
}

func (s *authService) Signup(ctx context.Context, req SignupRequest) (*repo.Patient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	addr, err := parseEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
		return nil, fmt.Errorf("%w: age is out of range", ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var p *repo.Patient
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		ident := &repo.Identity{Email: addr, Name: name, Role: repo.RolePatient, PasswordHash: hash}
		if err := s.createIdentity(ctx, ident); err != nil {
			return err
		}
		p = &repo.Patient{
			IdentityID: &ident.ID,
			Name:       name,
			Age:        req.Age,
			Gender:     strings.TrimSpace(req.Gender),
			Phone:      strings.TrimSpace(req.Phone),
			Email:      addr,
			Status:     repo.PatientPending,
		}
		if err := s.store.Patients.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AcceptInvite sets the password of an invited patient, activates the record
// and signs the patient in.
func (s *authService) AcceptInvite(ctx context.Context, req AcceptInviteRequest) (*Session, error) {
	patientID, err := s.invites.Lookup(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	p, err := s.store.Patients.GetByID(ctx, patientID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, invite.ErrInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if p.IdentityID != nil || p.Email == "" {
		return nil, invite.ErrInvalid
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ident := &repo.Identity{Email: normalizeEmail(p.Email), Name: p.Name, Role: repo.RolePatient, PasswordHash: hash}
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.createIdentity(ctx, ident); err != nil {
			return err
		}
		if err := s.store.Patients.LinkIdentity(ctx, p.ID, ident.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return invite.ErrInvalid
			}
			return fmt.Errorf("link identity: %w", err)
		}
		if err := s.store.Patients.SetStatus(ctx, p.ID, repo.PatientActive); err != nil {
			return fmt.Errorf("activate patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.invites.Consume(ctx, req.Token); err != nil {
		slog.WarnContext(ctx, "auth: consume invite failed", "patient_id", p.ID, "err", err)
	}

	pid := p.ID
	return s.createSession(ctx, &reqctx.Principal{
		IdentityID: ident.ID,
		Role:       reqctx.RolePatient,
		Name:       ident.Name,
		Email:      ident.Email,
		PatientID:  &pid,
	})
}

func (s *authService) CreateDoctor(ctx context.Context, email, name, plain string) (*repo.Identity, error) {
	addr, err := parseEmail(email)
	if err != nil {
		return nil, err
	}
	if len(plain) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	ident := &repo.Identity{Email: addr, Name: strings.TrimSpace(name), Role: repo.RoleDoctor, PasswordHash: hash}
	if err := s.createIdentity(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != pasetotoken.TokenTypeRefresh || claims.SessionID == nil {
		return nil, ErrInvalidToken
	}

	// Take makes the old refresh token single-use.
	if _, err := s.kv.Take(ctx, redisKeySession(claims.SessionID.String())); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis take session: %w", err)
	}

	principal, err := s.resolveID(ctx, claims.IdentityID)
	if err != nil {
		return nil, err
	}
	return s.createSession(ctx, principal)
}

func (s *authService) Logout(ctx context.Context, p *reqctx.Principal) error {
	if p == nil || p.SessionID == nil {
		return nil
	}
	if err := s.kv.Delete(ctx, redisKeySession(p.SessionID.String())); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *authService) createSession(ctx context.Context, p *reqctx.Principal) (*Session, error) {
	sessionID := uuid.Must(uuid.NewV7())

	sessionKey := redisKeySession(sessionID.String())
	if err := s.kv.Set(ctx, sessionKey, p.IdentityID.String(), s.tokens.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	sub := pasetotoken.Subject{IdentityID: p.IdentityID, Role: p.Role, SessionID: &sessionID}
	access, expiresAt, err := s.tokens.IssueAccess(sub)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.IssueRefresh(sub)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	p.SessionID = &sessionID
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         UserFromPrincipal(p),
	}, nil
}

// ---------------------------------------------------------------------------
// Gate
// ---------------------------------------------------------------------------

func (s *authService) Authenticate(ctx context.Context, bearer string) (*reqctx.Principal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.tokens.Verify(bearer)
	if err != nil {
		id, extErr := s.ext.Verify(bearer)
		if extErr != nil {
			return nil, ErrInvalidToken
		}
		return s.resolveID(ctx, id)
	}

	if claims.Type != pasetotoken.TokenTypeAccess || claims.SessionID == nil {
		return nil, ErrInvalidToken
	}
	if _, err := s.kv.Get(ctx, redisKeySession(claims.SessionID.String())); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	principal, err := s.resolveID(ctx, claims.IdentityID)
	if err != nil {
		return nil, err
	}
	if principal.Role != claims.Role {
		return nil, ErrInvalidToken
	}
	principal.SessionID = claims.SessionID
	return principal, nil
}

func (s *authService) resolveID(ctx context.Context, identityID uuid.UUID) (*reqctx.Principal, error) {
	ident, err := s.store.Identities.GetByID(ctx, identityID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	return s.resolve(ctx, ident)
}

// resolve loads the profile behind an identity and applies approval gating.
func (s *authService) resolve(ctx context.Context, ident *repo.Identity) (*reqctx.Principal, error) {
	p := &reqctx.Principal{
		IdentityID: ident.ID,
		Role:       string(ident.Role),
		Name:       ident.Name,
		Email:      ident.Email,
	}

	switch ident.Role {
	case repo.RoleDoctor:
		return p, nil
	case repo.RolePatient:
		rec, err := s.store.Patients.GetByIdentityID(ctx, ident.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileMissing
		}
		if err != nil {
			return nil, fmt.Errorf("load patient: %w", err)
		}
		if rec.Status == repo.PatientPending {
			return nil, ErrPendingApproval
		}
		p.PatientID = &rec.ID
		return p, nil
	default:
		return nil, ErrProfileMissing
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *authService) createIdentity(ctx context.Context, ident *repo.Identity) error {
	exists, err := s.store.Identities.EmailExists(ctx, ident.Email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return ErrEmailTaken
	}
	if err := s.store.Identities.Create(ctx, ident); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseEmail(raw string) (string, error) {
	addr := normalizeEmail(raw)
	if addr == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return addr, nil
}
