package reqctx

import (
	"context"

	"github.com/google/uuid"
)

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Principal is the resolved caller of an authenticated request. Handlers and
// services only ever see this, never the raw bearer credential.
type Principal struct {
	IdentityID uuid.UUID
	Role       string
	Name       string
	Email      string

	// PatientID is set for patients once their identity is linked to a record.
	PatientID *uuid.UUID

	// SessionID is nil for tokens issued by an external identity provider.
	SessionID *uuid.UUID
}

func (p *Principal) IsDoctor() bool  { return p != nil && p.Role == RoleDoctor }
func (p *Principal) IsPatient() bool { return p != nil && p.Role == RolePatient }

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, keyPrincipal, p)
}

// PrincipalFromContext returns nil when the request is anonymous.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(keyPrincipal).(*Principal)
	return p
}

// MustPrincipal panics when no principal is present. Use only behind the auth
// middleware.
func MustPrincipal(ctx context.Context) *Principal {
	p := PrincipalFromContext(ctx)
	if p == nil {
		panic("reqctx: principal not found in context")
	}
	return p
}

func IsAuthenticated(ctx context.Context) bool {
	return PrincipalFromContext(ctx) != nil
}
