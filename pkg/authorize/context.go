package authorize

import (
	"context"
	"errors"

	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

var ErrNoPrincipalInContext = errors.New("no principal found in context")

// RoleFromContext returns the casbin subject for the caller.
func RoleFromContext(ctx context.Context) (Role, error) {
	p := reqctx.PrincipalFromContext(ctx)
	if p == nil || p.Role == "" {
		return "", ErrNoPrincipalInContext
	}
	return Role(p.Role), nil
}

// EnforceContext runs MustEnforce for the principal stored in ctx.
func EnforceContext(ctx context.Context, auth IAuthorization, object Resource, action Action) error {
	role, err := RoleFromContext(ctx)
	if err != nil {
		return err
	}
	return auth.MustEnforce(ctx, role, object, action)
}
