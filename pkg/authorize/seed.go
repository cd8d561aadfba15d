package authorize

import (
	"context"
	"log/slog"
)

// DefaultPolicies is the role matrix. Ownership of individual records is not
// expressed here; CanAccess handles it after the role check passes.
var DefaultPolicies = []PermissionPolicy{
	{RoleDoctor, WildcardResource, WildcardAction, EffectAllow},

	{RolePatient, ResourcePatient, ActionRead, EffectAllow},
	{RolePatient, ResourceAppointment, ActionCreate, EffectAllow},
	{RolePatient, ResourceAppointment, ActionRead, EffectAllow},
	{RolePatient, ResourceAppointment, ActionList, EffectAllow},
	{RolePatient, ResourceFee, ActionRead, EffectAllow},
	{RolePatient, ResourceFee, ActionList, EffectAllow},
	{RolePatient, ResourceFee, ActionPay, EffectAllow},
	{RolePatient, ResourceDiagnostic, ActionRead, EffectAllow},
	{RolePatient, ResourceDiagnostic, ActionList, EffectAllow},
}

// SeedDefaultPolicies loads DefaultPolicies into auth. Re-seeding is harmless.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	for _, p := range DefaultPolicies {
		added, err := auth.AddPermission(ctx, p.Subject, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(DefaultPolicies))
	return nil
}
