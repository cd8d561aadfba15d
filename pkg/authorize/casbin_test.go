package authorize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

func newSeeded(t *testing.T) IAuthorization {
	t.Helper()
	auth, err := New(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return auth
}

func TestNewAuthorization(t *testing.T) {
	t.Run("returns error for nil enforcer", func(t *testing.T) {
		_, err := NewAuthorization(nil)
		if !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("expected ErrInvalidArgs, got %v", err)
		}
	})

	t.Run("loads model from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.conf")
		if err := os.WriteFile(path, []byte(DefaultModel), 0o644); err != nil {
			t.Fatalf("write model: %v", err)
		}
		auth, err := New(context.Background(), Config{CasbinModelPath: path})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := auth.MustEnforce(context.Background(), RoleDoctor, ResourceFee, ActionDelete); err != nil {
			t.Errorf("doctor should be allowed: %v", err)
		}
	})

	t.Run("missing model file", func(t *testing.T) {
		_, err := New(context.Background(), Config{CasbinModelPath: filepath.Join(t.TempDir(), "nope.conf")})
		if err == nil {
			t.Error("expected error for missing model file")
		}
	})
}

func TestDefaultPolicyMatrix(t *testing.T) {
	auth := newSeeded(t)
	ctx := context.Background()

	tests := []struct {
		role     Role
		resource Resource
		action   Action
		want     bool
	}{
		{RoleDoctor, ResourcePatient, ActionDelete, true},
		{RoleDoctor, ResourcePatient, ActionApprove, true},
		{RoleDoctor, ResourceFeeStats, ActionRead, true},
		{RoleDoctor, ResourceDiagnostic, ActionCreate, true},

		{RolePatient, ResourcePatient, ActionRead, true},
		{RolePatient, ResourcePatient, ActionList, false},
		{RolePatient, ResourcePatient, ActionUpdate, false},
		{RolePatient, ResourcePatient, ActionDelete, false},
		{RolePatient, ResourceAppointment, ActionCreate, true},
		{RolePatient, ResourceAppointment, ActionList, true},
		{RolePatient, ResourceAppointment, ActionUpdate, false},
		{RolePatient, ResourceAppointment, ActionDelete, false},
		{RolePatient, ResourceFee, ActionRead, true},
		{RolePatient, ResourceFee, ActionPay, true},
		{RolePatient, ResourceFee, ActionCreate, false},
		{RolePatient, ResourceFeeStats, ActionRead, false},
		{RolePatient, ResourceDiagnostic, ActionList, true},
		{RolePatient, ResourceDiagnostic, ActionCreate, false},
		{RolePatient, ResourceDiagnostic, ActionDelete, false},

		{Role("nurse"), ResourcePatient, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.resource)+"/"+string(tt.action), func(t *testing.T) {
			got, err := auth.Enforce(ctx, tt.role, tt.resource, tt.action)
			if err != nil {
				t.Fatalf("Enforce: %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnforceRejectsBadArguments(t *testing.T) {
	auth := newSeeded(t)
	ctx := context.Background()

	if _, err := auth.Enforce(ctx, "", ResourceFee, ActionRead); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("empty role: got %v", err)
	}
	if _, err := auth.Enforce(ctx, RoleDoctor, Resource("ledger"), ActionRead); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("unknown resource: got %v", err)
	}
	if _, err := auth.Enforce(ctx, RoleDoctor, ResourceFee, Action("export")); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("unknown action: got %v", err)
	}
}

func TestDenyOverridesAllow(t *testing.T) {
	auth := newSeeded(t)
	ctx := context.Background()

	if _, err := auth.AddPermission(ctx, RolePatient, ResourceFee, ActionPay, EffectDeny); err != nil {
		t.Fatalf("AddPermission: %v", err)
	}
	if err := auth.MustEnforce(ctx, RolePatient, ResourceFee, ActionPay); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	if _, err := auth.RemovePermission(ctx, RolePatient, ResourceFee, ActionPay, EffectDeny); err != nil {
		t.Fatalf("RemovePermission: %v", err)
	}
	if err := auth.MustEnforce(ctx, RolePatient, ResourceFee, ActionPay); err != nil {
		t.Errorf("expected allow after removing deny, got %v", err)
	}
}

func TestAddPermissionValidation(t *testing.T) {
	auth := newSeeded(t)
	ctx := context.Background()

	cases := []PermissionPolicy{
		{Role("nurse"), ResourceFee, ActionRead, EffectAllow},
		{RolePatient, Resource("ledger"), ActionRead, EffectAllow},
		{RolePatient, ResourceFee, Action("export"), EffectAllow},
		{RolePatient, ResourceFee, ActionRead, PolicyEffect("maybe")},
	}
	for _, p := range cases {
		if _, err := auth.AddPermission(ctx, p.Subject, p.Object, p.Action, p.Effect); !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("AddPermission(%v) = %v, want ErrInvalidArgs", p, err)
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	auth := newSeeded(t)
	if err := SeedDefaultPolicies(context.Background(), auth); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if got := len(auth.Raw().GetPolicy()); got != len(DefaultPolicies) {
		t.Errorf("policy count = %d, want %d", got, len(DefaultPolicies))
	}
}

func TestEnforceContext(t *testing.T) {
	auth := NewAuditedAuthorization(newSeeded(t), nil)

	if err := EnforceContext(context.Background(), auth, ResourceFee, ActionRead); !errors.Is(err, ErrNoPrincipalInContext) {
		t.Errorf("anonymous: got %v", err)
	}

	pid := uuid.New()
	ctx := reqctx.WithPrincipal(context.Background(), &reqctx.Principal{
		IdentityID: uuid.New(),
		Role:       reqctx.RolePatient,
		PatientID:  &pid,
	})
	if err := EnforceContext(ctx, auth, ResourceFee, ActionRead); err != nil {
		t.Errorf("patient read fee: %v", err)
	}
	if err := EnforceContext(ctx, auth, ResourceFee, ActionDelete); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient delete fee: got %v", err)
	}
}

func TestConfigOverrides(t *testing.T) {
	cfg, err := FromCentralConfig(config.AuthorizationConfig{
		Overrides: []config.PolicyOverride{
			{Role: "patient", Resource: "appointment", Action: "create", Effect: "DENY"},
			{Role: "patient", Resource: "fee_stats", Action: "read"},
		},
	})
	if err != nil {
		t.Fatalf("FromCentralConfig: %v", err)
	}
	if cfg.Overrides[1].Effect != EffectAllow {
		t.Errorf("empty effect should default to allow, got %q", cfg.Overrides[1].Effect)
	}

	auth, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := auth.MustEnforce(ctx, RolePatient, ResourceAppointment, ActionCreate); !errors.Is(err, ErrForbidden) {
		t.Errorf("denied booking: got %v", err)
	}
	if err := auth.MustEnforce(ctx, RolePatient, ResourceFeeStats, ActionRead); err != nil {
		t.Errorf("granted stats: got %v", err)
	}
	if err := auth.MustEnforce(ctx, RolePatient, ResourceAppointment, ActionRead); err != nil {
		t.Errorf("untouched default: got %v", err)
	}
}

func TestConfigOverridesRejectUnknown(t *testing.T) {
	bad := []config.PolicyOverride{
		{Role: "nurse", Resource: "fee", Action: "read"},
		{Role: "patient", Resource: "ledger", Action: "read"},
		{Role: "patient", Resource: "fee", Action: "export"},
		{Role: "patient", Resource: "fee", Action: "read", Effect: "maybe"},
	}
	for _, o := range bad {
		_, err := FromCentralConfig(config.AuthorizationConfig{Overrides: []config.PolicyOverride{o}})
		if !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("%+v: got %v", o, err)
		}
	}
}
