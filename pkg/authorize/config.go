package authorize

import (
	"fmt"
	"strings"

	"github.com/Alijeyrad/clinic_backend/config"
)

type Config struct {
	// CasbinModelPath overrides the built-in model when set.
	CasbinModelPath string

	// EnableAudit logs every decision through slog.
	EnableAudit bool

	// Overrides are applied after DefaultPolicies, so a deny here wins over
	// a default allow.
	Overrides []PermissionPolicy
}

func DefaultConfig() Config {
	return Config{}
}

// FromCentralConfig rejects overrides naming anything the model does not
// know. Wildcards are accepted for resource and action.
func FromCentralConfig(c config.AuthorizationConfig) (Config, error) {
	out := Config{CasbinModelPath: c.CasbinModelPath, EnableAudit: c.EnableAudit}
	for i, o := range c.Overrides {
		p, err := ParseOverride(o.Role, o.Resource, o.Action, o.Effect)
		if err != nil {
			return Config{}, fmt.Errorf("authorization.overrides[%d]: %w", i, err)
		}
		out.Overrides = append(out.Overrides, p)
	}
	return out, nil
}

func ParseOverride(role, resource, action, effect string) (PermissionPolicy, error) {
	p := PermissionPolicy{
		Subject: Role(strings.TrimSpace(role)),
		Object:  Resource(strings.TrimSpace(resource)),
		Action:  Action(strings.TrimSpace(action)),
		Effect:  PolicyEffect(strings.ToLower(strings.TrimSpace(effect))),
	}
	if p.Effect == "" {
		p.Effect = EffectAllow
	}
	if err := validatePolicy(p.Subject, p.Object, p.Action, p.Effect); err != nil {
		return PermissionPolicy{}, err
	}
	return p, nil
}
