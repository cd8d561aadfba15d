package authorize

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

func TestCanAccess(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	doctor := &reqctx.Principal{IdentityID: uuid.New(), Role: reqctx.RoleDoctor}
	patient := &reqctx.Principal{IdentityID: uuid.New(), Role: reqctx.RolePatient, PatientID: &own}
	unlinked := &reqctx.Principal{IdentityID: uuid.New(), Role: reqctx.RolePatient}
	unknown := &reqctx.Principal{IdentityID: uuid.New(), Role: "nurse", PatientID: &own}

	tests := []struct {
		name  string
		p     *reqctx.Principal
		owner uuid.UUID
		want  bool
	}{
		{"doctor any record", doctor, other, true},
		{"patient own record", patient, own, true},
		{"patient other record", patient, other, false},
		{"patient without linked record", unlinked, own, false},
		{"unknown role", unknown, own, false},
		{"nil principal", nil, own, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(tt.p, tt.owner); got != tt.want {
				t.Errorf("CanAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopeFilter(t *testing.T) {
	own := uuid.New()
	other := uuid.New()
	doctor := &reqctx.Principal{Role: reqctx.RoleDoctor}
	patient := &reqctx.Principal{Role: reqctx.RolePatient, PatientID: &own}

	if got, ok := ScopeFilter(doctor, nil); !ok || got != nil {
		t.Errorf("doctor without filter = %v, %v", got, ok)
	}
	if got, ok := ScopeFilter(doctor, &other); !ok || *got != other {
		t.Errorf("doctor with filter = %v, %v", got, ok)
	}
	if got, ok := ScopeFilter(patient, nil); !ok || *got != own {
		t.Errorf("patient without filter = %v, %v", got, ok)
	}
	if got, ok := ScopeFilter(patient, &own); !ok || *got != own {
		t.Errorf("patient with own filter = %v, %v", got, ok)
	}
	if _, ok := ScopeFilter(patient, &other); ok {
		t.Error("patient asking for another patient must be rejected")
	}
	if _, ok := ScopeFilter(&reqctx.Principal{Role: reqctx.RolePatient}, nil); ok {
		t.Error("unlinked patient must be rejected")
	}
}
