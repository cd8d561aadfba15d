package authorize

import (
	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

// CanAccess is the single ownership rule for patient-scoped records. Doctors
// see everything. A patient sees a record only when it belongs to the patient
// record linked to their identity.
func CanAccess(p *reqctx.Principal, ownerPatientID uuid.UUID) bool {
	if p == nil {
		return false
	}
	if p.IsDoctor() {
		return true
	}
	if !p.IsPatient() || p.PatientID == nil {
		return false
	}
	return *p.PatientID == ownerPatientID
}

// ScopeFilter narrows a patient id filter to what the principal may list.
// Doctors keep the requested filter (nil means all). Patients always get
// their own id; asking for someone else's reports ok=false.
func ScopeFilter(p *reqctx.Principal, requested *uuid.UUID) (scoped *uuid.UUID, ok bool) {
	if p.IsDoctor() {
		return requested, true
	}
	if !p.IsPatient() || p.PatientID == nil {
		return nil, false
	}
	if requested != nil && *requested != *p.PatientID {
		return nil, false
	}
	own := *p.PatientID
	return &own, true
}
