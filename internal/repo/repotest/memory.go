// Package repotest holds in-memory repositories with the same contracts as
// the Postgres ones: email uniqueness, one scheduled appointment per slot and
// cascading deletes from identity down to diagnostics.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
)

// Op names accepted by DB.FailOn.
const (
	OpIdentityCreate    = "identities.create"
	OpPatientCreate     = "patients.create"
	OpAppointmentCreate = "appointments.create"
	OpFeeCreate         = "fees.create"
	OpDiagnosticCreate  = "diagnostics.create"
	OpDiagnosticDelete  = "diagnostics.delete"
)

// DB is the shared state behind every in-memory repository.
type DB struct {
	mu           sync.Mutex
	identities   map[uuid.UUID]*repo.Identity
	patients     map[uuid.UUID]*repo.Patient
	appointments map[uuid.UUID]*repo.Appointment
	fees         map[uuid.UUID]*repo.Fee
	diagnostics  map[uuid.UUID]*repo.Diagnostic
	failures     map[string]error
}

func NewDB() *DB {
	return &DB{
		identities:   make(map[uuid.UUID]*repo.Identity),
		patients:     make(map[uuid.UUID]*repo.Patient),
		appointments: make(map[uuid.UUID]*repo.Appointment),
		fees:         make(map[uuid.UUID]*repo.Fee),
		diagnostics:  make(map[uuid.UUID]*repo.Diagnostic),
		failures:     make(map[string]error),
	}
}

// NewStore returns a repo.Store over a fresh DB.
func NewStore() (*repo.Store, *DB) {
	db := NewDB()
	return db.Store(), db
}

func (db *DB) Store() *repo.Store {
	return &repo.Store{
		Identities:   identities{db},
		Patients:     patients{db},
		Appointments: appointments{db},
		Fees:         fees{db},
		Diagnostics:  diagnostics{db},
		Tx:           transactor{},
	}
}

// FailOn makes the named operation return err until cleared with a nil err.
func (db *DB) FailOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

func (db *DB) fail(op string) error { return db.failures[op] }

// transactor runs fn directly; the memory store has no rollback.
type transactor struct{}

func (transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func now() time.Time { return time.Now().UTC() }

func clone[T any](v *T) *T {
	c := *v
	return &c
}

// ---- identities ----

type identities struct{ db *DB }

func (r identities) Create(_ context.Context, i *repo.Identity) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail(OpIdentityCreate); err != nil {
		return err
	}
	for _, other := range r.db.identities {
		if strings.EqualFold(other.Email, strings.TrimSpace(i.Email)) {
			return repo.ErrDuplicate
		}
	}
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	i.Email = strings.TrimSpace(i.Email)
	i.CreatedAt, i.UpdatedAt = now(), now()
	r.db.identities[i.ID] = clone(i)
	return nil
}

func (r identities) GetByID(_ context.Context, id uuid.UUID) (*repo.Identity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	i, ok := r.db.identities[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(i), nil
}

func (r identities) GetByEmail(_ context.Context, email string) (*repo.Identity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, i := range r.db.identities {
		if strings.EqualFold(i.Email, strings.TrimSpace(email)) {
			return clone(i), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r identities) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err == repo.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r identities) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	i, ok := r.db.identities[id]
	if !ok {
		return repo.ErrNotFound
	}
	i.PasswordHash = hash
	i.UpdatedAt = now()
	return nil
}

func (r identities) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.identities[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.db.identities, id)
	for pid, p := range r.db.patients {
		if p.IdentityID != nil && *p.IdentityID == id {
			r.db.deletePatient(pid)
		}
	}
	for _, d := range r.db.diagnostics {
		if d.UploadedBy != nil && *d.UploadedBy == id {
			d.UploadedBy = nil
		}
	}
	return nil
}

// ---- patients ----

type patients struct{ db *DB }

// deletePatient cascades to appointments, fees and diagnostics. Caller holds mu.
func (db *DB) deletePatient(id uuid.UUID) {
	delete(db.patients, id)
	for aid, a := range db.appointments {
		if a.PatientID == id {
			delete(db.appointments, aid)
		}
	}
	for fid, f := range db.fees {
		if f.PatientID == id {
			delete(db.fees, fid)
		}
	}
	for did, d := range db.diagnostics {
		if d.PatientID == id {
			delete(db.diagnostics, did)
		}
	}
}

// openInvite mirrors patients_open_invite_email_key.
func (db *DB) openInvite(email string, exclude uuid.UUID) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for id, other := range db.patients {
		if id != exclude && other.IdentityID == nil && strings.ToLower(other.Email) == email {
			return true
		}
	}
	return false
}

func (r patients) HasOpenInvite(_ context.Context, email string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.openInvite(email, uuid.Nil), nil
}

func (r patients) Create(_ context.Context, p *repo.Patient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail(OpPatientCreate); err != nil {
		return err
	}
	if p.IdentityID != nil {
		if _, ok := r.db.identities[*p.IdentityID]; !ok {
			return repo.ErrNotFound
		}
		for _, other := range r.db.patients {
			if other.IdentityID != nil && *other.IdentityID == *p.IdentityID {
				return repo.ErrDuplicate
			}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.IdentityID == nil && r.db.openInvite(p.Email, p.ID) {
		return repo.ErrDuplicate
	}
	if p.Status == "" {
		p.Status = repo.PatientActive
	}
	p.CreatedAt, p.UpdatedAt = now(), now()
	r.db.patients[p.ID] = clone(p)
	return nil
}

func (r patients) GetByID(_ context.Context, id uuid.UUID) (*repo.Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.patients[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(p), nil
}

func (r patients) GetByIdentityID(_ context.Context, identityID uuid.UUID) (*repo.Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.patients {
		if p.IdentityID != nil && *p.IdentityID == identityID {
			return clone(p), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r patients) List(_ context.Context, f repo.PatientFilter) ([]*repo.Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*repo.Patient
	for _, p := range r.db.patients {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r patients) Update(_ context.Context, p *repo.Patient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.patients[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.IdentityID == nil && r.db.openInvite(p.Email, p.ID) {
		return repo.ErrDuplicate
	}
	next := clone(p)
	next.IdentityID, next.Status, next.CreatedAt = cur.IdentityID, cur.Status, cur.CreatedAt
	next.UpdatedAt = now()
	p.UpdatedAt = next.UpdatedAt
	r.db.patients[p.ID] = next
	return nil
}

func (r patients) SetStatus(_ context.Context, id uuid.UUID, status repo.PatientStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.patients[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = now()
	return nil
}

func (r patients) LinkIdentity(_ context.Context, id, identityID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.patients[id]
	if !ok || p.IdentityID != nil {
		return repo.ErrNotFound
	}
	p.IdentityID = &identityID
	p.UpdatedAt = now()
	return nil
}

func (r patients) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.patients[id]; !ok {
		return repo.ErrNotFound
	}
	r.db.deletePatient(id)
	return nil
}

// ---- appointments ----

type appointments struct{ db *DB }

// slotTaken mirrors the partial unique index. Caller holds mu.
func (db *DB) slotTaken(date, at string, exclude uuid.UUID) bool {
	for _, a := range db.appointments {
		if a.ID != exclude && a.Date == date && a.Time == at && a.Status == repo.AppointmentScheduled {
			return true
		}
	}
	return false
}

func (r appointments) Create(_ context.Context, a *repo.Appointment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail(OpAppointmentCreate); err != nil {
		return err
	}
	if _, ok := r.db.patients[a.PatientID]; !ok {
		return repo.ErrNotFound
	}
	if a.Status == "" {
		a.Status = repo.AppointmentScheduled
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == repo.AppointmentScheduled && r.db.slotTaken(a.Date, a.Time, a.ID) {
		return repo.ErrSlotTaken
	}
	a.CreatedAt, a.UpdatedAt = now(), now()
	r.db.appointments[a.ID] = clone(a)
	return nil
}

func (r appointments) GetByID(_ context.Context, id uuid.UUID) (*repo.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.appointments[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(a), nil
}

func (r appointments) List(_ context.Context, f repo.AppointmentFilter) ([]*repo.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*repo.Appointment
	for _, a := range r.db.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Date != "" && a.Date != f.Date {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Time > out[j].Time
	})
	return out, nil
}

func (r appointments) Update(_ context.Context, a *repo.Appointment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.appointments[a.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if a.Status == repo.AppointmentScheduled && r.db.slotTaken(a.Date, a.Time, a.ID) {
		return repo.ErrSlotTaken
	}
	next := clone(a)
	next.PatientID, next.CreatedAt = cur.PatientID, cur.CreatedAt
	next.UpdatedAt = now()
	a.UpdatedAt = next.UpdatedAt
	r.db.appointments[a.ID] = next
	return nil
}

func (r appointments) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.appointments[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.db.appointments, id)
	return nil
}

// ---- fees ----

type fees struct{ db *DB }

func (r fees) Create(_ context.Context, f *repo.Fee) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail(OpFeeCreate); err != nil {
		return err
	}
	if _, ok := r.db.patients[f.PatientID]; !ok {
		return repo.ErrNotFound
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = repo.FeePending
	}
	f.CreatedAt, f.UpdatedAt = now(), now()
	r.db.fees[f.ID] = clone(f)
	return nil
}

func (r fees) GetByID(_ context.Context, id uuid.UUID) (*repo.Fee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.fees[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(f), nil
}

func (r fees) List(_ context.Context, filter repo.FeeFilter) ([]*repo.Fee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*repo.Fee
	for _, f := range r.db.fees {
		if filter.PatientID != nil && f.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != "" && f.Status != filter.Status {
			continue
		}
		out = append(out, clone(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r fees) Update(_ context.Context, f *repo.Fee) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.fees[f.ID]
	if !ok {
		return repo.ErrNotFound
	}
	next := clone(f)
	next.PatientID, next.CreatedAt = cur.PatientID, cur.CreatedAt
	next.UpdatedAt = now()
	f.UpdatedAt = next.UpdatedAt
	r.db.fees[f.ID] = next
	return nil
}

func (r fees) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.fees[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.db.fees, id)
	return nil
}

// ---- diagnostics ----

type diagnostics struct{ db *DB }

func (r diagnostics) Create(_ context.Context, d *repo.Diagnostic) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail(OpDiagnosticCreate); err != nil {
		return err
	}
	if _, ok := r.db.patients[d.PatientID]; !ok {
		return repo.ErrNotFound
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = now()
	r.db.diagnostics[d.ID] = clone(d)
	return nil
}

func (r diagnostics) GetByID(_ context.Context, id uuid.UUID) (*repo.Diagnostic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.diagnostics[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(d), nil
}

func (r diagnostics) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*repo.Diagnostic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*repo.Diagnostic
	for _, d := range r.db.diagnostics {
		if d.PatientID == patientID {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r diagnostics) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail(OpDiagnosticDelete); err != nil {
		return err
	}
	if _, ok := r.db.diagnostics[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.db.diagnostics, id)
	return nil
}
