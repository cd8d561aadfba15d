package patient

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
	"github.com/Alijeyrad/clinic_backend/internal/service/credential"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/internal/service/invite"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
	"github.com/Alijeyrad/clinic_backend/pkg/email"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	Name       string
	Age        *int
	Gender     string
	Phone      string
	Email      string
	Address    string
	Diagnosis  string
	Treatment  string
	Medication string
	Notes      string

	// Invite creates the record without a login and emails a registration
	// link instead of issuing a derived password.
	Invite bool
}

// UpdateRequest changes only the non-nil fields.
type UpdateRequest struct {
	Name       *string
	Age        *int
	Gender     *string
	Phone      *string
	Email      *string
	Address    *string
	Diagnosis  *string
	Treatment  *string
	Medication *string
	Notes      *string
}

// IssuedCredential reports how a derived password reached the patient.
// Password is empty unless no channel delivered it or reveal is configured.
type IssuedCredential struct {
	Login        string   `json:"login"`
	Password     string   `json:"password,omitempty"`
	DeliveredVia []string `json:"delivered_via"`
}

type InviteInfo struct {
	ExpiresAt    time.Time `json:"expires_at"`
	DeliveredVia []string  `json:"delivered_via"`
	// URL is returned only when the invite email could not be sent.
	URL string `json:"url,omitempty"`
}

type CreateResult struct {
	Patient    *repo.Patient     `json:"patient"`
	Credential *IssuedCredential `json:"credential,omitempty"`
	Invite     *InviteInfo       `json:"invite,omitempty"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(ctx context.Context, status string) ([]*repo.Patient, error)
	ListPending(ctx context.Context) ([]*repo.Patient, error)
	Get(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*repo.Patient, error)
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*repo.Patient, error)
	Approve(ctx context.Context, id uuid.UUID) (*repo.Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AttachmentPurger removes every stored blob of a patient before the record
// goes away.
type AttachmentPurger interface {
	PurgePatient(ctx context.Context, patientID uuid.UUID)
}

type Deps struct {
	Store       *repo.Store
	Issuer      *credential.Issuer
	Delivery    *credential.Deliverer
	Invites     *invite.Store
	Mailer      credential.Mailer
	Attachments AttachmentPurger
	Events      events.Publisher
}

type Options struct {
	// RevealPassword returns issued passwords even when they were delivered.
	RevealPassword bool
	// InviteURL is the accept page the invite token is appended to.
	InviteURL string
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type patientService struct {
	Deps
	opts Options
}

func New(d Deps, opts Options) Service {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	return &patientService{Deps: d, opts: opts}
}

func (s *patientService) List(ctx context.Context, status string) ([]*repo.Patient, error) {
	st := repo.PatientStatus(status)
	if st != "" && st != repo.PatientPending && st != repo.PatientActive {
		return nil, ErrInvalidStatus
	}
	out, err := s.Store.Patients.List(ctx, repo.PatientFilter{Status: st})
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return out, nil
}

func (s *patientService) ListPending(ctx context.Context) ([]*repo.Patient, error) {
	return s.List(ctx, string(repo.PatientPending))
}

func (s *patientService) Get(ctx context.Context, p *reqctx.Principal, id uuid.UUID) (*repo.Patient, error) {
	if !authorize.CanAccess(p, id) {
		return nil, ErrForbidden
	}
	return s.load(ctx, id)
}

func (s *patientService) load(ctx context.Context, id uuid.UUID) (*repo.Patient, error) {
	rec, err := s.Store.Patients.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func (s *patientService) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
		return nil, fmt.Errorf("%w: age is out of range", ErrInvalidInput)
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr != "" {
		if parsed, err := mail.ParseAddress(addr); err != nil || parsed.Address != addr {
			return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
		}
	}
	req.Email = addr

	if req.Invite {
		return s.createInvited(ctx, req)
	}
	return s.createIssued(ctx, req)
}

// createIssued provisions an active patient whose login is issued right away.
func (s *patientService) createIssued(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Email != "" {
		if err := s.emailFree(ctx, req.Email); err != nil {
			return nil, err
		}
	}

	var (
		rec    *repo.Patient
		issued *credential.Issued
	)
	err := s.Store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		issued, err = s.Issuer.Issue(ctx, credential.IssueRequest{Name: req.Name, Phone: req.Phone, Email: req.Email})
		if err != nil {
			return err
		}
		rec = newRecord(req)
		rec.IdentityID = &issued.Identity.ID
		rec.Email = issued.Login
		rec.Status = repo.PatientActive
		if err := s.Store.Patients.Create(ctx, rec); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		return nil
	})
	switch {
	case errors.Is(err, credential.ErrEmailTaken):
		return nil, ErrEmailTaken
	case errors.Is(err, credential.ErrPhoneRequired), errors.Is(err, credential.ErrInvalidPhone):
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case err != nil:
		return nil, err
	}

	var channels []string
	if s.Delivery != nil {
		channels = s.Delivery.Deliver(ctx, credential.Recipient{
			Name:  rec.Name,
			Email: rec.Email,
			Phone: rec.Phone,
		}, issued.Login, issued.Password)
	}

	cred := &IssuedCredential{Login: issued.Login, DeliveredVia: nonNil(channels)}
	if len(channels) == 0 || s.opts.RevealPassword {
		cred.Password = issued.Password
	}

	events.Emit(ctx, s.Events, events.PatientProvisioned, events.PatientProvisionedEvent{
		PatientID:  rec.ID,
		IdentityID: rec.IdentityID,
		Channels:   cred.DeliveredVia,
	})

	return &CreateResult{Patient: rec, Credential: cred}, nil
}

// createInvited stores a pending patient with no login and mails a link to
// choose a password.
func (s *patientService) createInvited(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("%w: email is required for an invite", ErrInvalidInput)
	}
	if s.Invites == nil {
		return nil, errors.New("invites are not configured")
	}

	if err := s.emailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	rec := newRecord(req)
	rec.Status = repo.PatientPending
	if err := s.Store.Patients.Create(ctx, rec); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}

	token, expiresAt, err := s.Invites.Create(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	link := invite.URL(s.opts.InviteURL, token)

	info := &InviteInfo{ExpiresAt: expiresAt, DeliveredVia: []string{}}
	if s.sendInvite(ctx, rec, link) {
		info.DeliveredVia = append(info.DeliveredVia, credential.ChannelEmail)
	} else {
		info.URL = link
	}

	events.Emit(ctx, s.Events, events.PatientProvisioned, events.PatientProvisionedEvent{
		PatientID: rec.ID,
		Invited:   true,
		Channels:  info.DeliveredVia,
	})

	return &CreateResult{Patient: rec, Invite: info}, nil
}

// emailFree fails with ErrEmailTaken when email already logs someone in or
// waits on an open invite; either way a later invite acceptance would clash.
func (s *patientService) emailFree(ctx context.Context, email string) error {
	exists, err := s.Store.Identities.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if !exists {
		if exists, err = s.Store.Patients.HasOpenInvite(ctx, email); err != nil {
			return fmt.Errorf("check invites: %w", err)
		}
	}
	if exists {
		return ErrEmailTaken
	}
	return nil
}

func (s *patientService) sendInvite(ctx context.Context, rec *repo.Patient, link string) bool {
	if s.Mailer == nil || !s.Mailer.Enabled() {
		return false
	}
	appName, _ := s.Mailer.Branding()
	msg := email.BuildInviteEmail(email.InviteEmailData{
		Name:      rec.Name,
		Email:     rec.Email,
		InviteURL: link,
		ExpiresIn: fmt.Sprintf("%d hours", int(s.Invites.TTL().Hours())),
		AppName:   appName,
	})
	if err := s.Mailer.Send(ctx, msg); err != nil {
		slog.WarnContext(ctx, "patient: invite email failed", "patient_id", rec.ID, "err", err)
		return false
	}
	return true
}

func newRecord(req CreateRequest) *repo.Patient {
	return &repo.Patient{
		Name:       strings.TrimSpace(req.Name),
		Age:        req.Age,
		Gender:     strings.TrimSpace(req.Gender),
		Phone:      strings.TrimSpace(req.Phone),
		Email:      req.Email,
		Address:    strings.TrimSpace(req.Address),
		Diagnosis:  req.Diagnosis,
		Treatment:  req.Treatment,
		Medication: req.Medication,
		Notes:      req.Notes,
	}
}

// ---------------------------------------------------------------------------
// Update / approve / delete
// ---------------------------------------------------------------------------

// Update applies req and stamps today as the last visit.
func (s *patientService) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*repo.Patient, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		rec.Name = name
	}
	if req.Age != nil {
		if *req.Age < 0 || *req.Age > 150 {
			return nil, fmt.Errorf("%w: age is out of range", ErrInvalidInput)
		}
		rec.Age = req.Age
	}
	if req.Email != nil {
		addr := strings.ToLower(strings.TrimSpace(*req.Email))
		if addr != "" {
			if parsed, err := mail.ParseAddress(addr); err != nil || parsed.Address != addr {
				return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
			}
		}
		rec.Email = addr
	}
	setString(&rec.Gender, req.Gender, true)
	setString(&rec.Phone, req.Phone, true)
	setString(&rec.Address, req.Address, true)
	setString(&rec.Diagnosis, req.Diagnosis, false)
	setString(&rec.Treatment, req.Treatment, false)
	setString(&rec.Medication, req.Medication, false)
	setString(&rec.Notes, req.Notes, false)

	today := time.Now().Format(repo.DateLayout)
	rec.LastVisit = &today

	if err := s.Store.Patients.Update(ctx, rec); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return rec, nil
}

// Approve activates a pending patient. Approving an active one is a no-op.
func (s *patientService) Approve(ctx context.Context, id uuid.UUID) (*repo.Patient, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == repo.PatientActive {
		return rec, nil
	}
	if err := s.Store.Patients.SetStatus(ctx, id, repo.PatientActive); err != nil {
		return nil, fmt.Errorf("approve patient: %w", err)
	}
	rec.Status = repo.PatientActive
	return rec, nil
}

// Delete removes the patient through its owning identity so the store
// cascades to appointments, fees and diagnostics. Stored blobs are removed
// first, best effort.
func (s *patientService) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if s.Attachments != nil {
		s.Attachments.PurgePatient(ctx, id)
	}

	if rec.IdentityID != nil {
		err = s.Store.Identities.Delete(ctx, *rec.IdentityID)
	} else {
		err = s.Store.Patients.Delete(ctx, id)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

func setString(dst *string, v *string, trim bool) {
	if v == nil {
		return
	}
	if trim {
		*dst = strings.TrimSpace(*v)
		return
	}
	*dst = *v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
