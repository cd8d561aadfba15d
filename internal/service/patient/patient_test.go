package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/repo/repotest"
	"github.com/Alijeyrad/clinic_backend/internal/service/credential"
	"github.com/Alijeyrad/clinic_backend/internal/service/diagnostic"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/internal/service/invite"
	"github.com/Alijeyrad/clinic_backend/pkg/email"
	"github.com/Alijeyrad/clinic_backend/pkg/redis/redistest"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
	"github.com/Alijeyrad/clinic_backend/pkg/s3/s3test"
	"github.com/Alijeyrad/clinic_backend/pkg/util/password"
)

type fakeMailer struct {
	enabled bool
	sent    []email.Message
}

func (m *fakeMailer) Enabled() bool              { return m.enabled }
func (m *fakeMailer) Branding() (string, string) { return "Clinic", "https://clinic.example" }
func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	svc     Service
	store   *repo.Store
	mail    *fakeMailer
	blobs   *s3test.Memory
	diag    diagnostic.Service
	events  *events.Recorder
	invites *invite.Store
}

func newFixture(t *testing.T, mailEnabled bool, opts Options) *fixture {
	t.Helper()
	store, _ := repotest.NewStore()
	hasher := password.New(password.Config{
		Algorithm:   password.AlgorithmArgon2id,
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
	})
	mail := &fakeMailer{enabled: mailEnabled}
	blobs := s3test.New()
	diag := diagnostic.New(store, blobs, nil, diagnostic.Options{})
	rec := &events.Recorder{}
	invites := invite.NewStore(redistest.New(), time.Hour)

	svc := New(Deps{
		Store:       store,
		Issuer:      credential.NewIssuer(store.Identities, hasher, "IR"),
		Delivery:    credential.NewDeliverer(mail, nil),
		Invites:     invites,
		Mailer:      mail,
		Attachments: diag,
		Events:      rec,
	}, opts)
	return &fixture{svc: svc, store: store, mail: mail, blobs: blobs, diag: diag, events: rec, invites: invites}
}

func TestCreateIssuesDerivedPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, Options{})

	res, err := f.svc.Create(ctx, CreateRequest{Name: "Sara", Phone: "9876543210"})
	require.NoError(t, err)
	require.NotNil(t, res.Credential)
	assert.Equal(t, "3210123", res.Credential.Password, "undelivered password is handed to the doctor")
	assert.Equal(t, "9876543210@patient.com", res.Credential.Login)
	assert.Empty(t, res.Credential.DeliveredVia)
	assert.Equal(t, repo.PatientActive, res.Patient.Status)
	require.NotNil(t, res.Patient.IdentityID)
	assert.Equal(t, []string{events.PatientProvisioned}, f.events.Subjects())

	_, err = f.svc.Create(ctx, CreateRequest{Name: "Sara again", Phone: "9876543210"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.Create(ctx, CreateRequest{Name: "No phone"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Create(ctx, CreateRequest{Phone: "09120000000"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateDeliversOutOfBand(t *testing.T) {
	ctx := context.Background()

	t.Run("delivered password is withheld", func(t *testing.T) {
		f := newFixture(t, true, Options{})
		res, err := f.svc.Create(ctx, CreateRequest{Name: "Ali", Phone: "09121234567", Email: "ali@example.com"})
		require.NoError(t, err)
		assert.Empty(t, res.Credential.Password)
		assert.Equal(t, []string{credential.ChannelEmail}, res.Credential.DeliveredVia)
		require.Len(t, f.mail.sent, 1)
		assert.Contains(t, f.mail.sent[0].TextBody, "4567123")
	})

	t.Run("reveal overrides", func(t *testing.T) {
		f := newFixture(t, true, Options{RevealPassword: true})
		res, err := f.svc.Create(ctx, CreateRequest{Name: "Ali", Phone: "09121234567", Email: "ali@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "4567123", res.Credential.Password)
	})
}

func TestCreateInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("emailed", func(t *testing.T) {
		f := newFixture(t, true, Options{InviteURL: "https://clinic.example/invite"})
		res, err := f.svc.Create(ctx, CreateRequest{Name: "Inv", Email: "inv@example.com", Invite: true})
		require.NoError(t, err)
		assert.Nil(t, res.Credential)
		require.NotNil(t, res.Invite)
		assert.Equal(t, []string{credential.ChannelEmail}, res.Invite.DeliveredVia)
		assert.Empty(t, res.Invite.URL)
		assert.Equal(t, repo.PatientPending, res.Patient.Status)
		assert.Nil(t, res.Patient.IdentityID)
		require.Len(t, f.mail.sent, 1)
		assert.Contains(t, f.mail.sent[0].TextBody, "https://clinic.example/invite?token=")
	})

	t.Run("link returned when mail is off", func(t *testing.T) {
		f := newFixture(t, false, Options{InviteURL: "https://clinic.example/invite"})
		res, err := f.svc.Create(ctx, CreateRequest{Name: "Inv", Email: "inv@example.com", Invite: true})
		require.NoError(t, err)
		assert.Empty(t, res.Invite.DeliveredVia)
		require.Contains(t, res.Invite.URL, "?token=")

		token := res.Invite.URL[len("https://clinic.example/invite?token="):]
		pid, err := f.invites.Lookup(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, res.Patient.ID, pid)
	})

	t.Run("one open invite per email", func(t *testing.T) {
		f := newFixture(t, false, Options{})
		first, err := f.svc.Create(ctx, CreateRequest{Name: "Inv", Email: "inv@example.com", Invite: true})
		require.NoError(t, err)

		_, err = f.svc.Create(ctx, CreateRequest{Name: "Again", Email: "INV@example.com", Invite: true})
		assert.ErrorIs(t, err, ErrEmailTaken)
		_, err = f.svc.Create(ctx, CreateRequest{Name: "Direct", Phone: "09120000009", Email: "inv@example.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)

		other, err := f.svc.Create(ctx, CreateRequest{Name: "Other", Email: "other@example.com", Invite: true})
		require.NoError(t, err)
		clash := "inv@example.com"
		_, err = f.svc.Update(ctx, other.Patient.ID, UpdateRequest{Email: &clash})
		assert.ErrorIs(t, err, ErrEmailTaken)

		pending, err := f.svc.ListPending(ctx)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
		assert.Equal(t, repo.PatientPending, first.Patient.Status)
	})

	t.Run("email required", func(t *testing.T) {
		f := newFixture(t, true, Options{})
		_, err := f.svc.Create(ctx, CreateRequest{Name: "Inv", Invite: true})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestGetIsScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, Options{})
	a, err := f.svc.Create(ctx, CreateRequest{Name: "A", Phone: "09120000001"})
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, CreateRequest{Name: "B", Phone: "09120000002"})
	require.NoError(t, err)

	self := &reqctx.Principal{Role: reqctx.RolePatient, PatientID: &a.Patient.ID}
	got, err := f.svc.Get(ctx, self, a.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	_, err = f.svc.Get(ctx, self, b.Patient.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, self, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden, "missing records are not distinguishable from foreign ones")

	doc := &reqctx.Principal{Role: reqctx.RoleDoctor}
	_, err = f.svc.Get(ctx, doc, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStampsLastVisit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, Options{})
	res, err := f.svc.Create(ctx, CreateRequest{Name: "A", Phone: "09120000001", Diagnosis: "flu"})
	require.NoError(t, err)
	assert.Nil(t, res.Patient.LastVisit)

	treatment := "rest"
	got, err := f.svc.Update(ctx, res.Patient.ID, UpdateRequest{Treatment: &treatment})
	require.NoError(t, err)
	require.NotNil(t, got.LastVisit)
	assert.Equal(t, time.Now().Format(repo.DateLayout), *got.LastVisit)
	assert.Equal(t, "rest", got.Treatment)
	assert.Equal(t, "flu", got.Diagnosis)

	empty := " "
	_, err = f.svc.Update(ctx, res.Patient.ID, UpdateRequest{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Update(ctx, uuid.New(), UpdateRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, Options{})
	res, err := f.svc.Create(ctx, CreateRequest{Name: "Inv", Email: "inv@example.com", Invite: true})
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	got, err := f.svc.Approve(ctx, res.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PatientActive, got.Status)

	again, err := f.svc.Approve(ctx, res.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PatientActive, again.Status)

	pending, err = f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.List(ctx, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, Options{})
	res, err := f.svc.Create(ctx, CreateRequest{Name: "A", Phone: "9876543210"})
	require.NoError(t, err)
	pid := res.Patient.ID

	for _, at := range []string{"10:00", "11:00"} {
		require.NoError(t, f.store.Appointments.Create(ctx, &repo.Appointment{PatientID: pid, Date: "2024-03-01", Time: at}))
	}
	fee := &repo.Fee{PatientID: pid, Amount: decimal.NewFromInt(100), Service: "visit"}
	require.NoError(t, f.store.Fees.Create(ctx, fee))
	d, err := f.diag.Upload(ctx, diagnostic.UploadRequest{
		PatientID: pid, Label: "x", FileName: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4\n"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, pid))

	appts, err := f.store.Appointments.List(ctx, repo.AppointmentFilter{PatientID: &pid})
	require.NoError(t, err)
	assert.Empty(t, appts)
	_, err = f.store.Fees.GetByID(ctx, fee.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = f.store.Identities.GetByID(ctx, *res.Patient.IdentityID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.False(t, f.blobs.Has(d.StorageKey))

	assert.ErrorIs(t, f.svc.Delete(ctx, pid), ErrNotFound)

	t.Run("without identity", func(t *testing.T) {
		inv, err := f.svc.Create(ctx, CreateRequest{Name: "Inv", Email: "inv@example.com", Invite: true})
		require.NoError(t, err)
		require.NoError(t, f.svc.Delete(ctx, inv.Patient.ID))
		_, err = f.store.Patients.GetByID(ctx, inv.Patient.ID)
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})
}
