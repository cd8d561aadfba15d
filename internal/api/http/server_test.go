package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/api/http/router"
	"github.com/Alijeyrad/clinic_backend/internal/repo/repotest"
	"github.com/Alijeyrad/clinic_backend/internal/service/appointment"
	"github.com/Alijeyrad/clinic_backend/internal/service/auth"
	"github.com/Alijeyrad/clinic_backend/internal/service/credential"
	"github.com/Alijeyrad/clinic_backend/internal/service/diagnostic"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/internal/service/fee"
	"github.com/Alijeyrad/clinic_backend/internal/service/invite"
	"github.com/Alijeyrad/clinic_backend/internal/service/patient"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/clinic_backend/pkg/paseto"
	"github.com/Alijeyrad/clinic_backend/pkg/redis/redistest"
	"github.com/Alijeyrad/clinic_backend/pkg/s3/s3test"
	"github.com/Alijeyrad/clinic_backend/pkg/util/password"
)

const (
	doctorEmail    = "doc@clinic.test"
	doctorPassword = "doctorpass"
)

type testServer struct {
	app   *fiber.App
	blobs *s3test.Memory
	ready error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store, _ := repotest.NewStore()
	kv := redistest.New()
	keys := pasetotoken.NewLocalKeys()
	tokens, err := pasetotoken.New(pasetotoken.Config{
		Mode:       keys.Mode,
		Issuer:     "clinic",
		Audience:   "clinic",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, keys)
	require.NoError(t, err)
	hasher := password.New(password.Config{
		Algorithm:   password.AlgorithmArgon2id,
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
	})
	invites := invite.NewStore(kv, time.Hour)
	authz, err := authorize.New(ctx, authorize.DefaultConfig())
	require.NoError(t, err)

	authSvc, err := auth.New(store, kv, tokens, hasher, invites, nil)
	require.NoError(t, err)
	_, err = authSvc.CreateDoctor(ctx, doctorEmail, "Doctor", doctorPassword)
	require.NoError(t, err)

	rec := &events.Recorder{}
	blobs := s3test.New()
	diagSvc := diagnostic.New(store, blobs, nil, diagnostic.Options{})
	patientSvc := patient.New(patient.Deps{
		Store:       store,
		Issuer:      credential.NewIssuer(store.Identities, hasher, "IR"),
		Delivery:    credential.NewDeliverer(nil, nil),
		Invites:     invites,
		Attachments: diagSvc,
		Events:      rec,
	}, patient.Options{})

	cfg := &config.Config{}
	cfg.Server.Environment = "development"
	cfg.Server.RateLimit.RequestsPerMinute = 1000
	cfg.Diagnostics.MaxSizeMB = 1

	ts := &testServer{blobs: blobs}
	r := router.NewRouter(router.Params{
		Cfg:            cfg,
		Auth:           authz,
		AuthSvc:        authSvc,
		PatientSvc:     patientSvc,
		AppointmentSvc: appointment.New(store, rec, nil),
		FeeSvc:         fee.New(fee.Deps{Store: store, KV: kv, Events: rec}, fee.Options{}),
		DiagnosticSvc:  diagSvc,
		Ready:          func(context.Context) error { return ts.ready },
	})
	ts.app = NewApp(cfg, r, false)
	return ts
}

type result struct {
	status int
	body   map[string]any
}

func (r result) data() map[string]any {
	m, _ := r.body["data"].(map[string]any)
	return m
}

func (r result) list() []any {
	l, _ := r.body["data"].([]any)
	return l
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) result {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return ts.send(t, req)
}

func (ts *testServer) upload(t *testing.T, path, token, label string, content []byte) result {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("label", label))
	part, err := w.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return ts.send(t, req)
}

func (ts *testServer) send(t *testing.T, req *nethttp.Request) result {
	t.Helper()
	resp, err := ts.app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	defer resp.Body.Close()

	out := result{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.body)
	}
	return out
}

func (ts *testServer) login(t *testing.T, email, plain string) string {
	t.Helper()
	res := ts.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": plain})
	require.Equal(t, fiber.StatusOK, res.status, res.body)
	token, _ := res.data()["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (ts *testServer) createPatient(t *testing.T, doc, name, phone string) (id, plain string) {
	t.Helper()
	res := ts.do(t, fiber.MethodPost, "/api/v1/patients", doc, map[string]string{"name": name, "phone": phone})
	require.Equal(t, fiber.StatusCreated, res.status, res.body)
	p := res.data()["patient"].(map[string]any)
	cred := res.data()["credential"].(map[string]any)
	return p["id"].(string), cred["password"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, fiber.StatusOK, ts.do(t, fiber.MethodGet, "/health", "", nil).status)
	assert.Equal(t, fiber.StatusOK, ts.do(t, fiber.MethodGet, "/health/ready", "", nil).status)

	ts.ready = assert.AnError
	assert.Equal(t, fiber.StatusServiceUnavailable, ts.do(t, fiber.MethodGet, "/health/ready", "", nil).status)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": doctorEmail, "password": "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	res = ts.do(t, fiber.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
	res = ts.do(t, fiber.MethodGet, "/api/v1/patients", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	doc := ts.login(t, doctorEmail, doctorPassword)
	res = ts.do(t, fiber.MethodGet, "/api/v1/auth/verify", doc, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	user := res.data()["user"].(map[string]any)
	assert.Equal(t, "doctor", user["role"])

	res = ts.do(t, fiber.MethodPost, "/api/v1/auth/logout", doc, nil)
	assert.Equal(t, fiber.StatusNoContent, res.status)
	res = ts.do(t, fiber.MethodGet, "/api/v1/auth/verify", doc, nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.status, "session is gone after logout")
}

func TestSignupAwaitsApproval(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.login(t, doctorEmail, doctorPassword)

	res := ts.do(t, fiber.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "New", "email": "new@example.com", "password": "longenough",
	})
	require.Equal(t, fiber.StatusCreated, res.status, res.body)
	id := res.data()["patient"].(map[string]any)["id"].(string)

	res = ts.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "new@example.com", "password": "longenough"})
	assert.Equal(t, fiber.StatusForbidden, res.status)

	pending := ts.do(t, fiber.MethodGet, "/api/v1/patients/pending", doc, nil)
	require.Equal(t, fiber.StatusOK, pending.status)
	assert.Len(t, pending.list(), 1)

	res = ts.do(t, fiber.MethodPut, "/api/v1/patients/"+id+"/approve", doc, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "active", res.data()["status"])

	ts.login(t, "new@example.com", "longenough")
}

func TestPatientLifecycle(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.login(t, doctorEmail, doctorPassword)

	sara, plain := ts.createPatient(t, doc, "Sara", "9876543210")
	assert.Equal(t, "3210123", plain)
	other, _ := ts.createPatient(t, doc, "Omid", "09120000002")

	pat := ts.login(t, "9876543210@patient.com", plain)

	// A patient books for themselves and the slot is then taken.
	res := ts.do(t, fiber.MethodPost, "/api/v1/appointments", pat, map[string]string{"date": "2024-03-01", "time": "10:00"})
	require.Equal(t, fiber.StatusCreated, res.status, res.body)
	assert.Equal(t, sara, res.data()["patient_id"])

	res = ts.do(t, fiber.MethodPost, "/api/v1/appointments", doc, map[string]string{"patient_id": other, "date": "2024-03-01", "time": "10:00"})
	assert.Equal(t, fiber.StatusConflict, res.status)

	// Scoping: the patient sees their own record only.
	assert.Equal(t, fiber.StatusOK, ts.do(t, fiber.MethodGet, "/api/v1/patients/"+sara, pat, nil).status)
	assert.Equal(t, fiber.StatusForbidden, ts.do(t, fiber.MethodGet, "/api/v1/patients/"+other, pat, nil).status)
	assert.Equal(t, fiber.StatusForbidden, ts.do(t, fiber.MethodGet, "/api/v1/patients", pat, nil).status)
	assert.Equal(t, fiber.StatusForbidden, ts.do(t, fiber.MethodDelete, "/api/v1/patients/"+sara, pat, nil).status)
	assert.Equal(t, fiber.StatusForbidden, ts.do(t, fiber.MethodGet, "/api/v1/fees/stats/revenue", pat, nil).status)

	res = ts.do(t, fiber.MethodGet, "/api/v1/appointments?patient_id="+other, pat, nil)
	assert.Equal(t, fiber.StatusForbidden, res.status)
	res = ts.do(t, fiber.MethodGet, "/api/v1/appointments", pat, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Len(t, res.list(), 1)

	// Fees and the ledger.
	res = ts.do(t, fiber.MethodPost, "/api/v1/fees", doc, map[string]any{"patient_id": sara, "amount": "150000", "service": "visit"})
	require.Equal(t, fiber.StatusCreated, res.status, res.body)
	res = ts.do(t, fiber.MethodGet, "/api/v1/fees/stats/revenue", doc, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "150000", res.data()["pending_payments"])

	// Deleting the patient takes their appointments and fees along.
	assert.Equal(t, fiber.StatusNoContent, ts.do(t, fiber.MethodDelete, "/api/v1/patients/"+sara, doc, nil).status)
	assert.Equal(t, fiber.StatusNotFound, ts.do(t, fiber.MethodGet, "/api/v1/patients/"+sara, doc, nil).status)
	res = ts.do(t, fiber.MethodGet, "/api/v1/appointments?patient_id="+sara, doc, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Empty(t, res.list())
	res = ts.do(t, fiber.MethodGet, "/api/v1/fees?patient_id="+sara, doc, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Empty(t, res.list())

	// The patient's session no longer resolves to a profile.
	res = ts.do(t, fiber.MethodGet, "/api/v1/auth/verify", pat, nil)
	assert.Contains(t, []int{fiber.StatusUnauthorized, fiber.StatusForbidden}, res.status)
}

func TestDiagnostics(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.login(t, doctorEmail, doctorPassword)
	id, plain := ts.createPatient(t, doc, "Sara", "9876543210")
	pat := ts.login(t, "9876543210@patient.com", plain)
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	base := "/api/v1/diagnostics/" + id

	ts.blobs.FailPut = true
	res := ts.upload(t, base, doc, "Blood panel", pdf)
	assert.Equal(t, fiber.StatusBadGateway, res.status)
	assert.Equal(t, "storage unavailable", res.body["error"])
	assert.NotEmpty(t, res.body["request_id"])
	ts.blobs.FailPut = false

	res = ts.upload(t, base, pat, "Blood panel", pdf)
	assert.Equal(t, fiber.StatusForbidden, res.status, "patients cannot upload")

	res = ts.upload(t, base, doc, "Blood panel", pdf)
	require.Equal(t, fiber.StatusCreated, res.status, res.body)
	diagID := res.data()["id"].(string)
	assert.Equal(t, "application/pdf", res.data()["mime_type"])

	res = ts.upload(t, base, doc, "Notes", []byte("plain text is not allowed"))
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = ts.do(t, fiber.MethodGet, base, pat, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Len(t, res.list(), 1)

	res = ts.do(t, fiber.MethodGet, base+"/"+diagID+"/download", pat, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.NotEmpty(t, res.data()["url"])

	assert.Equal(t, fiber.StatusNoContent, ts.do(t, fiber.MethodDelete, base+"/"+diagID, doc, nil).status)
	assert.Zero(t, ts.blobs.Len())
}
