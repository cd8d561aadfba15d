// Package diagnostic manages files attached to a patient record. A blob is
// written to object storage before its metadata row, and removed again if the
// row cannot be written, so a row never points at a missing object.
package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
	"github.com/Alijeyrad/clinic_backend/pkg/observability"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

const (
	DefaultMaxSize = 10 << 20
	DefaultLinkTTL = time.Hour

	keyPrefix = "diagnostics"
)

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type UploadRequest struct {
	PatientID   uuid.UUID
	UploadedBy  *uuid.UUID
	Label       string
	Notes       string
	FileName    string
	ContentType string
	Data        []byte
}

type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*repo.Diagnostic, error)
	List(ctx context.Context, p *reqctx.Principal, patientID uuid.UUID) ([]*repo.Diagnostic, error)
	Download(ctx context.Context, p *reqctx.Principal, patientID, id uuid.UUID) (*DownloadLink, error)
	Delete(ctx context.Context, patientID, id uuid.UUID) error
	// PurgePatient deletes every blob of a patient, logging failures.
	PurgePatient(ctx context.Context, patientID uuid.UUID)
}

// BlobStore is the object storage contract. *s3.Client satisfies it.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Options struct {
	MaxSize int64
	LinkTTL time.Duration
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type diagnosticService struct {
	store   *repo.Store
	blobs   BlobStore
	metrics *observability.Metrics
	opts    Options
}

// New returns the attachment manager. metrics may be nil.
func New(store *repo.Store, blobs BlobStore, metrics *observability.Metrics, opts Options) Service {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = DefaultLinkTTL
	}
	return &diagnosticService{store: store, blobs: blobs, metrics: metrics, opts: opts}
}

func (s *diagnosticService) Upload(ctx context.Context, req UploadRequest) (*repo.Diagnostic, error) {
	d, err := s.upload(ctx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrStorage):
		outcome = "storage_error"
	case err != nil:
		outcome = "rejected"
	}
	s.metrics.DiagnosticUpload(ctx, outcome)
	return d, err
}

func (s *diagnosticService) upload(ctx context.Context, req UploadRequest) (*repo.Diagnostic, error) {
	// Validate everything before storage is touched.
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if int64(len(req.Data)) > s.opts.MaxSize {
		return nil, ErrTooLarge
	}
	mimeType, err := contentType(req.ContentType, req.Data)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Patients.GetByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}

	name := strings.TrimSpace(req.FileName)
	key := StorageKey(req.PatientID, uuid.New(), name)

	if err := s.blobs.Put(ctx, key, mimeType, req.Data); err != nil {
		slog.ErrorContext(ctx, "diagnostic: blob put failed", "key", key, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	d := &repo.Diagnostic{
		PatientID:  req.PatientID,
		UploadedBy: req.UploadedBy,
		Label:      label,
		FileName:   name,
		StorageKey: key,
		SizeBytes:  int64(len(req.Data)),
		MimeType:   mimeType,
		Notes:      req.Notes,
	}
	if err := s.store.Diagnostics.Create(ctx, d); err != nil {
		// Compensate so the blob is not orphaned. If that fails too the
		// orphan is logged and counted.
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.metrics.BlobCleanupFailed(ctx)
			slog.ErrorContext(ctx, "diagnostic: orphaned blob after failed insert",
				"key", key, "insert_err", err, "delete_err", delErr)
		}
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return d, nil
}

func (s *diagnosticService) List(ctx context.Context, p *reqctx.Principal, patientID uuid.UUID) ([]*repo.Diagnostic, error) {
	if !authorize.CanAccess(p, patientID) {
		return nil, ErrForbidden
	}
	if _, err := s.store.Patients.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	out, err := s.store.Diagnostics.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	return out, nil
}

func (s *diagnosticService) Download(ctx context.Context, p *reqctx.Principal, patientID, id uuid.UUID) (*DownloadLink, error) {
	if !authorize.CanAccess(p, patientID) {
		return nil, ErrForbidden
	}
	d, err := s.get(ctx, patientID, id)
	if errors.Is(err, ErrNotFound) && !p.IsDoctor() {
		// A patient cannot tell a missing id from someone else's.
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	url, err := s.blobs.PresignGet(ctx, d.StorageKey, s.opts.LinkTTL)
	if err != nil {
		slog.ErrorContext(ctx, "diagnostic: presign failed", "key", d.StorageKey, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &DownloadLink{URL: url, ExpiresAt: time.Now().Add(s.opts.LinkTTL)}, nil
}

// Delete removes the blob, then the row. A failed blob delete does not block
// the row delete.
func (s *diagnosticService) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	d, err := s.get(ctx, patientID, id)
	if err != nil {
		return err
	}
	s.deleteBlob(ctx, d.StorageKey)
	if err := s.store.Diagnostics.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete diagnostic: %w", err)
	}
	return nil
}

func (s *diagnosticService) PurgePatient(ctx context.Context, patientID uuid.UUID) {
	list, err := s.store.Diagnostics.ListByPatient(ctx, patientID)
	if err != nil {
		slog.WarnContext(ctx, "diagnostic: list for purge failed", "patient_id", patientID, "err", err)
		return
	}
	for _, d := range list {
		s.deleteBlob(ctx, d.StorageKey)
	}
}

func (s *diagnosticService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.metrics.BlobCleanupFailed(ctx)
		slog.WarnContext(ctx, "diagnostic: blob delete failed, row removed anyway", "key", key, "err", err)
	}
}

func (s *diagnosticService) get(ctx context.Context, patientID, id uuid.UUID) (*repo.Diagnostic, error) {
	d, err := s.store.Diagnostics.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get diagnostic: %w", err)
	}
	if d.PatientID != patientID {
		return nil, ErrNotFound
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// StorageKey namespaces a blob under its patient with a random id so names
// never collide.
func StorageKey(patientID, blobID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s-%s", keyPrefix, patientID, blobID, SanitizeFileName(fileName))
}

// SanitizeFileName replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeFileName(name string) string {
	if name == "" {
		return "file"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// contentType checks the declared type against the allow list and against the
// sniffed content. An empty or generic declaration defers to the sniffed type.
func contentType(declared string, data []byte) (string, error) {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))

	mt := ""
	if declared != "" {
		parsed, _, err := mime.ParseMediaType(declared)
		if err != nil {
			return "", ErrUnsupportedType
		}
		mt = strings.ToLower(parsed)
	}
	if mt == "" || mt == "application/octet-stream" {
		mt = sniffed
	}
	if mt == "image/jpg" {
		mt = "image/jpeg"
	}
	if !allowedTypes[mt] {
		return "", ErrUnsupportedType
	}
	if sniffed != mt {
		return "", fmt.Errorf("%w: content does not match %s", ErrInvalidInput, mt)
	}
	return mt, nil
}
