package handler

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/service/diagnostic"
)

type DiagnosticHandler struct {
	svc     diagnostic.Service
	maxSize int64
}

// NewDiagnosticHandler reads at most maxSize+1 bytes of an upload so the
// service can reject oversized files without buffering them whole.
func NewDiagnosticHandler(svc diagnostic.Service, maxSize int64) *DiagnosticHandler {
	if maxSize <= 0 {
		maxSize = diagnostic.DefaultMaxSize
	}
	return &DiagnosticHandler{svc: svc, maxSize: maxSize}
}

func mapDiagnosticError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, diagnostic.ErrNotFound), errors.Is(err, diagnostic.ErrPatientNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, diagnostic.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, diagnostic.ErrInvalidInput),
		errors.Is(err, diagnostic.ErrUnsupportedType),
		errors.Is(err, diagnostic.ErrTooLarge):
		return badRequest(c, err.Error())
	case errors.Is(err, diagnostic.ErrStorage):
		return storageUnavailable(c, err)
	default:
		return internalError(c, err)
	}
}

// GET /diagnostics/:patientId
func (h *DiagnosticHandler) List(c fiber.Ctx) error {
	pid, valid := uuidParam(c, "patientId")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	list, err := h.svc.List(c.Context(), principal(c), pid)
	if err != nil {
		return mapDiagnosticError(c, err)
	}
	return ok(c, list)
}

// POST /diagnostics/:patientId (multipart: file, label, notes)
func (h *DiagnosticHandler) Upload(c fiber.Ctx) error {
	pid, valid := uuidParam(c, "patientId")
	if !valid {
		return badRequest(c, "invalid patient id")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file field is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxSize+1))
	if err != nil {
		return badRequest(c, "unreadable file")
	}

	uploader := principal(c)
	req := diagnostic.UploadRequest{
		PatientID:   pid,
		Label:       c.FormValue("label"),
		Notes:       c.FormValue("notes"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}
	if uploader != nil {
		req.UploadedBy = &uploader.IdentityID
	}

	d, err := h.svc.Upload(c.Context(), req)
	if err != nil {
		return mapDiagnosticError(c, err)
	}
	return created(c, d)
}

// GET /diagnostics/:patientId/:id/download
func (h *DiagnosticHandler) Download(c fiber.Ctx) error {
	pid, valid := uuidParam(c, "patientId")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid diagnostic id")
	}
	link, err := h.svc.Download(c.Context(), principal(c), pid, id)
	if err != nil {
		return mapDiagnosticError(c, err)
	}
	return ok(c, link)
}

// DELETE /diagnostics/:patientId/:id
func (h *DiagnosticHandler) Delete(c fiber.Ctx) error {
	pid, valid := uuidParam(c, "patientId")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid diagnostic id")
	}
	if err := h.svc.Delete(c.Context(), pid, id); err != nil {
		return mapDiagnosticError(c, err)
	}
	return noContent(c)
}
