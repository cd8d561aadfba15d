package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/service/patient"
)

type PatientHandler struct {
	svc patient.Service
}

func NewPatientHandler(svc patient.Service) *PatientHandler {
	return &PatientHandler{svc: svc}
}

func mapPatientError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, patient.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, patient.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, patient.ErrEmailTaken):
		return conflict(c, err.Error())
	case errors.Is(err, patient.ErrInvalidInput), errors.Is(err, patient.ErrInvalidStatus):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

type patientBody struct {
	Name       *string `json:"name"`
	Age        *int    `json:"age"`
	Gender     *string `json:"gender"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	Address    *string `json:"address"`
	Diagnosis  *string `json:"diagnosis"`
	Treatment  *string `json:"treatment"`
	Medication *string `json:"medication"`
	Notes      *string `json:"notes"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ---------------------------------------------------------------------------
// Patient CRUD
// ---------------------------------------------------------------------------

// GET /patients
func (h *PatientHandler) List(c fiber.Ctx) error {
	var q struct {
		Status string `query:"status"`
	}
	_ = c.Bind().Query(&q)

	list, err := h.svc.List(c.Context(), q.Status)
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, list)
}

// GET /patients/pending
func (h *PatientHandler) ListPending(c fiber.Ctx) error {
	list, err := h.svc.ListPending(c.Context())
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, list)
}

// GET /patients/:id
func (h *PatientHandler) Get(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	p, err := h.svc.Get(c.Context(), principal(c), id)
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, p)
}

// POST /patients
func (h *PatientHandler) Create(c fiber.Ctx) error {
	var body struct {
		patientBody
		Invite bool `json:"invite"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.Create(c.Context(), patient.CreateRequest{
		Name:       deref(body.Name),
		Age:        body.Age,
		Gender:     deref(body.Gender),
		Phone:      deref(body.Phone),
		Email:      deref(body.Email),
		Address:    deref(body.Address),
		Diagnosis:  deref(body.Diagnosis),
		Treatment:  deref(body.Treatment),
		Medication: deref(body.Medication),
		Notes:      deref(body.Notes),
		Invite:     body.Invite,
	})
	if err != nil {
		return mapPatientError(c, err)
	}
	return created(c, res)
}

// PUT /patients/:id
func (h *PatientHandler) Update(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	var body patientBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	p, err := h.svc.Update(c.Context(), id, patient.UpdateRequest{
		Name:       body.Name,
		Age:        body.Age,
		Gender:     body.Gender,
		Phone:      body.Phone,
		Email:      body.Email,
		Address:    body.Address,
		Diagnosis:  body.Diagnosis,
		Treatment:  body.Treatment,
		Medication: body.Medication,
		Notes:      body.Notes,
	})
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, p)
}

// PUT /patients/:id/approve
func (h *PatientHandler) Approve(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	p, err := h.svc.Approve(c.Context(), id)
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, p)
}

// DELETE /patients/:id
func (h *PatientHandler) Delete(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	if err := h.svc.Delete(c.Context(), id); err != nil {
		return mapPatientError(c, err)
	}
	return noContent(c)
}
