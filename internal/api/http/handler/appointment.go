package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/service/appointment"
)

type AppointmentHandler struct {
	svc appointment.Service
}

func NewAppointmentHandler(svc appointment.Service) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

func mapAppointmentError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, appointment.ErrNotFound), errors.Is(err, appointment.ErrPatientNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, appointment.ErrSlotConflict):
		return conflict(c, err.Error())
	case errors.Is(err, appointment.ErrInvalidInput), errors.Is(err, appointment.ErrInvalidTransition):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /appointments
func (h *AppointmentHandler) List(c fiber.Ctx) error {
	var q struct {
		PatientID string `query:"patient_id"`
		Status    string `query:"status"`
		Date      string `query:"date"`
	}
	_ = c.Bind().Query(&q)

	pid, err := optionalUUID(q.PatientID)
	if err != nil {
		return badRequest(c, "invalid patient_id")
	}

	list, err := h.svc.List(c.Context(), principal(c), appointment.ListRequest{
		PatientID: pid,
		Status:    q.Status,
		Date:      q.Date,
	})
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, list)
}

// GET /appointments/:id
func (h *AppointmentHandler) Get(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	a, err := h.svc.Get(c.Context(), principal(c), id)
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, a)
}

// POST /appointments
func (h *AppointmentHandler) Create(c fiber.Ctx) error {
	var body struct {
		PatientID string `json:"patient_id"`
		Date      string `json:"date"`
		Time      string `json:"time"`
		Reason    string `json:"reason"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	pid, err := optionalUUID(body.PatientID)
	if err != nil {
		return badRequest(c, "invalid patient_id")
	}

	a, err := h.svc.Create(c.Context(), principal(c), appointment.CreateRequest{
		PatientID: pid,
		Date:      body.Date,
		Time:      body.Time,
		Reason:    body.Reason,
	})
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return created(c, a)
}

// PUT /appointments/:id
func (h *AppointmentHandler) Update(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	var body struct {
		Status *string `json:"status"`
		Date   *string `json:"date"`
		Time   *string `json:"time"`
		Reason *string `json:"reason"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	a, err := h.svc.Update(c.Context(), id, appointment.UpdateRequest{
		Status: body.Status,
		Date:   body.Date,
		Time:   body.Time,
		Reason: body.Reason,
	})
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, a)
}

// DELETE /appointments/:id
func (h *AppointmentHandler) Delete(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	if err := h.svc.Delete(c.Context(), id); err != nil {
		return mapAppointmentError(c, err)
	}
	return noContent(c)
}
