package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/clinic_backend/internal/service/fee"
)

type FeeHandler struct {
	svc fee.Service
}

func NewFeeHandler(svc fee.Service) *FeeHandler {
	return &FeeHandler{svc: svc}
}

func mapFeeError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, fee.ErrNotFound),
		errors.Is(err, fee.ErrPatientNotFound),
		errors.Is(err, fee.ErrPaymentNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, fee.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, fee.ErrNotPayable):
		return conflict(c, err.Error())
	case errors.Is(err, fee.ErrInvalidInput),
		errors.Is(err, fee.ErrPaymentFailed),
		errors.Is(err, fee.ErrPaymentsDisabled):
		return badRequest(c, err.Error())
	case errors.Is(err, fee.ErrGateway):
		logError(c, "payment gateway failure", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment gateway unavailable"})
	default:
		return internalError(c, err)
	}
}

// GET /fees
func (h *FeeHandler) List(c fiber.Ctx) error {
	var q struct {
		PatientID string `query:"patient_id"`
		Status    string `query:"status"`
	}
	_ = c.Bind().Query(&q)

	pid, err := optionalUUID(q.PatientID)
	if err != nil {
		return badRequest(c, "invalid patient_id")
	}
	list, err := h.svc.List(c.Context(), principal(c), fee.ListRequest{PatientID: pid, Status: q.Status})
	if err != nil {
		return mapFeeError(c, err)
	}
	return ok(c, list)
}

// GET /fees/:id
func (h *FeeHandler) Get(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid fee id")
	}
	f, err := h.svc.Get(c.Context(), principal(c), id)
	if err != nil {
		return mapFeeError(c, err)
	}
	return ok(c, f)
}

// POST /fees
func (h *FeeHandler) Create(c fiber.Ctx) error {
	var body struct {
		PatientID     string          `json:"patient_id"`
		Amount        decimal.Decimal `json:"amount"`
		Service       string          `json:"service"`
		Status        string          `json:"status"`
		PaymentMethod string          `json:"payment_method"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	pid, err := uuid.Parse(body.PatientID)
	if err != nil {
		return badRequest(c, "patient_id is required")
	}

	f, err := h.svc.Create(c.Context(), fee.CreateRequest{
		PatientID:     pid,
		Amount:        body.Amount,
		Service:       body.Service,
		Status:        body.Status,
		PaymentMethod: body.PaymentMethod,
	})
	if err != nil {
		return mapFeeError(c, err)
	}
	return created(c, f)
}

// PUT /fees/:id
func (h *FeeHandler) Update(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid fee id")
	}
	var body struct {
		Amount        *decimal.Decimal `json:"amount"`
		Service       *string          `json:"service"`
		Status        *string          `json:"status"`
		PaymentMethod *string          `json:"payment_method"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	f, err := h.svc.Update(c.Context(), id, fee.UpdateRequest{
		Amount:        body.Amount,
		Service:       body.Service,
		Status:        body.Status,
		PaymentMethod: body.PaymentMethod,
	})
	if err != nil {
		return mapFeeError(c, err)
	}
	return ok(c, f)
}

// DELETE /fees/:id
func (h *FeeHandler) Delete(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid fee id")
	}
	if err := h.svc.Delete(c.Context(), id); err != nil {
		return mapFeeError(c, err)
	}
	return noContent(c)
}

// GET /fees/stats/revenue
func (h *FeeHandler) Revenue(c fiber.Ctx) error {
	l, err := h.svc.Revenue(c.Context())
	if err != nil {
		return mapFeeError(c, err)
	}
	return ok(c, l)
}

// ---------------------------------------------------------------------------
// Online payment
// ---------------------------------------------------------------------------

// POST /fees/:id/pay
func (h *FeeHandler) Pay(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid fee id")
	}
	link, err := h.svc.StartPayment(c.Context(), principal(c), id)
	if err != nil {
		return mapFeeError(c, err)
	}
	return ok(c, link)
}

// GET /fees/payments/verify?Authority=...&Status=OK
// Public: the gateway redirects the payer here.
func (h *FeeHandler) VerifyPayment(c fiber.Ctx) error {
	f, err := h.svc.VerifyPayment(c.Context(), c.Query("Authority"), c.Query("Status"))
	if err != nil {
		return mapFeeError(c, err)
	}
	return ok(c, fiber.Map{
		"fee_id":  f.ID,
		"status":  f.Status,
		"ref_id":  f.PaymentRef,
		"paid_at": f.PaidAt,
	})
}
