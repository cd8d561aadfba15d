package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/service/auth"
	"github.com/Alijeyrad/clinic_backend/internal/service/invite"
)

type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func mapAuthError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrUnauthenticated):
		return unauthorized(c, err.Error())
	case errors.Is(err, auth.ErrPendingApproval), errors.Is(err, auth.ErrProfileMissing):
		return forbiddenMsg(c, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		return conflict(c, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, invite.ErrInvalid):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

func sessionBody(s *auth.Session) fiber.Map {
	return fiber.Map{
		"token":         s.AccessToken,
		"refresh_token": s.RefreshToken,
		"expires_at":    s.ExpiresAt,
		"user":          s.User,
	}
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	s, err := h.svc.Login(c.Context(), auth.LoginRequest{Email: body.Email, Password: body.Password})
	if err != nil {
		return mapAuthError(c, err)
	}
	return ok(c, sessionBody(s))
}

// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c fiber.Ctx) error {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Age      *int   `json:"age"`
		Gender   string `json:"gender"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	p, err := h.svc.Signup(c.Context(), auth.SignupRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Phone:    body.Phone,
		Age:      body.Age,
		Gender:   body.Gender,
	})
	if err != nil {
		return mapAuthError(c, err)
	}
	return created(c, fiber.Map{
		"patient": p,
		"message": "registration received; a doctor must approve the account before you can sign in",
	})
}

// GET /api/v1/auth/verify
func (h *AuthHandler) Verify(c fiber.Ctx) error {
	p := principal(c)
	if p == nil {
		return unauthorized(c, auth.ErrUnauthenticated.Error())
	}
	return ok(c, fiber.Map{"user": auth.UserFromPrincipal(p)})
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}

	s, err := h.svc.Refresh(c.Context(), body.RefreshToken)
	if err != nil {
		return mapAuthError(c, err)
	}
	return ok(c, sessionBody(s))
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	if err := h.svc.Logout(c.Context(), principal(c)); err != nil {
		return mapAuthError(c, err)
	}
	return noContent(c)
}

// POST /api/v1/auth/invite/accept
func (h *AuthHandler) AcceptInvite(c fiber.Ctx) error {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	s, err := h.svc.AcceptInvite(c.Context(), auth.AcceptInviteRequest{Token: body.Token, Password: body.Password})
	if err != nil {
		return mapAuthError(c, err)
	}
	return ok(c, sessionBody(s))
}
