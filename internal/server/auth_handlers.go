package server

import (
	"zeelink/internal/models"
	"zeelink/internal/store"

	"github.com/gofiber/fiber/v2"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Remember bool   `json:"remember"`
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	sess := s.sessions.New(s.cookieJar(c))
	ok, err := sess.Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewConflictError("Email is already registered"))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":      sess.Token(),
		"expires_at": sess.ExpiresAt(),
		"identity":   sess.Identity(),
		"profile":    sess.Profile(),
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	sess := s.sessions.New(s.cookieJar(c))
	ok, err := sess.Login(c.UserContext(), req.Email, req.Password, req.Remember)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	return c.JSON(fiber.Map{
		"token":      sess.Token(),
		"expires_at": sess.ExpiresAt(),
		"identity":   sess.Identity(),
		"profile":    sess.Profile(),
	})
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if sess := currentSession(c); sess != nil && sess.Identity() != nil {
		if err := sess.Logout(c.UserContext()); err != nil {
			return respondError(c, err)
		}
	} else {
		// Drop a stale remember-me cookie even when it no longer resolves.
		_ = s.cookieJar(c).Remove(c.UserContext(), store.SessionKey)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	sess := currentSession(c)
	identity := sess.Identity()
	return c.JSON(fiber.Map{
		"identity":  identity,
		"profile":   sess.Profile(),
		"features":  s.flags.Snapshot(identity.ID),
		"share_url": s.shareURL(sess.Profile()),
	})
}

func (s *Server) shareURL(p *models.Profile) string {
	if p == nil {
		return ""
	}
	return s.store.ShareURL(p)
}
