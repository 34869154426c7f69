package server

import (
	"zeelink/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ActivePopups handles GET /api/popups/active
func (s *Server) ActivePopups(c *fiber.Ctx) error {
	popups := s.store.ActivePopups(c.UserContext(), s.viewerID(c), s.now())
	if popups == nil {
		popups = []*models.Popup{}
	}
	return c.JSON(popups)
}

// ListPopups handles GET /api/admin/popups
func (s *Server) ListPopups(c *fiber.Ctx) error {
	return c.JSON(s.store.ListPopups())
}

// CreatePopup handles POST /api/admin/popups
func (s *Server) CreatePopup(c *fiber.Ctx) error {
	var p models.Popup
	if err := c.BodyParser(&p); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	p.ID = ""

	saved, o := s.store.UpsertPopup(c.UserContext(), actor(c), p)
	if o.Err != nil {
		return respondError(c, o.Err)
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

// UpdatePopup handles PUT /api/admin/popups/:id
func (s *Server) UpdatePopup(c *fiber.Ctx) error {
	var p models.Popup
	if err := c.BodyParser(&p); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	p.ID = param(c, "id")

	saved, o := s.store.UpsertPopup(c.UserContext(), actor(c), p)
	if o.Err != nil {
		return respondError(c, o.Err)
	}
	return c.JSON(saved)
}

// DeletePopup handles DELETE /api/admin/popups/:id
func (s *Server) DeletePopup(c *fiber.Ctx) error {
	return respondOutcome(c, s.store.DeletePopup(c.UserContext(), actor(c), param(c, "id")))
}
