package server

import (
	"zeelink/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListQuestions handles GET /api/questions
func (s *Server) ListQuestions(c *fiber.Ctx) error {
	return c.JSON(s.store.ListQuestions(false))
}

// ListAllQuestions handles GET /api/admin/questions, rejected ones included.
func (s *Server) ListAllQuestions(c *fiber.Ctx) error {
	return c.JSON(s.store.ListQuestions(true))
}

// SubmitQuestion handles POST /api/questions
// A rejected question is still created; its status tells the client.
func (s *Server) SubmitQuestion(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	q, o := s.store.SubmitQuestion(c.UserContext(), actor(c), req.Text)
	if o.Err != nil {
		return respondError(c, o.Err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

// VoteQuestion handles POST /api/questions/:id/vote
func (s *Server) VoteQuestion(c *fiber.Ctx) error {
	return respondOutcome(c, s.store.VoteQuestion(c.UserContext(), actor(c), param(c, "id")))
}
