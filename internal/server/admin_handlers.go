package server

import (
	"io"
	"log/slog"
	"strings"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/store"

	"github.com/gofiber/fiber/v2"
)

// BanIdentity handles POST /api/admin/identities/:id/ban
func (s *Server) BanIdentity(c *fiber.Ctx) error {
	return respondOutcome(c, s.store.BanIdentity(c.UserContext(), actor(c), param(c, "id")))
}

// DeleteIdentity handles DELETE /api/admin/identities/:id
func (s *Server) DeleteIdentity(c *fiber.Ctx) error {
	return respondOutcome(c, s.store.DeleteIdentity(c.UserContext(), actor(c), param(c, "id")))
}

// Backup handles GET /api/admin/backup, answering with the snapshot as a download.
func (s *Server) Backup(c *fiber.Ctx) error {
	name, err := s.store.Backup(c.UserContext(), actor(c), attachmentExporter{c: c})
	if err != nil {
		return respondError(c, err)
	}
	middleware.Logger.InfoContext(c.UserContext(), "backup downloaded", slog.String("file", name))
	return nil
}

// Restore handles POST /api/admin/restore. The snapshot is either the JSON
// body or a multipart file named "backup".
func (s *Server) Restore(c *fiber.Ctx) error {
	blob := c.Body()
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("backup")
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No backup file uploaded"))
		}
		src, err := file.Open()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read backup file"))
		}
		defer func() { _ = src.Close() }()
		if blob, err = io.ReadAll(src); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read backup file"))
		}
	}

	snap, err := store.DecodeSnapshot(blob)
	if err != nil {
		return respondError(c, err)
	}
	o := s.store.RestoreSnapshot(c.UserContext(), actor(c), snap)
	if o.Err != nil {
		return respondError(c, o.Err)
	}
	return c.JSON(fiber.Map{
		"profiles":  len(snap.Profiles),
		"questions": len(snap.Questions),
		"popups":    len(snap.Popups),
	})
}

// Reload handles POST /api/admin/reload
func (s *Server) Reload(c *fiber.Ctx) error {
	if err := s.store.Reload(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"loaded_at": s.store.LoadedAt()})
}

// SimulateProfiles handles POST /api/admin/simulate
func (s *Server) SimulateProfiles(c *fiber.Ctx) error {
	var req struct {
		Province string `json:"province"`
		Count    int    `json:"count"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	created, o := s.store.SimulateProfiles(c.UserContext(), actor(c), req.Province, req.Count)
	if o.Err != nil {
		if len(created) > 0 {
			middleware.Logger.WarnContext(c.UserContext(), "simulation stopped early",
				slog.Int("created", len(created)), slog.String("error", o.Err.Error()))
		}
		return respondError(c, o.Err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"created":  len(created),
		"profiles": created,
	})
}

// GetFeatureFlags returns configured feature flags and evaluated state for the current identity.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	identityID, _ := c.Locals(localIdentityID).(string)
	return c.JSON(fiber.Map{
		"raw":       s.flags.Raw(),
		"evaluated": s.flags.Snapshot(identityID),
	})
}
