package server

import (
	"io"
	"math/rand/v2"
	"strings"

	"zeelink/internal/featureflags"
	"zeelink/internal/models"
	"zeelink/internal/store"

	"github.com/gofiber/fiber/v2"
)

// ListProfiles handles GET /api/profiles
// Optional filters: region, province, tag, q (matches username or display name).
func (s *Server) ListProfiles(c *fiber.Ctx) error {
	region := strings.TrimSpace(c.Query("region"))
	province := strings.TrimSpace(c.Query("province"))
	tag := strings.TrimSpace(c.Query("tag"))
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))

	out := make([]*models.Profile, 0)
	for _, p := range s.store.ListVisibleProfiles() {
		if region != "" && p.Location.Region != region {
			continue
		}
		if province != "" && p.Location.Province != province {
			continue
		}
		if tag != "" && !p.Tags.Contains(tag) {
			continue
		}
		if q != "" && !strings.Contains(p.Username, q) && !strings.Contains(strings.ToLower(p.DisplayName), q) {
			continue
		}
		out = append(out, p)
	}
	return c.JSON(publicProfiles(out))
}

// MapProfiles handles GET /api/profiles/map
func (s *Server) MapProfiles(c *fiber.Ctx) error {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	pins := s.store.MapProfiles(rng)
	for i := range pins {
		pins[i].Profile = publicProfile(pins[i].Profile)
	}
	return c.JSON(pins)
}

// SaveMyProfile handles PUT /api/profiles/me
func (s *Server) SaveMyProfile(c *fiber.Ctx) error {
	var in store.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	p, o := currentSession(c).SaveProfile(c.UserContext(), in)
	if o.Err != nil {
		return respondError(c, o.Err)
	}
	return c.JSON(fiber.Map{
		"profile":   p,
		"share_url": s.shareURL(p),
	})
}

// UploadAvatar handles POST /api/profiles/me/avatar
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	identity := actor(c)
	if !s.flags.Enabled(featureflags.AvatarUpload, identity.ID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Avatar upload is not enabled"))
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	if file.Size > s.avatars.MaxUploadBytes() {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("File too large"))
	}
	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	url, err := s.avatars.Upload(c.UserContext(), identity.ID, content, file.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return respondError(c, err)
	}

	p, o := s.store.SetPhoto(c.UserContext(), identity, url)
	if o.Err != nil {
		return respondError(c, o.Err)
	}
	return c.JSON(fiber.Map{
		"photo_url": url,
		"profile":   p,
	})
}

// ServeAvatar handles GET /media/avatars/:name
func (s *Server) ServeAvatar(c *fiber.Ctx) error {
	path, err := s.avatars.Resolve(c.Params("name"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	c.Type("webp")
	return c.SendFile(path)
}

// LikeProfile handles POST /api/profiles/:id/like
func (s *Server) LikeProfile(c *fiber.Ctx) error {
	return respondOutcome(c, s.store.LikeProfile(c.UserContext(), actor(c), param(c, "id")))
}

// RecordLinkClick handles POST /api/profiles/:id/links/:linkId/click
func (s *Server) RecordLinkClick(c *fiber.Ctx) error {
	return respondOutcome(c, s.store.RecordLinkClick(c.UserContext(), param(c, "id"), param(c, "linkId")))
}

// PublicProfile handles GET /:username
func (s *Server) PublicProfile(c *fiber.Ctx) error {
	p, err := s.store.ProfileByUsername(c.UserContext(), param(c, "username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"profile":   publicProfile(p),
		"share_url": s.shareURL(p),
	})
}
