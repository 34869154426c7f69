package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"zeelink/internal/models"
	"zeelink/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// viewerCookie identifies anonymous visitors for popup frequency tracking.
const viewerCookie = "zeelink-viewer"

// respondError writes err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// respondOutcome reports a mutation that returns no entity.
func respondOutcome(c *fiber.Ctx, o store.Outcome) error {
	if o.Err != nil {
		return respondError(c, o.Err)
	}
	return c.JSON(fiber.Map{
		"applied":   o.Applied,
		"persisted": o.Persisted,
	})
}

// param returns a path parameter with percent-encoding removed.
func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}

// viewerID returns the signed-in identity or the anonymous viewer cookie,
// issuing the cookie on first visit.
func (s *Server) viewerID(c *fiber.Ctx) string {
	if a := actor(c); a != nil {
		return a.ID
	}
	if v := c.Cookies(viewerCookie); v != "" {
		return v
	}
	v := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     viewerCookie,
		Value:    v,
		Path:     "/",
		Expires:  s.now().Add(365 * 24 * time.Hour),
		Secure:   s.cfg.IsProduction(),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return v
}

// attachmentExporter sends an export as a file download.
type attachmentExporter struct {
	c *fiber.Ctx
}

func (e attachmentExporter) Export(_ context.Context, name string, blob []byte) error {
	e.c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	e.c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return e.c.Send(blob)
}

// publicProfile strips fields visitors should not see.
func publicProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	out := p.Clone()
	out.LikedBy = nil
	return out
}

func publicProfiles(list []*models.Profile) []*models.Profile {
	out := make([]*models.Profile, len(list))
	for i, p := range list {
		out[i] = publicProfile(p)
	}
	return out
}
