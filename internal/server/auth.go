package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/store"

	"github.com/gofiber/fiber/v2"
)

const (
	localSession    = "session"
	localIdentityID = "identityID"
)

// cookieJar stores the remember-me token in an HTTP-only cookie.
type cookieJar struct {
	c      *fiber.Ctx
	secure bool
	ttl    time.Duration
}

func (j cookieJar) Get(_ context.Context, key string) (string, bool, error) {
	v := j.c.Cookies(key)
	return v, v != "", nil
}

func (j cookieJar) Put(_ context.Context, key, value string) error {
	j.c.Cookie(&fiber.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(j.ttl),
		Secure:   j.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (j cookieJar) Remove(_ context.Context, key string) error {
	j.c.Cookie(&fiber.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   j.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (s *Server) cookieJar(c *fiber.Ctx) cookieJar {
	ttl := time.Duration(s.cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return cookieJar{c: c, secure: s.cfg.IsProduction(), ttl: ttl}
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// session resolves the request's session from a bearer token or the
// remember-me cookie. The result is cached in locals.
func (s *Server) session(c *fiber.Ctx) (*store.Session, error) {
	if sess, ok := c.Locals(localSession).(*store.Session); ok {
		return sess, nil
	}

	sess := s.sessions.New(s.cookieJar(c))
	ctx := c.UserContext()
	var err error
	if token := bearerToken(c); token != "" {
		_, err = sess.Resume(ctx, token)
	} else {
		_, err = sess.Restore(ctx)
	}
	if err != nil {
		return nil, err
	}

	c.Locals(localSession, sess)
	if identity := sess.Identity(); identity != nil {
		c.Locals(localIdentityID, identity.ID)
		c.SetUserContext(middleware.WithIdentity(ctx, identity.ID))
	}
	return sess, nil
}

// AuthRequired rejects requests without a signed-in, unbanned identity.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.session(c)
		if err != nil {
			return respondError(c, err)
		}
		if sess.Identity() == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		return c.Next()
	}
}

// AuthOptional resolves the session when there is one. A failed lookup
// continues anonymously.
func (s *Server) AuthOptional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := s.session(c); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "session lookup failed, continuing anonymously",
				slog.String("error", err.Error()))
			c.Locals(localSession, s.sessions.New(nil))
		}
		return c.Next()
	}
}

// AdminRequired rejects non-admin identities with 403.
// Must be placed after AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !actor(c).IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// currentSession returns the session resolved by the auth middleware.
func currentSession(c *fiber.Ctx) *store.Session {
	sess, _ := c.Locals(localSession).(*store.Session)
	return sess
}

// actor returns the signed-in identity, or nil.
func actor(c *fiber.Ctx) *models.Identity {
	sess := currentSession(c)
	if sess == nil {
		return nil
	}
	return sess.Identity()
}
