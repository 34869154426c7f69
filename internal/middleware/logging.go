// Package middleware provides the logger and the fiber middleware stack shared by the HTTP server.
package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. It is JSON in production
// and text elsewhere; LOG_LEVEL overrides the default info level.
var Logger = slog.New(&ctxHandler{newHandler(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))})

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// contextAttrs maps context keys to the attribute names they are logged under.
var contextAttrs = []struct {
	key  contextKey
	attr string
}{
	{RequestIDKey, "request_id"},
	{UserIDKey, "identity_id"},
	{TraceIDKey, "trace_id"},
}

// localsToContext maps fiber locals set by earlier middleware to context keys.
var localsToContext = map[string]contextKey{
	"requestid":  RequestIDKey,
	"identityID": UserIDKey,
	"traceID":    TraceIDKey,
}

func newHandler(env, level string) slog.Handler {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if env == "production" || env == "prod" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

// ctxHandler copies request-scoped values from the context onto each record.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, a := range contextAttrs {
		if v, ok := ctx.Value(a.key).(string); ok && v != "" {
			r.AddAttrs(slog.String(a.attr, v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// WithIdentity returns ctx tagged with the acting identity for log correlation.
func WithIdentity(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, UserIDKey, identityID)
}

// ContextMiddleware moves the request id, identity and trace id from fiber
// locals into the user context, where the store and repositories log from.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		for local, key := range localsToContext {
			if v, ok := c.Locals(local).(string); ok {
				ctx = context.WithValue(ctx, key, v)
			}
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger logs one line per request. Server errors log at error,
// client errors at warn, and health checks and scrapes at debug.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes", len(c.Response().Body())),
			slog.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		level := slog.LevelInfo
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		case strings.HasPrefix(c.Path(), "/health") || c.Path() == "/metrics":
			level = slog.LevelDebug
		}
		Logger.LogAttrs(c.UserContext(), level, "request", attrs...)
		return err
	}
}
