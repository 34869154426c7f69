package middleware

import (
	"net/http"

	"zeelink/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// incomingHeaders copies the propagator's fields from the request so the
// standard header carrier can read them.
func incomingHeaders(c *fiber.Ctx) propagation.HeaderCarrier {
	h := http.Header{}
	for _, field := range otel.GetTextMapPropagator().Fields() {
		if v := c.Get(field); v != "" {
			h.Set(field, v)
		}
	}
	return propagation.HeaderCarrier(h)
}

// TracingMiddleware starts a server span per request, continuing any trace
// the caller propagated. The span is renamed to the matched route once
// routing is done, and the trace id is echoed in X-Trace-ID.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), incomingHeaders(c))
		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("client.address", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetName(c.Method() + " " + c.Route().Path)
		span.SetAttributes(
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.status_code", status),
		)
		if id, ok := c.Locals("identityID").(string); ok && id != "" {
			span.SetAttributes(attribute.String("identity.id", id))
		}
		if err != nil {
			span.RecordError(err)
		}
		if err != nil || status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		return err
	}
}
