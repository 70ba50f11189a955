package middleware

import (
	"fmt"

	"gorahrib/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// requestCarrier exposes fiber request headers to the otel propagator.
type requestCarrier struct{ c *fiber.Ctx }

func (r requestCarrier) Get(key string) string { return r.c.Get(key) }

func (r requestCarrier) Set(key, value string) { r.c.Request().Header.Set(key, value) }

func (r requestCarrier) Keys() []string {
	var keys []string
	r.c.Request().Header.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

// TracingMiddleware opens one server span per request, continuing any
// incoming W3C trace context. The trace ID is published in the traceID local
// and the X-Trace-ID header so log lines and clients can quote it.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), requestCarrier{c})
		ctx, span := observability.Tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(c.Path()),
				semconv.ClientAddress(c.IP()),
				semconv.UserAgentOriginal(c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)
		RefreshContext(c)

		err := c.Next()
		finishSpan(c, span, err)
		return err
	}
}

func finishSpan(c *fiber.Ctx, span trace.Span, err error) {
	route := c.Route().Path
	status := c.Response().StatusCode()
	span.SetName(c.Method() + " " + route)
	span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(status))

	if id := c.Locals("requestid"); id != nil {
		span.SetAttributes(attribute.String("request.id", fmt.Sprint(id)))
	}
	if uid, ok := c.Locals("userID").(uint); ok {
		span.SetAttributes(attribute.Int64("hiker.id", int64(uid)))
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= fiber.StatusInternalServerError:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
	}
}
