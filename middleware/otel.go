package middleware

import (
	"net/http"
	"time"

	"github.com/goflash/devserver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goflash/devserver/middleware"

// OTelConfig configures the OpenTelemetry tracing middleware.
type OTelConfig struct {
	// Tracer creates spans. Defaults to the global tracer provider.
	Tracer trace.Tracer
	// Propagator extracts the parent span context from request headers.
	// Defaults to the global text map propagator.
	Propagator propagation.TextMapPropagator
	// ServiceName is recorded as service.name on every span.
	ServiceName string
	// RecordDuration adds http.server.duration_ms to the span.
	RecordDuration bool
	// Filter returns true for requests that should not be traced.
	Filter func(devserver.Ctx) bool
	// SpanName overrides the span name. An empty result falls back to the
	// default "METHOD route" (or "METHOD path" for unrouted requests).
	SpanName func(devserver.Ctx) string
	// Attributes adds per-request attributes at span start.
	Attributes func(devserver.Ctx) []attribute.KeyValue
	// ExtraAttributes are added to every span.
	ExtraAttributes []attribute.KeyValue
	// Status maps the final HTTP status and handler error to a span status.
	// Defaults to Error for 5xx or a non-nil error and Unset otherwise.
	Status func(code int, err error) (codes.Code, string)
}

// OTel returns tracing middleware with default settings for the given
// service name.
//
// Example:
//
//	shutdown, _ := telemetry.Setup(ctx, cfg.Tracing, os.Stdout)
//	defer shutdown(context.Background())
//	a.Use(middleware.OTel("devserver"))
func OTel(serviceName string) devserver.Middleware {
	return OTelWithConfig(OTelConfig{ServiceName: serviceName})
}

// OTelWithConfig returns tracing middleware. It starts a server span per
// request, stores it in the request context for later stages (the bare-URL
// resolver records its decision on it) and ends it with the final status.
func OTelWithConfig(cfg OTelConfig) devserver.Middleware {
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	if cfg.Status == nil {
		cfg.Status = defaultSpanStatus
	}

	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			if cfg.Filter != nil && cfg.Filter(c) {
				return next(c)
			}
			r := c.Request()
			path := c.Path()
			parent := cfg.Propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			name := ""
			if cfg.SpanName != nil {
				name = cfg.SpanName(c)
			}
			if name == "" {
				name = defaultSpanName(c)
			}

			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(path),
				semconv.ServerAddress(r.Host),
				semconv.UserAgentOriginal(r.UserAgent()),
			}
			if rt := c.Route(); rt != "" {
				attrs = append(attrs, semconv.HTTPRoute(rt))
			}
			if cfg.ServiceName != "" {
				attrs = append(attrs, semconv.ServiceName(cfg.ServiceName))
			}
			if cfg.Attributes != nil {
				attrs = append(attrs, cfg.Attributes(c)...)
			}
			attrs = append(attrs, cfg.ExtraAttributes...)

			spanCtx, span := cfg.Tracer.Start(parent, name,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()
			c.SetRequest(r.WithContext(spanCtx))

			start := time.Now()
			err := next(c)

			code := c.StatusCode()
			if code == 0 {
				code = http.StatusOK
				if err != nil {
					code = http.StatusInternalServerError
				}
			}
			span.SetAttributes(
				semconv.HTTPResponseStatusCode(code),
				semconv.HTTPResponseBodySize(c.BytesWritten()),
			)
			if served := c.Path(); served != path {
				span.SetAttributes(attribute.String("devserver.served_path", served))
			}
			if cfg.RecordDuration {
				span.SetAttributes(attribute.Float64("http.server.duration_ms", float64(time.Since(start).Microseconds())/1000.0))
			}
			if err != nil {
				span.RecordError(err)
			}
			if sc, desc := cfg.Status(code, err); sc != codes.Unset {
				span.SetStatus(sc, desc)
			}
			return err
		}
	}
}

func defaultSpanName(c devserver.Ctx) string {
	if rt := c.Route(); rt != "" {
		return c.Method() + " " + rt
	}
	return c.Method() + " " + c.Path()
}

func defaultSpanStatus(code int, err error) (codes.Code, string) {
	if err != nil {
		return codes.Error, err.Error()
	}
	if code >= 500 {
		return codes.Error, http.StatusText(code)
	}
	return codes.Unset, ""
}
