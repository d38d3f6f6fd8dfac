package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/goflash/devserver"
)

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	Header    string        // header name, default: X-Request-ID
	Generator func() string // new IDs, default: 32 random hex characters
	MaxLength int           // longest incoming ID that is trusted, default: 64
}

type ridKey struct{}

// RequestID returns middleware that adds a request ID to each request/response.
// An incoming ID in the configured header is reused when it is short and
// printable ASCII; otherwise a new one is generated. The ID is echoed in the
// response header and made available through RequestIDFromContext.
func RequestID(cfgs ...RequestIDConfig) devserver.Middleware {
	cfg := RequestIDConfig{Header: "X-Request-ID", Generator: newID, MaxLength: 64}
	if len(cfgs) > 0 {
		if cfgs[0].Header != "" {
			cfg.Header = cfgs[0].Header
		}
		if cfgs[0].Generator != nil {
			cfg.Generator = cfgs[0].Generator
		}
		if cfgs[0].MaxLength > 0 {
			cfg.MaxLength = cfgs[0].MaxLength
		}
	}
	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			id := c.Request().Header.Get(cfg.Header)
			if !validRequestID(id, cfg.MaxLength) {
				id = cfg.Generator()
			}
			c.Header(cfg.Header, id)
			c.SetRequest(c.Request().WithContext(context.WithValue(c.Context(), ridKey{}, id)))
			return next(c)
		}
	}
}

// RequestIDFromContext returns the request ID stored by RequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ridKey{}).(string)
	return s, ok
}

func validRequestID(id string, max int) bool {
	if id == "" || len(id) > max {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func newID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
