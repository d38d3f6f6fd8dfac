package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goflash/devserver"
)

func TestRequestIDSetsHeaderAndContext(t *testing.T) {
	a := devserver.New()
	a.Use(RequestID())
	a.GET("/", func(c devserver.Ctx) error {
		if _, ok := RequestIDFromContext(c.Context()); !ok {
			t.Fatalf("request id missing")
		}
		return c.String(http.StatusOK, "ok")
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("header missing")
	}
}

func TestRequestIDCustomHeader(t *testing.T) {
	a := devserver.New()
	a.Use(RequestID(RequestIDConfig{Header: "X-CID"}))
	a.GET("/", func(c devserver.Ctx) error { return c.String(http.StatusOK, "ok") })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	a.ServeHTTP(rec, req)
	if rec.Header().Get("X-CID") == "" {
		t.Fatalf("custom header missing")
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	a := devserver.New()
	a.GET("/", func(c devserver.Ctx) error {
		if _, ok := RequestIDFromContext(c.Context()); ok {
			t.Fatalf("expected no request id")
		}
		return c.String(http.StatusOK, "ok")
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	a.ServeHTTP(rec, req)
}

func TestRequestIDFromContextTypeMismatch(t *testing.T) {
	ctx := context.WithValue(context.Background(), ridKey{}, 123)
	if _, ok := RequestIDFromContext(ctx); ok {
		t.Fatalf("expected false on wrong type")
	}
}

func TestRequestIDReusesValidIncomingID(t *testing.T) {
	a := devserver.New()
	a.Use(RequestID())
	var got string
	a.GET("/", func(c devserver.Ctx) error {
		got, _ = RequestIDFromContext(c.Context())
		return nil
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	a.ServeHTTP(rec, req)
	if got != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("got=%q header=%q", got, rec.Header().Get("X-Request-ID"))
	}
}

func TestRequestIDReplacesUntrustedIncomingID(t *testing.T) {
	a := devserver.New()
	a.Use(RequestID(RequestIDConfig{MaxLength: 8, Generator: func() string { return "fresh" }}))
	a.GET("/", func(c devserver.Ctx) error { return nil })
	for _, in := range []string{"way-too-long-id", "has space", "tab\there"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", in)
		a.ServeHTTP(rec, req)
		if rec.Header().Get("X-Request-ID") != "fresh" {
			t.Fatalf("%q was trusted", in)
		}
	}
}

func TestNewIDShape(t *testing.T) {
	id := newID()
	if len(id) != 32 || !validRequestID(id, 64) {
		t.Fatalf("id=%q", id)
	}
	if id == newID() {
		t.Fatalf("ids repeat")
	}
}
