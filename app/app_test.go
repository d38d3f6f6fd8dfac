package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goflash/devserver/ctx"
)

func TestUseNoArgsNoop(t *testing.T) {
	a := New().(*DefaultApp)
	before := len(a.middleware)
	a.Use()
	if len(a.middleware) != before {
		t.Fatalf("expected no change")
	}
}

func TestAppGETAndMiddleware(t *testing.T) {
	a := New()
	called := 0
	a.Use(func(next Handler) Handler { return func(c Ctx) error { called++; return next(c) } })

	a.GET("/ping", func(c Ctx) error { return c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	if called == 0 {
		t.Fatalf("global middleware not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Body.String(); got != "pong" {
		t.Fatalf("body=%q", got)
	}
}

func TestAppNotFoundAndMethodNA(t *testing.T) {
	a := New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	a.GET("/ping", func(c Ctx) error { return c.String(http.StatusOK, "pong") })

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleHTTPAndMount(t *testing.T) {
	a := New()
	seen := 0
	a.Use(func(next Handler) Handler { return func(c Ctx) error { seen++; return next(c) } })
	a.HandleHTTP(http.MethodGet, "/std", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "std") }))
	a.Mount("/m", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "m") }))

	tests := []struct{ method, path, want string }{
		{http.MethodGet, "/std", "std"},
		{http.MethodGet, "/m", "m"},
		{http.MethodDelete, "/m", "m"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(tt.method, tt.path, nil)
		a.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != tt.want {
			t.Fatalf("%s %s code=%d body=%q", tt.method, tt.path, rec.Code, rec.Body.String())
		}
	}
	if seen != len(tests) {
		t.Fatalf("global middleware ran %d times, want %d", seen, len(tests))
	}
}

func TestANYRegistersAllMethods(t *testing.T) {
	a := New()
	a.ANY("/ping", func(c Ctx) error { return c.String(http.StatusOK, c.Method()) })
	for _, m := range allMethods {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(m, "/ping", nil)
		a.ServeHTTP(rec, req)
		if rec.Code == http.StatusMethodNotAllowed {
			t.Fatalf("method %s not allowed", m)
		}
	}
}

func TestCustomNotFoundAndMethodNAAndOnError(t *testing.T) {
	a := New()
	a.SetNotFoundHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(404); io.WriteString(w, "NF") }))
	a.SetMethodNotAllowedHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(405); io.WriteString(w, "MNA") }))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	a.ServeHTTP(rec, req)
	if got := rec.Body.String(); got != "NF" {
		t.Fatalf("notfound body=%q", got)
	}

	a.GET("/x", func(c Ctx) error { return c.String(http.StatusOK, "ok") })
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	a.ServeHTTP(rec, req)
	if got := rec.Body.String(); got != "MNA" {
		t.Fatalf("methodna body=%q", got)
	}

	// OnError default 500
	a = New()
	a.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.GET("/e", func(c Ctx) error { return io.ErrUnexpectedEOF })
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/e", nil)
	a.ServeHTTP(rec, req)
	if rec.Code != 500 {
		t.Fatalf("default onerror code=%d", rec.Code)
	}

	// Custom OnError
	a = New()
	a.SetErrorHandler(func(c Ctx, err error) { _ = c.String(418, "teapot") })
	a.GET("/e", func(c Ctx) error { return io.ErrUnexpectedEOF })
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/e", nil)
	a.ServeHTTP(rec, req)
	if rec.Code != 418 || rec.Body.String() != "teapot" {
		t.Fatalf("custom onerror: %d %q", rec.Code, rec.Body.String())
	}
}

func TestPreRunsBeforeRouting(t *testing.T) {
	a := New()
	var order []string
	wrap := func(name, rewrite string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				if rewrite != "" {
					r.URL.Path = rewrite
				}
				next.ServeHTTP(w, r)
			})
		}
	}
	a.Pre()
	a.Pre(wrap("p1", ""), wrap("p2", "/real"))
	a.GET("/real", func(c Ctx) error { return c.String(http.StatusOK, "real") })

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alias", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "real" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
	if len(order) != 2 || order[0] != "p1" || order[1] != "p2" {
		t.Fatalf("order=%v", order)
	}
}

func TestFallbackHandlesUnmatched(t *testing.T) {
	a := New()
	global := 0
	a.Use(func(next Handler) Handler { return func(c Ctx) error { global++; return next(c) } })
	a.GET("/route", func(c Ctx) error { return c.String(http.StatusOK, "route") })
	a.Fallback(func(c Ctx) error {
		return c.String(http.StatusTeapot, "fallback route="+c.Route()+" path="+c.Path())
	}, func(next Handler) Handler {
		return func(c Ctx) error { c.Header("X-Fallback", "1"); return next(c) }
	})

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything/else", nil))
	if rec.Code != http.StatusTeapot || rec.Body.String() != "fallback route= path=/anything/else" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Fallback") != "1" {
		t.Fatalf("fallback middleware not applied")
	}

	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/route", nil))
	if rec.Body.String() != "route" || rec.Header().Get("X-Fallback") != "" {
		t.Fatalf("route served by fallback: %q", rec.Body.String())
	}
	if global != 2 {
		t.Fatalf("global middleware ran %d times", global)
	}
}

func TestSetLoggerAndLoggerFallback(t *testing.T) {
	a := New().(*DefaultApp)
	l := slog.Default()
	a.SetLogger(l)
	if a.Logger() != l {
		t.Fatalf("SetLogger not used")
	}
	a.logger = nil
	if a.Logger() == nil {
		t.Fatalf("Logger() should fallback to default")
	}
}

func TestLoggerInjectedIntoRequestContext(t *testing.T) {
	a := New()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	a.SetLogger(l)
	var got *slog.Logger
	a.GET("/l", func(c Ctx) error {
		got = ctx.LoggerFromContext(c.Context())
		return nil
	})
	a.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/l", nil))
	if got != l {
		t.Fatalf("logger not injected")
	}
}
