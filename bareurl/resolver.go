// Package bareurl maps extension-less ("bare") request paths such as /about
// onto the .html file that backs them, by probing the site root directory.
//
// The resolver only ever decides which path string the downstream file server
// should see. It never reads file contents, never caches a decision and never
// fails a request: anything it cannot decide leaves the path unchanged.
//
// Paths handed to the resolver must already be sanitized (see
// security.Handler); probing an unsanitized path could look outside the root.
package bareurl

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/goflash/devserver/ctx"
	"github.com/goflash/devserver/security"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultExtensions is the fallback extension list used when Config leaves it
// empty.
var DefaultExtensions = []string{".html"}

// Decision is the outcome of resolving one request path.
type Decision uint8

const (
	// Unchanged means the request path is passed on as it was.
	Unchanged Decision = iota
	// AppendHTML means a fallback extension (".html" unless configured
	// otherwise) was appended to the request path.
	AppendHTML
)

func (d Decision) String() string {
	switch d {
	case Unchanged:
		return "unchanged"
	case AppendHTML:
		return "append-html"
	default:
		return "unknown"
	}
}

type decisionKey struct{}

type decisionSlot struct {
	d   Decision
	set bool
}

// WithDecision returns a context in which Rewrite records its Decision, and a
// function that reports it. The function reports false until a request
// carrying the context has been rewritten.
func WithDecision(parent context.Context) (context.Context, func() (Decision, bool)) {
	slot := &decisionSlot{}
	return context.WithValue(parent, decisionKey{}, slot), func() (Decision, bool) {
		return slot.d, slot.set
	}
}

// Config configures a Resolver. It is read once by New.
type Config struct {
	// Prober answers existence questions about the site root. Required.
	Prober Prober
	// Extensions are tried in order after the literal path is found missing.
	// Defaults to DefaultExtensions.
	Extensions []string
	// Logger receives debug output when no request-scoped logger is present.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Resolver rewrites bare request paths. It holds no mutable state and is safe
// for concurrent use.
type Resolver struct {
	prober Prober
	exts   []string
	logger *slog.Logger
}

// New builds a Resolver from cfg. A nil Prober probes the current directory.
//
// Example:
//
//	res := bareurl.New(bareurl.Config{Prober: bareurl.Dir("website")})
//	h := security.Handler(res.Handler(http.FileServer(http.Dir("website"))))
func New(cfg Config) *Resolver {
	p := cfg.Prober
	if p == nil {
		p = Dir(".")
	}
	exts := make([]string, 0, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	if len(exts) == 0 {
		exts = append(exts, DefaultExtensions...)
	}
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Resolver{prober: p, exts: exts, logger: l}
}

// Resolve decides what to do with the sanitized, decoded path p and returns
// the path to serve together with the decision.
//
// Rules, in order:
//   - "/" (or only slashes) and paths ending in "/" are left alone
//   - a final segment with an extension is left alone, even ".html"
//   - if root/p exists (file or directory) it is left alone
//   - otherwise the first extension ext for which root/p+ext exists wins
//
// Examples (root holds about.html and the directory docs/):
//
//	Resolve("/about")      // "/about.html", AppendHTML
//	Resolve("/about.html") // "/about.html", Unchanged
//	Resolve("/docs")       // "/docs", Unchanged
//	Resolve("/missing")    // "/missing", Unchanged
func (res *Resolver) Resolve(p string) (string, Decision) {
	return res.resolve(p, res.logger)
}

func (res *Resolver) resolve(p string, l *slog.Logger) (string, Decision) {
	rel := strings.TrimLeft(p, "/")
	if rel == "" || strings.HasSuffix(rel, "/") {
		return p, Unchanged
	}
	if path.Ext(rel) != "" {
		return p, Unchanged
	}
	if res.exists(rel, l) {
		return p, Unchanged
	}
	for _, ext := range res.exts {
		if res.exists(rel+ext, l) {
			return p + ext, AppendHTML
		}
	}
	return p, Unchanged
}

// exists folds probe errors into "does not exist".
func (res *Resolver) exists(name string, l *slog.Logger) bool {
	ok, err := res.prober.Exists(name)
	if err != nil {
		l.Debug("bare url probe failed", "name", name, "err", err)
		return false
	}
	return ok
}

// Rewrite resolves r.URL.Path and, when the decision is AppendHTML, replaces
// r.URL with a copy carrying the new path and the original query. If the new
// URL cannot be built the request is left untouched and Unchanged is
// returned.
//
// The decision is added to the active trace span as devserver.bare_url and
// recorded in the request context when it carries WithDecision.
func (res *Resolver) Rewrite(r *http.Request) Decision {
	l := res.loggerFor(r)
	np, d := res.resolve(r.URL.Path, l)
	if d == AppendHTML {
		nu, err := security.WithPath(r.URL, np)
		if err != nil {
			l.Debug("bare url rewrite discarded", "path", r.URL.Path, "err", err)
			d = Unchanged
		} else {
			l.Debug("bare url rewritten", "from", r.URL.Path, "to", nu.Path)
			r.URL = nu
			if r.RequestURI != "" {
				r.RequestURI = nu.RequestURI()
			}
		}
	}
	if slot, ok := r.Context().Value(decisionKey{}).(*decisionSlot); ok {
		slot.d, slot.set = d, true
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("devserver.bare_url", d.String()))
	return d
}

// Handler returns net/http middleware that rewrites bare URLs before calling
// next, typically an http.FileServer over the same root.
func (res *Resolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res.Rewrite(r)
		next.ServeHTTP(w, r)
	})
}

func (res *Resolver) loggerFor(r *http.Request) *slog.Logger {
	return ctx.LoggerFromContextOr(r.Context(), res.logger)
}
