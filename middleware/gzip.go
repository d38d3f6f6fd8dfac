package middleware

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/goflash/devserver"
)

// GzipConfig configures the gzip middleware.
type GzipConfig struct {
	// Level is the gzip compression level. Defaults to gzip.DefaultCompression.
	Level int
	// MinLength skips responses whose Content-Length is known and smaller.
	// Defaults to 256.
	MinLength int
	// Compressible reports whether a media type is worth compressing.
	// Defaults to text, JavaScript, JSON, XML, SVG and WebAssembly.
	Compressible func(mediaType string) bool
}

// gzipPools holds one sync.Pool of writers per compression level.
var gzipPools sync.Map // map[int]*sync.Pool

// getGzipWriter returns a pooled gzip.Writer for the given level and output writer.
func getGzipWriter(level int, w io.Writer) (*gzip.Writer, func()) {
	poolAny, _ := gzipPools.LoadOrStore(level, &sync.Pool{New: func() any {
		gw, _ := gzip.NewWriterLevel(io.Discard, level)
		return gw
	}})
	pool := poolAny.(*sync.Pool)
	gw := pool.Get().(*gzip.Writer)
	gw.Reset(w)
	put := func() {
		_ = gw.Close()
		gw.Reset(io.Discard)
		pool.Put(gw)
	}
	return gw, put
}

// Compressible is the default GzipConfig.Compressible.
func Compressible(mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/javascript", "application/json", "application/xml",
		"application/wasm", "application/manifest+json", "image/svg+xml":
		return true
	}
	return strings.HasSuffix(mediaType, "+json") || strings.HasSuffix(mediaType, "+xml")
}

// Gzip returns middleware that compresses site responses for clients that
// accept gzip. Only full 200 responses of a compressible media type are
// compressed; partial content, HEAD requests and responses that already
// carry a Content-Encoding are left alone.
//
// Register it outside livereload.Inject so the injected page is what gets
// compressed:
//
//	a.Site("website", app.SiteConfig{Middleware: []app.Middleware{
//		middleware.Gzip(), livereload.Inject(livereload.DefaultPath),
//	}})
func Gzip(cfgs ...GzipConfig) devserver.Middleware {
	cfg := GzipConfig{Level: gzip.DefaultCompression, MinLength: 256, Compressible: Compressible}
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Level != 0 {
			cfg.Level = c.Level
		}
		if c.MinLength > 0 {
			cfg.MinLength = c.MinLength
		}
		if c.Compressible != nil {
			cfg.Compressible = c.Compressible
		}
	}
	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			r := c.Request()
			// the representation depends on Accept-Encoding either way
			c.ResponseWriter().Header().Add("Vary", "Accept-Encoding")
			if c.Method() == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				return next(c)
			}

			rw := c.ResponseWriter()
			grw := &gzipResponseWriter{rw: rw, cfg: &cfg}
			c.SetResponseWriter(grw)
			err := next(c)
			if cerr := grw.Close(); err == nil {
				err = cerr
			}
			c.SetResponseWriter(rw)
			return err
		}
	}
}

// acceptsGzip reports whether an Accept-Encoding header value allows gzip
// with a non-zero quality.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		params = strings.TrimSpace(params)
		if q, ok := strings.CutPrefix(params, "q="); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
			return err == nil && v > 0
		}
		return true
	}
	return false
}

type gzipResponseWriter struct {
	rw          http.ResponseWriter
	cfg         *GzipConfig
	gz          *gzip.Writer
	put         func()
	wroteHeader bool
	useGzip     bool // set on first write/header
}

func (g *gzipResponseWriter) Header() http.Header { return g.rw.Header() }

func (g *gzipResponseWriter) WriteHeader(status int) {
	if g.wroteHeader {
		return
	}
	if status < http.StatusOK {
		g.rw.WriteHeader(status)
		return
	}
	g.wroteHeader = true
	g.useGzip = g.compress(status)
	if g.useGzip {
		h := g.Header()
		h.Del("Content-Length")
		h.Del("Accept-Ranges")
		h.Set("Content-Encoding", "gzip")
	}
	g.rw.WriteHeader(status)
}

// compress decides from the status and the headers the handler set.
func (g *gzipResponseWriter) compress(status int) bool {
	h := g.Header()
	if status != http.StatusOK {
		return false
	}
	if enc := h.Get("Content-Encoding"); enc != "" && enc != "identity" {
		return false
	}
	if n, err := strconv.Atoi(h.Get("Content-Length")); err == nil && n < g.cfg.MinLength {
		return false
	}
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && g.cfg.Compressible(mt)
}

func (g *gzipResponseWriter) Write(p []byte) (int, error) {
	if !g.wroteHeader {
		if g.Header().Get("Content-Type") == "" {
			g.Header().Set("Content-Type", http.DetectContentType(p))
		}
		g.WriteHeader(http.StatusOK)
	}
	if !g.useGzip {
		return g.rw.Write(p)
	}
	if g.gz == nil {
		g.gz, g.put = getGzipWriter(g.cfg.Level, g.rw)
	}
	return g.gz.Write(p)
}

// Close finishes the gzip stream. Nothing is written when the handler
// wrote nothing.
func (g *gzipResponseWriter) Close() error {
	if g.gz == nil {
		if g.useGzip {
			// empty body still needs a valid stream
			g.gz, g.put = getGzipWriter(g.cfg.Level, g.rw)
		} else {
			return nil
		}
	}
	err := g.gz.Close()
	g.put()
	g.gz, g.put = nil, nil
	return err
}

// Flush pushes compressed data written so far to the client.
func (g *gzipResponseWriter) Flush() {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.rw.(http.Flusher); ok {
		f.Flush()
	}
}

var (
	_ http.ResponseWriter = (*gzipResponseWriter)(nil)
	_ http.Flusher        = (*gzipResponseWriter)(nil)
)
