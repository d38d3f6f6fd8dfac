package ctx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	router "github.com/julienschmidt/httprouter"
)

// Ctx is the request/response context interface exposed to handlers and middleware.
// It is implemented by *DefaultContext.
//
// A Ctx provides accessors for request data (method, path, params, query) and
// response helpers for writing headers and bodies. Handlers that hand the
// request to a plain http.Handler (for example http.FileServer) should write
// through ResponseWriter(); the context still observes the status and byte
// count so logging and tracing middleware report what actually reached the
// client.
//
// Typical usage inside a handler:
//
//	a.GET("/~status", func(c ctx.Ctx) error {
//	    c.Header("X-Handler", "status")
//	    return c.Status(http.StatusOK).JSON(map[string]any{"root": root})
//	})
//
// Concurrency: Ctx is not safe for concurrent writes to the underlying
// http.ResponseWriter.
type Ctx interface {
	// Request returns the underlying *http.Request associated with this context.
	Request() *http.Request
	// SetRequest replaces the underlying *http.Request on the context.
	// Example: attach a new context value to the request.
	//
	//  	ctx := context.WithValue(c.Context(), key, value)
	//  	c.SetRequest(c.Request().WithContext(ctx))
	SetRequest(*http.Request)
	// ResponseWriter returns the current http.ResponseWriter.
	ResponseWriter() http.ResponseWriter
	// SetResponseWriter replaces the current http.ResponseWriter. Middleware
	// that buffers or transforms the body installs its wrapper here.
	SetResponseWriter(http.ResponseWriter)

	// Context returns the request-scoped context.Context.
	Context() context.Context
	// Method returns the HTTP method (e.g., "GET").
	Method() string
	// Path returns the decoded request URL path.
	Path() string
	// Route returns the route pattern (e.g., "/~livereload.js") when available.
	// Requests served by the fallback handler have an empty route.
	Route() string
	// Param returns a path parameter by name ("" if not present).
	Param(name string) string
	// Query returns a query string parameter by key ("" if not present).
	Query(key string) string

	// Header sets a response header key/value.
	Header(key, value string)
	// Status stages the HTTP status code to be written; returns the Ctx to allow chaining.
	// Example: c.Status(http.StatusCreated).JSON(obj)
	Status(code int) Ctx
	// StatusCode returns the status sent to the client, or the staged status
	// if nothing was sent yet, or 0.
	StatusCode() int
	// BytesWritten returns the number of body bytes sent to the client.
	BytesWritten() int
	// JSON serializes v to JSON and writes it with an appropriate Content-Type.
	// If Status() was not set, it defaults to 200.
	JSON(v any) error
	// String writes a text/plain body with the provided status code.
	String(status int, body string) error
	// Send writes raw bytes with a specific status and content type.
	Send(status int, contentType string, b []byte) (int, error)
	// WroteHeader reports whether the header has already been written.
	WroteHeader() bool

	Redirect(status int, url string) error
	NotFound(message ...string) error
	InternalServerError(message ...string) error

	// Get retrieves a value from the request context by key, with optional default.
	Get(key any, def ...any) any
	// Set stores a value into a derived request context and replaces the underlying request.
	Set(key, value any) Ctx
}

// DefaultContext is the concrete implementation of Ctx.
// It wraps the http.ResponseWriter and *http.Request, exposes convenience helpers,
// and tracks route, status, and response state for each request.
type DefaultContext struct {
	w           http.ResponseWriter // current writer, may be a middleware wrapper
	sw          statusWriter        // innermost writer, records what reached the client
	r           *http.Request       // underlying request
	params      router.Params       // route parameters
	status      int                 // staged status code
	wroteHeader bool                // whether a helper wrote the header
	route       string              // route pattern
	jsonEscape  bool                // whether JSON encoder escapes HTML (default true)
}

// Reset prepares the context for a new request. Used internally by the framework.
// It swaps in the writer, request, params and route pattern, and clears any
// response state.
//
// Example:
//
//	// internal server code
//	dctx.Reset(w, r, params, "/~livereload.js")
func (c *DefaultContext) Reset(w http.ResponseWriter, r *http.Request, ps router.Params, route string) {
	c.sw.reset(w)
	c.w = &c.sw
	c.r = r
	c.params = ps
	c.status = 0
	c.wroteHeader = false
	c.route = route
	c.jsonEscape = true
}

// Finish drops references held by the context before it goes back to the pool.
func (c *DefaultContext) Finish() {
	c.sw.reset(nil)
	c.w = nil
	c.r = nil
	c.params = nil
}

func (c *DefaultContext) Request() *http.Request { return c.r }

func (c *DefaultContext) SetRequest(r *http.Request) { c.r = r }

func (c *DefaultContext) ResponseWriter() http.ResponseWriter { return c.w }

func (c *DefaultContext) SetResponseWriter(w http.ResponseWriter) { c.w = w }

func (c *DefaultContext) WroteHeader() bool { return c.wroteHeader || c.sw.code != 0 }

func (c *DefaultContext) Context() context.Context { return c.r.Context() }

func (c *DefaultContext) Set(key, value any) Ctx {
	ctx := context.WithValue(c.Context(), key, value)
	c.SetRequest(c.Request().WithContext(ctx))
	return c
}

func (c *DefaultContext) Get(key any, def ...any) any {
	v := c.Context().Value(key)
	if v != nil {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return nil
}

func (c *DefaultContext) Method() string { return c.r.Method }

func (c *DefaultContext) Path() string { return c.r.URL.Path }

func (c *DefaultContext) Route() string { return c.route }

func (c *DefaultContext) Param(name string) string { return c.params.ByName(name) }

func (c *DefaultContext) Query(key string) string { return c.r.URL.Query().Get(key) }

func (c *DefaultContext) Status(code int) Ctx {
	c.status = code
	return c
}

func (c *DefaultContext) StatusCode() int {
	if c.sw.code != 0 {
		return c.sw.code
	}
	if c.status != 0 {
		return c.status
	}
	if c.wroteHeader {
		return http.StatusOK
	}
	return 0
}

func (c *DefaultContext) BytesWritten() int { return c.sw.n }

func (c *DefaultContext) Header(key, value string) { c.w.Header().Set(key, value) }

var jsonBufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// SetJSONEscapeHTML controls whether JSON responses escape HTML characters.
func (c *DefaultContext) SetJSONEscapeHTML(escape bool) { c.jsonEscape = escape }

func (c *DefaultContext) writeHeader(code int) {
	if c.WroteHeader() {
		return
	}
	c.w.WriteHeader(code)
	c.wroteHeader = true
}

func (c *DefaultContext) JSON(v any) error {
	buf := jsonBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer jsonBufPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(c.jsonEscape)
	if err := enc.Encode(v); err != nil {
		c.writeHeader(http.StatusInternalServerError)
		return err
	}
	b := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})

	if !c.WroteHeader() {
		if c.status == 0 {
			c.status = http.StatusOK
		}
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Header("Content-Length", strconv.Itoa(len(b)))
		c.writeHeader(c.status)
	}
	_, err := c.w.Write(b)
	return err
}

func (c *DefaultContext) String(status int, body string) error {
	if !c.WroteHeader() {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Content-Length", strconv.Itoa(len(body)))
		c.writeHeader(status)
	}
	_, err := io.WriteString(c.w, body)
	return err
}

func (c *DefaultContext) Send(status int, contentType string, b []byte) (int, error) {
	if !c.WroteHeader() {
		if contentType != "" {
			c.Header("Content-Type", contentType)
		}
		c.Header("Content-Length", strconv.Itoa(len(b)))
		c.writeHeader(status)
	}
	return c.w.Write(b)
}

func (c *DefaultContext) Redirect(status int, url string) error {
	if !c.WroteHeader() {
		c.Header("Location", url)
		c.writeHeader(status)
	}
	return nil
}

func (c *DefaultContext) NotFound(message ...string) error {
	msg := "Not Found"
	if len(message) > 0 {
		msg = message[0]
	}
	return c.String(http.StatusNotFound, msg)
}

func (c *DefaultContext) InternalServerError(message ...string) error {
	msg := "Internal Server Error"
	if len(message) > 0 {
		msg = message[0]
	}
	return c.String(http.StatusInternalServerError, msg)
}

// statusWriter sits directly on top of the server's ResponseWriter and
// records the first status code and the body size.
type statusWriter struct {
	http.ResponseWriter
	code int
	n    int
}

func (w *statusWriter) reset(rw http.ResponseWriter) {
	w.ResponseWriter = rw
	w.code = 0
	w.n = 0
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 && code >= http.StatusOK {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		if w.code == 0 {
			w.code = http.StatusOK
		}
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the context.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("ctx: response writer does not support hijacking")
	}
	conn, rw, err := h.Hijack()
	if err == nil && w.code == 0 {
		w.code = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// Unwrap is used by http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
