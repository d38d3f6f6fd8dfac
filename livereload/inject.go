package livereload

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/goflash/devserver"
	"golang.org/x/net/html"
)

// maxInjectSize bounds how much of an HTML page is buffered for injection.
// Larger pages are streamed unchanged.
const maxInjectSize = 8 << 20

var injectBufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ScriptTag returns the element that loads the client script from
// scriptPath.
func ScriptTag(scriptPath string) []byte {
	return []byte(`<script src="` + html.EscapeString(scriptPath) + `"></script>`)
}

// Inject returns middleware that adds the client script tag to HTML pages.
// Only uncompressed 200 text/html responses are changed: the tag goes right
// before the last </body> end tag, or at the end when there is none, and
// Content-Length is fixed up. Every other response passes through untouched.
//
// Example:
//
//	lr := livereload.NewServer(livereload.Config{})
//	a.HandleHTTP(http.MethodGet, livereload.DefaultPath, lr)
//	a.Site("website", app.SiteConfig{Middleware: []app.Middleware{livereload.Inject(livereload.DefaultPath)}})
func Inject(scriptPath string) devserver.Middleware {
	tag := ScriptTag(scriptPath)
	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			rw := c.ResponseWriter()
			iw := &injectWriter{rw: rw, tag: tag, head: c.Method() == http.MethodHead}
			c.SetResponseWriter(iw)
			done := false
			defer func() {
				if !done {
					// panicking: the held back page must not go out as a 200
					iw.abort(c.WroteHeader())
				}
				c.SetResponseWriter(rw)
			}()
			err := next(c)
			done = true
			if cerr := iw.Close(); err == nil {
				err = cerr
			}
			return err
		}
	}
}

// injectWriter holds back HTML responses until the handler is done.
type injectWriter struct {
	rw   http.ResponseWriter
	tag  []byte
	head bool

	buf         *bytes.Buffer
	status      int
	decided     bool
	inject      bool
	headWritten bool
}

func (w *injectWriter) Header() http.Header { return w.rw.Header() }

// decide looks at the status and headers the handler settled on.
func (w *injectWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true
	if w.status == 0 {
		w.status = http.StatusOK
	}
	h := w.rw.Header()
	if w.status != http.StatusOK || h.Get("Content-Encoding") != "" {
		return
	}
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	w.inject = err == nil && mt == "text/html"
}

func (w *injectWriter) WriteHeader(status int) {
	if w.decided {
		return
	}
	if status < http.StatusOK {
		// informational responses go out as is
		w.rw.WriteHeader(status)
		return
	}
	w.status = status
	w.decide()
	if !w.inject {
		w.writeHeader()
	}
}

func (w *injectWriter) Write(p []byte) (int, error) {
	w.decide()
	if !w.inject {
		w.writeHeader()
		return w.rw.Write(p)
	}
	if w.buf == nil {
		w.buf = injectBufPool.Get().(*bytes.Buffer)
		w.buf.Reset()
	}
	if w.buf.Len()+len(p) > maxInjectSize {
		w.giveUp()
		return w.rw.Write(p)
	}
	return w.buf.Write(p)
}

// Flush gives up on injection; a streamed page is passed through as is.
func (w *injectWriter) Flush() {
	w.decide()
	if w.inject {
		w.giveUp()
	}
	w.writeHeader()
	if f, ok := w.rw.(http.Flusher); ok {
		f.Flush()
	}
}

// Close writes the held back response. It is called once the handler
// returned.
func (w *injectWriter) Close() error {
	defer w.release()
	if !w.decided {
		// nothing written; leave the response to whoever comes next
		return nil
	}
	if !w.inject {
		w.writeHeader()
		return nil
	}
	h := w.rw.Header()
	if w.head {
		if n, err := strconv.Atoi(h.Get("Content-Length")); err == nil {
			h.Set("Content-Length", strconv.Itoa(n+len(w.tag)))
		}
		w.writeHeader()
		return nil
	}
	var body []byte
	if w.buf != nil {
		body = w.buf.Bytes()
	}
	out := injectScript(body, w.tag)
	h.Set("Content-Length", strconv.Itoa(len(out)))
	w.writeHeader()
	_, err := w.rw.Write(out)
	return err
}

// abort drops a held back page. When the caller already considers the
// header written, nobody else will answer, so a 500 goes out instead.
func (w *injectWriter) abort(claimed bool) {
	defer w.release()
	if w.headWritten || !w.inject {
		return
	}
	h := w.rw.Header()
	h.Del("Content-Length")
	if !claimed {
		return
	}
	w.headWritten = true
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.rw.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w.rw, http.StatusText(http.StatusInternalServerError))
}

func (w *injectWriter) giveUp() {
	w.inject = false
	w.writeHeader()
	if w.buf != nil && w.buf.Len() > 0 {
		_, _ = w.rw.Write(w.buf.Bytes())
	}
	w.release()
}

func (w *injectWriter) writeHeader() {
	if w.headWritten {
		return
	}
	w.headWritten = true
	w.rw.WriteHeader(w.status)
}

func (w *injectWriter) release() {
	if w.buf != nil {
		w.buf.Reset()
		injectBufPool.Put(w.buf)
		w.buf = nil
	}
}

var (
	_ http.ResponseWriter = (*injectWriter)(nil)
	_ http.Flusher        = (*injectWriter)(nil)
)

// injectScript returns doc with tag inserted before the last </body> end
// tag, or appended when doc has none. End tags inside comments, scripts and
// other raw text are not considered.
func injectScript(doc, tag []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset, at := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		n := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				at = offset
			}
		}
		offset += n
	}
	if at < 0 || at > len(doc) {
		at = len(doc)
	}
	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:at]...)
	out = append(out, tag...)
	return append(out, doc[at:]...)
}
