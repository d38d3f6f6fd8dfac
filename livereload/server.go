// Package livereload pushes file changes to open browser tabs.
//
// A Server hands out a small client script and keeps a websocket open to
// every page that loaded it. A Watcher observes the site directory and turns
// filesystem events into Changes; the Inject middleware adds the script tag
// to served HTML pages.
package livereload

import (
	_ "embed"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goflash/devserver/ctx"
	"github.com/gorilla/websocket"
)

// DefaultPath is where the client script and the websocket are served.
const DefaultPath = "/~livereload.js"

// Script is the browser client. Placeholders are substituted per request.
//
//go:embed script.js
var Script string

// Config configures a Server.
type Config struct {
	// URL of the websocket endpoint. Defaults to the URL the script was
	// requested from, with the scheme switched to ws or wss.
	URL string
	// ManualScriptSetup stops the script from connecting on load; pages call
	// `new livereload.Client()` themselves.
	ManualScriptSetup bool
	// ReconnectInterval defines how fast the client reconnects after losing
	// the connection. Defaults to one second.
	ReconnectInterval time.Duration
	// CheckOrigin overrides the websocket origin check. The default accepts
	// only pages served from the same host.
	CheckOrigin func(r *http.Request) bool
	// Logger is used when the request carries none. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server responds to GET with the client script and to websocket upgrades
// with a stream of Messages.
type Server struct {
	config   Config
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new server using the specified config.
func NewServer(config Config) *Server {
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		config: config,
		hub:    NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
	}
}

// ServeHTTP responds to:
//
//	GET or HEAD with the client script.
//	a websocket upgrade by streaming change messages until the client leaves.
func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := ctx.LoggerFromContextOr(r.Context(), server.config.Logger)

	if websocket.IsWebSocketUpgrade(r) {
		conn, err := server.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader already wrote the error response
			l.Debug("livereload upgrade failed", "err", err)
			return
		}
		l.Debug("livereload client connected", "remote", r.RemoteAddr)
		server.serve(conn)
		l.Debug("livereload client gone", "remote", r.RemoteAddr)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	data := server.script(r)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte(data))
	}
}

func (server *Server) script(r *http.Request) string {
	url := server.config.URL
	if url == "" {
		scheme := "ws://"
		if r.TLS != nil {
			scheme = "wss://"
		}
		url = scheme + r.Host + r.URL.EscapedPath()
	}
	if trimmed := strings.TrimPrefix(url, "http://"); trimmed != url {
		url = "ws://" + trimmed
	} else if trimmed := strings.TrimPrefix(url, "https://"); trimmed != url {
		url = "wss://" + trimmed
	}

	autoSetup := "true"
	if server.config.ManualScriptSetup {
		autoSetup = "false"
	}

	// the placeholder sits inside a JS string literal
	quoted := strconv.Quote(url)
	return strings.NewReplacer(
		"{{.SocketURL}}", quoted[1:len(quoted)-1],
		"{{.AutoSetup}}", autoSetup,
		"{{.ReconnectInterval}}", strconv.FormatInt(server.config.ReconnectInterval.Milliseconds(), 10),
	).Replace(Script)
}

// Notify sends changes to every connected browser. Ignored changes are
// dropped; nothing is sent when none remain.
func (server *Server) Notify(changes Changes) {
	kept := make(Changes, 0, len(changes))
	for _, c := range changes {
		if c.Action != Ignore {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return
	}
	server.hub.Dispatch(Message{Type: "changes", Data: kept})
}

// Reload asks every connected browser to reload the page.
func (server *Server) Reload() {
	server.hub.Dispatch(Message{
		Type: "changes",
		Data: Changes{{Kind: KindModify, Path: "*", Action: Reload}},
	})
}

// Clients returns the number of connected browsers.
func (server *Server) Clients() int { return server.hub.Len() }

// Close disconnects every browser. The clients keep trying to reconnect.
func (server *Server) Close() { server.hub.Close() }
