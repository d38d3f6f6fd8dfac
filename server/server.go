// Package server assembles the dev server: the site handler, its
// middleware, live reload and the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/goflash/devserver"
	"github.com/goflash/devserver/config"
	"github.com/goflash/devserver/livereload"
	"github.com/goflash/devserver/middleware"
	"github.com/goflash/devserver/security"
	"golang.org/x/sync/errgroup"
)

// Server serves one website directory.
type Server struct {
	cfg    config.Config
	logger *slog.Logger
	app    devserver.App

	// nil when live reload is disabled
	lr      *livereload.Server
	watcher *livereload.Watcher
}

// New builds a Server from cfg. Requests are sanitized before routing, the
// live-reload endpoint is routed at cfg.LiveReload.Path and everything else
// falls through to the site under cfg.Root.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger}

	a := devserver.New()
	a.SetLogger(logger)
	a.Pre(security.Handler)
	a.Use(
		middleware.Recover(middleware.RecoverConfig{EnableStack: true}),
		middleware.RequestID(),
		middleware.Logger(),
	)
	if cfg.Tracing.Enabled {
		a.Use(middleware.OTelWithConfig(middleware.OTelConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			RecordDuration: true,
		}))
	}

	var site []devserver.Middleware
	if len(cfg.CORSOrigins) > 0 {
		site = append(site, middleware.CORS(middleware.CORSConfig{Origins: cfg.CORSOrigins, MaxAge: 600}))
	}
	if cfg.NoCache {
		site = append(site, middleware.NoCache())
	}
	if cfg.Compress {
		// outside Inject, so the page is compressed with its script tag
		site = append(site, middleware.Gzip())
	}

	if cfg.LiveReload.Enabled {
		s.lr = livereload.NewServer(livereload.Config{Logger: logger})
		a.HandleHTTP(http.MethodGet, cfg.LiveReload.Path, s.lr)
		a.HandleHTTP(http.MethodHead, cfg.LiveReload.Path, s.lr)
		site = append(site, livereload.Inject(cfg.LiveReload.Path))

		w, err := livereload.NewWatcher(livereload.WatcherConfig{
			Root:     cfg.Root,
			Ignore:   cfg.LiveReload.Ignore,
			Debounce: cfg.LiveReload.Debounce,
			OnChange: s.changed,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}

	a.Site(cfg.Root, devserver.SiteConfig{
		Extensions: cfg.Extensions,
		Middleware: site,
	})
	s.app = a
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.app }

func (s *Server) changed(changes livereload.Changes) {
	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
	}
	s.logger.Info("files changed", "paths", paths, "reload", changes.Reloads(), "clients", s.lr.Clients())
	s.lr.Notify(changes)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully: live-reload clients are disconnected and in-flight requests
// get ShutdownTimeout to finish. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.app,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.watcher != nil {
		g.Go(func() error {
			if err := s.watcher.Run(gctx); err != nil {
				s.logger.Error("file watcher stopped", "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			s.logger.Info("shutting down")
		}
		if s.lr != nil {
			s.lr.Close()
		}
		sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	s.logger.Info("serving", "root", s.cfg.Root, "url", "http://"+ln.Addr().String()+"/",
		"livereload", s.cfg.LiveReload.Enabled)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
