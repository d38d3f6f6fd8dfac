// Command devserver serves a static website directory for local
// development, with clean URLs and live reload.
//
// Usage:
//
//	devserver [-config devserver.toml] [-addr 127.0.0.1:3030] [-root website]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/goflash/devserver/config"
	"github.com/goflash/devserver/logging"
	"github.com/goflash/devserver/server"
	"github.com/goflash/devserver/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("devserver:"), err)
		os.Exit(1)
	}
}

// flagKeys maps command-line flags to settings keys.
var flagKeys = map[string]string{
	"addr":       "addr",
	"root":       "root",
	"livereload": "livereload.enabled",
	"log-level":  "log.level",
	"log-format": "log.format",
	"trace":      "tracing.enabled",
	"cors":       "cors_origins",
	"gzip":       "compress",
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "TOML or YAML settings file")
	fs.String("addr", config.DefaultAddr, "address to listen on")
	fs.String("root", config.DefaultRoot, "website directory")
	fs.Bool("livereload", true, "reload browsers when files change")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "text", "text, json or zap")
	fs.Bool("trace", false, "print OpenTelemetry spans to stdout")
	fs.String("cors", "", "comma-separated origins allowed to read the site")
	fs.Bool("gzip", false, "compress text responses")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// only flags given explicitly override the file
	overrides := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		return err
	}

	logger, syncLog, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = syncLog() }()

	shutdown, err := telemetry.Setup(ctx, cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	banner(stderr, cfg)
	return srv.Run(ctx)
}

func banner(w io.Writer, cfg config.Config) {
	bold := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	fmt.Fprintf(w, "\n  %s serving %s\n", bold("devserver"), cfg.Root)
	fmt.Fprintf(w, "  %s http://%s/\n", dim("local:"), cfg.Addr)
	if cfg.LiveReload.Enabled {
		fmt.Fprintf(w, "  %s %s\n", dim("reload:"), color.GreenString("on"))
	} else {
		fmt.Fprintf(w, "  %s %s\n", dim("reload:"), color.YellowString("off"))
	}
	fmt.Fprintln(w)
}
