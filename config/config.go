// Package config loads the dev server settings.
//
// Settings are layered: built-in defaults, then an optional TOML or YAML
// file, then overrides (usually command-line flags). The merged map is
// decoded with mapstructure and validated with validator struct tags.
package config

import (
	"time"
)

// Defaults.
const (
	DefaultAddr            = "127.0.0.1:3030"
	DefaultRoot            = "website"
	DefaultLiveReloadPath  = "/~livereload.js"
	DefaultShutdownTimeout = 5 * time.Second
)

// Config holds every setting of the dev server.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
	// Root is the directory served as the website.
	Root string `mapstructure:"root" validate:"required,dir"`
	// Extensions tried, in order, for bare URLs.
	Extensions []string `mapstructure:"extensions" validate:"dive,startswith=."`
	// NoCache sends headers that stop browsers from caching responses.
	NoCache bool `mapstructure:"no_cache"`
	// CORSOrigins may read the site from other origins; "*" allows any.
	CORSOrigins []string `mapstructure:"cors_origins" validate:"dive,required"`
	// Compress gzips text responses for clients that accept it.
	Compress bool `mapstructure:"compress"`
	// ShutdownTimeout bounds how long in-flight requests may run on exit.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`

	LiveReload LiveReload `mapstructure:"livereload"`
	Log        Log        `mapstructure:"log"`
	Tracing    Tracing    `mapstructure:"tracing"`
}

// LiveReload configures browser reloading on file changes.
type LiveReload struct {
	Enabled bool `mapstructure:"enabled"`
	// Path serves both the client script and the websocket.
	Path string `mapstructure:"path" validate:"required,startswith=/"`
	// Debounce is the quiet period that ends a burst of file events.
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
	// Ignore lists name globs that never trigger a reload.
	Ignore []string `mapstructure:"ignore"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text zap"`
}

// Tracing configures OpenTelemetry request tracing.
type Tracing struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name" validate:"required_if=Enabled true"`
}

// defaults returns the bottom layer of the settings map.
func defaults() map[string]any {
	return map[string]any{
		"addr":             DefaultAddr,
		"root":             DefaultRoot,
		"extensions":       []any{".html"},
		"no_cache":         true,
		"compress":         false,
		"shutdown_timeout": DefaultShutdownTimeout.String(),
		"livereload": map[string]any{
			"enabled":  true,
			"path":     DefaultLiveReloadPath,
			"debounce": "100ms",
		},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"tracing": map[string]any{
			"enabled":      false,
			"service_name": "devserver",
		},
	}
}
