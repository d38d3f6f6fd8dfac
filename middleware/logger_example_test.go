package middleware

import (
	"github.com/goflash/devserver"
)

// ExampleLogger demonstrates basic usage of the Logger middleware.
func ExampleLogger() {
	app := devserver.New()
	app.Use(Logger())
	app.Site("website", devserver.SiteConfig{})
}

// ExampleLogger_withExcludeFields demonstrates excluding specific fields from logging.
func ExampleLogger_withExcludeFields() {
	app := devserver.New()
	app.Use(Logger(WithExcludeFields("user_agent", "remote")))
	app.Site("website", devserver.SiteConfig{})
}

// ExampleLogger_withCustomAttributes demonstrates adding custom attributes via function.
func ExampleLogger_withCustomAttributes() {
	app := devserver.New()
	app.Use(Logger(WithCustomAttributes(func(c devserver.Ctx) []any {
		return []any{"host", c.Request().Host}
	})))
	app.Site("website", devserver.SiteConfig{})
}
