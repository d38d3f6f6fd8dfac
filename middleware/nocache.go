package middleware

import (
	"time"

	"github.com/goflash/devserver"
)

var epoch = time.Unix(0, 0).UTC().Format(time.RFC1123)

// conditional request headers that would let the file server answer 304
var conditionalHeaders = []string{
	"ETag",
	"If-Modified-Since",
	"If-Match",
	"If-None-Match",
	"If-Range",
	"If-Unmodified-Since",
}

// NoCache returns middleware that makes the browser re-request every file,
// so an edited page is picked up on the next reload. Conditional request
// headers are dropped and the response carries headers that disable caching
// in browsers and reverse proxies.
func NoCache() devserver.Middleware {
	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			r := c.Request()
			for _, h := range conditionalHeaders {
				if r.Header.Get(h) != "" {
					r.Header.Del(h)
				}
			}
			c.Header("Expires", epoch)
			c.Header("Cache-Control", "no-cache, private, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("X-Accel-Expires", "0")
			return next(c)
		}
	}
}
