package app

import (
	"net/http"

	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"produceledger/internal/config"
)

// Harden wraps the API handler with security headers and per-IP rate limiting.
func Harden(cfg *config.Config, next http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.IsProduction(),
	})

	h := secureMiddleware.Handler(next)
	if cfg.RateLimit > 0 {
		h = httprate.Limit(cfg.RateLimit, cfg.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		)(h)
	}
	return h
}
