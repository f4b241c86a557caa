package middleware

import (
	"net/http"
)

// HeaderConfig holds the security headers set on every response.
type HeaderConfig struct {
	// XFrameOptions sets X-Frame-Options (DENY, SAMEORIGIN). Documentation
	// pages embed previews in iframes, so DENY breaks them.
	XFrameOptions string
	// XContentTypeNoSniff enables X-Content-Type-Options: nosniff
	XContentTypeNoSniff bool
	// ReferrerPolicy sets Referrer-Policy
	ReferrerPolicy string
	// CacheControl sets Cache-Control. Assets change on every rebuild.
	CacheControl string
}

// DefaultHeaderConfig returns the headers used by the development server.
func DefaultHeaderConfig() *HeaderConfig {
	return &HeaderConfig{
		XFrameOptions:       "SAMEORIGIN",
		XContentTypeNoSniff: true,
		ReferrerPolicy:      "same-origin",
		CacheControl:        "no-cache",
	}
}

// SecurityHeaders sets the headers in cfg before calling the next handler.
// Headers the handler sets itself take precedence.
func SecurityHeaders(cfg *HeaderConfig) Middleware {
	if cfg == nil {
		cfg = DefaultHeaderConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if cfg.XFrameOptions != "" {
				h.Set("X-Frame-Options", cfg.XFrameOptions)
			}
			if cfg.XContentTypeNoSniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.CacheControl != "" {
				h.Set("Cache-Control", cfg.CacheControl)
			}
			next.ServeHTTP(w, r)
		})
	}
}
