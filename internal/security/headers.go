// Package security provides hardening middleware for the public API.
package security

import (
	"net/http"
	"strconv"
)

const defaultHSTSMaxAge = 31536000

// Headers sets baseline security headers on every response. HSTS is applied
// only on TLS connections so plain-HTTP health probes stay unaffected.
type Headers struct {
	Enable     bool
	EnableHSTS bool
	HSTSMaxAge int
}

// Middleware implements the chi middleware contract.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "no-referrer")
		hdr.Set("Permissions-Policy", "geolocation=(), microphone=()")
		if h.EnableHSTS && r.TLS != nil {
			age := h.HSTSMaxAge
			if age <= 0 {
				age = defaultHSTSMaxAge
			}
			hdr.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(age))
		}
		next.ServeHTTP(w, r)
	})
}
