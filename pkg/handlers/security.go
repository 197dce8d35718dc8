// This file defines middleware used to attach common security headers to every
// HTTP response.
package handlers

import "net/http"

// SecurityHeaders wraps another http.Handler and sets several defensive HTTP
// headers before delegating to it. Playlists are plain downloads and the index
// page loads no scripts, so the Content Security Policy forbids everything
// except same-origin links.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
