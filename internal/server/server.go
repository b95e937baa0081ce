// Package server is the HTTP surface: routing, caller identification, and
// the error-kind to status-code mapping.
package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// New builds the service router.
func New() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(240 * time.Second))

	r.Get("/healthz", handleHealth)
	r.Get("/metrics", handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", handleAnalyze)
		r.Get("/trending", handleTrending)
		r.Get("/history", handleHistory)
	})

	return r
}

// callerID identifies the caller for rate limiting: first hop of
// X-Forwarded-For, else the remote address host. Best-effort; empty falls
// through to the limiter's shared sentinel bucket.
func callerID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
