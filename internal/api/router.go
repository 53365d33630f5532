// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the chi router for handler. A nil mw uses the default
// middleware configuration.
func NewRouter(handler *Handler, mw *Middleware) http.Handler {
	if mw == nil {
		mw = NewMiddleware(nil)
	}

	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // must be global to answer OPTIONS preflight

	r.Route("/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics)

		r.Get("/recommendations/{profileID}", handler.Recommendations)
		r.Post("/interactions", handler.RecordInteraction)
		r.Delete("/interactions/{profileID}/{movieID}", handler.DeleteInteraction)
	})

	return r
}
