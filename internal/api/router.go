// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/gamebot/internal/config"
)

// NewRouter builds the route tree.
func NewRouter(h *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Use(RequestMetrics())
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.With(RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).Post("/", h.StartRun)
		r.Get("/", h.ListRuns)
		r.Get("/latest", h.LatestRun)
		r.Get("/{id}", h.GetRun)
	})

	return r
}
