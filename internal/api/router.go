// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package api provides the HTTP surface of the recommendation service:
// recommendation reads, behavior ingest, regeneration triggers, health, and
// Prometheus metrics.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sjl1805/mall-recommend/internal/config"
	"github.com/sjl1805/mall-recommend/internal/metrics"
)

// NewRouter builds the service's HTTP handler tree.
func NewRouter(handler *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(requestMetrics)

		r.Route("/health", func(r chi.Router) {
			r.Get("/", handler.Health)
			r.Get("/live", handler.HealthLive)
		})

		r.Post("/behaviors", handler.IngestBehaviors)

		r.Route("/users/{userID}/recommendations", func(r chi.Router) {
			r.Get("/", handler.GetRecommendations)
			r.Get("/{productID}", handler.CheckRecommended)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/similarity/build", handler.BuildSimilarity)
			r.Post("/recommendations/clean", handler.CleanRecommendations)
			r.Post("/users/{userID}/recommendations/refresh", handler.Generate)
		})
	})

	r.Get("/healthz", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestMetrics records per-route request latency labelled by the matched
// route pattern and response status.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
