// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package metrics defines the Prometheus instrumentation for the
// recommendation service. All collectors are registered on the default
// registry via promauto and exposed through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Matrix build metrics.
var (
	// MatrixBuildDuration observes wall time of full matrix builds,
	// labelled by matrix kind (user, product).
	MatrixBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mallrec",
		Subsystem: "matrix",
		Name:      "build_duration_seconds",
		Help:      "Duration of similarity matrix builds.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind"})

	// MatrixPairsProcessed counts similarity pairs persisted by builds.
	MatrixPairsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mallrec",
		Subsystem: "matrix",
		Name:      "pairs_processed_total",
		Help:      "Similarity pairs computed and persisted.",
	}, []string{"kind"})
)

// Recommendation generation metrics.
var (
	// GenerationDuration observes wall time of per-user recommendation
	// generation.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mallrec",
		Subsystem: "generate",
		Name:      "duration_seconds",
		Help:      "Duration of per-user recommendation generation.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// CandidatesProduced counts candidates emitted by each source.
	CandidatesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mallrec",
		Subsystem: "generate",
		Name:      "candidates_total",
		Help:      "Candidates produced, labelled by source.",
	}, []string{"source"})

	// SourceErrors counts candidate source failures.
	SourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mallrec",
		Subsystem: "generate",
		Name:      "source_errors_total",
		Help:      "Candidate source failures, labelled by source.",
	}, []string{"source"})

	// ResultsExpired counts recommendation records removed by the expiry
	// sweep.
	ResultsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mallrec",
		Subsystem: "results",
		Name:      "expired_total",
		Help:      "Recommendation records removed because they expired.",
	})
)

// Catalog client metrics.
var (
	// CatalogRequests counts calls to the catalog service, labelled by
	// outcome (ok, error, open).
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mallrec",
		Subsystem: "catalog",
		Name:      "requests_total",
		Help:      "Catalog service calls, labelled by outcome.",
	}, []string{"outcome"})
)

// Cache metrics.
var (
	// CacheHits counts recommendation read cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mallrec",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Recommendation cache hits.",
	})

	// CacheMisses counts recommendation read cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mallrec",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Recommendation cache misses.",
	})
)

// HTTP metrics.
var (
	// HTTPRequestDuration observes API request latency by route and
	// status class.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mallrec",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
