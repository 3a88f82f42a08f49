// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package services provides suture service wrappers around the engine's
// scheduled work: matrix rebuilds, recommendation generation, and expiry
// cleanup, plus the HTTP server.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sjl1805/mall-recommend/internal/recommend"
)

// MatrixBuilder rebuilds the similarity matrices.
type MatrixBuilder interface {
	BuildUserMatrix(ctx context.Context) (int, error)
	BuildProductMatrix(ctx context.Context) (int, error)
}

// SimilarityPurger removes stale similarity pairs.
type SimilarityPurger interface {
	PurgeOlderThan(ctx context.Context, kind recommend.SimilarityKind, cutoff time.Time) (int64, error)
}

// MatrixServiceConfig holds the matrix rebuild schedule.
type MatrixServiceConfig struct {
	// Interval is the time between full rebuilds.
	Interval time.Duration

	// Retention bounds how long pairs survive without being refreshed.
	// Pairs older than now-Retention are purged after each rebuild.
	Retention time.Duration

	// BuildOnStartup runs a rebuild immediately instead of waiting for the
	// first tick.
	BuildOnStartup bool

	// BuildTimeout caps a single rebuild cycle.
	BuildTimeout time.Duration
}

// MatrixService periodically rebuilds both similarity matrices and purges
// pairs that no rebuild has refreshed.
type MatrixService struct {
	builder MatrixBuilder
	purger  SimilarityPurger
	config  MatrixServiceConfig
	logger  zerolog.Logger
	now     func() time.Time
}

// NewMatrixService creates the matrix rebuild job.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewMatrixService(builder MatrixBuilder, purger SimilarityPurger, cfg MatrixServiceConfig, logger zerolog.Logger) *MatrixService {
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 30 * time.Minute
	}
	return &MatrixService{
		builder: builder,
		purger:  purger,
		config:  cfg,
		logger:  logger.With().Str("service", "matrix").Logger(),
		now:     time.Now,
	}
}

// Serve implements suture.Service.
func (s *MatrixService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Bool("build_on_startup", s.config.BuildOnStartup).
		Msg("matrix service starting")

	if s.config.BuildOnStartup {
		if err := s.rebuild(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup matrix build failed, will retry on schedule")
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("matrix service shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := s.rebuild(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled matrix build failed")
			}
		}
	}
}

// rebuild runs both matrix builds in parallel, then purges stale pairs.
func (s *MatrixService) rebuild(ctx context.Context) error {
	buildCtx, cancel := context.WithTimeout(ctx, s.config.BuildTimeout)
	defer cancel()

	start := s.now()
	var userPairs, productPairs int

	g, gctx := errgroup.WithContext(buildCtx)
	g.Go(func() error {
		n, err := s.builder.BuildUserMatrix(gctx)
		userPairs = n
		return err
	})
	g.Go(func() error {
		n, err := s.builder.BuildProductMatrix(gctx)
		productPairs = n
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info().
		Int("user_pairs", userPairs).
		Int("product_pairs", productPairs).
		Dur("duration", s.now().Sub(start)).
		Msg("matrix rebuild complete")

	if s.config.Retention > 0 {
		cutoff := s.now().Add(-s.config.Retention)
		for _, kind := range []recommend.SimilarityKind{recommend.KindUser, recommend.KindProduct} {
			removed, err := s.purger.PurgeOlderThan(buildCtx, kind, cutoff)
			if err != nil {
				s.logger.Warn().Err(err).Stringer("kind", kind).Msg("similarity purge failed")
				continue
			}
			if removed > 0 {
				s.logger.Info().Stringer("kind", kind).Int64("removed", removed).Msg("purged stale similarity pairs")
			}
		}
	}
	return nil
}

// String implements fmt.Stringer for suture's logs.
func (s *MatrixService) String() string { return "matrix-service" }
