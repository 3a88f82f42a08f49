// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ActiveUserLister lists users with recent behavior.
type ActiveUserLister interface {
	ActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error)
}

// Generator regenerates one user's recommendation set.
type Generator interface {
	GeneratePersonalized(ctx context.Context, userID int64, limit int) error
}

// GenerateServiceConfig holds the scheduled generation settings.
type GenerateServiceConfig struct {
	// Interval is the time between generation sweeps.
	Interval time.Duration

	// ActiveWindow selects which users a sweep covers: those with behavior
	// in the window ending at sweep time.
	ActiveWindow time.Duration

	// Limit is the recommendation set size generated per user.
	Limit int
}

// GenerateService periodically regenerates recommendations for every
// recently active user. Per-user failures are logged and skipped so one bad
// user never blocks the sweep.
type GenerateService struct {
	users     ActiveUserLister
	generator Generator
	config    GenerateServiceConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGenerateService creates the scheduled generation job.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewGenerateService(users ActiveUserLister, generator Generator, cfg GenerateServiceConfig, logger zerolog.Logger) *GenerateService {
	return &GenerateService{
		users:     users,
		generator: generator,
		config:    cfg,
		logger:    logger.With().Str("service", "generate").Logger(),
		now:       time.Now,
	}
}

// Serve implements suture.Service.
func (s *GenerateService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("active_window", s.config.ActiveWindow).
		Msg("generate service starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("generate service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep regenerates recommendations for every active user.
func (s *GenerateService) sweep(ctx context.Context) {
	start := s.now()
	since := start.Add(-s.config.ActiveWindow)

	userIDs, err := s.users.ActiveUserIDs(ctx, since)
	if err != nil {
		s.logger.Warn().Err(err).Msg("listing active users failed, skipping sweep")
		return
	}
	if len(userIDs) == 0 {
		s.logger.Debug().Msg("no active users, nothing to generate")
		return
	}

	var failed int
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			s.logger.Info().Msg("generation sweep interrupted by shutdown")
			return
		}
		if err := s.generator.GeneratePersonalized(ctx, userID, s.config.Limit); err != nil {
			failed++
			s.logger.Warn().Err(err).Int64("user_id", userID).Msg("generation failed for user")
		}
	}

	s.logger.Info().
		Int("users", len(userIDs)).
		Int("failed", failed).
		Dur("duration", s.now().Sub(start)).
		Msg("generation sweep complete")
}

// String implements fmt.Stringer for suture's logs.
func (s *GenerateService) String() string { return "generate-service" }
