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

// ExpiredCleaner removes expired recommendation records.
type ExpiredCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// CleanupService periodically sweeps expired recommendation records.
type CleanupService struct {
	cleaner  ExpiredCleaner
	interval time.Duration
	logger   zerolog.Logger
}

// NewCleanupService creates the expiry sweep job.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCleanupService(cleaner ExpiredCleaner, interval time.Duration, logger zerolog.Logger) *CleanupService {
	return &CleanupService{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger.With().Str("service", "cleanup").Logger(),
	}
}

// Serve implements suture.Service.
func (s *CleanupService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("cleanup service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cleanup service shutting down")
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.cleaner.CleanExpired(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("expiry sweep failed")
				continue
			}
			if removed > 0 {
				s.logger.Info().Int64("removed", removed).Msg("expired recommendations removed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *CleanupService) String() string { return "cleanup-service" }
