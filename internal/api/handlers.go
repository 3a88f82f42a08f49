// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/sjl1805/mall-recommend/internal/logging"
	"github.com/sjl1805/mall-recommend/internal/recommend"
)

// maxLimit caps the recommendation list size a client may request.
const maxLimit = 100

// RecommendService is the slice of the aggregator the handlers use.
type RecommendService interface {
	GeneratePersonalized(ctx context.Context, userID int64, limit int) error
	GetValidRecommendations(ctx context.Context, userID int64, limit int) ([]recommend.RecommendationResult, error)
	GetRecommendationsByAlgorithm(ctx context.Context, userID int64, algorithm recommend.AlgorithmType, limit int) ([]recommend.RecommendationResult, error)
	CheckRecommended(ctx context.Context, userID, productID int64) (recommend.RecommendationResult, error)
}

// BehaviorWriter records incoming behavior events.
type BehaviorWriter interface {
	InsertBehaviors(ctx context.Context, events []recommend.BehaviorEvent) error
}

// MatrixRebuilder runs full similarity matrix builds for the admin trigger.
type MatrixRebuilder interface {
	BuildUserMatrix(ctx context.Context) (int, error)
	BuildProductMatrix(ctx context.Context) (int, error)
}

// ExpiryCleaner removes expired recommendation rows for the admin trigger.
type ExpiryCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// Pinger reports storage health for the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers for the recommendation API.
type Handler struct {
	svc          RecommendService
	behaviors    BehaviorWriter
	builder      MatrixRebuilder
	cleaner      ExpiryCleaner
	db           Pinger
	defaultLimit int
	logger       zerolog.Logger
}

// NewHandler creates the API handler set.
func NewHandler(svc RecommendService, behaviors BehaviorWriter, builder MatrixRebuilder, cleaner ExpiryCleaner, db Pinger, defaultLimit int) *Handler {
	return &Handler{
		svc:          svc,
		behaviors:    behaviors,
		builder:      builder,
		cleaner:      cleaner,
		db:           db,
		defaultLimit: defaultLimit,
		logger:       logging.With().Str("component", "api").Logger(),
	}
}

// recommendationItem is the wire shape of one recommendation.
type recommendationItem struct {
	ProductID  int64     `json:"product_id"`
	Score      float64   `json:"score"`
	Algorithm  string    `json:"algorithm"`
	ExpireTime time.Time `json:"expire_time"`
}

func toItems(results []recommend.RecommendationResult) []recommendationItem {
	items := make([]recommendationItem, 0, len(results))
	for _, r := range results {
		items = append(items, recommendationItem{
			ProductID:  r.ProductID,
			Score:      r.Score,
			Algorithm:  r.Algorithm.String(),
			ExpireTime: r.ExpireTime,
		})
	}
	return items
}

// pathID parses a positive int64 path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// limitParam parses the optional limit query parameter.
func (h *Handler) limitParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxLimit {
		return 0, false
	}
	return limit, true
}

// GetRecommendations serves GET /api/v1/users/{userID}/recommendations.
// An optional algorithm query parameter restricts results to one strategy.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("user id must be a positive integer")
		return
	}
	limit, ok := h.limitParam(r)
	if !ok {
		rw.BadRequest("limit must be between 1 and 100")
		return
	}

	var (
		results []recommend.RecommendationResult
		err     error
	)
	if name := r.URL.Query().Get("algorithm"); name != "" {
		algorithm, parseErr := recommend.ParseAlgorithm(name)
		if parseErr != nil {
			rw.BadRequest("unknown algorithm: " + name)
			return
		}
		results, err = h.svc.GetRecommendationsByAlgorithm(r.Context(), userID, algorithm, limit)
	} else {
		results, err = h.svc.GetValidRecommendations(r.Context(), userID, limit)
	}

	switch {
	case errors.Is(err, recommend.ErrInvalidUserID), errors.Is(err, recommend.ErrInvalidLimit):
		rw.BadRequest(err.Error())
	case err != nil:
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("recommendation read failed")
		rw.InternalError("failed to read recommendations")
	default:
		rw.SuccessWithCount(toItems(results), len(results))
	}
}

// CheckRecommended serves GET /api/v1/users/{userID}/recommendations/{productID}.
// A missing row is an answer, not an error: recommended is false.
func (h *Handler) CheckRecommended(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("user id must be a positive integer")
		return
	}
	productID, ok := pathID(r, "productID")
	if !ok {
		rw.BadRequest("product id must be a positive integer")
		return
	}

	result, err := h.svc.CheckRecommended(r.Context(), userID, productID)
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		rw.Success(map[string]any{"recommended": false})
	case err != nil:
		h.logger.Error().Err(err).Int64("user_id", userID).Int64("product_id", productID).Msg("recommendation check failed")
		rw.InternalError("failed to check recommendation")
	default:
		rw.Success(map[string]any{
			"recommended": true,
			"score":       result.Score,
			"algorithm":   result.Algorithm.String(),
		})
	}
}

// Generate serves POST /api/v1/admin/users/{userID}/recommendations/refresh.
// It runs a full personalized generation for the user before responding.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("user id must be a positive integer")
		return
	}

	if err := h.svc.GeneratePersonalized(r.Context(), userID, h.defaultLimit); err != nil {
		if errors.Is(err, recommend.ErrInvalidUserID) || errors.Is(err, recommend.ErrInvalidLimit) {
			rw.BadRequest(err.Error())
			return
		}
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("recommendation generation failed")
		rw.InternalError("failed to generate recommendations")
		return
	}
	rw.Success(map[string]any{"user_id": userID, "status": "regenerated"})
}

// BuildSimilarity serves POST /api/v1/admin/similarity/build. Both matrices
// are rebuilt synchronously; the scheduled job remains the usual path and
// this trigger exists for operational refreshes after bulk imports.
func (h *Handler) BuildSimilarity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	userPairs, err := h.builder.BuildUserMatrix(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("user matrix build failed")
		rw.InternalError("failed to build user similarity matrix")
		return
	}
	productPairs, err := h.builder.BuildProductMatrix(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("product matrix build failed")
		rw.InternalError("failed to build product similarity matrix")
		return
	}
	rw.Success(map[string]any{
		"user_pairs":    userPairs,
		"product_pairs": productPairs,
	})
}

// CleanRecommendations serves POST /api/v1/admin/recommendations/clean,
// removing expired recommendation rows immediately.
func (h *Handler) CleanRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	removed, err := h.cleaner.CleanExpired(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("expiry cleanup failed")
		rw.InternalError("failed to clean expired recommendations")
		return
	}
	rw.Success(map[string]any{"removed": removed})
}

// behaviorRequest is the wire shape of one incoming behavior event.
type behaviorRequest struct {
	UserID     int64     `json:"user_id"`
	ProductID  int64     `json:"product_id"`
	CategoryID int64     `json:"category_id"`
	Type       string    `json:"type"`
	Quantity   float64   `json:"quantity"`
	Timestamp  time.Time `json:"timestamp"`
}

// ingestRequest is the body of POST /api/v1/behaviors.
type ingestRequest struct {
	Events []behaviorRequest `json:"events"`
}

// IngestBehaviors serves POST /api/v1/behaviors, recording a batch of
// behavior events.
func (h *Handler) IngestBehaviors(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return
	}
	if len(req.Events) == 0 {
		rw.BadRequest("events must not be empty")
		return
	}

	events := make([]recommend.BehaviorEvent, 0, len(req.Events))
	for i, ev := range req.Events {
		if ev.UserID <= 0 || ev.ProductID <= 0 {
			rw.BadRequest("event " + strconv.Itoa(i) + ": user_id and product_id must be positive")
			return
		}
		behaviorType, err := recommend.ParseBehaviorType(ev.Type)
		if err != nil {
			rw.BadRequest("event " + strconv.Itoa(i) + ": unknown behavior type " + ev.Type)
			return
		}
		events = append(events, recommend.BehaviorEvent{
			UserID:     ev.UserID,
			ProductID:  ev.ProductID,
			CategoryID: ev.CategoryID,
			Type:       behaviorType,
			Quantity:   ev.Quantity,
			Timestamp:  ev.Timestamp,
		})
	}

	if err := h.behaviors.InsertBehaviors(r.Context(), events); err != nil {
		h.logger.Error().Err(err).Int("events", len(events)).Msg("behavior ingest failed")
		rw.InternalError("failed to record behaviors")
		return
	}
	rw.Created(map[string]any{"inserted": len(events)})
}

// HealthLive serves GET /api/v1/health/live. It answers as long as the
// process is running.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	NewResponseWriter(w).Success(map[string]string{"status": "ok"})
}

// Health serves GET /api/v1/health. It verifies storage connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		rw.ServiceUnavailable("database unreachable")
		return
	}
	rw.Success(map[string]string{"status": "ok"})
}
