// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

// Package catalog implements the HTTP client for the mall's product catalog
// service. Every call goes through a client-side rate limiter and a circuit
// breaker so a slow or failing catalog degrades recommendations instead of
// stalling them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/sjl1805/mall-recommend/internal/config"
	"github.com/sjl1805/mall-recommend/internal/logging"
	"github.com/sjl1805/mall-recommend/internal/metrics"
	"github.com/sjl1805/mall-recommend/internal/recommend"
)

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

var _ recommend.Catalog = (*Client)(nil)

// product is the catalog service's wire representation of a product.
type product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// productList is the wire shape of list endpoints.
type productList struct {
	Products []product `json:"products"`
}

// Client talks to the catalog service's REST API.
//
// Thread safety: safe for concurrent use. The limiter and breaker are shared
// across calls; each request builds its own http.Request.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[any]
	logger  zerolog.Logger
}

// NewClient creates a catalog client from configuration. The breaker opens
// after the configured number of consecutive failures and stays open for the
// configured timeout before probing again.
func NewClient(cfg *config.CatalogConfig) *Client {
	logger := logging.With().Str("component", "catalog-client").Logger()
	failures := cfg.BreakerFailures

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},

		// A missing product is an answer, not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, recommend.ErrNotFound)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit breaker state transition")
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cb:      cb,
		logger:  logger,
	}
}

// stateToString converts circuit breaker state to string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// readBodyForError reads at most maxErrorBodySize bytes of a response body
// for inclusion in error messages.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// call performs a rate-limited GET through the circuit breaker, decoding the
// JSON response into result. HTTP 404 maps to recommend.ErrNotFound.
func (c *Client) call(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("catalog rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	_, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("building catalog request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, recommend.ErrNotFound
		case resp.StatusCode != http.StatusOK:
			body := readBodyForError(resp.Body)
			return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("decoding catalog response: %w", err)
		}
		return nil, nil
	})

	switch {
	case err == nil:
		metrics.CatalogRequests.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, recommend.ErrNotFound):
		metrics.CatalogRequests.WithLabelValues("ok").Inc()
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CatalogRequests.WithLabelValues("open").Inc()
		c.logger.Warn().Err(err).Str("path", path).Msg("catalog request rejected by circuit breaker")
		return err
	default:
		metrics.CatalogRequests.WithLabelValues("error").Inc()
		return err
	}
}

// fetchProduct retrieves a single product by id.
func (c *Client) fetchProduct(ctx context.Context, productID int64) (*product, error) {
	var p product
	path := "/api/v1/products/" + strconv.FormatInt(productID, 10)
	if err := c.call(ctx, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Exists reports whether the product id is known to the catalog.
func (c *Client) Exists(ctx context.Context, productID int64) (bool, error) {
	_, err := c.fetchProduct(ctx, productID)
	if errors.Is(err, recommend.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Status returns the product's shelf status, or recommend.ErrNotFound when
// the catalog does not know the product.
func (c *Client) Status(ctx context.Context, productID int64) (recommend.ProductStatus, error) {
	p, err := c.fetchProduct(ctx, productID)
	if err != nil {
		return recommend.StatusOffShelf, err
	}
	return recommend.ProductStatus(p.Status), nil
}

// CreatedAt returns the product's creation time, or recommend.ErrNotFound
// when the catalog does not know the product.
func (c *Client) CreatedAt(ctx context.Context, productID int64) (time.Time, error) {
	p, err := c.fetchProduct(ctx, productID)
	if err != nil {
		return time.Time{}, err
	}
	return p.CreatedAt, nil
}

// RecentlyCreated returns products created since the given time, newest
// first, at most limit entries.
func (c *Client) RecentlyCreated(ctx context.Context, since time.Time, limit int) ([]recommend.CatalogProduct, error) {
	params := url.Values{}
	params.Set("since", since.UTC().Format(time.RFC3339))
	params.Set("limit", strconv.Itoa(limit))

	var list productList
	if err := c.call(ctx, "/api/v1/products/recent", params, &list); err != nil {
		return nil, err
	}

	out := make([]recommend.CatalogProduct, 0, len(list.Products))
	for _, p := range list.Products {
		out = append(out, recommend.CatalogProduct{
			ID:        p.ID,
			Status:    recommend.ProductStatus(p.Status),
			CreatedAt: p.CreatedAt,
		})
	}
	return out, nil
}
