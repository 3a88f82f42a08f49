// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/sjl1805/mall-recommend/internal/logging"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Count      int       `json:"count,omitempty"`
}

// Error codes for API responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ResponseWriter writes envelope responses for one request.
type ResponseWriter struct {
	w         http.ResponseWriter
	startTime time.Time
}

// NewResponseWriter creates a response writer for the request.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{w: w, startTime: time.Now()}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data any) {
	rw.write(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta(0)})
}

// SuccessWithCount writes a 200 response with data and an item count.
func (rw *ResponseWriter) SuccessWithCount(data any, count int) {
	rw.write(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta(count)})
}

// Accepted writes a 202 response for work finished asynchronously.
func (rw *ResponseWriter) Accepted(data any) {
	rw.write(http.StatusAccepted, APIResponse{Success: true, Data: data, Meta: rw.meta(0)})
}

// Created writes a 201 response.
func (rw *ResponseWriter) Created(data any) {
	rw.write(http.StatusCreated, APIResponse{Success: true, Data: data, Meta: rw.meta(0)})
}

// Error writes an error response with the given status code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.write(statusCode, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    rw.meta(0),
	})
}

// BadRequest writes a 400 error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound writes a 404 error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError writes a 500 error.
func (rw *ResponseWriter) InternalError(message string) {
	rw.Error(http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable writes a 503 error.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

func (rw *ResponseWriter) meta(count int) *APIMeta {
	return &APIMeta{
		Timestamp:  time.Now(),
		DurationMs: time.Since(rw.startTime).Milliseconds(),
		Count:      count,
	}
}

func (rw *ResponseWriter) write(statusCode int, resp APIResponse) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}
