// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// fakeHTTPServer blocks in ListenAndServe until Shutdown is called.
type fakeHTTPServer struct {
	serveErr    error
	shutdownErr error
	stopped     chan struct{}
	shutdowns   int
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{stopped: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.stopped
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns++
	close(f.stopped)
	return f.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	t.Parallel()

	server := newFakeHTTPServer()
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if server.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", server.shutdowns)
	}
}

func TestHTTPServiceStartupFailure(t *testing.T) {
	t.Parallel()

	server := newFakeHTTPServer()
	server.serveErr = errors.New("address in use")
	svc := NewHTTPService(server, time.Second)

	err := svc.Serve(context.Background())
	if !errors.Is(err, server.serveErr) {
		t.Errorf("Serve returned %v, want wrapped startup error", err)
	}
}
