// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("filtered")
	Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Errorf("info message should have been filtered, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn message should have been kept, got %q", out)
	}
}

func TestSlogHandlerWritesToZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	slogger := slog.New(NewSlogHandler(logger))

	slogger.Info("service started", "port", int64(8080))

	out := buf.String()
	if !strings.Contains(out, `"message":"service started"`) {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, `"port":8080`) {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	slogger := slog.New(NewSlogHandler(logger)).WithGroup("job")

	slogger.Warn("slow run", "duration_ms", int64(1500))

	out := buf.String()
	if !strings.Contains(out, `"job.duration_ms":1500`) {
		t.Errorf("expected group-prefixed attribute, got %q", out)
	}
}
