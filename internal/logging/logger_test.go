// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// captureGlobal swaps the global logger for one writing to a buffer and
// restores both the logger and the global level on cleanup.
func captureGlobal(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: level, Format: "json", Output: &buf})
	return &buf
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %q", err, line)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInit_JSONFields(t *testing.T) {
	buf := captureGlobal(t, "info")

	Info().Str("movie", "Heat").Msg("hello")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["movie"] != "Heat" {
		t.Errorf("movie = %v, want Heat", entry["movie"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field")
	}
}

func TestInit_LevelFilters(t *testing.T) {
	buf := captureGlobal(t, "warn")

	Debug().Msg("debug")
	Info().Msg("info")
	Warn().Msg("warn")
	Error().Msg("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if decodeLine(t, lines[0])["message"] != "warn" {
		t.Errorf("first line = %q, want warn", lines[0])
	}
}

func TestInit_ConsoleFormat(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Output: &buf})
	Info().Msg("readable")

	out := buf.String()
	if !strings.Contains(out, "readable") {
		t.Errorf("output %q missing message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console output should not be JSON: %q", out)
	}
}

func TestWithComponent(t *testing.T) {
	buf := captureGlobal(t, "info")

	logger := WithComponent("refresh")
	logger.Info().Msg("batch stored")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["component"] != "refresh" {
		t.Errorf("component = %v, want refresh", entry["component"])
	}
}

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	logger.Warn().Int("movies", 3).Msg("partial")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["movies"] != float64(3) {
		t.Errorf("movies = %v, want 3", entry["movies"])
	}
}
