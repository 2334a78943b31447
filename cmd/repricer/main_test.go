package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Sternrassler/shopify-repricer/pkg/repricer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })
	return &buf
}

func TestRun_MissingConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"SHOPIFY_API_KEY", "SHOPIFY_API_PASSWORD", "SHOPIFY_STORE_NAME", "SHOPIFY_API_VERSION"} {
		t.Setenv(key, "")
	}
	t.Cleanup(func() { log.Logger = zerolog.Nop() })

	// Must return normally: configuration errors end the run without exiting.
	run(context.Background())
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := newRedisClient(context.Background(), "http://not-redis")
	if err == nil || !strings.Contains(err.Error(), "parse redis url") {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestLogRunError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		level   string
		message string
	}{
		{
			name:    "connection",
			err:     &repricer.ConnectionError{Err: errors.New("bad store")},
			level:   "error",
			message: "Could not connect to Shopify",
		},
		{
			name:    "fetch",
			err:     &repricer.FetchError{Page: 3, Err: errors.New("boom")},
			level:   "error",
			message: "Could not fetch catalog",
		},
		{
			name:    "cancelled",
			err:     fmt.Errorf("apply: %w", context.Canceled),
			level:   "warn",
			message: "Run cancelled",
		},
		{
			name:    "other",
			err:     errors.New("unexpected"),
			level:   "error",
			message: "Run failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			logRunError(tt.err)

			out := buf.String()
			if !strings.Contains(out, `"level":"`+tt.level+`"`) {
				t.Errorf("log level mismatch, want %s: %s", tt.level, out)
			}
			if !strings.Contains(out, tt.message) {
				t.Errorf("log message mismatch, want %q: %s", tt.message, out)
			}
		})
	}
}
