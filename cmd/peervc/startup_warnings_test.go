package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/peervc/peervc/internal/config"
)

func captureWarnings(cfg config.Config) string {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logStartupSecurityWarnings(logger, cfg)
	return buf.String()
}

func TestWarnsOnDisabledAuth(t *testing.T) {
	out := captureWarnings(config.Config{AuthMode: config.AuthModeNone})
	if !strings.Contains(out, "auth_mode_none") {
		t.Fatalf("missing auth warning in:\n%s", out)
	}
}

func TestWarnsOnWildcardOrigins(t *testing.T) {
	out := captureWarnings(config.Config{
		AuthMode:       config.AuthModeJWT,
		AllowedOrigins: []string{"*"},
	})
	if !strings.Contains(out, "allowed_origins_wildcard") {
		t.Fatalf("missing origin warning in:\n%s", out)
	}
}

func TestWarnsOnLargeLimits(t *testing.T) {
	out := captureWarnings(config.Config{
		AuthMode:                 config.AuthModeJWT,
		MaxSignalingMessageBytes: 32 << 20,
		MediaTTL:                 48 * time.Hour,
	})
	if !strings.Contains(out, "max_signaling_message_large") {
		t.Fatalf("missing frame size warning in:\n%s", out)
	}
	if !strings.Contains(out, "media_ttl_large") {
		t.Fatalf("missing media ttl warning in:\n%s", out)
	}
}

func TestQuietWhenHardened(t *testing.T) {
	out := captureWarnings(config.Config{
		AuthMode:                 config.AuthModeJWT,
		AllowedOrigins:           []string{"https://app.example.com"},
		MaxSignalingMessageBytes: 512 * 1024,
		MediaTTL:                 time.Hour,
		Mode:                     config.ModeProd,
	})
	if strings.Contains(out, "startup security warning") {
		t.Fatalf("unexpected warnings:\n%s", out)
	}
}
