package main

import (
	"log/slog"
	"slices"
	"time"

	"github.com/peervc/peervc/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AuthMode == config.AuthModeNone {
		logger.Warn("startup security warning: AUTH_MODE=none lets any client join under any username",
			"warning_code", "auth_mode_none",
			"auth_mode", cfg.AuthMode,
			"mode", cfg.Mode,
		)
	}

	if slices.Contains(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	// A very large frame cap weakens the relay's oversized-message
	// hardening; inline data-URL media is the only reason to raise it.
	if cfg.MaxSignalingMessageBytes > 4<<20 { // 4MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (increases per-frame allocation risk)",
			"warning_code", "max_signaling_message_large",
			"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
			"mode", cfg.Mode,
		)
	}

	if cfg.MediaTTL > 24*time.Hour {
		logger.Warn("startup security warning: MEDIA_TTL exceeds a day (shared media is meant to be ephemeral)",
			"warning_code", "media_ttl_large",
			"media_ttl", cfg.MediaTTL,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.AuthMode == config.AuthModeNone {
		logger.Warn("startup security warning: running --mode=prod without authentication",
			"warning_code", "auth_mode_none_in_prod",
			"mode", cfg.Mode,
		)
	}
}
