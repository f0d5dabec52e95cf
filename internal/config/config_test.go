package config

import (
	"log/slog"
	"testing"
	"time"
)

func lookupMap(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(lookupMap(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Mode != ModeDev || cfg.LogFormat != LogFormatText || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("dev defaults = %+v", cfg)
	}
	if cfg.AuthMode != AuthModeNone {
		t.Fatalf("AuthMode = %q", cfg.AuthMode)
	}
	if cfg.MaxSignalingMessageBytes != DefaultMaxSignalingMessageBytes {
		t.Fatalf("MaxSignalingMessageBytes = %d", cfg.MaxSignalingMessageBytes)
	}
}

func TestProdDefaultsJSONInfo(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{"PEERVC_MODE": "prod"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd || cfg.LogFormat != LogFormatJSON || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("prod defaults: mode=%q format=%q level=%v", cfg.Mode, cfg.LogFormat, cfg.LogLevel)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	env := map[string]string{
		"PEERVC_LISTEN_ADDR": "127.0.0.1:9999",
		"PEERVC_MODE":        "prod",
	}
	cfg, err := load(lookupMap(env), []string{"-listen-addr", "0.0.0.0:7000", "-mode", "dev"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:7000" || cfg.Mode != ModeDev {
		t.Fatalf("flag override failed: %+v", cfg)
	}
}

func TestJWTModeRequiresSecret(t *testing.T) {
	if _, err := load(lookupMap(map[string]string{"AUTH_MODE": "jwt"}), nil); err == nil {
		t.Fatalf("AUTH_MODE=jwt without JWT_SECRET accepted")
	}

	cfg, err := load(lookupMap(map[string]string{
		"AUTH_MODE":  "jwt",
		"JWT_SECRET": "topsecret",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthMode != AuthModeJWT || cfg.JWTSecret != "topsecret" {
		t.Fatalf("jwt config = %+v", cfg)
	}
}

func TestPingMustBeShorterThanIdle(t *testing.T) {
	env := map[string]string{
		"SIGNALING_WS_IDLE_TIMEOUT":  "10s",
		"SIGNALING_WS_PING_INTERVAL": "15s",
	}
	if _, err := load(lookupMap(env), nil); err == nil {
		t.Fatalf("ping >= idle accepted")
	}
}

func TestDurationsAndSizes(t *testing.T) {
	env := map[string]string{
		"SIGNALING_JOIN_TIMEOUT":      "3s",
		"MAX_SIGNALING_MESSAGE_BYTES": "1048576",
		"MEDIA_TTL":                   "30m",
		"AUTH_TOKEN_TTL":              "1h",
	}
	cfg, err := load(lookupMap(env), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JoinTimeout != 3*time.Second || cfg.MaxSignalingMessageBytes != 1<<20 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MediaTTL != 30*time.Minute || cfg.AuthTokenTTL != time.Hour {
		t.Fatalf("ttls = %v, %v", cfg.MediaTTL, cfg.AuthTokenTTL)
	}

	if _, err := load(lookupMap(map[string]string{"MEDIA_TTL": "soon"}), nil); err == nil {
		t.Fatalf("invalid duration accepted")
	}
	if _, err := load(lookupMap(map[string]string{"MAX_SIGNALING_MESSAGE_BYTES": "lots"}), nil); err == nil {
		t.Fatalf("invalid size accepted")
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		"ALLOWED_ORIGINS": "https://app.example.com/, http://localhost:3000",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"https://app.example.com", "http://localhost:3000"}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != want[0] || cfg.AllowedOrigins[1] != want[1] {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}

	if _, err := load(lookupMap(map[string]string{"ALLOWED_ORIGINS": "ftp://nope"}), nil); err == nil {
		t.Fatalf("non-http origin accepted")
	}
}

func TestSTUNURLs(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		"STUN_URLS": "stun:stun1.example.com:3478,stuns:stun2.example.com:5349",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.STUNURLs) != 2 {
		t.Fatalf("STUNURLs = %v", cfg.STUNURLs)
	}

	if _, err := load(lookupMap(map[string]string{"STUN_URLS": "turn:relay.example.com"}), nil); err == nil {
		t.Fatalf("non-stun url accepted")
	}
}

func TestICEServersDefault(t *testing.T) {
	cfg, err := load(lookupMap(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	servers := cfg.ICEServers()
	if len(servers) != 1 || len(servers[0].URLs) != 1 || servers[0].URLs[0] != DefaultSTUNURL {
		t.Fatalf("ICEServers = %+v", servers)
	}
}
