package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	envVarListenAddr      = "PEERVC_LISTEN_ADDR"
	envVarMode            = "PEERVC_MODE"
	envVarLogFormat       = "PEERVC_LOG_FORMAT"
	envVarLogLevel        = "PEERVC_LOG_LEVEL"
	envVarShutdownTimeout = "PEERVC_SHUTDOWN_TIMEOUT"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// Signaling WebSocket hardening.
	envVarJoinTimeout                   = "SIGNALING_JOIN_TIMEOUT"
	envVarWSIdleTimeout                 = "SIGNALING_WS_IDLE_TIMEOUT"
	envVarWSPingInterval                = "SIGNALING_WS_PING_INTERVAL"
	envVarMaxSignalingMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarSendQueueMessages             = "SEND_QUEUE_MESSAGES"
	envVarMaxChatMessageChars           = "MAX_CHAT_MESSAGE_CHARS"

	// Account auth.
	envVarAuthMode     = "AUTH_MODE"
	envVarJWTSecret    = "JWT_SECRET"
	envVarAuthDBPath   = "AUTH_DB_PATH"
	envVarAuthTokenTTL = "AUTH_TOKEN_TTL"

	// Uploaded media (ephemeral blob store).
	envVarMediaMaxUploadBytes = "MEDIA_MAX_UPLOAD_BYTES"
	envVarMediaTTL            = "MEDIA_TTL"
	envVarMediaRedisAddr      = "MEDIA_REDIS_ADDR"

	// ICE servers handed to call clients.
	envVarSTUNURLs = "STUN_URLS"
)

const (
	DefaultListenAddr           = "127.0.0.1:7000"
	DefaultShutdown             = 15 * time.Second
	DefaultMode            Mode = ModeDev
	DefaultJoinTimeout          = 10 * time.Second
	DefaultWSIdleTimeout        = 60 * time.Second
	DefaultWSPingInterval       = 20 * time.Second

	DefaultMaxSignalingMessageBytes      = int64(512 * 1024)
	DefaultMaxSignalingMessagesPerSecond = 50
	DefaultSendQueueMessages             = 64
	DefaultMaxChatMessageChars           = 2000

	DefaultAuthMode     AuthMode = AuthModeNone
	DefaultAuthDBPath            = "peervc.db"
	DefaultAuthTokenTTL          = 24 * time.Hour

	DefaultMediaMaxUploadBytes = int64(16 << 20) // 16MiB
	DefaultMediaTTL            = time.Hour

	DefaultSTUNURL = "stun:stun.l.google.com:19302"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type AuthMode string

const (
	AuthModeNone AuthMode = "none"
	AuthModeJWT  AuthMode = "jwt"
)

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// AllowedOrigins restricts browser access to the signaling and upload
	// endpoints. Empty means same-host only.
	AllowedOrigins []string

	JoinTimeout                   time.Duration
	WSIdleTimeout                 time.Duration
	WSPingInterval                time.Duration
	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int
	SendQueueMessages             int
	MaxChatMessageChars           int

	AuthMode     AuthMode
	JWTSecret    string
	AuthDBPath   string
	AuthTokenTTL time.Duration

	MediaMaxUploadBytes int64
	MediaTTL            time.Duration
	MediaRedisAddr      string

	STUNURLs []string
}

// ICEServers returns the ICE server list for client PeerConnections.
func (c Config) ICEServers() []webrtc.ICEServer {
	urls := c.STUNURLs
	if len(urls) == 0 {
		urls = []string{DefaultSTUNURL}
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, _ := lookup(envVarLogFormat)
	logFormatDefault := envLogFormat
	if logFormatDefault == "" {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, _ := lookup(envVarLogLevel)
	logLevelDefault := envLogLevel
	if logLevelDefault == "" {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	fs := flag.NewFlagSet("peervc", flag.ContinueOnError)
	listenAddr := fs.String("listen-addr", envOrDefault(lookup, envVarListenAddr, DefaultListenAddr), "TCP address to listen on")
	modeStr := fs.String("mode", modeDefault, "deployment mode (dev or prod)")
	logFormatStr := fs.String("log-format", logFormatDefault, "log format (text or json)")
	logLevelStr := fs.String("log-level", logLevelDefault, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	mode, err := parseMode(*modeStr)
	if err != nil {
		return Config{}, err
	}
	logFormat, err := parseLogFormat(*logFormatStr)
	if err != nil {
		return Config{}, err
	}
	logLevel, err := parseLogLevel(*logLevelStr)
	if err != nil {
		return Config{}, err
	}

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}

	allowedOrigins, err := parseAllowedOrigins(envOrDefault(lookup, envVarAllowedOrigins, ""))
	if err != nil {
		return Config{}, err
	}

	joinTimeout, err := envDurationOrDefault(lookup, envVarJoinTimeout, DefaultJoinTimeout)
	if err != nil {
		return Config{}, err
	}
	wsIdleTimeout, err := envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	wsPingInterval, err := envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	if wsIdleTimeout > 0 && wsPingInterval > 0 && wsPingInterval >= wsIdleTimeout {
		return Config{}, fmt.Errorf("%s (%s) must be shorter than %s (%s)",
			envVarWSPingInterval, wsPingInterval, envVarWSIdleTimeout, wsIdleTimeout)
	}

	maxMessageBytes, err := envInt64OrDefault(lookup, envVarMaxSignalingMessageBytes, DefaultMaxSignalingMessageBytes)
	if err != nil {
		return Config{}, err
	}
	maxMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	sendQueueMessages, err := envIntOrDefault(lookup, envVarSendQueueMessages, DefaultSendQueueMessages)
	if err != nil {
		return Config{}, err
	}
	maxChatMessageChars, err := envIntOrDefault(lookup, envVarMaxChatMessageChars, DefaultMaxChatMessageChars)
	if err != nil {
		return Config{}, err
	}

	authModeStr := envOrDefault(lookup, envVarAuthMode, string(DefaultAuthMode))
	authMode, err := parseAuthMode(authModeStr)
	if err != nil {
		return Config{}, err
	}
	jwtSecret := envOrDefault(lookup, envVarJWTSecret, "")
	if authMode == AuthModeJWT && jwtSecret == "" {
		return Config{}, fmt.Errorf("%s=jwt requires %s", envVarAuthMode, envVarJWTSecret)
	}
	authDBPath := envOrDefault(lookup, envVarAuthDBPath, DefaultAuthDBPath)
	authTokenTTL, err := envDurationOrDefault(lookup, envVarAuthTokenTTL, DefaultAuthTokenTTL)
	if err != nil {
		return Config{}, err
	}

	mediaMaxUploadBytes, err := envInt64OrDefault(lookup, envVarMediaMaxUploadBytes, DefaultMediaMaxUploadBytes)
	if err != nil {
		return Config{}, err
	}
	mediaTTL, err := envDurationOrDefault(lookup, envVarMediaTTL, DefaultMediaTTL)
	if err != nil {
		return Config{}, err
	}
	mediaRedisAddr := envOrDefault(lookup, envVarMediaRedisAddr, "")

	stunURLs, err := parseSTUNURLs(envOrDefault(lookup, envVarSTUNURLs, ""))
	if err != nil {
		return Config{}, err
	}

	return Config{
		ListenAddr:      *listenAddr,
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		ShutdownTimeout: shutdownTimeout,
		AllowedOrigins:  allowedOrigins,

		JoinTimeout:                   joinTimeout,
		WSIdleTimeout:                 wsIdleTimeout,
		WSPingInterval:                wsPingInterval,
		MaxSignalingMessageBytes:      maxMessageBytes,
		MaxSignalingMessagesPerSecond: maxMessagesPerSecond,
		SendQueueMessages:             sendQueueMessages,
		MaxChatMessageChars:           maxChatMessageChars,

		AuthMode:     authMode,
		JWTSecret:    jwtSecret,
		AuthDBPath:   authDBPath,
		AuthTokenTTL: authTokenTTL,

		MediaMaxUploadBytes: mediaMaxUploadBytes,
		MediaTTL:            mediaTTL,
		MediaRedisAddr:      mediaRedisAddr,

		STUNURLs: stunURLs,
	}, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envInt64OrDefault(lookup func(string) (string, bool), key string, fallback int64) (int64, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parseAuthMode(raw string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(AuthModeNone):
		return AuthModeNone, nil
	case string(AuthModeJWT):
		return AuthModeJWT, nil
	default:
		return "", fmt.Errorf("invalid %s %q (expected %s or %s)", envVarAuthMode, raw, AuthModeNone, AuthModeJWT)
	}
}

func parseAllowedOrigins(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p == "*" {
			origins = append(origins, p)
			continue
		}
		if !strings.HasPrefix(p, "http://") && !strings.HasPrefix(p, "https://") {
			return nil, fmt.Errorf("invalid %s entry %q (expected * or an http(s) origin)", envVarAllowedOrigins, p)
		}
		origins = append(origins, strings.TrimSuffix(p, "/"))
	}
	return origins, nil
}

func parseSTUNURLs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "stun:") && !strings.HasPrefix(p, "stuns:") {
			return nil, fmt.Errorf("invalid %s entry %q (expected a stun: URL)", envVarSTUNURLs, p)
		}
		urls = append(urls, p)
	}
	return urls, nil
}
