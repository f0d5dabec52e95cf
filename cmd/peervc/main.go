package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/peervc/peervc/internal/auth"
	"github.com/peervc/peervc/internal/config"
	"github.com/peervc/peervc/internal/httpserver"
	"github.com/peervc/peervc/internal/mediastore"
	"github.com/peervc/peervc/internal/metrics"
	"github.com/peervc/peervc/internal/signaling"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting peervc",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"auth_mode", cfg.AuthMode,
		"media_backend", mediaBackendName(cfg),
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		"ws_idle_timeout", cfg.WSIdleTimeout,
	)
	logStartupSecurityWarnings(logger, cfg)

	m := metrics.New()

	blobs, closeBlobs, err := newMediaStore(cfg)
	if err != nil {
		logger.Error("failed to configure media store", "err", err)
		os.Exit(2)
	}
	defer closeBlobs()

	authorizer, closeAuth, err := newAuth(cfg, logger, m)
	if err != nil {
		logger.Error("failed to configure auth", "err", err)
		os.Exit(2)
	}
	defer closeAuth()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, built := resolveBuildInfo(buildCommit, buildTime)
	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built})

	hub := signaling.NewHub(logger, m, cfg.MaxChatMessageChars)
	srv.Mux().Handle("GET /ws", signaling.NewServer(cfg, logger, m, hub, authorizer.ws))
	if authorizer.handlers != nil {
		authorizer.handlers.Register(srv.Mux())
	}
	mediastore.NewHandlers(logger, m, blobs, cfg.MediaMaxUploadBytes).Register(srv.Mux())

	srv.Mux().HandleFunc("GET /presence", srv.WithOriginPolicy(func(w http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{"users": hub.Directory().Snapshot()})
	}))
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func newMediaStore(cfg config.Config) (mediastore.Store, func(), error) {
	if cfg.MediaRedisAddr != "" {
		s, err := mediastore.NewRedisStore(cfg.MediaRedisAddr, cfg.MediaTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return mediastore.NewMemoryStore(cfg.MediaTTL), func() {}, nil
}

type authComponents struct {
	ws       signaling.Authorizer
	handlers *auth.Handlers
}

func newAuth(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (authComponents, func(), error) {
	if cfg.AuthMode != config.AuthModeJWT {
		return authComponents{ws: signaling.NoopAuthorizer{}}, func() {}, nil
	}

	store, err := auth.OpenStore(cfg.AuthDBPath)
	if err != nil {
		return authComponents{}, nil, err
	}
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AuthTokenTTL)
	return authComponents{
		ws:       auth.NewWSAuthorizer(issuer),
		handlers: auth.NewHandlers(logger, m, store, issuer),
	}, func() { _ = store.Close() }, nil
}

func mediaBackendName(cfg config.Config) string {
	if cfg.MediaRedisAddr != "" {
		return "redis"
	}
	return "memory"
}

func resolveBuildInfo(commit, built string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the
	// Go build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			}
		}
	}
	return commit, built
}
