// Package app assembles the realtime server: configuration, logging,
// the token verifier, the hub, and the HTTP surface around it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/plankhq/plank/pkg/auth"
	"github.com/plankhq/plank/pkg/logger"
	"github.com/plankhq/plank/pkg/realtime"
)

const (
	readHeaderTimeout = 5 * time.Second
)

// App is the assembled server.
type App struct {
	config Config
	logger zerolog.Logger
	hub    *realtime.Hub
	server *http.Server
}

func New(config Config) (*App, error) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("app: bad log level %q: %w", config.LogLevel, err)
	}

	build := logger.New().Level(level)
	if config.LogPath != "" {
		build = build.FromPath(config.LogPath)
	}
	log, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("app: build logger: %w", err)
	}

	tokens := auth.NewHMACTokens([]byte(config.TokenSecret), config.TokenTTL)
	hub := realtime.NewHub(realtime.NewRegistry(), tokens, log)

	a := &App{
		config: config,
		logger: log,
		hub:    hub,
	}

	router := mux.NewRouter()
	router.Handle("/ws", hub).Methods(http.MethodGet)
	router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)

	a.server = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

// Logger exposes the assembled root logger.
func (a *App) Logger() zerolog.Logger { return a.logger }

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Run serves until ctx is cancelled, then drains gracefully. Live
// websockets are closed by the server shutdown; clients reconnect on
// their own schedule.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.config.Addr).Msg("listening")
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return nil
}
