package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/InFirePro/alien/internal/config"
	"github.com/InFirePro/alien/internal/httpserver"
	"github.com/InFirePro/alien/internal/ledger"
	"github.com/InFirePro/alien/internal/realtime"
	"github.com/InFirePro/alien/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

// run wires config → store → services → HTTP and blocks until SIGINT/SIGTERM.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStore(ctx, cfg)
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()
	st = store.WithTimeout(st, cfg.StoreTimeout)

	led := ledger.New(st)
	hub := realtime.NewHub(st, realtime.Options{
		Cooldown:      cfg.ChatCooldown,
		Persistence:   realtime.PersistMode(cfg.ChatPersistence),
		HistoryLimit:  cfg.ChatHistoryLimit,
		SendBuffer:    cfg.WSSendBuffer,
		StoreTimeout:  cfg.StoreTimeout,
		AllowedOrigin: cfg.ClientOrigin,
	})
	srv := httpserver.New(led, st, hub, httpserver.Options{
		ClientOrigin:      cfg.ClientOrigin,
		StaticDir:         cfg.StaticDir,
		StoreDriver:       cfg.StoreDriver,
		StoreTimeout:      cfg.StoreTimeout,
		Rate:              cfg.HTTPRate,
		Burst:             cfg.HTTPBurst,
		AdminPasswordHash: cfg.AdminPasswordHash,
		AdminSecret:       cfg.AdminJWTSecret,
		AdminTokenTTL:     cfg.AdminTokenTTL,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", httpSrv.Addr).
			Str("store", cfg.StoreDriver).
			Str("chat_persistence", cfg.ChatPersistence).
			Bool("admin", cfg.AdminEnabled()).
			Msg("starting alien server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; close them
	// through the hub so their pumps exit.
	hub.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// setupLogger applies LOG_LEVEL and LOG_FORMAT to the global zerolog logger.
func setupLogger(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// openStore opens the configured backend. A backend that cannot be opened
// leaves the process running on store.Offline: scores report unavailable and
// chat still relays live.
func openStore(ctx context.Context, cfg config.Config) store.Store {
	openCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	var (
		st  store.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		st, err = store.OpenPostgres(openCtx, cfg.DatabaseURL)
	case config.DriverMemory:
		st = store.NewMemoryStore()
	default:
		st, err = store.OpenSQLite(openCtx, cfg.SQLitePath)
	}
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("store unavailable, running without a database")
		return store.Offline{}
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")
	return st
}
