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
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Nearby/internal/adapters/http"
	"github.com/dkeye/Nearby/internal/app"
	"github.com/dkeye/Nearby/internal/app/orch"
	"github.com/dkeye/Nearby/internal/app/proximity"
	"github.com/dkeye/Nearby/internal/auth"
	"github.com/dkeye/Nearby/internal/config"
	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/storage/jsonfile"
	"github.com/dkeye/Nearby/internal/storage/memory"
	"github.com/dkeye/Nearby/internal/storage/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func openStore(cfg config.StoreConfig) (core.UserStore, error) {
	switch cfg.Driver {
	case "json":
		return jsonfile.Open(cfg.Path)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	case "memory":
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	opts := proximity.DefaultOptions()
	opts.RadiusKm = cfg.Proximity.RadiusKm
	opts.EarthRadiusKm = cfg.Proximity.EarthRadiusKm
	opts.Retries = cfg.Store.Retries
	engine := proximity.NewEngine(store, opts)
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	o := orch.New(app.NewRegistry(), engine)
	if cfg.SupersedePolicy == config.SupersedeClose {
		o.Supersede = app.CloseStale
	}
	users := auth.NewService(engine)

	r := router.SetupRouter(ctx, cfg, o, users)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("Nearby server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		for _, sess := range o.Registry.Sessions() {
			o.Kick(sess.ID())
		}
		return engine.Flush(shutdownCtx)
	})
	return g.Wait()
}
