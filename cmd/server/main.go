package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/HouseParty/internal/adapters/http"
	realtime "github.com/dkeye/HouseParty/internal/adapters/signal"
	"github.com/dkeye/HouseParty/internal/adapters/store"
	"github.com/dkeye/HouseParty/internal/app"
	"github.com/dkeye/HouseParty/internal/app/orch"
	"github.com/dkeye/HouseParty/internal/config"
	"github.com/dkeye/HouseParty/internal/core"
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
	}

	sessions, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open room store")
	}
	defer closeStore()

	hub := realtime.NewHub(realtime.Options{
		PublicURL:   cfg.PublicURL,
		Secret:      cfg.Secret,
		TokenTTL:    cfg.TokenTTL,
		SendBuffer:  cfg.SendBuffer,
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
		NATSURL:     cfg.NATS.URL,
		NATSSubject: cfg.NATS.Subject,
	})
	defer func() {
		if err := hub.Close(); err != nil {
			log.Error().Err(err).Msg("hub close")
		}
	}()

	policy := app.NewSlidingWindowPolicy(cfg.Presence.MaxRate, cfg.Presence.Window)
	go sweepPolicy(ctx, policy, cfg.Presence.Window*60)

	o := &orch.Orchestrator{
		Rooms:  app.NewCoordinator(sessions, cfg.RoomTTL),
		Hub:    hub,
		Policy: policy,
	}

	r := router.SetupRouter(ctx, cfg, o, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HouseParty server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// openStore picks Redis when configured, the in-process store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (core.SessionStore, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Warn().Str("module", "main").Msg("no redis configured, room state is process-local")
		return store.NewMemoryStore(), func() {}, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rs, err := store.Dial(dialCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() {
		if err := rs.Close(); err != nil {
			log.Error().Err(err).Msg("redis close")
		}
	}, nil
}

func sweepPolicy(ctx context.Context, p *app.SlidingWindowPolicy, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Sweep(); n > 0 {
				log.Debug().Str("module", "main").Int("seats", n).Msg("swept presence history")
			}
		}
	}
}
