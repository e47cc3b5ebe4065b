package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/hexark/planning-poker/internal/adapters/http"
	"github.com/hexark/planning-poker/internal/adapters/ws"
	"github.com/hexark/planning-poker/internal/config"
	"github.com/hexark/planning-poker/internal/ratelimit"
	"github.com/hexark/planning-poker/internal/registry"
	"github.com/hexark/planning-poker/internal/roomid"
	"github.com/hexark/planning-poker/internal/session"
	"github.com/hexark/planning-poker/internal/store/redisstore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
	}
	pingCancel()

	store := redisstore.New(rdb, cfg.KeyPrefix, cfg.RoomTTL)
	limiter := ratelimit.New(rdb, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow)
	alloc := roomid.New(store.RoomExists, cfg.IDAttempts, cfg.IDSuffixLen)

	reg := registry.New(cfg.ConnectionTTL)
	go reg.Run(ctx)

	engine := session.New(store, reg, alloc, limiter)
	wsctl := ws.NewController(reg, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, engine, wsctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("planning-poker server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
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
