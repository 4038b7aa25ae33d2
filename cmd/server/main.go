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

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Howdy/internal/adapters/http"
	sig "github.com/dkeye/Howdy/internal/adapters/signal"
	"github.com/dkeye/Howdy/internal/app"
	"github.com/dkeye/Howdy/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can use it.
	config.SetupLogger(os.Stderr)

	flags := pflag.NewFlagSet("howdy-relay", pflag.ExitOnError)
	flags.Int("port", 8080, "listen port")
	flags.String("mode", "release", "gin mode: debug, release or test")
	flags.String("static-path", "./web", "directory served under /static")
	flags.String("log-level", "info", "trace, debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])

	cfg, v, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.ApplyLevel(cfg)
	config.Watch(v, config.ApplyLevel)

	hub := &app.Hub{Registry: app.NewRegistry(), Policy: app.SimplePolicy{}}
	// rate_limit 0 turns limiting off.
	if cfg.RateLimit > 0 {
		hub.Limiter = sig.NewIdentityRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Howdy relay started")
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
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}
