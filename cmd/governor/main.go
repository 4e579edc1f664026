// Command governor runs the AI request governor service.
//
// DESIGN: Startup order matters:
//  1. config (file + env) and logging
//  2. Redis client, shared by the cache, the spend counter, and the
//     admin config store
//  3. SQLite usage history (optional; the service runs without it)
//  4. providers, pipeline, HTTP surface
//
// Shutdown drains in-flight requests before closing the history database
// so the final audit rows are not lost.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/studyloop/governor/internal/adminstore"
	"github.com/studyloop/governor/internal/cache"
	"github.com/studyloop/governor/internal/config"
	"github.com/studyloop/governor/internal/gateway"
	"github.com/studyloop/governor/internal/governor"
	"github.com/studyloop/governor/internal/ledger"
	"github.com/studyloop/governor/internal/provider"
	"github.com/studyloop/governor/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Redis.URL).Msg("invalid redis url")
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis unreachable")
	}

	var history *ledger.History
	if cfg.History.Path != "" {
		history, err = ledger.NewHistory(cfg.History.Path, cfg.History.RetentionDays,
			config.DefaultRetentionSweepInterval)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.History.Path).Msg("history database unavailable")
		}
		defer func() { _ = history.Close() }()
	}

	admin := adminstore.New(
		adminstore.NewRedisKV(rdb, cfg.Redis.StoreTimeout),
		cfg.Budget.Staleness,
	)
	responseCache := cache.New(
		cache.NewRedisStore(rdb, cfg.Redis.StoreTimeout),
		cfg.Cache.DailyTTL,
		cfg.Cache.PersonalTTL,
	)
	spendLedger := ledger.New(
		ledger.NewRedisCounter(rdb, cfg.Redis.StoreTimeout),
		admin,
		history,
		cfg.Budget.DefaultDailyUSD,
	)

	completions := provider.NewHTTPCompletion(
		cfg.Providers.Completion.Endpoint,
		cfg.Providers.Completion.APIKey,
		cfg.Providers.Completion.Timeout,
	)
	var contexts provider.ContextProvider
	if cfg.Providers.Context.Endpoint != "" {
		contexts = provider.NewHTTPContext(cfg.Providers.Context.Endpoint, cfg.Providers.Context.Timeout)
	}

	gov := governor.New(responseCache, spendLedger, admin, completions, contexts,
		cfg.Cache.MinResponseLength)
	gw := gateway.New(gov, admin, spendLedger, history)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      gw.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("completion_endpoint", cfg.Providers.Completion.Endpoint).
			Str("completion_api_key", utils.MaskKey(cfg.Providers.Completion.APIKey)).
			Bool("context_provider", contexts != nil).
			Bool("history", history != nil).
			Msg("governor listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
