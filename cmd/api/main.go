package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"review_pulse/internal/adapters/gemini"
	server "review_pulse/internal/adapters/http_server"
	"review_pulse/internal/adapters/lexicon"
	"review_pulse/internal/adapters/observability"
	redisad "review_pulse/internal/adapters/redis"
	"review_pulse/internal/app"
	"review_pulse/internal/domain"
	"review_pulse/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// sentiment model
	model, err := lexicon.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("lexicon load failed")
	}

	// aspect extraction is optional; without a key runs are sentiment-only
	var extractor domain.AspectExtractor
	if cfg.GeminiKey != "" {
		client, err := gemini.New(cfg.GeminiBase, cfg.GeminiModel, cfg.GeminiKey, cfg.GeminiRPS, cfg.AspectAttempts, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Gemini client")
		}
		extractor = client
	}

	// findings cache is optional; an unreachable redis disables it up-front
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(pctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; findings cache disabled")
		} else {
			cache = rc
		}
		cancel()
	}

	p := app.New(model, extractor, cache, cfg.CacheTTL, log.Logger)

	defaults := app.Defaults()
	defaults.DedupThreshold = cfg.DedupThreshold
	defaults.FilterLanguage = cfg.FilterLanguage
	defaults.TargetLanguage = cfg.TargetLanguage
	defaults.SentimentBatch = cfg.SentimentBatch
	defaults.MaxReviews = cfg.MaxReviews
	defaults.MaxReviewBytes = cfg.MaxReviewBytes
	defaults.AspectWorkers = cfg.AspectWorkers

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{P: p, Defaults: defaults})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
