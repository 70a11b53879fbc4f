package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"review_pulse/internal/adapters/csvsource"
	"review_pulse/internal/adapters/gemini"
	"review_pulse/internal/adapters/lexicon"
	"review_pulse/internal/adapters/observability"
	redisad "review_pulse/internal/adapters/redis"
	"review_pulse/internal/app"
	"review_pulse/internal/domain"
	"review_pulse/internal/shared"
)

func main() {
	in := flag.String("in", "", "path to the reviews CSV (required)")
	out := flag.String("out", "", "path for the JSON result (default stdout)")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	flag.Parse()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise);
	// stderr, because stdout carries the result
	log.Logger = observability.NewLoggerTo(cfg.AppEnv, os.Stderr)

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := lexicon.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("lexicon load failed")
	}

	var extractor domain.AspectExtractor
	if cfg.GeminiKey != "" {
		client, err := gemini.New(cfg.GeminiBase, cfg.GeminiModel, cfg.GeminiKey, cfg.GeminiRPS, cfg.AspectAttempts, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Gemini client")
		}
		extractor = client
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rc.Ping(pctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; findings cache disabled")
		} else {
			cache = rc
		}
		cancel()
	}

	raws, rowErrs, err := csvsource.LoadFile(*in)
	if err != nil {
		log.Fatal().Err(err).Str("path", *in).Msg("csv load failed")
	}
	for _, re := range rowErrs {
		log.Warn().Int("row", re.Row).Str("field", re.Field).Str("reason", re.Reason).Msg("csv row rejected")
	}

	opts := app.Defaults()
	opts.DedupThreshold = cfg.DedupThreshold
	opts.FilterLanguage = cfg.FilterLanguage
	opts.TargetLanguage = cfg.TargetLanguage
	opts.SentimentBatch = cfg.SentimentBatch
	opts.MaxReviews = cfg.MaxReviews
	opts.MaxReviewBytes = cfg.MaxReviewBytes
	opts.AspectWorkers = cfg.AspectWorkers

	res, err := app.New(model, extractor, cache, cfg.CacheTTL, log.Logger).Run(ctx, raws, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("analysis failed")
	}
	res.Summary.TotalRows += len(rowErrs)
	res.Summary.RejectedRows = len(rowErrs)

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Str("path", *out).Msg("cannot create output file")
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		log.Fatal().Err(err).Msg("write result failed")
	}

	log.Info().
		Int("rows", res.Summary.TotalRows).
		Int("rejected", res.Summary.RejectedRows).
		Int("representatives", res.Summary.Representatives).
		Bool("degraded", res.Summary.Degraded).
		Int64("elapsed_ms", res.Summary.ElapsedMS).
		Msg("analysis completed")
}
