package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"review_pulse/internal/adapters/observability"
	"review_pulse/internal/domain"
)

// Options are the per-run knobs. The zero value is not usable directly;
// start from Defaults and override.
type Options struct {
	Dedupe         bool
	DedupThreshold int
	FilterLanguage bool
	TargetLanguage string
	SentimentBatch int
	MaxReviews     int
	MaxReviewBytes int
	AspectWorkers  int
}

func Defaults() Options {
	return Options{
		Dedupe:         true,
		DedupThreshold: 85,
		TargetLanguage: "en",
		SentimentBatch: 32,
		MaxReviews:     2000,
		MaxReviewBytes: 8192,
		AspectWorkers:  4,
	}
}

func (o Options) withDefaults() Options {
	d := Defaults()
	if o.DedupThreshold <= 0 {
		o.DedupThreshold = d.DedupThreshold
	}
	if o.DedupThreshold > 100 {
		o.DedupThreshold = 100
	}
	if o.TargetLanguage == "" {
		o.TargetLanguage = d.TargetLanguage
	}
	if o.SentimentBatch <= 0 {
		o.SentimentBatch = d.SentimentBatch
	}
	if o.MaxReviews <= 0 {
		o.MaxReviews = d.MaxReviews
	}
	if o.MaxReviewBytes <= 0 {
		o.MaxReviewBytes = d.MaxReviewBytes
	}
	if o.AspectWorkers <= 0 {
		o.AspectWorkers = d.AspectWorkers
	}
	return o
}

// Pipeline runs one bounded batch of raw reviews through normalization,
// deduplication, sentiment scoring and aspect enrichment, and returns the
// enriched set in the representatives' original input order together with
// the run summary. A nil extractor runs sentiment-only; a nil cache skips
// caching.
type Pipeline struct {
	classifier domain.Classifier
	extractor  domain.AspectExtractor
	cache      domain.Cache
	cacheTTL   time.Duration
	log        zerolog.Logger
}

func New(classifier domain.Classifier, extractor domain.AspectExtractor, cache domain.Cache, cacheTTL time.Duration, log zerolog.Logger) *Pipeline {
	return &Pipeline{classifier: classifier, extractor: extractor, cache: cache, cacheTTL: cacheTTL, log: log}
}

// Run processes one batch. It aborts with ErrBatchTooLarge before any
// processing when the input exceeds the configured caps, and with the
// context error on cancellation, in which case partial results are
// discarded. Service trouble never aborts: the run completes degraded.
func (p *Pipeline) Run(ctx context.Context, raws []domain.RawReview, opts Options) (*domain.Result, error) {
	start := time.Now()
	opts = opts.withDefaults()

	if p.classifier == nil {
		return nil, errors.New("pipeline: classifier not configured")
	}
	if len(raws) > opts.MaxReviews {
		observability.ObserveRun("aborted", time.Since(start))
		return nil, fmt.Errorf("%w: %d reviews exceed cap of %d", domain.ErrBatchTooLarge, len(raws), opts.MaxReviews)
	}
	for i := range raws {
		if len(raws[i].Text) > opts.MaxReviewBytes {
			observability.ObserveRun("aborted", time.Since(start))
			return nil, fmt.Errorf("%w: review %d is %d bytes, cap is %d",
				domain.ErrBatchTooLarge, i, len(raws[i].Text), opts.MaxReviewBytes)
		}
	}

	cleaned, droppedEmpty, droppedLang := NewNormalizer(opts.FilterLanguage, opts.TargetLanguage, p.log).Clean(raws)

	var reps []domain.Representative
	if opts.Dedupe {
		reps = NewDeduplicator(opts.DedupThreshold).Collapse(cleaned)
	} else {
		reps = make([]domain.Representative, len(cleaned))
		for i := range cleaned {
			reps[i] = domain.Representative{CleanedReview: cleaned[i]}
		}
	}
	duplicates := len(cleaned) - len(reps)

	scored, fallbacks, err := NewScorer(p.classifier, opts.SentimentBatch, p.log).Score(ctx, reps)
	if err != nil {
		observability.ObserveRun("aborted", time.Since(start))
		return nil, err
	}

	enriched, es, err := NewEnricher(p.extractor, p.cache, p.cacheTTL, opts.AspectWorkers, p.log).Enrich(ctx, scored)
	if err != nil {
		observability.ObserveRun("aborted", time.Since(start))
		return nil, err
	}

	var counts domain.SentimentCounts
	for i := range enriched {
		switch enriched[i].SentimentLabel {
		case domain.SentimentPositive:
			counts.Positive++
		case domain.SentimentNegative:
			counts.Negative++
		default:
			counts.Neutral++
		}
	}

	summary := domain.Summary{
		TotalRows:       len(raws),
		Cleaned:         len(cleaned),
		DroppedEmpty:    droppedEmpty,
		DroppedLanguage: droppedLang,
		Representatives: len(reps),
		Duplicates:      duplicates,
		ScoreFallbacks:  fallbacks,
		AspectFailures:  es.Failures,
		InvalidFindings: es.InvalidFindings,
		CacheHits:       es.CacheHits,
		Degraded:        es.Degraded,
		DegradedReason:  es.DegradedReason,
		Sentiment:       counts,
		Aspects:         AggregateAspects(enriched, 3),
		ElapsedMS:       time.Since(start).Milliseconds(),
	}

	mode := "full"
	if es.Degraded {
		mode = "degraded"
		if p.extractor == nil {
			mode = "sentiment_only"
		}
	}
	observability.ObserveRun(mode, time.Since(start))
	observability.ObserveItems("normalize", "dropped_empty", droppedEmpty)
	observability.ObserveItems("normalize", "dropped_language", droppedLang)
	observability.ObserveItems("dedupe", "duplicate", duplicates)
	observability.ObserveItems("score", "fallback", fallbacks)
	observability.ObserveItems("enrich", "failure", es.Failures)
	observability.ObserveItems("enrich", "invalid_finding", es.InvalidFindings)
	observability.ObserveItems("enrich", "cache_hit", es.CacheHits)

	p.log.Info().
		Int("input", len(raws)).
		Int("representatives", len(reps)).
		Int("duplicates", duplicates).
		Bool("degraded", es.Degraded).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline run completed")

	return &domain.Result{Reviews: enriched, Summary: summary}, nil
}
