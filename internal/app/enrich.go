package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"review_pulse/internal/domain"
)

// Enricher fans review texts out to the aspect service and reassembles the
// findings by index, so output order always matches input order no matter
// how calls complete. A systemic service failure (fatal error, or retries
// exhausted inside the client) flips the whole run into degraded mode:
// the remaining reviews skip extraction and are flagged, the warning is
// logged once. In-flight calls at that moment finish and keep their results.
type Enricher struct {
	extractor domain.AspectExtractor
	cache     domain.Cache
	cacheTTL  time.Duration
	workers   int
	log       zerolog.Logger
}

func NewEnricher(x domain.AspectExtractor, cache domain.Cache, cacheTTL time.Duration, workers int, log zerolog.Logger) *Enricher {
	if workers <= 0 {
		workers = 4
	}
	return &Enricher{extractor: x, cache: cache, cacheTTL: cacheTTL, workers: workers, log: log}
}

type EnrichStats struct {
	Failures        int
	InvalidFindings int
	CacheHits       int
	Degraded        bool
	DegradedReason  string
}

// Enrich never fails on service trouble; it degrades. The only returned
// error is the caller's context error, in which case partial results are
// discarded.
func (e *Enricher) Enrich(ctx context.Context, in []domain.ScoredReview) ([]domain.EnrichedReview, EnrichStats, error) {
	out := make([]domain.EnrichedReview, len(in))
	for i := range in {
		out[i] = domain.EnrichedReview{ScoredReview: in[i], Aspects: []domain.AspectFinding{}}
	}

	if e.extractor == nil {
		for i := range out {
			out[i].AspectsUnavailable = true
		}
		if len(in) > 0 {
			e.log.Warn().Msg("aspect service not configured; run is sentiment-only")
		}
		return out, EnrichStats{Degraded: true, DegradedReason: "aspect service not configured"}, nil
	}

	var (
		failures, invalid, cacheHits atomic.Int64
		degraded                     atomic.Bool
		degradeOnce                  sync.Once
		degradeReason                string
	)
	degrade := func(err error) {
		degradeOnce.Do(func() {
			degraded.Store(true)
			degradeReason = err.Error()
			e.log.Warn().Err(err).Msg("aspect service failing; degrading run to sentiment-only")
		})
	}

	sem := semaphore.NewWeighted(int64(e.workers))
	var wg sync.WaitGroup
	for i := range in {
		if ctx.Err() != nil {
			break
		}
		if degraded.Load() {
			out[i].AspectsUnavailable = true
			continue
		}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			e.enrichOne(ctx, &out[i], &failures, &invalid, &cacheHits, degrade)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, EnrichStats{}, err
	}

	stats := EnrichStats{
		Failures:        int(failures.Load()),
		InvalidFindings: int(invalid.Load()),
		CacheHits:       int(cacheHits.Load()),
	}
	if degraded.Load() {
		stats.Degraded = true
		stats.DegradedReason = degradeReason
	}
	return out, stats, nil
}

func (e *Enricher) enrichOne(ctx context.Context, target *domain.EnrichedReview, failures, invalid, cacheHits *atomic.Int64, degrade func(error)) {
	text := target.NormalizedText
	key := findingsKey(text)

	if e.cache != nil {
		var cached []domain.AspectFinding
		if ok, err := e.cache.Get(ctx, key, &cached); err == nil && ok {
			valid, dropped := validFindings(cached, text)
			if dropped == 0 {
				cacheHits.Add(1)
				target.Aspects = valid
				return
			}
			// cached entry no longer passes validation
			_ = e.cache.Del(ctx, key)
		}
	}

	findings, err := e.extractor.Extract(ctx, text)
	switch {
	case err == nil:
		valid, dropped := validFindings(findings, text)
		invalid.Add(int64(dropped))
		target.Aspects = valid
		if e.cache != nil && len(valid) > 0 {
			_ = e.cache.Set(ctx, key, valid, int(e.cacheTTL.Seconds()))
		}

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// run is being aborted; Enrich returns the context error

	case errors.Is(err, domain.ErrBadPayload):
		failures.Add(1)
		e.log.Warn().Err(err).Msg("aspect response unusable; review kept without findings")

	default:
		failures.Add(1)
		target.AspectsUnavailable = true
		degrade(err)
	}
}

// validFindings drops findings whose aspect name is empty, whose sentiment
// is not one of the three labels, or whose quote is not a case-insensitive
// whitespace-normalized substring of the review's normalized text.
func validFindings(in []domain.AspectFinding, normalizedText string) ([]domain.AspectFinding, int) {
	hay := foldSpace(normalizedText)
	out := make([]domain.AspectFinding, 0, len(in))
	dropped := 0
	for _, f := range in {
		name := strings.TrimSpace(f.AspectName)
		label, okLabel := domain.ParseSentiment(string(f.AspectSentiment))
		quote := strings.TrimSpace(f.Quote)
		if name == "" || !okLabel || quote == "" || !strings.Contains(hay, foldSpace(quote)) {
			dropped++
			continue
		}
		out = append(out, domain.AspectFinding{AspectName: name, AspectSentiment: label, Quote: quote})
	}
	return out, dropped
}

func foldSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func findingsKey(normalizedText string) string {
	sum := sha1.Sum([]byte(normalizedText))
	return "aspects:" + hex.EncodeToString(sum[:])
}
