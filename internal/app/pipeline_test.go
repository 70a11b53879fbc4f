package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"review_pulse/internal/app"
	"review_pulse/internal/domain"
)

func restaurantExtractor() *fakeExtractor {
	return &fakeExtractor{fn: func(text string) ([]domain.AspectFinding, error) {
		switch t := strings.ToLower(text); {
		case strings.Contains(t, "food"):
			return []domain.AspectFinding{{AspectName: "food quality", AspectSentiment: domain.SentimentPositive, Quote: "Great food"}}, nil
		case strings.Contains(t, "staff"):
			return []domain.AspectFinding{{AspectName: "service", AspectSentiment: domain.SentimentNegative, Quote: "Rude staff"}}, nil
		}
		return []domain.AspectFinding{}, nil
	}}
}

func TestRun_EndToEnd(t *testing.T) {
	raws := []domain.RawReview{
		{Text: "<b>Great food, slow service</b>"},
		{Text: "Great food, slow service!!"},
		{Text: "Rude staff"},
		{Text: "   "},
	}
	x := restaurantExtractor()
	p := app.New(&fakeClassifier{score: wordScore}, x, nil, 0, zerolog.Nop())

	res, err := p.Run(context.Background(), raws, app.Defaults())
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	s := res.Summary
	if s.TotalRows != 4 || s.DroppedEmpty != 1 || s.Cleaned != 3 {
		t.Fatalf("unexpected ingest counts: %+v", s)
	}
	if s.Representatives != 2 || s.Duplicates != 1 {
		t.Fatalf("unexpected dedup counts: %+v", s)
	}
	if s.Degraded || s.ScoreFallbacks != 0 || s.AspectFailures != 0 {
		t.Fatalf("unexpected health counters: %+v", s)
	}
	if s.Sentiment.Positive != 1 || s.Sentiment.Negative != 1 || s.Sentiment.Neutral != 0 {
		t.Fatalf("unexpected sentiment counts: %+v", s.Sentiment)
	}

	if len(res.Reviews) != 2 {
		t.Fatalf("reviews = %d, want 2", len(res.Reviews))
	}
	first, second := res.Reviews[0], res.Reviews[1]
	if first.NormalizedText != "Great food, slow service" || first.DuplicateCount != 1 {
		t.Fatalf("unexpected first review: %+v", first)
	}
	if first.SentimentLabel != domain.SentimentPositive || len(first.Aspects) != 1 || first.Aspects[0].AspectName != "food quality" {
		t.Fatalf("first review misscored: %+v", first)
	}
	if second.NormalizedText != "Rude staff" || second.SentimentLabel != domain.SentimentNegative {
		t.Fatalf("unexpected second review: %+v", second)
	}

	// deduplication keeps the service from seeing collapsed variants
	if atomic.LoadInt32(&x.calls) != 2 {
		t.Fatalf("extractor calls = %d, want 2", x.calls)
	}

	// aggregates tie on one mention each, so name order decides
	if len(s.Aspects) != 2 || s.Aspects[0].Name != "food quality" || s.Aspects[1].Name != "service" {
		t.Fatalf("unexpected aggregates: %+v", s.Aspects)
	}
	if s.Aspects[0].PositiveRatio != 1.0 || len(s.Aspects[0].TopQuotes) != 1 {
		t.Fatalf("unexpected aggregate detail: %+v", s.Aspects[0])
	}
}

func TestRun_ResultJSONIsFlat(t *testing.T) {
	p := app.New(&fakeClassifier{score: wordScore}, restaurantExtractor(), nil, 0, zerolog.Nop())
	res, err := p.Run(context.Background(), []domain.RawReview{{Text: "Rude staff"}}, app.Defaults())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	b, err := json.Marshal(res.Reviews[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(b)
	for _, key := range []string{`"review_text"`, `"normalized_text"`, `"duplicate_count"`, `"sentiment_label"`, `"aspects"`} {
		if !strings.Contains(out, key) {
			t.Fatalf("flattened JSON missing %s: %s", key, out)
		}
	}
}

func TestRun_RejectsTooManyReviews(t *testing.T) {
	c := &fakeClassifier{score: wordScore}
	p := app.New(c, restaurantExtractor(), nil, 0, zerolog.Nop())

	opts := app.Defaults()
	opts.MaxReviews = 2
	raws := []domain.RawReview{{Text: "one fine"}, {Text: "two fine"}, {Text: "three fine"}}

	res, err := p.Run(context.Background(), raws, opts)
	if !errors.Is(err, domain.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no partial output, got %+v", res)
	}
	if atomic.LoadInt32(&c.calls) != 0 {
		t.Fatalf("classifier called %d times before the cap check", c.calls)
	}
}

func TestRun_RejectsOversizedReview(t *testing.T) {
	p := app.New(&fakeClassifier{score: wordScore}, restaurantExtractor(), nil, 0, zerolog.Nop())

	opts := app.Defaults()
	opts.MaxReviewBytes = 16
	raws := []domain.RawReview{{Text: "short one"}, {Text: strings.Repeat("long ", 10)}}

	_, err := p.Run(context.Background(), raws, opts)
	if !errors.Is(err, domain.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestRun_NilClassifierErrors(t *testing.T) {
	p := app.New(nil, restaurantExtractor(), nil, 0, zerolog.Nop())
	if _, err := p.Run(context.Background(), nil, app.Defaults()); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestRun_EmptyInput(t *testing.T) {
	p := app.New(&fakeClassifier{score: wordScore}, restaurantExtractor(), nil, 0, zerolog.Nop())
	res, err := p.Run(context.Background(), nil, app.Defaults())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Reviews) != 0 || res.Summary.TotalRows != 0 || res.Summary.Degraded {
		t.Fatalf("unexpected result for empty input: %+v", res)
	}
}

func TestRun_DedupeDisabled(t *testing.T) {
	p := app.New(&fakeClassifier{score: wordScore}, restaurantExtractor(), nil, 0, zerolog.Nop())

	opts := app.Defaults()
	opts.Dedupe = false
	raws := []domain.RawReview{{Text: "Rude staff"}, {Text: "Rude staff"}}

	res, err := p.Run(context.Background(), raws, opts)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.Summary.Representatives != 2 || res.Summary.Duplicates != 0 {
		t.Fatalf("dedupe ran anyway: %+v", res.Summary)
	}
}

func TestRun_SentimentOnlyWithoutExtractor(t *testing.T) {
	p := app.New(&fakeClassifier{score: wordScore}, nil, nil, 0, zerolog.Nop())

	res, err := p.Run(context.Background(), []domain.RawReview{{Text: "Great food here"}}, app.Defaults())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	s := res.Summary
	if !s.Degraded || s.DegradedReason != "aspect service not configured" {
		t.Fatalf("unexpected degradation: %+v", s)
	}
	rv := res.Reviews[0]
	if !rv.AspectsUnavailable || len(rv.Aspects) != 0 {
		t.Fatalf("review not flagged: %+v", rv)
	}
	if rv.SentimentLabel != domain.SentimentPositive {
		t.Fatalf("sentiment lost in sentiment-only mode: %+v", rv)
	}
}

func TestRun_DegradesOnFatalServiceButCompletes(t *testing.T) {
	x := &fakeExtractor{fn: func(string) ([]domain.AspectFinding, error) {
		return nil, fmt.Errorf("key rejected: %w", domain.ErrFatalService)
	}}
	p := app.New(&fakeClassifier{score: wordScore}, x, nil, 0, zerolog.Nop())

	opts := app.Defaults()
	opts.AspectWorkers = 1
	raws := []domain.RawReview{{Text: "Great food here"}, {Text: "Rude staff"}, {Text: "fine enough place"}}

	res, err := p.Run(context.Background(), raws, opts)
	if err != nil {
		t.Fatalf("degraded run must still complete: %v", err)
	}
	if !res.Summary.Degraded || res.Summary.AspectFailures == 0 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
	if len(res.Reviews) != 3 {
		t.Fatalf("reviews = %d, want 3", len(res.Reviews))
	}
	for i, rv := range res.Reviews {
		if !rv.AspectsUnavailable || len(rv.Aspects) != 0 {
			t.Fatalf("review %d not flagged: %+v", i, rv)
		}
		if rv.SentimentLabel == "" {
			t.Fatalf("review %d lost sentiment: %+v", i, rv)
		}
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := app.New(&fakeClassifier{score: wordScore}, restaurantExtractor(), nil, 0, zerolog.Nop())
	_, err := p.Run(ctx, []domain.RawReview{{Text: "Great food here"}}, app.Defaults())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
