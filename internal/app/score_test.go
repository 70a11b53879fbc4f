package app_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"review_pulse/internal/app"
	"review_pulse/internal/domain"
)

// ---- fakes ----

type fakeClassifier struct {
	calls int32
	err   error
	short bool // drop one prediction to simulate a count mismatch
	score func(text string) domain.Prediction
}

func (f *fakeClassifier) Classify(ctx context.Context, texts []string) ([]domain.Prediction, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Prediction, 0, len(texts))
	for _, tx := range texts {
		p := domain.Prediction{Label: domain.SentimentNeutral, Score: 0.7}
		if f.score != nil {
			p = f.score(tx)
		}
		out = append(out, p)
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func wordScore(text string) domain.Prediction {
	switch t := strings.ToLower(text); {
	case strings.Contains(t, "great"):
		return domain.Prediction{Label: domain.SentimentPositive, Score: 0.9}
	case strings.Contains(t, "rude"):
		return domain.Prediction{Label: domain.SentimentNegative, Score: 0.8}
	}
	return domain.Prediction{Label: domain.SentimentNeutral, Score: 0.6}
}

func reps(texts ...string) []domain.Representative {
	out := make([]domain.Representative, len(texts))
	for i, s := range texts {
		out[i] = domain.Representative{
			CleanedReview: domain.CleanedReview{RawReview: domain.RawReview{Text: s}, NormalizedText: s},
		}
	}
	return out
}

// ---- tests ----

func TestScore_BatchSizeDoesNotChangeResults(t *testing.T) {
	in := reps(
		"great pasta", "rude waiter", "fine", "great view",
		"rude host", "nothing special", "great value",
	)

	small := &fakeClassifier{score: wordScore}
	gotSmall, fb1, err := app.NewScorer(small, 2, zerolog.Nop()).Score(context.Background(), in)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	big := &fakeClassifier{score: wordScore}
	gotBig, fb2, err := app.NewScorer(big, 100, zerolog.Nop()).Score(context.Background(), in)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if fb1 != 0 || fb2 != 0 {
		t.Fatalf("fallbacks: %d and %d, want 0", fb1, fb2)
	}
	// batching actually happened
	if atomic.LoadInt32(&small.calls) != 4 || atomic.LoadInt32(&big.calls) != 1 {
		t.Fatalf("calls: small=%d big=%d", small.calls, big.calls)
	}
	for i := range in {
		if gotSmall[i].SentimentLabel != gotBig[i].SentimentLabel || gotSmall[i].SentimentScore != gotBig[i].SentimentScore {
			t.Fatalf("item %d differs across batch sizes: %+v vs %+v", i, gotSmall[i], gotBig[i])
		}
		if gotSmall[i].NormalizedText != in[i].NormalizedText {
			t.Fatalf("order broken at %d: %q", i, gotSmall[i].NormalizedText)
		}
	}
}

func TestScore_BatchFailureFallsBackNeutral(t *testing.T) {
	in := reps("great pasta", "rude waiter", "fine")
	c := &fakeClassifier{err: errors.New("model unavailable")}

	out, fallbacks, err := app.NewScorer(c, 32, zerolog.Nop()).Score(context.Background(), in)
	if err != nil {
		t.Fatalf("batch failure must not abort the run: %v", err)
	}
	if fallbacks != 3 {
		t.Fatalf("fallbacks = %d, want 3", fallbacks)
	}
	for i := range out {
		if out[i].SentimentLabel != domain.SentimentNeutral || out[i].SentimentScore != 0.0 {
			t.Fatalf("item %d not neutral fallback: %+v", i, out[i])
		}
	}
}

func TestScore_CountMismatchFallsBackNeutral(t *testing.T) {
	in := reps("great pasta", "rude waiter")
	c := &fakeClassifier{score: wordScore, short: true}

	out, fallbacks, err := app.NewScorer(c, 32, zerolog.Nop()).Score(context.Background(), in)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if fallbacks != 2 {
		t.Fatalf("fallbacks = %d, want 2", fallbacks)
	}
	for i := range out {
		if out[i].SentimentLabel != domain.SentimentNeutral || out[i].SentimentScore != 0.0 {
			t.Fatalf("item %d not neutral fallback: %+v", i, out[i])
		}
	}
}

func TestScore_InvalidPredictionFallsBack(t *testing.T) {
	in := reps("great pasta", "weird one", "nan one")
	c := &fakeClassifier{score: func(text string) domain.Prediction {
		switch text {
		case "weird one":
			return domain.Prediction{Label: "meh", Score: 0.9}
		case "nan one":
			return domain.Prediction{Label: domain.SentimentPositive, Score: math.NaN()}
		}
		return domain.Prediction{Label: domain.SentimentPositive, Score: 0.9}
	}}

	out, fallbacks, err := app.NewScorer(c, 32, zerolog.Nop()).Score(context.Background(), in)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if fallbacks != 2 {
		t.Fatalf("fallbacks = %d, want 2", fallbacks)
	}
	if out[0].SentimentLabel != domain.SentimentPositive || out[0].SentimentScore != 0.9 {
		t.Fatalf("valid item mangled: %+v", out[0])
	}
	for _, i := range []int{1, 2} {
		if out[i].SentimentLabel != domain.SentimentNeutral || out[i].SentimentScore != 0.0 {
			t.Fatalf("item %d not neutral fallback: %+v", i, out[i])
		}
	}
}

func TestScore_ContextCanceledAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := app.NewScorer(&fakeClassifier{score: wordScore}, 32, zerolog.Nop()).
		Score(ctx, reps("great pasta"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
