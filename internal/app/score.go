package app

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"review_pulse/internal/domain"
)

// Scorer classifies representatives in fixed-size batches. The batch size
// bounds peak memory only; per-item results are identical at any batch size.
type Scorer struct {
	classifier domain.Classifier
	batchSize  int
	log        zerolog.Logger
}

func NewScorer(c domain.Classifier, batchSize int, log zerolog.Logger) *Scorer {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Scorer{classifier: c, batchSize: batchSize, log: log}
}

// Score returns one ScoredReview per input, in input order, plus the number
// of items that fell back to the neutral default. A failed item or batch is
// absorbed into the fallback; only context cancellation aborts.
func (s *Scorer) Score(ctx context.Context, reps []domain.Representative) ([]domain.ScoredReview, int, error) {
	out := make([]domain.ScoredReview, len(reps))
	fallbacks := 0

	for start := 0; start < len(reps); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		end := start + s.batchSize
		if end > len(reps) {
			end = len(reps)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = reps[i].NormalizedText
		}

		preds, err := s.classifier.Classify(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			s.log.Warn().Err(err).Int("batch_start", start).Int("batch_size", len(texts)).
				Msg("classifier batch failed; items fall back to neutral")
			preds = nil
		} else if len(preds) != len(texts) {
			s.log.Warn().Int("want", len(texts)).Int("got", len(preds)).
				Msg("classifier returned wrong prediction count; items fall back to neutral")
			preds = nil
		}

		for i := start; i < end; i++ {
			out[i] = domain.ScoredReview{Representative: reps[i]}
			pred := domain.Prediction{}
			if preds != nil {
				pred = preds[i-start]
			}
			if preds == nil || texts[i-start] == "" || !validPrediction(pred) {
				out[i].SentimentLabel = domain.SentimentNeutral
				out[i].SentimentScore = 0.0
				fallbacks++
				continue
			}
			out[i].SentimentLabel = pred.Label
			out[i].SentimentScore = pred.Score
		}
	}
	return out, fallbacks, nil
}

func validPrediction(p domain.Prediction) bool {
	if _, ok := domain.ParseSentiment(string(p.Label)); !ok {
		return false
	}
	return !math.IsNaN(p.Score) && p.Score >= 0 && p.Score <= 1
}
