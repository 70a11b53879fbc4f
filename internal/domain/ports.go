package domain

import "context"

// Prediction is one classifier verdict: the arg-max label and its
// confidence in [0,1].
type Prediction struct {
	Label SentimentLabel
	Score float64
}

// Classifier scores a batch of normalized texts. Implementations must be
// pure per item: splitting or merging batches never changes per-item
// results. The backing resource is loaded once per process.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]Prediction, error)
}

// AspectExtractor calls the external language-understanding service for a
// single review. Calls are read-only on the service side, so retrying the
// same text is safe. Errors wrap ErrRetryable (after internal retries were
// exhausted), ErrFatalService, or ErrBadPayload.
type AspectExtractor interface {
	Extract(ctx context.Context, reviewText string) ([]AspectFinding, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
