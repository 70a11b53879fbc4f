package domain

import (
	"strings"
	"time"
)

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// ParseSentiment folds arbitrary service output onto the three labels.
// ok is false for anything outside the set.
func ParseSentiment(s string) (SentimentLabel, bool) {
	switch SentimentLabel(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, true
	case SentimentNegative:
		return SentimentNegative, true
	case SentimentNeutral:
		return SentimentNeutral, true
	}
	return "", false
}

type RawReview struct {
	Text   string     `json:"review_text"`
	Rating *float64   `json:"rating,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
	Source *string    `json:"source,omitempty"`
}

type CleanedReview struct {
	RawReview
	NormalizedText string `json:"normalized_text"`
}

// Representative stands in for a cluster of near-duplicates.
// DuplicateCount is the number of collapsed variants (0 for a singleton).
type Representative struct {
	CleanedReview
	DuplicateCount int `json:"duplicate_count"`
}

type ScoredReview struct {
	Representative
	SentimentLabel SentimentLabel `json:"sentiment_label"`
	SentimentScore float64        `json:"sentiment_score"`
}

type AspectFinding struct {
	AspectName      string         `json:"aspect_name"`
	AspectSentiment SentimentLabel `json:"aspect_sentiment"`
	Quote           string         `json:"quote"`
}

type EnrichedReview struct {
	ScoredReview
	Aspects            []AspectFinding `json:"aspects"`
	AspectsUnavailable bool           `json:"aspects_unavailable,omitempty"`
}

type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

type AspectQuote struct {
	Quote     string         `json:"quote"`
	Sentiment SentimentLabel `json:"sentiment"`
	Score     float64        `json:"score"`
}

type AspectAggregate struct {
	Name          string        `json:"name"`
	Mentions      int           `json:"mentions"`
	Positive      int           `json:"positive"`
	Negative      int           `json:"negative"`
	Neutral       int           `json:"neutral"`
	PositiveRatio float64       `json:"positive_ratio"`
	TopQuotes     []AspectQuote `json:"top_quotes,omitempty"`
}

type Summary struct {
	TotalRows       int               `json:"total_rows"`
	RejectedRows    int               `json:"rejected_rows"`
	Cleaned         int               `json:"cleaned"`
	DroppedEmpty    int               `json:"dropped_empty"`
	DroppedLanguage int               `json:"dropped_language"`
	Representatives int               `json:"representatives"`
	Duplicates      int               `json:"duplicates"`
	ScoreFallbacks  int               `json:"score_fallbacks"`
	AspectFailures  int               `json:"aspect_failures"`
	InvalidFindings int               `json:"invalid_findings"`
	CacheHits       int               `json:"cache_hits"`
	Degraded        bool              `json:"degraded"`
	DegradedReason  string            `json:"degraded_reason,omitempty"`
	Sentiment       SentimentCounts   `json:"sentiment"`
	Aspects         []AspectAggregate `json:"aspects,omitempty"`
	ElapsedMS       int64             `json:"elapsed_ms"`
}

// Result is the full output of one pipeline run, handed to the
// presentation boundary as-is.
type Result struct {
	Reviews []EnrichedReview `json:"reviews"`
	Summary Summary          `json:"summary"`
}
