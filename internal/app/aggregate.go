package app

import (
	"sort"
	"strings"

	"review_pulse/internal/domain"
)

// AggregateAspects folds validated findings into per-aspect statistics:
// mention counts by sentiment, the positive share of mentions, and the topN
// quotes ranked by the parent review's sentiment confidence. Aggregates are
// sorted by mention count descending, name ascending on ties.
func AggregateAspects(reviews []domain.EnrichedReview, topN int) []domain.AspectAggregate {
	type bucket struct {
		agg    domain.AspectAggregate
		quotes []domain.AspectQuote
	}
	buckets := make(map[string]*bucket)

	for _, rv := range reviews {
		for _, f := range rv.Aspects {
			name := strings.ToLower(strings.TrimSpace(f.AspectName))
			if name == "" {
				continue
			}
			b := buckets[name]
			if b == nil {
				b = &bucket{agg: domain.AspectAggregate{Name: name}}
				buckets[name] = b
			}
			b.agg.Mentions++
			switch f.AspectSentiment {
			case domain.SentimentPositive:
				b.agg.Positive++
			case domain.SentimentNegative:
				b.agg.Negative++
			default:
				b.agg.Neutral++
			}
			b.quotes = append(b.quotes, domain.AspectQuote{
				Quote:     f.Quote,
				Sentiment: f.AspectSentiment,
				Score:     rv.SentimentScore,
			})
		}
	}

	out := make([]domain.AspectAggregate, 0, len(buckets))
	for _, b := range buckets {
		if b.agg.Mentions > 0 {
			b.agg.PositiveRatio = float64(b.agg.Positive) / float64(b.agg.Mentions)
		}
		sort.SliceStable(b.quotes, func(i, j int) bool { return b.quotes[i].Score > b.quotes[j].Score })
		if topN > 0 && len(b.quotes) > topN {
			b.quotes = b.quotes[:topN]
		}
		b.agg.TopQuotes = b.quotes
		out = append(out, b.agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].Name < out[j].Name
	})
	return out
}
