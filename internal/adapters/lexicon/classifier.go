// Package lexicon is the default sentiment classification capability: a
// valence word list compiled once per process. Scoring is pure per item, so
// batch boundaries never change results.
package lexicon

import (
	"context"
	"errors"
	"strings"
	"sync"

	"review_pulse/internal/domain"
)

type Model struct {
	positive map[string]struct{}
	negative map[string]struct{}
	negators map[string]struct{}
	boosters map[string]struct{}
}

var (
	once    sync.Once
	shared  *Model
	loadErr error
)

// Load compiles the embedded lexicon on first use and memoizes the outcome,
// model or error, for the rest of the process lifetime. A load failure is
// fatal to the run and is not retried per batch.
func Load() (*Model, error) {
	once.Do(func() { shared, loadErr = build() })
	return shared, loadErr
}

func build() (*Model, error) {
	m := &Model{
		positive: wordSet(positiveWords),
		negative: wordSet(negativeWords),
		negators: wordSet(negatorWords),
		boosters: wordSet(boosterWords),
	}
	if len(m.positive) == 0 || len(m.negative) == 0 {
		return nil, errors.New("lexicon: embedded word lists are empty")
	}
	return m, nil
}

// Classify scores each text independently into one of the three labels with
// a confidence in [0,1].
func (m *Model) Classify(ctx context.Context, texts []string) ([]domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Prediction, len(texts))
	for i, t := range texts {
		out[i] = m.scoreOne(t)
	}
	return out, nil
}

func (m *Model) scoreOne(text string) domain.Prediction {
	tokens := tokenize(text)
	var pos, neg float64
	for i, tok := range tokens {
		hitPos := contains(m.positive, tok)
		hitNeg := contains(m.negative, tok)
		if !hitPos && !hitNeg {
			continue
		}
		w := 1.0
		if i > 0 && contains(m.boosters, tokens[i-1]) {
			w = 1.5
		}
		if negated(m.negators, tokens, i) {
			hitPos, hitNeg = hitNeg, hitPos
		}
		if hitPos {
			pos += w
		} else if hitNeg {
			neg += w
		}
	}

	total := pos + neg
	switch {
	case total == 0:
		// no evidence reads as confidently neutral
		return domain.Prediction{Label: domain.SentimentNeutral, Score: 0.7}
	case pos == neg:
		// conflicting evidence reads as uncertain neutral
		return domain.Prediction{Label: domain.SentimentNeutral, Score: 0.5}
	case pos > neg:
		return domain.Prediction{Label: domain.SentimentPositive, Score: 0.5 + 0.5*(pos-neg)/total}
	default:
		return domain.Prediction{Label: domain.SentimentNegative, Score: 0.5 + 0.5*(neg-pos)/total}
	}
}

// negated reports whether one of the two tokens before position i negates it.
func negated(negators map[string]struct{}, tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if contains(negators, tokens[j]) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		if t := strings.Trim(f, `.,!?;:"'()[]*-`); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func contains(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
