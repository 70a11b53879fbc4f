package app

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"review_pulse/internal/domain"
)

var (
	htmlTagRE = regexp.MustCompile(`<[^>]+>`)
	urlRE     = regexp.MustCompile(`http[s]?://(?:[a-zA-Z0-9]|[$-_@.&+]|[!*(),]|%[0-9a-fA-F]{2})+`)
	emailRE   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	spaceRE   = regexp.MustCompile(`\s+`)
)

// CleanText strips HTML tags, URLs and email addresses, collapses whitespace
// runs to single spaces, and trims.
func CleanText(s string) string {
	s = htmlTagRE.ReplaceAllString(s, "")
	s = urlRE.ReplaceAllString(s, "")
	s = emailRE.ReplaceAllString(s, "")
	s = spaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type Normalizer struct {
	filterLanguage bool
	targetLanguage string
	log            zerolog.Logger
}

func NewNormalizer(filterLanguage bool, targetLanguage string, log zerolog.Logger) *Normalizer {
	if targetLanguage == "" {
		targetLanguage = "en"
	}
	return &Normalizer{
		filterLanguage: filterLanguage,
		targetLanguage: strings.ToLower(targetLanguage),
		log:            log,
	}
}

// Clean maps raw reviews to cleaned ones, dropping reviews that are empty
// after cleaning and, when the language filter is on, reviews detected as a
// different language. Detection that cannot reach a verdict keeps the review.
// Returns the survivors in input order plus the two drop counts.
func (n *Normalizer) Clean(in []domain.RawReview) ([]domain.CleanedReview, int, int) {
	out := make([]domain.CleanedReview, 0, len(in))
	var droppedEmpty, droppedLang int
	for i := range in {
		text := CleanText(in[i].Text)
		if text == "" {
			droppedEmpty++
			n.log.Debug().Int("index", i).Msg("review empty after cleaning, dropped")
			continue
		}
		if n.filterLanguage {
			if lang, ok := detectLanguage(text); ok && lang != n.targetLanguage {
				droppedLang++
				n.log.Debug().Int("index", i).Str("lang", lang).Msg("review filtered by language")
				continue
			}
		}
		out = append(out, domain.CleanedReview{RawReview: in[i], NormalizedText: text})
	}
	return out, droppedEmpty, droppedLang
}
