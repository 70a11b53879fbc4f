package app

import "strings"

// Stopword-based language detection. The filter is advisory and fail-open:
// anything short of a clear stopword verdict keeps the review.
var stopwords = map[string]map[string]struct{}{
	"en": wordSet(`the a an and or but is are was were be been being it its this that these those
		i you he she we they them of in on at to for with from by not no nor very really so too
		as do did does done have has had having there here what when where which who all just
		about more most than then once only own same`),
	"es": wordSet(`el la los las un una unos unas y o pero es son era eran fue ser esta estan
		esto ese esa esos esas de del en a al para con por no muy tambien como mas que se lo le
		les nos mi tu su ya si cuando donde todo todos`),
	"fr": wordSet(`le la les un une des et ou mais est sont etait ete etre ce cette ces de du
		dans sur pour avec par ne pas tres aussi comme plus que se qui nous vous ils elles je tu
		il elle mon ton son quand ou tout tous`),
	"de": wordSet(`der die das den dem ein eine einen und oder aber ist sind war waren sein es
		dies diese dieser dieses von in auf zu fur mit aus bei nicht kein sehr auch wie mehr
		dass sich wir ihr sie ich du er man alle`),
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

// detectLanguage guesses the language of text from stopword hits. ok is
// false when the text carries too little signal for a verdict (fewer than
// three tokens, no hits, or a tie between languages); callers treat that as
// "keep".
func detectLanguage(text string) (string, bool) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) < 3 {
		return "", false
	}
	scores := make(map[string]int, len(stopwords))
	for _, t := range tokens {
		t = strings.Trim(t, ".,!?;:\"'()[]")
		for lang, set := range stopwords {
			if _, ok := set[t]; ok {
				scores[lang]++
			}
		}
	}
	best, bestScore, tie := "", 0, false
	for _, lang := range []string{"en", "es", "fr", "de"} {
		switch sc := scores[lang]; {
		case sc > bestScore:
			best, bestScore, tie = lang, sc, false
		case sc == bestScore && sc > 0:
			tie = true
		}
	}
	if bestScore < 2 || tie {
		return "", false
	}
	return best, true
}
