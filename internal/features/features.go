package features

import (
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/profile"
)

// Feature names, in canonical order.
const (
	TitleLength        = "title_length"
	ContentLength      = "content_length"
	TitleWordCount     = "title_word_count"
	ContentWordCount   = "content_word_count"
	TitleSentiment     = "title_sentiment"
	ContentSentiment   = "content_sentiment"
	TitleReadability   = "title_readability"
	ContentReadability = "content_readability"
	ExclamationCount   = "exclamation_count"
	QuestionCount      = "question_count"
	CapitalRatio       = "capital_ratio"
	NumberCount        = "number_count"
	HasURL             = "has_url"
	HasAuthor          = "has_author"
	SensationalWords   = "sensational_words"
	ClickbaitPhrases   = "clickbait_phrases"
)

var catalog = []string{
	TitleLength, ContentLength,
	TitleWordCount, ContentWordCount,
	TitleSentiment, ContentSentiment,
	TitleReadability, ContentReadability,
	ExclamationCount, QuestionCount,
	CapitalRatio, NumberCount,
	HasURL, HasAuthor,
	SensationalWords, ClickbaitPhrases,
}

// Names returns the feature catalog in canonical order.
func Names() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// Vector maps every catalog feature to a finite value.
type Vector map[string]float64

// Zero returns a vector with every catalog feature set to 0.
func Zero() Vector {
	v := make(Vector, len(catalog))
	for _, name := range catalog {
		v[name] = 0
	}
	return v
}

var (
	sentenceBreaks = regexp.MustCompile(`[.!?]+`)
	vowelRuns      = regexp.MustCompile(`[aeiou]+`)
)

var authorIndicators = []string{"by", "author", "written by", "reported by"}

var urlMarkers = []string{"http://", "https://", "www."}

// Extractor computes feature vectors from normalized text.
type Extractor struct {
	profiles *profile.Registry
	log      *slog.Logger
}

// NewExtractor builds an extractor over the given profiles.
func NewExtractor(profiles *profile.Registry, log *slog.Logger) *Extractor {
	log = logger.Discard(log)
	return &Extractor{profiles: profiles, log: log}
}

// Extract computes the full vector for a title and content pair. The result
// always has every catalog key; a panic yields the zero vector.
func (e *Extractor) Extract(title, content string, code lang.Code) (v Vector) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("feature extraction panicked, using zero vector", slog.Any("panic", r))
			v = Zero()
		}
	}()

	p := e.profiles.Lookup(code)
	lower := cases.Lower(p.Tag)
	combined := title + " " + content
	combinedLower := lower.String(combined)

	v = Zero()
	v[TitleLength] = float64(utf8.RuneCountInString(title))
	v[ContentLength] = float64(utf8.RuneCountInString(content))
	v[TitleWordCount] = float64(len(strings.Fields(title)))
	v[ContentWordCount] = float64(len(strings.Fields(content)))
	v[TitleSentiment] = sentiment(lower.String(title), p)
	v[ContentSentiment] = sentiment(lower.String(content), p)
	v[TitleReadability] = readability(title, lower.String(title))
	v[ContentReadability] = readability(content, lower.String(content))
	v[ExclamationCount] = float64(strings.Count(combined, "!"))
	v[QuestionCount] = float64(strings.Count(combined, "?"))
	v[CapitalRatio] = capitalRatio(combined)
	v[NumberCount] = float64(countRunes(combined, unicode.IsDigit))
	v[HasURL] = boolFloat(containsAny(combined, urlMarkers))
	v[HasAuthor] = boolFloat(containsAny(combinedLower, authorIndicators))
	v[SensationalWords] = float64(countContained(combinedLower, p.Sensational))
	v[ClickbaitPhrases] = float64(countContained(combinedLower, p.Clickbait))

	for name, value := range v {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			v[name] = 0
		}
	}
	return v
}

func sentiment(lowered string, p *profile.Profile) float64 {
	var pos, neg int
	for _, token := range strings.Fields(lowered) {
		if slices.Contains(p.Positive, token) {
			pos++
		}
		if slices.Contains(p.Negative, token) {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// readability is a Flesch reading ease proxy. Syllables are approximated by
// the number of segments between vowel runs.
func readability(text, lowered string) float64 {
	words := len(strings.Fields(text))
	sentences := segments(sentenceBreaks, text)
	if words == 0 || sentences == 0 {
		return 0
	}
	syllables := segments(vowelRuns, lowered)
	return 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
}

// segments counts the pieces of s split on re, ignoring trailing empty
// pieces. Text without any separator is one segment.
func segments(re *regexp.Regexp, s string) int {
	parts := re.Split(s, -1)
	if len(parts) == 1 {
		return 1
	}
	n := len(parts)
	for n > 0 && parts[n-1] == "" {
		n--
	}
	return n
}

func capitalRatio(s string) float64 {
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return 0
	}
	return float64(countRunes(s, unicode.IsUpper)) / float64(total)
}

func countRunes(s string, pred func(rune) bool) int {
	n := 0
	for _, r := range s {
		if pred(r) {
			n++
		}
	}
	return n
}

func countContained(s string, list []string) int {
	n := 0
	for _, item := range list {
		if item != "" && strings.Contains(s, item) {
			n++
		}
	}
	return n
}

func containsAny(s string, list []string) bool {
	return countContained(s, list) > 0
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
