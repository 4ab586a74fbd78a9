package lang

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"

	"github.com/DeafMist/truthguard/backend/internal/logger"
)

// MinDetectableLength is the shortest cleaned text handed to the classifier.
const MinDetectableLength = 10

var (
	digits     = regexp.MustCompile(`[0-9]`)
	nonLetters = regexp.MustCompile(`[^\p{L}\p{M}\s]`)
	spaces     = regexp.MustCompile(`\s+`)
)

// candidates restricts the classifier to catalog languages so that close
// neighbours such as Bihari, Marathi or Nepali cannot outrank Hindi.
var candidates = whatlanggo.Options{Whitelist: map[whatlanggo.Lang]bool{
	whatlanggo.Eng: true,
	whatlanggo.Hin: true,
	whatlanggo.Spa: true,
	whatlanggo.Fra: true,
	whatlanggo.Arb: true,
	whatlanggo.Deu: true,
	whatlanggo.Cmn: true,
	whatlanggo.Jpn: true,
	whatlanggo.Kor: true,
	whatlanggo.Por: true,
	whatlanggo.Rus: true,
	whatlanggo.Ita: true,
}}

// Detector adapts the whatlanggo trigram classifier to the language catalog.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	log *slog.Logger
}

// NewDetector builds a detector. A nil logger discards output.
func NewDetector(log *slog.Logger) *Detector {
	return &Detector{log: logger.Discard(log)}
}

// Detect returns the best-matching language code for text, or English when
// the text is too short, the match is unreliable, or classification fails.
func (d *Detector) Detect(text string) (code Code) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("language detection panicked, using default", slog.Any("panic", r))
			code = Default
		}
	}()

	cleaned := CleanForDetection(text)
	if utf8.RuneCountInString(cleaned) < MinDetectableLength {
		return Default
	}

	info := whatlanggo.DetectWithOptions(cleaned, candidates)
	if !info.IsReliable() {
		d.log.Debug("language detection not reliable, using default",
			slog.String("candidate", info.Lang.String()),
			slog.Float64("confidence", info.Confidence),
		)
		return Default
	}

	iso := info.Lang.Iso6391()
	if iso == "" {
		iso = info.Lang.Iso6393()
	}
	if iso == "" {
		return Default
	}
	code = Canonical(Code(iso))
	d.log.Debug("language detected",
		slog.String("language", string(code)),
		slog.Float64("confidence", info.Confidence),
	)
	return code
}

// CleanForDetection strips digits and everything that is not a letter,
// combining mark or whitespace, then collapses whitespace. Marks carry the
// vowel signs of Indic scripts.
func CleanForDetection(text string) string {
	text = digits.ReplaceAllString(text, "")
	text = nonLetters.ReplaceAllString(text, "")
	text = spaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
