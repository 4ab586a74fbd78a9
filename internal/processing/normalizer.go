package processing

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/profile"
)

// maxPasses bounds the fixpoint loop. Normal input settles after two.
const maxPasses = 8

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	urlLike    = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)
	emailLike  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	whitespace = regexp.MustCompile(`[\s\v\x{85}\p{Z}]+`)

	repeatedMarks = []struct {
		re   *regexp.Regexp
		mark string
	}{
		{regexp.MustCompile(`!{2,}`), "!"},
		{regexp.MustCompile(`\?{2,}`), "?"},
		{regexp.MustCompile(`\.{2,}`), "."},
		{regexp.MustCompile(`,{2,}`), ","},
		{regexp.MustCompile(`;{2,}`), ";"},
		{regexp.MustCompile(`:{2,}`), ":"},
	}
)

// Token boundaries are anything that is not a letter, mark, digit or
// underscore, so the rules work for Devanagari and Arabic script as well.
const (
	boundaryBefore = `(^|[^\p{L}\p{M}\p{N}_])`
	boundaryAfter  = `([^\p{L}\p{M}\p{N}_]|$)`
)

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// Normalizer cleans text before feature extraction. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	log     *slog.Logger
	rules   map[lang.Code][]compiledRule
	generic []compiledRule
}

// NewNormalizer compiles the replacement rules of every profile in reg.
func NewNormalizer(reg *profile.Registry, log *slog.Logger) (*Normalizer, error) {
	log = logger.Discard(log)
	n := &Normalizer{log: log, rules: make(map[lang.Code][]compiledRule)}

	for _, code := range reg.Codes() {
		compiled, err := compileRules(reg.Lookup(code).Rules)
		if err != nil {
			return nil, fmt.Errorf("compile rules for %s: %w", code, err)
		}
		n.rules[code] = compiled
	}
	generic, err := compileRules(reg.Generic().Rules)
	if err != nil {
		return nil, fmt.Errorf("compile generic rules: %w", err)
	}
	n.generic = generic
	return n, nil
}

func compileRules(rules []profile.Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		alts := make([]string, 0, len(rule.Match))
		for _, m := range rule.Match {
			alts = append(alts, regexp.QuoteMeta(m))
		}
		re, err := regexp.Compile(boundaryBefore + `(?:` + strings.Join(alts, "|") + `)` + boundaryAfter)
		if err != nil {
			return nil, err
		}
		out = append(out, compiledRule{re: re, replacement: "${1}" + escapeReplacement(rule.Replace) + "${2}"})
	}
	return out, nil
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// Normalize strips markup, URLs and e-mail addresses, applies the
// language's replacement rules, and collapses whitespace and repeated
// punctuation. Normalizing its own output returns it unchanged. A panic
// while normalizing yields the input unchanged.
func (n *Normalizer) Normalize(text string, code lang.Code) (out string) {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn("normalization panicked, returning input", slog.Any("panic", r), slog.String("language", string(code)))
			out = text
		}
	}()

	rules, ok := n.rules[lang.Canonical(code)]
	if !ok {
		rules = n.generic
	}

	out = text
	for i := 0; i < maxPasses; i++ {
		next := pass(out, rules)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func pass(text string, rules []compiledRule) string {
	text = htmlTag.ReplaceAllString(text, " ")
	text = urlLike.ReplaceAllString(text, " ")
	text = emailLike.ReplaceAllString(text, " ")
	for _, rule := range rules {
		text = applyRule(text, rule)
	}
	text = whitespace.ReplaceAllString(text, " ")
	for _, rm := range repeatedMarks {
		text = rm.re.ReplaceAllString(text, rm.mark)
	}
	return strings.TrimSpace(text)
}

// applyRule repeats the replacement because a match consumes the boundary
// character, which hides an immediately adjacent second occurrence.
func applyRule(text string, rule compiledRule) string {
	for i := 0; i < maxPasses; i++ {
		next := rule.re.ReplaceAllString(text, rule.replacement)
		if next == text {
			return text
		}
		text = next
	}
	return text
}
