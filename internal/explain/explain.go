package explain

import (
	"fmt"
	"strings"

	"github.com/DeafMist/truthguard/backend/internal/features"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/profile"
	"github.com/DeafMist/truthguard/backend/internal/scoring"
)

// Factor thresholds.
const (
	exclamationThreshold = 3
	capitalThreshold     = 0.3
	highConfidence       = 0.8
	mediumConfidence     = 0.6
)

// Generator renders localized explanations and recommendations.
type Generator struct {
	profiles *profile.Registry
}

// NewGenerator builds a generator over the given profiles.
func NewGenerator(profiles *profile.Registry) *Generator {
	return &Generator{profiles: profiles}
}

// Explain returns the explanation and recommendation for a verdict.
func (g *Generator) Explain(v features.Vector, res scoring.Result, code lang.Code) (explanation, recommendation string) {
	p := g.profiles.Lookup(code)
	return Explanation(v, res, p), Recommendation(res.Confidence, p)
}

// Explanation builds the verdict line followed by the key factor list.
func Explanation(v features.Vector, res scoring.Result, p *profile.Profile) string {
	var b strings.Builder
	if res.IsFake {
		b.WriteString(p.Text(profile.KeyLikelyFake))
	} else {
		b.WriteString(p.Text(profile.KeyLikelyReal))
	}
	fmt.Fprintf(&b, " (%.1f%% %s)", res.Confidence*100, p.Text(profile.KeyConfidence))

	factors := Factors(v, p)
	if len(factors) > 0 {
		b.WriteString("\n\n")
		b.WriteString(p.Text(profile.KeyKeyFactors))
		b.WriteString(":\n")
		for _, f := range factors {
			b.WriteString("• ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Factors lists the localized phrases for the signals present in v.
func Factors(v features.Vector, p *profile.Profile) []string {
	var out []string
	if v[features.SensationalWords] > 0 {
		out = append(out, p.Text(profile.KeyFactorSensational))
	}
	if v[features.ClickbaitPhrases] > 0 {
		out = append(out, p.Text(profile.KeyFactorClickbait))
	}
	if v[features.ExclamationCount] > exclamationThreshold {
		out = append(out, p.Text(profile.KeyFactorExclamation))
	}
	if v[features.CapitalRatio] > capitalThreshold {
		out = append(out, p.Text(profile.KeyFactorCapitals))
	}
	return out
}

// Recommendation picks the advice for a confidence band.
func Recommendation(confidence float64, p *profile.Profile) string {
	switch {
	case confidence > highConfidence:
		return p.Text(profile.KeyHighConfidence)
	case confidence > mediumConfidence:
		return p.Text(profile.KeyMediumConfidence)
	default:
		return p.Text(profile.KeyLowConfidence)
	}
}
