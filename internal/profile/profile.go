package profile

import (
	_ "embed"
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/DeafMist/truthguard/backend/internal/lang"
)

//go:embed profiles.yaml
var embedded []byte

// String table keys.
const (
	KeyLikelyFake        = "likely_fake"
	KeyLikelyReal        = "likely_real"
	KeyConfidence        = "confidence"
	KeyKeyFactors        = "key_factors"
	KeyHighConfidence    = "high_confidence"
	KeyMediumConfidence  = "medium_confidence"
	KeyLowConfidence     = "low_confidence"
	KeyFactorSensational = "factor_sensational"
	KeyFactorClickbait   = "factor_clickbait"
	KeyFactorExclamation = "factor_exclamation"
	KeyFactorCapitals    = "factor_capitals"
)

// GenericCode marks the profile serving languages outside the catalog.
const GenericCode lang.Code = "generic"

// Rule replaces any of Match, taken as a whole token, with Replace.
type Rule struct {
	Match   []string `yaml:"match"`
	Replace string   `yaml:"replace"`
}

// Weight is one feature's contribution to the score. A positive Scale
// divides the raw value before it is clamped to [-1, 1].
type Weight struct {
	Weight float64 `yaml:"weight"`
	Scale  float64 `yaml:"scale"`
}

// Calibration maps the weighted average onto a probability as
// BaseRate + (sigmoid(Gain*avg) - 0.5) * Spread, clamped to [0, 1].
// The shipped profiles use a steeper gain and wider spread than
// LegacyCalibration, whose output never exceeds 0.5.
type Calibration struct {
	Gain     float64 `yaml:"gain"`
	BaseRate float64 `yaml:"base_rate"`
	Spread   float64 `yaml:"spread"`
}

// LegacyCalibration reproduces the unscaled sigmoid used by the first
// TruthGuard release.
var LegacyCalibration = Calibration{Gain: 1, BaseRate: 0.3, Spread: 0.4}

// Profile is the complete per-language data set. Profiles are immutable
// once the registry is built.
type Profile struct {
	Code        lang.Code
	Tag         language.Tag
	ModelID     string
	Accuracy    float64
	Positive    []string
	Negative    []string
	Sensational []string
	Clickbait   []string
	StopWords   map[string]struct{}
	Rules       []Rule
	Weights     map[string]Weight
	Calibration Calibration
	Strings     map[string]string
}

// Text returns the localized string for key, or "" when even the English
// table lacks it.
func (p *Profile) Text(key string) string {
	return p.Strings[key]
}

// IsStopWord reports whether the lower-cased token is a stop word.
func (p *Profile) IsStopWord(token string) bool {
	_, ok := p.StopWords[token]
	return ok
}

type rawProfile struct {
	Tag         string            `yaml:"tag"`
	ModelID     string            `yaml:"model_id"`
	Accuracy    float64           `yaml:"accuracy"`
	Weights     string            `yaml:"weights"`
	Calibration *Calibration      `yaml:"calibration"`
	Positive    []string          `yaml:"positive"`
	Negative    []string          `yaml:"negative"`
	Sensational []string          `yaml:"sensational"`
	Clickbait   []string          `yaml:"clickbait"`
	StopWords   []string          `yaml:"stop_words"`
	Rules       []Rule            `yaml:"rules"`
	Strings     map[string]string `yaml:"strings"`
}

type rawFile struct {
	Calibration  Calibration                  `yaml:"calibration"`
	WeightTables map[string]map[string]Weight `yaml:"weight_tables"`
	Generic      rawProfile                   `yaml:"generic"`
	Languages    map[string]rawProfile        `yaml:"languages"`
}

// Registry resolves language codes to profiles.
type Registry struct {
	generic   *Profile
	languages map[lang.Code]*Profile
}

// LoadEmbedded parses the profiles shipped with the binary.
func LoadEmbedded() (*Registry, error) {
	return Load(embedded)
}

// Load parses a profile document. Every catalog language must be present.
// Languages without their own weight table, word lists or strings inherit
// them from the generic profile and the English string table.
func Load(data []byte) (*Registry, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if len(raw.WeightTables) == 0 {
		return nil, fmt.Errorf("profiles: no weight tables defined")
	}
	if err := validateCalibration(raw.Calibration); err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}

	enRaw, ok := raw.Languages[string(lang.English)]
	if !ok {
		return nil, fmt.Errorf("profiles: missing language %q", lang.English)
	}
	baseStrings := enRaw.Strings

	generic, err := build(GenericCode, raw.Generic, raw, nil, baseStrings)
	if err != nil {
		return nil, fmt.Errorf("profiles: generic: %w", err)
	}

	reg := &Registry{generic: generic, languages: make(map[lang.Code]*Profile, len(raw.Languages))}
	for key, rp := range raw.Languages {
		code := lang.Canonical(lang.Code(key))
		p, err := build(code, rp, raw, generic, baseStrings)
		if err != nil {
			return nil, fmt.Errorf("profiles: %s: %w", code, err)
		}
		reg.languages[code] = p
	}

	for _, code := range lang.Supported() {
		if _, ok := reg.languages[code]; !ok {
			return nil, fmt.Errorf("profiles: missing language %q", code)
		}
	}
	return reg, nil
}

func build(code lang.Code, rp rawProfile, file rawFile, fallback *Profile, baseStrings map[string]string) (*Profile, error) {
	if rp.ModelID == "" {
		return nil, fmt.Errorf("model_id is required")
	}
	if rp.Accuracy < 0 || rp.Accuracy > 1 {
		return nil, fmt.Errorf("accuracy %v out of range", rp.Accuracy)
	}

	tag := language.Und
	if rp.Tag != "" {
		parsed, err := language.Parse(rp.Tag)
		if err != nil {
			return nil, fmt.Errorf("parse tag %q: %w", rp.Tag, err)
		}
		tag = parsed
	}

	p := &Profile{
		Code:        code,
		Tag:         tag,
		ModelID:     rp.ModelID,
		Accuracy:    rp.Accuracy,
		Positive:    rp.Positive,
		Negative:    rp.Negative,
		Sensational: rp.Sensational,
		Clickbait:   rp.Clickbait,
		Rules:       rp.Rules,
		Calibration: file.Calibration,
		StopWords:   make(map[string]struct{}, len(rp.StopWords)),
		Strings:     make(map[string]string, len(baseStrings)),
	}

	tableName := rp.Weights
	if tableName == "" && fallback != nil {
		p.Weights = fallback.Weights
	} else {
		table, ok := file.WeightTables[tableName]
		if !ok {
			return nil, fmt.Errorf("unknown weight table %q", tableName)
		}
		p.Weights = table
	}

	if rp.Calibration != nil {
		if err := validateCalibration(*rp.Calibration); err != nil {
			return nil, err
		}
		p.Calibration = *rp.Calibration
	}

	if fallback != nil {
		if len(p.Positive) == 0 && len(p.Negative) == 0 {
			p.Positive, p.Negative = fallback.Positive, fallback.Negative
		}
	}

	for _, w := range rp.StopWords {
		p.StopWords[w] = struct{}{}
	}

	for i, rule := range p.Rules {
		if len(rule.Match) == 0 {
			return nil, fmt.Errorf("rule %d has no alternatives", i)
		}
	}

	for k, v := range baseStrings {
		p.Strings[k] = v
	}
	for k, v := range rp.Strings {
		p.Strings[k] = v
	}
	return p, nil
}

func validateCalibration(c Calibration) error {
	if c.Gain <= 0 {
		return fmt.Errorf("calibration gain must be positive")
	}
	if c.BaseRate < 0 || c.BaseRate > 1 {
		return fmt.Errorf("calibration base_rate must be within [0,1]")
	}
	if c.Spread < 0 {
		return fmt.Errorf("calibration spread cannot be negative")
	}
	return nil
}

// Lookup returns the profile for code, or the generic profile when the code
// is outside the catalog. It never returns nil.
func (r *Registry) Lookup(code lang.Code) *Profile {
	if p, ok := r.languages[lang.Canonical(code)]; ok {
		return p
	}
	return r.generic
}

// Generic returns the fallback profile.
func (r *Registry) Generic() *Profile {
	return r.generic
}

// HasModel reports whether code has a dedicated model profile.
func (r *Registry) HasModel(code lang.Code) bool {
	_, ok := r.languages[lang.Canonical(code)]
	return ok
}

// Codes lists the languages with dedicated profiles, sorted.
func (r *Registry) Codes() []lang.Code {
	out := make([]lang.Code, 0, len(r.languages))
	for code := range r.languages {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
