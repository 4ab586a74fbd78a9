package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/truthguard/backend/internal/explain"
	"github.com/DeafMist/truthguard/backend/internal/features"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/processing"
	"github.com/DeafMist/truthguard/backend/internal/profile"
	"github.com/DeafMist/truthguard/backend/internal/scoring"
)

// ErrNilInput is returned by Analyze for a nil input.
var ErrNilInput = errors.New("analysis: nil input")

// Keyword extraction parameters.
const (
	keywordLimit     = 5
	keywordMinLength = 4
)

// Detector identifies the language of a text.
type Detector interface {
	Detect(text string) lang.Code
}

// Result is the full outcome of one analysis.
type Result struct {
	Title          string          `json:"newsTitle"`
	Content        string          `json:"newsContent"`
	SourceURL      string          `json:"sourceUrl,omitempty"`
	Author         string          `json:"author,omitempty"`
	Language       lang.Code       `json:"detectedLanguage"`
	IsFake         bool            `json:"isFakeNews"`
	Probability    float64         `json:"fakeProbability"`
	Confidence     float64         `json:"confidenceScore"`
	ModelID        string          `json:"modelUsed"`
	Features       features.Vector `json:"featureScores"`
	FeatureNames   []string        `json:"analysisFeatures"`
	Explanation    string          `json:"explanation"`
	Recommendation string          `json:"recommendation"`
	Keywords       []string        `json:"keywords"`
	DurationMs     int64           `json:"analysisDurationMs"`
}

// Pipeline runs detection, normalization, feature extraction, scoring and
// explanation. It is safe for concurrent use.
type Pipeline struct {
	profiles   *profile.Registry
	detector   Detector
	normalizer *processing.Normalizer
	extractor  *features.Extractor
	scorer     scoring.Scorer
	explainer  *explain.Generator
	now        func() time.Time
	log        *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now, e.g. with a frozen clock in tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithScorer replaces the heuristic scorer.
func WithScorer(s scoring.Scorer) Option {
	return func(p *Pipeline) { p.scorer = s }
}

// WithLogger sets the logger shared by the pipeline components.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New wires a pipeline from a profile registry and a language detector.
func New(profiles *profile.Registry, detector Detector, opts ...Option) (*Pipeline, error) {
	if profiles == nil {
		return nil, errors.New("analysis: nil profile registry")
	}
	if detector == nil {
		return nil, errors.New("analysis: nil detector")
	}

	p := &Pipeline{
		profiles: profiles,
		detector: detector,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.Discard(p.log)

	normalizer, err := processing.NewNormalizer(profiles, p.log)
	if err != nil {
		return nil, fmt.Errorf("build normalizer: %w", err)
	}
	p.normalizer = normalizer
	p.extractor = features.NewExtractor(profiles, p.log)
	if p.scorer == nil {
		p.scorer = scoring.NewHeuristic(profiles, p.log)
	}
	p.explainer = explain.NewGenerator(profiles)
	return p, nil
}

// Analyze classifies in. It fails only for a nil input; every component
// fault degrades to a safe default instead.
func (p *Pipeline) Analyze(in *Input) (*Result, error) {
	if in == nil {
		return nil, ErrNilInput
	}
	start := p.now()

	code, hinted := lang.ParseHint(in.Language)
	if !hinted {
		code = p.detector.Detect(in.Title + " " + in.Content)
	}

	title := p.normalizer.Normalize(in.Title, code)
	content := p.normalizer.Normalize(in.Content, code)

	vec := p.extractor.Extract(title, content, code)
	score := p.scorer.Score(vec, code)
	explanation, recommendation := p.explainer.Explain(vec, score, code)
	keywords := processing.ExtractKeywords(title+" "+content, p.profiles.Lookup(code), keywordLimit, keywordMinLength)
	if keywords == nil {
		keywords = []string{}
	}

	res := &Result{
		Title:          in.Title,
		Content:        in.Content,
		SourceURL:      in.SourceURL,
		Author:         in.Author,
		Language:       code,
		IsFake:         score.IsFake,
		Probability:    score.Probability,
		Confidence:     score.Confidence,
		ModelID:        score.ModelID,
		Features:       vec,
		FeatureNames:   features.Names(),
		Explanation:    explanation,
		Recommendation: recommendation,
		Keywords:       keywords,
		DurationMs:     p.now().Sub(start).Milliseconds(),
	}

	p.log.Debug("news analyzed",
		slog.String("language", string(code)),
		slog.Bool("hinted", hinted),
		slog.Bool("fake", res.IsFake),
		slog.Float64("confidence", res.Confidence),
		slog.String("model", res.ModelID),
		slog.Int64("duration_ms", res.DurationMs),
	)
	return res, nil
}
