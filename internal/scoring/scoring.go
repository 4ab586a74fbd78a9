package scoring

import (
	"log/slog"
	"math"

	"github.com/DeafMist/truthguard/backend/internal/features"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/profile"
)

// DefaultModelID is reported when scoring fails.
const DefaultModelID = "default-model"

const (
	minConfidence = 0.1
	maxConfidence = 0.95
)

// Result is the verdict for one feature vector.
type Result struct {
	IsFake      bool    `json:"isFake"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	ModelID     string  `json:"modelId"`
}

// Fallback is returned when the model cannot produce a score.
func Fallback() Result {
	return Result{IsFake: false, Probability: 0.5, Confidence: 0.5, ModelID: DefaultModelID}
}

// Scorer turns a feature vector into a verdict.
type Scorer interface {
	Score(v features.Vector, code lang.Code) Result
}

// Heuristic is a weighted logistic model configured per language profile.
type Heuristic struct {
	profiles *profile.Registry
	log      *slog.Logger
}

// NewHeuristic builds a scorer over the given profiles.
func NewHeuristic(profiles *profile.Registry, log *slog.Logger) *Heuristic {
	log = logger.Discard(log)
	return &Heuristic{profiles: profiles, log: log}
}

// Score implements Scorer.
func (h *Heuristic) Score(v features.Vector, code lang.Code) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("scoring panicked, using fallback", slog.Any("panic", r), slog.String("language", string(code)))
			res = Fallback()
		}
	}()

	p := h.profiles.Lookup(code)
	prob := Probability(v, p.Weights, p.Calibration)
	return Result{
		IsFake:      prob > 0.5,
		Probability: prob,
		Confidence:  Confidence(prob),
		ModelID:     p.ModelID,
	}
}

// Probability computes the fake probability of v. Features are visited in
// catalog order so the sum is reproducible. Only features present in both v
// and weights contribute to the weighted sum and the weight total;
// non-finite values count as 0.
func Probability(v features.Vector, weights map[string]profile.Weight, cal profile.Calibration) float64 {
	var weighted, total float64
	for _, name := range features.Names() {
		w, ok := weights[name]
		if !ok {
			continue
		}
		value, ok := v[name]
		if !ok {
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			value = 0
		}
		if w.Scale > 0 {
			value = clamp(value/w.Scale, -1, 1)
		}
		weighted += value * w.Weight
		total += math.Abs(w.Weight)
	}

	if total == 0 {
		return cal.BaseRate
	}

	normalized := weighted / total
	sigmoid := 1 / (1 + math.Exp(-cal.Gain*normalized))
	prob := clamp(cal.BaseRate+(sigmoid-0.5)*cal.Spread, 0, 1)
	if math.IsNaN(prob) {
		return cal.BaseRate
	}
	return prob
}

// Confidence maps a probability to the distance from the decision
// boundary, bounded to [0.1, 0.95].
func Confidence(prob float64) float64 {
	return clamp(math.Abs(prob-0.5)*2, minConfidence, maxConfidence)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
