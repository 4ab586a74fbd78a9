package profile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/profile"
)

func TestLoadEmbeddedCoversCatalog(t *testing.T) {
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)

	for _, code := range lang.Supported() {
		p := reg.Lookup(code)
		require.Equal(t, code, p.Code)
		require.True(t, reg.HasModel(code))
		require.Equal(t, "truthguard-bert-"+string(code)+"-v1.0", p.ModelID)
		require.NotEmpty(t, p.Weights, code)
		require.NotEmpty(t, p.Positive, code)
		require.NotEmpty(t, p.Text(profile.KeyLikelyFake), code)
	}
	require.Len(t, reg.Codes(), len(lang.Supported()))
}

func TestLookupFallsBackToGeneric(t *testing.T) {
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)

	for _, code := range []lang.Code{"nl", "xx", ""} {
		p := reg.Lookup(code)
		require.Same(t, reg.Generic(), p)
		require.False(t, reg.HasModel(code))
	}

	g := reg.Generic()
	require.Equal(t, "truthguard-generic-v1.0", g.ModelID)
	require.InDelta(t, 0.85, g.Accuracy, 1e-9)
	require.Empty(t, g.Sensational)
	require.Empty(t, g.Clickbait)
	require.Equal(t, []string{"good", "great", "excellent"}, g.Positive)
	require.Equal(t, "This news appears to be fake", g.Text(profile.KeyLikelyFake))
}

func TestAccuracyTable(t *testing.T) {
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)

	want := map[lang.Code]float64{
		"en": 0.92, "hi": 0.89, "es": 0.91, "fr": 0.90, "ar": 0.88, "de": 0.91,
		"zh": 0.87, "ja": 0.86, "ko": 0.85, "pt": 0.90, "ru": 0.89, "it": 0.91,
	}
	for code, acc := range want {
		require.InDelta(t, acc, reg.Lookup(code).Accuracy, 1e-9, code)
	}
}

func TestWeightTables(t *testing.T) {
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)

	en := reg.Lookup(lang.English)
	require.InDelta(t, 0.25, en.Weights["sensational_words"].Weight, 1e-9)
	require.InDelta(t, 0.30, en.Weights["clickbait_phrases"].Weight, 1e-9)
	require.InDelta(t, -0.10, en.Weights["has_url"].Weight, 1e-9)

	de := reg.Lookup(lang.German)
	require.InDelta(t, 0.20, de.Weights["sensational_words"].Weight, 1e-9)
	require.InDelta(t, 0.25, de.Weights["clickbait_phrases"].Weight, 1e-9)
	require.Equal(t, []string{"good", "great", "excellent"}, de.Positive)

	require.Equal(t, profile.Calibration{Gain: 4, BaseRate: 0.3, Spread: 1.4}, en.Calibration)
}

func TestStringsFallBackToEnglish(t *testing.T) {
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)

	hi := reg.Lookup(lang.Hindi)
	require.Equal(t, "यह समाचार फर्जी प्रतीत होता है", hi.Text(profile.KeyLikelyFake))
	require.Equal(t, "Uses clickbait phrases", hi.Text(profile.KeyFactorClickbait))

	ja := reg.Lookup(lang.Japanese)
	require.Equal(t, "Key factors", ja.Text(profile.KeyKeyFactors))
	require.Empty(t, ja.Text("no_such_key"))
}

func TestStopWords(t *testing.T) {
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)

	require.True(t, reg.Lookup(lang.English).IsStopWord("the"))
	require.False(t, reg.Lookup(lang.English).IsStopWord("election"))
	require.True(t, reg.Lookup(lang.Hindi).IsStopWord("के लिए"))
	require.False(t, reg.Lookup(lang.German).IsStopWord("der"))
}

func TestLoadRejectsBrokenDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "::: ["},
		{name: "no weight tables", doc: "calibration: {gain: 1, base_rate: 0.3, spread: 0.4}\n"},
		{
			name: "bad calibration",
			doc: `
calibration: {gain: 0, base_rate: 0.3, spread: 0.4}
weight_tables: {t: {has_url: {weight: 1}}}
`,
		},
		{
			name: "missing languages",
			doc: `
calibration: {gain: 1, base_rate: 0.3, spread: 0.4}
weight_tables: {t: {has_url: {weight: 1}}}
generic: {model_id: g, accuracy: 0.5, weights: t}
languages:
  en: {model_id: e, accuracy: 0.5, weights: t}
`,
		},
		{
			name: "unknown table",
			doc: `
calibration: {gain: 1, base_rate: 0.3, spread: 0.4}
weight_tables: {t: {has_url: {weight: 1}}}
generic: {model_id: g, accuracy: 0.5, weights: nope}
languages:
  en: {model_id: e, accuracy: 0.5, weights: t}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := profile.Load([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}
