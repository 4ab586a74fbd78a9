package features_test

import (
	"math"
	"testing"

	"github.com/DeafMist/truthguard/backend/internal/features"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/profile"
	"github.com/stretchr/testify/require"
)

func newExtractor(t *testing.T) *features.Extractor {
	t.Helper()
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)
	return features.NewExtractor(reg, nil)
}

func requireCatalogKeys(t *testing.T, v features.Vector) {
	t.Helper()
	require.Len(t, v, len(features.Names()))
	for _, name := range features.Names() {
		value, ok := v[name]
		require.True(t, ok, name)
		require.False(t, math.IsNaN(value) || math.IsInf(value, 0), name)
	}
}

func TestNamesOrder(t *testing.T) {
	names := features.Names()
	require.Len(t, names, 16)
	require.Equal(t, features.TitleLength, names[0])
	require.Equal(t, features.ClickbaitPhrases, names[len(names)-1])
}

func TestExtractEmptyInputIsAllZero(t *testing.T) {
	e := newExtractor(t)
	v := e.Extract("", "", lang.English)
	requireCatalogKeys(t, v)
	for name, value := range v {
		require.Zero(t, value, name)
	}
}

func TestExtractCounts(t *testing.T) {
	e := newExtractor(t)
	v := e.Extract("BREAKING: Shocking news!", "Unbelievable! Read at www.example.com 2024 by staff?", lang.English)
	requireCatalogKeys(t, v)

	require.Equal(t, 24.0, v[features.TitleLength])
	require.Equal(t, 3.0, v[features.TitleWordCount])
	require.Equal(t, 7.0, v[features.ContentWordCount])
	require.Equal(t, 2.0, v[features.ExclamationCount])
	require.Equal(t, 1.0, v[features.QuestionCount])
	require.Equal(t, 4.0, v[features.NumberCount])
	require.Equal(t, 1.0, v[features.HasURL])
	require.Equal(t, 1.0, v[features.HasAuthor])
	require.Equal(t, 3.0, v[features.SensationalWords])
	require.Equal(t, 0.0, v[features.ClickbaitPhrases])
}

func TestExtractSentiment(t *testing.T) {
	e := newExtractor(t)

	tests := []struct {
		title string
		want  float64
	}{
		{title: "Great news, great day", want: 1},
		{title: "good and bad", want: 0},
		{title: "Terrible storm", want: -1},
		{title: "nothing to see", want: 0},
		{title: "good good bad", want: 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			v := e.Extract(tt.title, "", lang.English)
			require.InDelta(t, tt.want, v[features.TitleSentiment], 1e-9)
		})
	}
}

func TestExtractReadabilityAndCapitals(t *testing.T) {
	e := newExtractor(t)

	v := e.Extract("The cat sat. The dog ran.", "", lang.English)
	require.InDelta(t, 105.09, v[features.TitleReadability], 1e-9)
	require.Zero(t, v[features.ContentReadability])

	v = e.Extract("ABC", "", lang.English)
	require.InDelta(t, 0.75, v[features.CapitalRatio], 1e-9)
}

func TestExtractHindiClickbait(t *testing.T) {
	e := newExtractor(t)
	v := e.Extract("आप विश्वास नहीं करेंगे", "यह आपको चौंका देगा, अविश्वसनीय", lang.Hindi)
	requireCatalogKeys(t, v)
	require.Equal(t, 2.0, v[features.ClickbaitPhrases])
	require.Equal(t, 1.0, v[features.SensationalWords])
}

func TestExtractLanguagesWithoutLists(t *testing.T) {
	e := newExtractor(t)

	for _, code := range []lang.Code{"nl", lang.German} {
		v := e.Extract("Shocking good news", "you won't believe it", code)
		requireCatalogKeys(t, v)
		require.Zero(t, v[features.SensationalWords], code)
		require.Zero(t, v[features.ClickbaitPhrases], code)
		require.Equal(t, 1.0, v[features.TitleSentiment], code)
	}
}

func TestExtractKeysIdenticalAcrossLanguages(t *testing.T) {
	e := newExtractor(t)
	base := e.Extract("title", "content", lang.English)
	for _, code := range lang.Supported() {
		v := e.Extract("title", "content", code)
		require.Len(t, v, len(base))
		for name := range base {
			_, ok := v[name]
			require.True(t, ok, "%s missing %s", code, name)
		}
	}
}
