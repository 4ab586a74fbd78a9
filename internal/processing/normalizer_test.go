package processing_test

import (
	"testing"

	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/processing"
	"github.com/DeafMist/truthguard/backend/internal/profile"
	"github.com/stretchr/testify/require"
)

func newNormalizer(t *testing.T) *processing.Normalizer {
	t.Helper()
	reg, err := profile.LoadEmbedded()
	require.NoError(t, err)
	n, err := processing.NewNormalizer(reg, nil)
	require.NoError(t, err)
	return n
}

func TestNormalize(t *testing.T) {
	n := newNormalizer(t)

	tests := []struct {
		name  string
		code  lang.Code
		input string
		want  string
	}{
		{name: "empty", code: lang.English, input: "", want: ""},
		{name: "blank", code: lang.English, input: " \t\n ", want: ""},
		{name: "html tags", code: lang.English, input: "<p>Hello</p>   <b>world</b>", want: "Hello world"},
		{name: "urls", code: lang.English, input: "Read https://example.com/a?b=c now", want: "Read now"},
		{name: "other schemes", code: lang.English, input: "Get ftp://files.example.org/x.zip here", want: "Get here"},
		{name: "emails", code: lang.English, input: "Mail john.doe@example.com today", want: "Mail today"},
		{name: "contractions", code: lang.English, input: "They can't stop and won't stop", want: "They can not stop and will not stop"},
		{name: "typographic apostrophe", code: lang.English, input: "It isn’t over", want: "It is not over"},
		{name: "adjacent matches", code: lang.English, input: "don't don't", want: "do not do not"},
		{name: "contraction inside word untouched", code: lang.English, input: "dont cannotx", want: "dont cannotx"},
		{name: "repeated marks", code: lang.English, input: "Wow!!! Really??? Yes... ok,,, a;; b::", want: "Wow! Really? Yes. ok, a; b:"},
		{name: "mixed marks stay", code: lang.English, input: "What?!", want: "What?!"},
		{name: "hindi honorific", code: lang.Hindi, input: "डॉ. शर्मा ने कहा", want: "डॉक्टर शर्मा ने कहा"},
		{name: "spanish honorifics", code: lang.Spanish, input: "El Sr. García y la Sra. López", want: "El Señor García y la Señora López"},
		{name: "french honorifics", code: lang.French, input: "Mme. Dubois et M. Martin", want: "Madame Dubois et Monsieur Martin"},
		{name: "arabic honorific", code: lang.Arabic, input: "قال د. أحمد", want: "قال دكتور أحمد"},
		{name: "rules are per language", code: lang.French, input: "They can't", want: "They can't"},
		{name: "unsupported language", code: "nl", input: "<i>Dit   is</i> nieuws!!", want: "Dit is nieuws!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, n.Normalize(tt.input, tt.code))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := newNormalizer(t)

	inputs := map[lang.Code][]string{
		lang.English: {
			"BREAKING!!! You won't believe   this <b>shocking</b> news http://x.y",
			"http:://example.com hidden link",
			"a <<b>> c ... !!! ???",
			"   leading and trailing   ",
		},
		lang.Hindi:   {"डॉ. डॉ. शर्मा!!!   श्री. वर्मा"},
		lang.Spanish: {"Sr. Sr. Pérez... Dr.Gómez"},
		lang.Chinese: {"博士. 教授。 新闻!!"},
		"xx":         {"<x>plain?? text</x>"},
	}

	for code, list := range inputs {
		for _, in := range list {
			once := n.Normalize(in, code)
			require.Equal(t, once, n.Normalize(once, code), "%s: %q", code, in)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := newNormalizer(t)
	in := "Doctors say you won't believe this!!! Visit https://example.com"
	require.Equal(t, n.Normalize(in, lang.English), n.Normalize(in, lang.English))
}
