package lang_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/truthguard/backend/internal/lang"
)

func TestCatalogConsistency(t *testing.T) {
	codes := lang.Supported()
	require.Len(t, codes, 12)
	for _, code := range codes {
		require.True(t, lang.IsSupported(code), code)
		require.NotEqual(t, "Unknown", lang.DisplayName(code), code)
	}

	require.Equal(t, "Hindi", lang.DisplayName("hi"))
	require.Equal(t, "Hindi", lang.DisplayName(" HI "))
	require.True(t, lang.IsSupported("EN"))

	for _, code := range []lang.Code{"", "nl", "xx", "english"} {
		require.False(t, lang.IsSupported(code), code)
		require.Equal(t, "Unknown", lang.DisplayName(code), code)
	}
}

func TestSupportedReturnsCopy(t *testing.T) {
	codes := lang.Supported()
	codes[0] = "xx"
	require.Equal(t, lang.English, lang.Supported()[0])
}

func TestParseHint(t *testing.T) {
	tests := []struct {
		raw  string
		want lang.Code
		ok   bool
	}{
		{raw: "en", want: "en", ok: true},
		{raw: "en-US", want: "en", ok: true},
		{raw: "HI", want: "hi", ok: true},
		{raw: "pt_BR", want: "pt", ok: true},
		{raw: "", ok: false},
		{raw: "   ", ok: false},
		{raw: "not a tag!", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := lang.ParseHint(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCleanForDetection(t *testing.T) {
	require.Equal(t, "Hello world", lang.CleanForDetection("  Hello, 2024 world!!! "))
	require.Equal(t, "", lang.CleanForDetection("12345 !!! ..."))
	require.Equal(t, "आप विश्वास नहीं करेंगे", lang.CleanForDetection("आप विश्वास, नहीं करेंगे!"))
}

func TestDetectShortTextDefaultsToEnglish(t *testing.T) {
	d := lang.NewDetector(nil)
	for _, text := range []string{"", "   ", "Hola", "123456789012345", "¡¿!? hola 42"} {
		require.Equal(t, lang.English, d.Detect(text), text)
	}
}

func TestDetectLongText(t *testing.T) {
	d := lang.NewDetector(nil)

	en := "The city council met on Tuesday evening to discuss the new budget proposal for the coming year and the schools."
	require.Equal(t, lang.English, d.Detect(en))

	es := "El ayuntamiento de la ciudad aprobó ayer el nuevo presupuesto municipal para el próximo año después de un largo debate con los vecinos."
	require.Equal(t, lang.Spanish, d.Detect(es))

	ru := "Городской совет во вторник утвердил новый бюджет на следующий год после долгого обсуждения с жителями района."
	require.Equal(t, lang.Russian, d.Detect(ru))
}

func TestDetectNonLatinScripts(t *testing.T) {
	d := lang.NewDetector(nil)

	tests := []struct {
		name string
		text string
		want lang.Code
	}{
		{name: "hindi clickbait", text: "आप विश्वास नहीं करेंगे यह चौंकाने वाली खबर है", want: lang.Hindi},
		{name: "hindi budget", text: "नगर परिषद ने मंगलवार को अगले वर्ष के लिए नया बजट मंजूर किया", want: lang.Hindi},
		{name: "arabic", text: "قال المجلس البلدي يوم الثلاثاء إنه وافق على الميزانية الجديدة للعام المقبل", want: lang.Arabic},
		{name: "chinese", text: "市议会周二批准了明年的新预算方案", want: lang.Chinese},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}
