package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Code is a lowercase ISO 639 language code such as "en" or "hi".
type Code string

const (
	English    Code = "en"
	Hindi      Code = "hi"
	Spanish    Code = "es"
	French     Code = "fr"
	Arabic     Code = "ar"
	German     Code = "de"
	Chinese    Code = "zh"
	Japanese   Code = "ja"
	Korean     Code = "ko"
	Portuguese Code = "pt"
	Russian    Code = "ru"
	Italian    Code = "it"
)

// Default is returned whenever detection is not possible or not reliable.
const Default = English

var supported = []Code{English, Hindi, Spanish, French, Arabic, German, Chinese, Japanese, Korean, Portuguese, Russian, Italian}

var displayNames = map[Code]string{
	English:    "English",
	Hindi:      "Hindi",
	Spanish:    "Spanish",
	French:     "French",
	Arabic:     "Arabic",
	German:     "German",
	Chinese:    "Chinese",
	Japanese:   "Japanese",
	Korean:     "Korean",
	Portuguese: "Portuguese",
	Russian:    "Russian",
	Italian:    "Italian",
}

// Supported returns the catalog in its canonical order.
func Supported() []Code {
	out := make([]Code, len(supported))
	copy(out, supported)
	return out
}

// Canonical lowercases and trims a code.
func Canonical(code Code) Code {
	return Code(strings.ToLower(strings.TrimSpace(string(code))))
}

// IsSupported reports whether code belongs to the catalog.
func IsSupported(code Code) bool {
	_, ok := displayNames[Canonical(code)]
	return ok
}

// DisplayName returns the English name of a catalog language or "Unknown".
func DisplayName(code Code) string {
	if name, ok := displayNames[Canonical(code)]; ok {
		return name
	}
	return "Unknown"
}

// ParseHint turns a caller supplied BCP 47 tag ("en-US", "HI", "pt_BR") into
// its base language code. Blank or malformed hints report false.
func ParseHint(raw string) (Code, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", "-"))
	if raw == "" {
		return "", false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return Canonical(Code(base.String())), true
}
