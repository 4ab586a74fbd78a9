package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input limits, in characters.
const (
	MaxTitleLength   = 500
	MaxContentLength = 10000
)

// Input is one news item submitted for analysis.
type Input struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Author    string `json:"author,omitempty"`
	Language  string `json:"language,omitempty"`
}

// ValidationError describes the first invalid field of an Input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks required fields and length limits. Analyze does not call
// it; transports validate before analyzing.
func (in *Input) Validate() error {
	if in == nil {
		return ErrNilInput
	}
	switch {
	case strings.TrimSpace(in.Title) == "":
		return &ValidationError{Field: "title", Message: "News title is required"}
	case utf8.RuneCountInString(in.Title) > MaxTitleLength:
		return &ValidationError{Field: "title", Message: fmt.Sprintf("News title must be at most %d characters", MaxTitleLength)}
	case strings.TrimSpace(in.Content) == "":
		return &ValidationError{Field: "content", Message: "News content is required"}
	case utf8.RuneCountInString(in.Content) > MaxContentLength:
		return &ValidationError{Field: "content", Message: fmt.Sprintf("News content must be at most %d characters", MaxContentLength)}
	}
	return nil
}
