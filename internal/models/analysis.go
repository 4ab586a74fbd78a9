package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/truthguard/backend/internal/analysis"
	"github.com/DeafMist/truthguard/backend/internal/lang"
)

var (
	// ErrNotFound is returned when an analysis id is unknown.
	ErrNotFound = errors.New("analysis not found")
	// ErrForbidden is returned when a user touches another user's analysis.
	ErrForbidden = errors.New("analysis belongs to another user")
)

// AnalysisRecord is the canonical structure persisted by every store.
type AnalysisRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	analysis.Result
	Feedback string `json:"userFeedback,omitempty"`
	Rating   int    `json:"feedbackRating,omitempty"`
}

// NewRecord wraps an analysis result for persistence.
func NewRecord(userID string, res *analysis.Result, createdAt time.Time) AnalysisRecord {
	return AnalysisRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: createdAt.UTC(),
		Result:    *res,
	}
}

// Feedback is a user's verdict on an analysis.
type Feedback struct {
	Feedback string `json:"feedback"`
	Rating   int    `json:"rating"`
}

// Valid reports whether the rating is on the 1 to 5 scale.
func (f Feedback) Valid() bool {
	return f.Rating >= 1 && f.Rating <= 5
}

// MaxHistoryWindow bounds page*size for history queries. It matches the
// Elasticsearch default index.max_result_window.
const MaxHistoryWindow = 10000

// HistoryPage is one page of a user's analyses, newest first.
type HistoryPage struct {
	Items      []AnalysisRecord `json:"content"`
	Total      int64            `json:"totalElements"`
	Page       int              `json:"number"`
	Size       int              `json:"size"`
	TotalPages int              `json:"totalPages"`
}

// NewHistoryPage fills the derived page count.
func NewHistoryPage(items []AnalysisRecord, total int64, page, size int) HistoryPage {
	if items == nil {
		items = []AnalysisRecord{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return HistoryPage{Items: items, Total: total, Page: page, Size: size, TotalPages: pages}
}

// UserStats summarizes one user's analyses.
type UserStats struct {
	TotalAnalyses      int64   `json:"totalAnalyses"`
	FakeNewsCount      int64   `json:"fakeNewsCount"`
	RealNewsCount      int64   `json:"realNewsCount"`
	FakeNewsPercentage float64 `json:"fakeNewsPercentage"`
}

// NewUserStats derives the real count and the fake percentage, rounded to
// two decimals.
func NewUserStats(total, fake int64) UserStats {
	return UserStats{
		TotalAnalyses:      total,
		FakeNewsCount:      fake,
		RealNewsCount:      total - fake,
		FakeNewsPercentage: Percentage(fake, total),
	}
}

// LanguageStats summarizes all analyses of one detected language.
type LanguageStats struct {
	Language           lang.Code `json:"language"`
	Count              int64     `json:"count"`
	AverageConfidence  float64   `json:"averageConfidence"`
	FakeNewsPercentage float64   `json:"fakeNewsPercentage"`
}

// Percentage returns part/total*100 rounded to two decimals, 0 when total is 0.
func Percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(float64(part) / float64(total) * 100)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
