package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/DeafMist/truthguard/backend/internal/analysis"
	"github.com/DeafMist/truthguard/backend/internal/config"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/models"
	"github.com/DeafMist/truthguard/backend/internal/processing"
	"github.com/DeafMist/truthguard/backend/internal/profile"
	"github.com/DeafMist/truthguard/backend/internal/store"
)

const (
	userHeader    = "X-User-ID"
	anonymousUser = "anonymous"
	maxBodyBytes  = 1 << 20
)

type server struct {
	log      *slog.Logger
	cfg      *config.API
	store    store.Store
	pipeline *analysis.Pipeline
	profiles *profile.Registry
	detector analysis.Detector
	limiter  *rate.Limiter
	now      func() time.Time
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/health", s.handleHealth)

	r.Route("/api/news", func(r chi.Router) {
		r.With(s.rateLimit).Post("/analyze", s.handleAnalyze)
		r.Get("/history", s.handleHistory)
		r.Post("/feedback/{id}", s.handleFeedback)
		r.Get("/statistics", s.handleStatistics)
		r.Get("/languages", s.handleLanguageStatistics)
	})

	r.Route("/api/languages", func(r chi.Router) {
		r.Get("/", s.handleLanguages)
		r.Post("/detect", s.handleDetect)
		r.Get("/{code}", s.handleLanguage)
	})

	return r
}

func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in analysis.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := in.Validate(); err != nil {
		var verr *analysis.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user := userID(r)
	res, err := s.pipeline.Analyze(&in)
	if err != nil {
		s.log.Error("analyze news", slog.String("user", user), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "analysis failed"})
		return
	}

	rec := models.NewRecord(user, res, s.now())
	rec.Fingerprint = processing.Fingerprint(user, in.Title, in.Content, in.Language)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, rec); err != nil {
		s.log.Warn("save analysis", slog.String("id", rec.ID), slog.Any("err", err))
	} else {
		s.log.Info("analysis stored",
			slog.String("id", rec.ID),
			slog.String("user", user),
			slog.String("language", string(rec.Language)),
			slog.Bool("fake", rec.IsFake),
		)
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page := parsePage(r.URL.Query().Get("page"))
	size := clampInt(r.URL.Query().Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage)

	result, err := s.store.History(ctx, userID(r), page, size)
	if err != nil {
		s.log.Error("load history", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb models.Feedback
	if err := decodeJSON(w, r, &fb); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if !fb.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Rating must be between 1 and 5", Field: "rating"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	err := s.store.SetFeedback(ctx, id, userID(r), fb)
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case err != nil:
		s.log.Error("save feedback", slog.String("id", id), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		s.log.Info("feedback saved", slog.String("id", id))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.store.UserStats(ctx, userID(r))
	if err != nil {
		s.log.Error("load statistics", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleLanguageStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.store.LanguageStats(ctx)
	if err != nil {
		s.log.Error("load language statistics", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type languageInfo struct {
	Name           string    `json:"name"`
	Code           lang.Code `json:"code"`
	ModelAvailable bool      `json:"modelAvailable"`
	Accuracy       float64   `json:"accuracy"`
	ModelName      string    `json:"modelName"`
}

func (s *server) describe(code lang.Code) languageInfo {
	p := s.profiles.Lookup(code)
	return languageInfo{
		Name:           lang.DisplayName(code),
		Code:           code,
		ModelAvailable: s.profiles.HasModel(code),
		Accuracy:       p.Accuracy,
		ModelName:      p.ModelID,
	}
}

func (s *server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	supported := lang.Supported()
	languages := make(map[lang.Code]languageInfo, len(supported))
	for _, code := range supported {
		languages[code] = s.describe(code)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"languages":      languages,
		"totalSupported": len(supported),
	})
}

func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Text is required", Field: "text"})
		return
	}

	code := s.detector.Detect(req.Text)
	info := s.describe(code)
	writeJSON(w, http.StatusOK, map[string]any{
		"detectedLanguage": code,
		"languageName":     info.Name,
		"isSupported":      lang.IsSupported(code),
		"modelAvailable":   info.ModelAvailable,
		"accuracy":         info.Accuracy,
	})
}

func (s *server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	code := lang.Code(strings.ToLower(chi.URLParam(r, "code")))
	if !lang.IsSupported(code) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "language not supported"})
		return
	}
	writeJSON(w, http.StatusOK, s.describe(code))
}

func userID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(userHeader)); v != "" {
		return v
	}
	return anonymousUser
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 0 {
		return 0
	}
	return min(page, models.MaxHistoryWindow)
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
