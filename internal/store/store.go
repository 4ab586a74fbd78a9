package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/truthguard/backend/internal/config"
	"github.com/DeafMist/truthguard/backend/internal/elasticsearch"
	"github.com/DeafMist/truthguard/backend/internal/models"
	"github.com/DeafMist/truthguard/backend/internal/sqlite"
)

// Store persists analysis records. Both backends implement it.
type Store interface {
	Save(ctx context.Context, rec models.AnalysisRecord) error
	History(ctx context.Context, userID string, page, size int) (*models.HistoryPage, error)
	UserStats(ctx context.Context, userID string) (*models.UserStats, error)
	LanguageStats(ctx context.Context) ([]models.LanguageStats, error)
	SetFeedback(ctx context.Context, id, userID string, fb models.Feedback) error
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	Health(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*elasticsearch.Client)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open connects to the backend selected by cfg.StoreBackend. The
// Elasticsearch index is created when missing.
func Open(ctx context.Context, cfg config.Common, log *slog.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.BackendElasticsearch, "":
		c, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			return nil, fmt.Errorf("open elasticsearch store: %w", err)
		}
		if err := c.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure index %s: %w", cfg.ElasticsearchIndex, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
