package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DeafMist/truthguard/backend/internal/analysis"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/models"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    detected_language TEXT NOT NULL,
    is_fake INTEGER NOT NULL,
    confidence REAL NOT NULL,
    result TEXT NOT NULL,
    user_feedback TEXT NOT NULL DEFAULT '',
    feedback_rating INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
`

// Store keeps analysis records in an embedded SQLite database.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, log: logger.Discard(log)}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Save inserts or replaces a record.
func (s *Store) Save(ctx context.Context, rec models.AnalysisRecord) error {
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analyses(id, user_id, created_at, fingerprint, detected_language, is_fake, confidence, result, user_feedback, feedback_rating)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID,
		rec.UserID,
		rec.CreatedAt.UnixNano(),
		rec.Fingerprint,
		string(rec.Language),
		rec.IsFake,
		rec.Confidence,
		string(result),
		rec.Feedback,
		rec.Rating,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// History returns one page of a user's records, newest first. Pages are
// zero-based.
func (s *Store) History(ctx context.Context, userID string, page, size int) (*models.HistoryPage, error) {
	if size <= 0 {
		size = 20
	}
	page = max(0, min(page, models.MaxHistoryWindow))

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, created_at, fingerprint, result, user_feedback, feedback_rating
		 FROM analyses WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, size, page*size,
	)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	items := make([]models.AnalysisRecord, 0, size)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}

	out := models.NewHistoryPage(items, total, page, size)
	return &out, nil
}

func scanRecord(rows *sql.Rows) (models.AnalysisRecord, error) {
	var (
		rec       models.AnalysisRecord
		createdAt int64
		result    string
	)
	if err := rows.Scan(&rec.ID, &rec.UserID, &createdAt, &rec.Fingerprint, &result, &rec.Feedback, &rec.Rating); err != nil {
		return rec, fmt.Errorf("scan analysis: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()

	var res analysis.Result
	if err := json.Unmarshal([]byte(result), &res); err != nil {
		return rec, fmt.Errorf("decode result %s: %w", rec.ID, err)
	}
	rec.Result = res
	return rec, nil
}

// UserStats counts a user's records and how many were judged fake.
func (s *Store) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var total, fake int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_fake), 0) FROM analyses WHERE user_id = ?`, userID,
	).Scan(&total, &fake)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	stats := models.NewUserStats(total, fake)
	return &stats, nil
}

// LanguageStats aggregates counts, average confidence and fake share per
// detected language, ordered by count.
func (s *Store) LanguageStats(ctx context.Context) ([]models.LanguageStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT detected_language, COUNT(*), AVG(confidence), SUM(is_fake)
		 FROM analyses
		 GROUP BY detected_language
		 ORDER BY COUNT(*) DESC, detected_language`,
	)
	if err != nil {
		return nil, fmt.Errorf("language stats: %w", err)
	}
	defer rows.Close()

	out := make([]models.LanguageStats, 0)
	for rows.Next() {
		var (
			code         string
			count, fake  int64
			avgConfident float64
		)
		if err := rows.Scan(&code, &count, &avgConfident, &fake); err != nil {
			return nil, fmt.Errorf("scan language stats: %w", err)
		}
		out = append(out, models.LanguageStats{
			Language:           lang.Code(code),
			Count:              count,
			AverageConfidence:  models.Round2(avgConfident),
			FakeNewsPercentage: models.Percentage(fake, count),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language stats: %w", err)
	}
	return out, nil
}

// SetFeedback attaches user feedback to a record owned by userID.
func (s *Store) SetFeedback(ctx context.Context, id, userID string, fb models.Feedback) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM analyses WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}
	if owner != userID {
		return models.ErrForbidden
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE analyses SET user_feedback = ?, feedback_rating = ? WHERE id = ?`,
		fb.Feedback, fb.Rating, id,
	); err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DeleteOlderThan removes records created more than maxAge ago in batches
// of batchSize and reports how many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	cutoff := time.Now().Add(-maxAge).UnixNano()

	var total int64
	for {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM analyses WHERE id IN (SELECT id FROM analyses WHERE created_at <= ? LIMIT ?)`,
			cutoff, batchSize,
		)
		if err != nil {
			return total, fmt.Errorf("delete analyses: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += n
		if n < int64(batchSize) {
			break
		}
	}
	if total > 0 {
		s.log.Debug("sqlite analyses deleted", slog.Int64("deleted", total))
	}
	return total, nil
}
