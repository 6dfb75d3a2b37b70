// Package history persists finished searches to Postgres. The store is
// optional: the bot runs in-memory only when no database is configured.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"imgseekbot/core/logger"
	"imgseekbot/internal/engine"
)

const defaultRecentLimit = 10

// Entry is one recorded search.
type Entry struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Engine      string    `db:"engine"`
	ResultChars int       `db:"result_chars"`
	TookMS      int64     `db:"took_ms"`
	CreatedAt   time.Time `db:"created_at"`
}

// Store reads and writes the search_history table.
type Store struct {
	db *sqlx.DB
}

// New wraps the given database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record inserts one finished search.
func (s *Store) Record(ctx context.Context, userID int64, eng engine.ID, resultChars int, took time.Duration) error {
	const q = `INSERT INTO search_history (user_id, engine, result_chars, took_ms) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, q, userID, string(eng), resultChars, took.Milliseconds()); err != nil {
		return fmt.Errorf("insert search history: %w", err)
	}
	logger.Debug(ctx, "service.history", "history.record",
		slog.Int64("user_id", userID),
		slog.String("engine", string(eng)),
		slog.Int("chars", resultChars))
	return nil
}

// Recent returns the user's latest searches, newest first.
func (s *Store) Recent(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	const q = `SELECT id, user_id, engine, result_chars, took_ms, created_at
		FROM search_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, q, userID, limit); err != nil {
		return nil, fmt.Errorf("select search history: %w", err)
	}
	return entries, nil
}

// EngineCount is a per-engine usage total.
type EngineCount struct {
	Engine string `db:"engine"`
	Count  int64  `db:"count"`
}

// TotalsByEngine aggregates recorded searches per engine across all users.
func (s *Store) TotalsByEngine(ctx context.Context) ([]EngineCount, error) {
	const q = `SELECT engine, COUNT(*) AS count FROM search_history GROUP BY engine ORDER BY count DESC`
	var totals []EngineCount
	if err := s.db.SelectContext(ctx, &totals, q); err != nil {
		return nil, fmt.Errorf("aggregate search history: %w", err)
	}
	return totals, nil
}
