// Package history journals finished download tasks in PostgreSQL.
// The journal is optional: without a configured database the bot keeps
// a nil Recorder and skips every call.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/ytmp3bot/core/logger"
)

// Task outcome statuses stored in the journal.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Entry captures the outcome of one download task.
type Entry struct {
	TaskID     string    `db:"task_id"`
	ChatID     int64     `db:"chat_id"`
	UserID     int64     `db:"user_id"`
	URL        string    `db:"url"`
	Kind       string    `db:"kind"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
	Files      int       `db:"files"`
	SizeBytes  int64     `db:"size_bytes"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// Stats aggregates journal totals for the stats command.
type Stats struct {
	Total     int64 `db:"total"`
	Completed int64 `db:"completed"`
	Failed    int64 `db:"failed"`
	Cancelled int64 `db:"cancelled"`
	SizeBytes int64 `db:"size_bytes"`
	Chats     int64 `db:"chats"`
}

// Recorder journals download outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Stats(ctx context.Context) (*Stats, error)
}

// Store persists entries via sqlx.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record inserts one journal entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO downloads (task_id, chat_id, user_id, url, kind, status, error, files, size_bytes, duration_ms)
VALUES (:task_id, :chat_id, :user_id, :url, :kind, :status, :error, :files, :size_bytes, :duration_ms)`

	start := time.Now()
	_, err := s.db.NamedExecContext(ctx, q, e)
	if err != nil {
		logger.Emit(ctx, logger.Hist, slog.LevelError, "record.fail",
			slog.String("status", "fail"),
			slog.String("task", e.TaskID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("history: record: %w", err)
	}
	logger.Emit(ctx, logger.Hist, slog.LevelDebug, "record.done",
		slog.String("status", "ok"),
		slog.String("task", e.TaskID),
		slog.String("outcome", e.Status),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
	return nil
}

// Stats returns aggregate totals over the last 24 hours.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	const q = `
SELECT
	count(*)                                         AS total,
	count(*) FILTER (WHERE status = 'completed')     AS completed,
	count(*) FILTER (WHERE status = 'failed')        AS failed,
	count(*) FILTER (WHERE status = 'cancelled')     AS cancelled,
	COALESCE(sum(size_bytes), 0)                     AS size_bytes,
	count(DISTINCT chat_id)                          AS chats
FROM downloads
WHERE created_at > now() - interval '24 hours'`

	var st Stats
	if err := s.db.GetContext(ctx, &st, q); err != nil {
		return nil, fmt.Errorf("history: stats: %w", err)
	}
	return &st, nil
}
