package core

// history.go records completed conversions.
//
// Only metadata is kept (who, what, how big, how long); uploaded content and
// converted output are never stored. Two stores exist: an in-memory ring for
// single-instance deployments and a PostgreSQL table when DATABASE_URL is set.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConversionRecord describes one finished conversion.
type ConversionRecord struct {
	ID         uuid.UUID     `json:"id"`
	ClientID   string        `json:"client_id"`
	UserAgent  string        `json:"user_agent,omitempty"`
	FileName   string        `json:"file_name"`
	OutputName string        `json:"output_name"`
	Format     Format        `json:"format"`
	Separator  string        `json:"separator"`
	Rows       int           `json:"rows"`
	HasHeader  bool          `json:"has_header"`
	InputBytes int64         `json:"input_bytes"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// HistoryStore persists conversion records.
type HistoryStore interface {
	Record(ctx context.Context, rec ConversionRecord) error
	Recent(ctx context.Context, limit int) ([]ConversionRecord, error)
}

// DefaultHistorySize is the capacity of the in-memory history.
const DefaultHistorySize = 500

// MemoryHistory keeps the most recent records in a fixed-size ring.
type MemoryHistory struct {
	mu   sync.Mutex
	buf  []ConversionRecord
	next int
	full bool
}

// NewMemoryHistory creates a ring holding at most size records.
func NewMemoryHistory(size int) *MemoryHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &MemoryHistory{buf: make([]ConversionRecord, size)}
}

// Record implements HistoryStore.
func (h *MemoryHistory) Record(_ context.Context, rec ConversionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = rec
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]ConversionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]ConversionRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.next - 1 - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out, nil
}

// pgQuerier is the subset of *pgxpool.Pool used by PgHistory.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS conversion_history (
	id          UUID PRIMARY KEY,
	client_id   TEXT NOT NULL,
	user_agent  TEXT NOT NULL DEFAULT '',
	file_name   TEXT NOT NULL,
	output_name TEXT NOT NULL,
	format      TEXT NOT NULL,
	separator   TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	has_header  BOOLEAN NOT NULL,
	input_bytes BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createHistoryIndex = `
CREATE INDEX IF NOT EXISTS conversion_history_created_at_idx
	ON conversion_history (created_at DESC)`

// PgHistory stores records in the conversion_history table.
type PgHistory struct {
	db pgQuerier
}

// NewPgHistory wraps a pool (or any compatible querier).
func NewPgHistory(db pgQuerier) *PgHistory {
	return &PgHistory{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (h *PgHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("create conversion_history: %w", err)
	}
	if _, err := h.db.Exec(ctx, createHistoryIndex); err != nil {
		return fmt.Errorf("create conversion_history index: %w", err)
	}
	return nil
}

// Record implements HistoryStore.
func (h *PgHistory) Record(ctx context.Context, rec ConversionRecord) error {
	_, err := h.db.Exec(ctx, `
		INSERT INTO conversion_history
			(id, client_id, user_agent, file_name, output_name, format, separator,
			 row_count, has_header, input_bytes, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.ClientID, rec.UserAgent, rec.FileName, rec.OutputName, string(rec.Format),
		rec.Separator, rec.Rows, rec.HasHeader, rec.InputBytes, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *PgHistory) Recent(ctx context.Context, limit int) ([]ConversionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.Query(ctx, `
		SELECT id, client_id, user_agent, file_name, output_name, format, separator,
		       row_count, has_header, input_bytes, duration_ms, created_at
		FROM conversion_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversion history: %w", err)
	}
	defer rows.Close()

	var out []ConversionRecord
	for rows.Next() {
		var (
			rec        ConversionRecord
			format     string
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.UserAgent, &rec.FileName, &rec.OutputName,
			&format, &rec.Separator, &rec.Rows, &rec.HasHeader, &rec.InputBytes, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversion record: %w", err)
		}
		rec.Format = Format(format)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read conversion history: %w", err)
	}
	return out, nil
}
