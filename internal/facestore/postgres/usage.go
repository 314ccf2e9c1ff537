package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeulTew/aura/internal/usage"
)

// UsageLogger writes usage entries to the usage_log table. Writes are
// fire and forget: failures are logged, never returned.
type UsageLogger struct {
	pool   *Pool
	logger *slog.Logger
}

var _ usage.Logger = (*UsageLogger)(nil)

// NewUsageLogger creates a usage logger backed by the given pool.
func NewUsageLogger(pool *Pool, logger *slog.Logger) *UsageLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageLogger{pool: pool, logger: logger}
}

// Log records one usage entry.
func (l *UsageLogger) Log(ctx context.Context, e usage.Entry) {
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = b
		}
	}

	// Detach from the request context so a canceled request still gets
	// its usage recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}
	var orgID any
	if e.OrgID != "" {
		orgID = e.OrgID
	}

	if _, err := l.pool.Exec(ctx, `
		INSERT INTO usage_log (org_id, user_id, action, bytes, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, orgID, userID, e.Action, e.Bytes, meta); err != nil {
		l.logger.Warn("usage log write failed", "action", e.Action, "error", err)
	}
}

// UsageRecord is a stored usage log row.
type UsageRecord struct {
	ID        int64          `json:"id"`
	OrgID     string         `json:"org_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Bytes     int64          `json:"bytes"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListRecent returns the newest usage log entries across all tenants.
func (l *UsageLogger) ListRecent(ctx context.Context, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, COALESCE(org_id::TEXT, ''), COALESCE(user_id::TEXT, ''),
		       action, bytes, metadata, created_at
		FROM usage_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var (
			rec  UsageRecord
			meta []byte
		)
		if err := rows.Scan(&rec.ID, &rec.OrgID, &rec.UserID, &rec.Action, &rec.Bytes, &meta, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		if len(meta) > 0 {
			json.Unmarshal(meta, &rec.Metadata)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
