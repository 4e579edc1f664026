// Package ledger - history.go is the durable usage store.
//
// DESIGN: Two SQLite tables. usage_stats holds per-window per-model
// aggregates (call count, token total, cost total) for the stats endpoint;
// audit_log holds one immutable row per request for billing and
// profitability reporting. A background sweep enforces the retention window.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const createHistoryTables = `
CREATE TABLE IF NOT EXISTS usage_stats (
	window_key   TEXT NOT NULL,
	model        TEXT NOT NULL,
	calls        INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd     REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (window_key, model)
);
CREATE TABLE IF NOT EXISTS audit_log (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	window_key        TEXT NOT NULL,
	request_id        TEXT NOT NULL,
	task_category     TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost_usd          REAL NOT NULL,
	cache_hit         INTEGER NOT NULL,
	created_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_window ON audit_log(window_key);
CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);
`

// AuditRecord is one immutable usage row.
type AuditRecord struct {
	WindowKey        string
	RequestID        string
	TaskCategory     string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	CacheHit         bool
	CreatedAt        time.Time
}

// ModelUsage is a per-window per-model aggregate.
type ModelUsage struct {
	WindowKey   string  `json:"window_key"`
	Model       string  `json:"model"`
	Calls       int64   `json:"calls"`
	TotalTokens int64   `json:"total_tokens"`
	CostUSD     float64 `json:"cost_usd"`
}

// History stores usage aggregates and the audit log in SQLite.
type History struct {
	db            *sql.DB
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
}

// NewHistory opens the history database, migrates the schema, and starts
// the retention sweep.
func NewHistory(path string, retentionDays int, sweepInterval time.Duration) (*History, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(createHistoryTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	h := &History{db: db, retentionDays: retentionDays, done: make(chan struct{})}
	if sweepInterval > 0 {
		h.wg.Add(1)
		go h.retentionLoop(sweepInterval)
	}
	return h, nil
}

// Append records one usage row: the audit entry plus the aggregate upsert.
func (h *History) Append(ctx context.Context, rec AuditRecord) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO audit_log (window_key, request_id, task_category, model,
		 prompt_tokens, completion_tokens, cost_usd, cache_hit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.WindowKey, rec.RequestID, rec.TaskCategory, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.CostUSD, rec.CacheHit, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	totalTokens := rec.PromptTokens + rec.CompletionTokens
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO usage_stats (window_key, model, calls, total_tokens, cost_usd)
		 VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT(window_key, model) DO UPDATE SET
		   calls = calls + 1,
		   total_tokens = total_tokens + excluded.total_tokens,
		   cost_usd = cost_usd + excluded.cost_usd`,
		rec.WindowKey, rec.Model, totalTokens, rec.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("upsert usage stats: %w", err)
	}
	return nil
}

// WindowUsage returns the per-model aggregates for one window.
func (h *History) WindowUsage(ctx context.Context, windowKey string) ([]ModelUsage, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT window_key, model, calls, total_tokens, cost_usd
		 FROM usage_stats WHERE window_key = ? ORDER BY model`,
		windowKey,
	)
	if err != nil {
		return nil, fmt.Errorf("window usage: %w", err)
	}
	defer rows.Close()

	var usages []ModelUsage
	for rows.Next() {
		var u ModelUsage
		if err := rows.Scan(&u.WindowKey, &u.Model, &u.Calls, &u.TotalTokens, &u.CostUSD); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// TotalCost returns the recorded cost for one window across all models.
func (h *History) TotalCost(ctx context.Context, windowKey string) (float64, error) {
	var total float64
	err := h.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_usd), 0) FROM usage_stats WHERE window_key = ?`,
		windowKey,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total cost: %w", err)
	}
	return total, nil
}

// CacheHitCount returns how many audit rows in a window were cache hits.
func (h *History) CacheHitCount(ctx context.Context, windowKey string) (int64, error) {
	var count int64
	err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE window_key = ? AND cache_hit = 1`,
		windowKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("cache hit count: %w", err)
	}
	return count, nil
}

func (h *History) retentionLoop(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.sweep(context.Background()); err != nil {
				log.Warn().Err(err).Msg("history retention sweep failed")
			}
		}
	}
}

func (h *History) sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -h.retentionDays)
	if _, err := h.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, cutoff); err != nil {
		return err
	}
	_, err := h.db.ExecContext(ctx,
		`DELETE FROM usage_stats WHERE window_key < ?`, WindowKey(cutoff))
	return err
}

// Close stops the retention sweep and releases the database.
func (h *History) Close() error {
	close(h.done)
	h.wg.Wait()
	return h.db.Close()
}
