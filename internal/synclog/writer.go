// Package synclog is an async, buffered, periodically-flushed writer for
// SyncLogEntry rows. Writes are best-effort: a flush failure is logged and
// never propagated back to the orchestrator, so a database hiccup while
// writing the log can never mask a sync that actually succeeded.
package synclog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipmetrics/syncengine/internal/model"
)

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered SyncLogEntry writer.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan model.SyncLogEntry
	wg      sync.WaitGroup
}

// NewWriter creates a Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan model.SyncLogEntry, bufferSize),
	}
}

// Start begins the background flush goroutine.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues a sync log entry. It never blocks the caller; if the buffer
// is full the entry is dropped and a warning is logged.
func (w *Writer) Log(entry model.SyncLogEntry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("sync log buffer full, dropping entry", "job", entry.JobName, "status", entry.Status)
	}
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]model.SyncLogEntry, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// RecentLogs reads the most recent log entries, newest first, optionally
// scoped to storeID. Reads bypass the buffer and hit the table directly, so
// an entry still sitting in the unflushed buffer won't appear immediately.
func (w *Writer) RecentLogs(ctx context.Context, storeID string, limit int) ([]model.SyncLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, store_id, job_name, status, message, error_details, duration_ms, started_at, completed_at
		FROM sync_logs`
	args := []any{}
	if storeID != "" {
		query += ` WHERE store_id = $1`
		args = append(args, storeID)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := w.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncLogEntry
	for rows.Next() {
		var e model.SyncLogEntry
		if err := rows.Scan(&e.ID, &e.StoreID, &e.JobName, &e.Status, &e.Message, &e.ErrorDetails,
			&e.DurationMS, &e.StartedAt, &e.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (w *Writer) flush(entries []model.SyncLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		_, err := w.pool.Exec(ctx, `
			INSERT INTO sync_logs (id, store_id, job_name, status, message, error_details,
			                        duration_ms, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.StoreID, e.JobName, e.Status, e.Message, e.ErrorDetails,
			e.DurationMS, e.StartedAt, e.CompletedAt)
		if err != nil {
			w.logger.Error("writing sync log entry", "error", err, "job", e.JobName, "status", e.Status)
			fmt.Fprintf(os.Stderr, `{"level":"error","msg":"sync log write failed","job":%q,"status":%q,"error":%q}`+"\n",
				e.JobName, e.Status, err.Error())
		}
	}
}
