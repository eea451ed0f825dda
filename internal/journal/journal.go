// Package journal keeps a sqlite history of reload and reset runs.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rusenback/subzero-devtools/internal/model"

	_ "modernc.org/sqlite"
)

// Retention is how long runs are kept
const Retention = 30 * 24 * time.Hour

// Journal handles persistent run storage
type Journal struct {
	db        *sql.DB
	logger    *slog.Logger
	writeChan chan model.RunRecord
	flushChan chan chan struct{}
	closeChan chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open creates the database file (and its directory) if needed
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// a single connection keeps sqlite writes serialized
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:        db,
		logger:    slog.Default().With("component", "journal"),
		writeChan: make(chan model.RunRecord, 256),
		flushChan: make(chan chan struct{}),
		closeChan: make(chan struct{}),
	}

	j.deleteBefore(time.Now().Add(-Retention))

	j.wg.Add(2)
	go j.writer()
	go j.cleanup()

	return j, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		path TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER,
		exit_code INTEGER,
		fell_back INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started
	ON runs(started_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Record queues a run for writing. It never blocks; when the queue is full
// the run is dropped.
func (j *Journal) Record(rec model.RunRecord) {
	select {
	case j.writeChan <- rec:
	default:
	}
}

// writer batches queued runs into transactions
func (j *Journal) writer() {
	defer j.wg.Done()

	buffer := make([]model.RunRecord, 0, 32)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	drain := func() {
		for {
			select {
			case rec := <-j.writeChan:
				buffer = append(buffer, rec)
			default:
				return
			}
		}
	}

	for {
		select {
		case rec := <-j.writeChan:
			buffer = append(buffer, rec)
			if len(buffer) >= 20 {
				j.batchWrite(buffer)
				buffer = buffer[:0]
			}

		case <-ticker.C:
			if len(buffer) > 0 {
				j.batchWrite(buffer)
				buffer = buffer[:0]
			}

		case done := <-j.flushChan:
			drain()
			if len(buffer) > 0 {
				j.batchWrite(buffer)
				buffer = buffer[:0]
			}
			close(done)

		case <-j.closeChan:
			drain()
			if len(buffer) > 0 {
				j.batchWrite(buffer)
			}
			return
		}
	}
}

func (j *Journal) batchWrite(recs []model.RunRecord) {
	tx, err := j.db.Begin()
	if err != nil {
		j.logger.Warn("journal write failed", "runs", len(recs), "err", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO runs
		(id, kind, path, started_at, duration_ms, exit_code, fell_back)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		j.logger.Warn("journal write failed", "runs", len(recs), "err", err)
		return
	}
	defer stmt.Close()

	skipped := 0
	for _, r := range recs {
		fellBack := 0
		if r.FellBack {
			fellBack = 1
		}
		if _, err := stmt.Exec(r.ID, string(r.Kind), r.Path, r.StartedAt.UnixNano(),
			r.Duration.Milliseconds(), r.ExitCode, fellBack); err != nil {
			j.logger.Warn("journal insert failed", "id", r.ID, "err", err)
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		j.logger.Warn("journal commit failed", "runs", len(recs), "err", err)
		return
	}
	if skipped > 0 {
		j.logger.Warn("journal runs skipped", "skipped", skipped, "runs", len(recs))
	}
}

// Flush writes everything queued so far
func (j *Journal) Flush() {
	done := make(chan struct{})
	select {
	case j.flushChan <- done:
		<-done
	case <-j.closeChan:
	}
}

// Recent returns up to limit runs, newest first
func (j *Journal) Recent(limit int) ([]model.RunRecord, error) {
	j.Flush()

	rows, err := j.db.Query(`
		SELECT id, kind, path, started_at, duration_ms, exit_code, fell_back
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var recs []model.RunRecord
	for rows.Next() {
		var (
			r          model.RunRecord
			kind       string
			startedAt  int64
			durationMS int64
			fellBack   int
		)
		if err := rows.Scan(&r.ID, &kind, &r.Path, &startedAt, &durationMS, &r.ExitCode, &fellBack); err != nil {
			continue
		}
		r.Kind = model.RunKind(kind)
		r.StartedAt = time.Unix(0, startedAt)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.FellBack = fellBack != 0
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Summary counts the runs of a time window
type Summary struct {
	Total    int
	Failed   int
	FellBack int
	ByKind   map[model.RunKind]int
}

// Summarize aggregates the runs started within window
func (j *Journal) Summarize(window time.Duration) (Summary, error) {
	j.Flush()

	sum := Summary{ByKind: make(map[model.RunKind]int)}
	cutoff := time.Now().Add(-window).UnixNano()

	rows, err := j.db.Query(`
		SELECT kind,
			COUNT(*),
			SUM(CASE WHEN exit_code != 0 THEN 1 ELSE 0 END),
			SUM(fell_back)
		FROM runs
		WHERE started_at > ?
		GROUP BY kind
	`, cutoff)
	if err != nil {
		return sum, fmt.Errorf("summarize runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var total, failed, fellBack int
		if err := rows.Scan(&kind, &total, &failed, &fellBack); err != nil {
			continue
		}
		sum.ByKind[model.RunKind(kind)] = total
		sum.Total += total
		sum.Failed += failed
		sum.FellBack += fellBack
	}
	return sum, rows.Err()
}

// cleanup removes old runs periodically
func (j *Journal) cleanup() {
	defer j.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.deleteBefore(time.Now().Add(-Retention))
		case <-j.closeChan:
			return
		}
	}
}

// deleteBefore removes runs in batches to keep each lock short
func (j *Journal) deleteBefore(cutoff time.Time) {
	const batchSize = 500
	for {
		result, err := j.db.Exec(`
			DELETE FROM runs WHERE id IN (
				SELECT id FROM runs WHERE started_at < ? LIMIT ?
			)`, cutoff.UnixNano(), batchSize)
		if err != nil {
			return
		}
		n, err := result.RowsAffected()
		if err != nil || n == 0 {
			return
		}
	}
}

// Close flushes pending runs and closes the database
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.closeChan)
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}
