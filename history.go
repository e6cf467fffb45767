package editforge

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// BatchRun is one journaled ApplyEdits call.
type BatchRun struct {
	ID        int64        `json:"id"`
	StartedAt string       `json:"started_at"`
	Root      string       `json:"root"`
	DryRun    bool         `json:"dry_run"`
	Success   bool         `json:"success"`
	Summary   BatchSummary `json:"summary"`
}

// RecordedEdit is one journaled per-edit outcome.
type RecordedEdit struct {
	RunID    int64      `json:"run_id"`
	FilePath string     `json:"file_path"`
	Status   EditStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	Backup   string     `json:"backup,omitempty"`
}

// HistoryStore journals batch runs in a SQLite database so past edits can
// be reviewed after the fact. Journaling is best-effort from the editor's
// point of view; a journal failure never fails a batch.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database at path and
// runs migrations.
func OpenHistory(path string) (*HistoryStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("history: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS batch_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			root       TEXT NOT NULL,
			dry_run    INTEGER NOT NULL,
			success    INTEGER NOT NULL,
			total      INTEGER NOT NULL,
			applied    INTEGER NOT NULL,
			skipped    INTEGER NOT NULL,
			failed     INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS batch_run_edits (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    INTEGER NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
			file_path TEXT NOT NULL,
			status    TEXT NOT NULL,
			reason    TEXT NOT NULL DEFAULT '',
			backup    TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_batch_run_edits_run ON batch_run_edits(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordBatch journals one batch result and returns the run id.
func (s *HistoryStore) RecordBatch(root string, dryRun bool, result *BatchResult) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO batch_runs (started_at, root, dry_run, success, total, applied, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), root, boolToInt(dryRun), boolToInt(result.Success),
		result.Summary.Total, result.Summary.Applied, result.Summary.Skipped, result.Summary.Failed,
	)
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, edit := range result.Results {
		if _, err := tx.Exec(
			`INSERT INTO batch_run_edits (run_id, file_path, status, reason, backup)
			 VALUES (?, ?, ?, ?, ?)`,
			runID, edit.FilePath, string(edit.Status), edit.Reason, edit.Backup,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *HistoryStore) RecentRuns(limit int) ([]BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, started_at, root, dry_run, success, total, applied, skipped, failed
		 FROM batch_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []BatchRun
	for rows.Next() {
		var run BatchRun
		var dryRun, success int
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.Root, &dryRun, &success,
			&run.Summary.Total, &run.Summary.Applied, &run.Summary.Skipped, &run.Summary.Failed); err != nil {
			return nil, err
		}
		run.DryRun = dryRun != 0
		run.Success = success != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// EditsForRun returns the per-edit records of one run, in input order.
func (s *HistoryStore) EditsForRun(runID int64) ([]RecordedEdit, error) {
	rows, err := s.db.Query(
		`SELECT run_id, file_path, status, reason, backup
		 FROM batch_run_edits WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var edits []RecordedEdit
	for rows.Next() {
		var edit RecordedEdit
		var status string
		if err := rows.Scan(&edit.RunID, &edit.FilePath, &status, &edit.Reason, &edit.Backup); err != nil {
			return nil, err
		}
		edit.Status = EditStatus(status)
		edits = append(edits, edit)
	}
	return edits, rows.Err()
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
