package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"

	_ "modernc.org/sqlite"
)

// MemoryDSN keeps the audit log in process memory only.
const MemoryDSN = ":memory:"

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	if dbPath == MemoryDSN {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == MemoryDSN {
		// Every pooled connection to :memory: would open its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generation_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL DEFAULT '',
		step TEXT NOT NULL,
		prompt_chars INTEGER NOT NULL DEFAULT 0,
		raw TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generation_runs_session ON generation_runs(session_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores one generation request. CreatedAt defaults to now.
func (s *Store) RecordRun(ctx context.Context, run model.GenerationRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_runs (session_id, step, prompt_chars, raw, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.SessionID, run.Step, run.PromptChars, run.Raw, run.Error, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. An empty sessionID lists every
// session; a non-positive limit lists everything.
func (s *Store) ListRuns(ctx context.Context, sessionID string, limit int) ([]model.GenerationRun, error) {
	query := `SELECT id, session_id, step, prompt_chars, raw, error, created_at FROM generation_runs`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.GenerationRun
	for rows.Next() {
		var r model.GenerationRun
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Step, &r.PromptChars, &r.Raw, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
