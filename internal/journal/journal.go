// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package journal keeps a SQLite log of every prompt sent to the model and
// the reply (or error) that came back.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/lokalchat/internal/ollama"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

// NoRow marks an exchange that did not come from a deck row.
const NoRow = -1

// Exchange is one prompt/reply round trip.
type Exchange struct {
	ID        string
	Model     string
	RowPos    int
	Prompt    []ollama.Message
	Reply     string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether the exchange ended in an error.
func (e Exchange) Failed() bool {
	return e.Error != ""
}

// Stats summarises the journal.
type Stats struct {
	Count       int
	Errors      int
	AvgDuration time.Duration
	First       time.Time
	Last        time.Time
}

// Journal is a SQLite-backed exchange log. It is safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) conn() (*sql.DB, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}
	return j.db, nil
}

// Record stores an exchange. A missing ID or start time is filled in and
// the stored ID is returned.
func (j *Journal) Record(ctx context.Context, ex Exchange) (string, error) {
	db, err := j.conn()
	if err != nil {
		return "", err
	}

	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.StartedAt.IsZero() {
		ex.StartedAt = time.Now()
	}
	prompt := ex.Prompt
	if prompt == nil {
		prompt = []ollama.Message{}
	}
	promptJSON, err := json.Marshal(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO exchanges (id, model, row_pos, prompt_json, reply, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.Model, ex.RowPos, string(promptJSON), ex.Reply, ex.Error,
		ex.StartedAt.UnixNano(), ex.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record exchange: %w", err)
	}
	return ex.ID, nil
}

// Recent returns up to limit exchanges, newest first. limit <= 0 returns all.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	db, err := j.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, model, row_pos, prompt_json, reply, error, started_at, duration_ms
		 FROM exchanges ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var (
			ex         Exchange
			promptJSON string
			started    int64
			durationMs int64
		)
		if err := rows.Scan(&ex.ID, &ex.Model, &ex.RowPos, &promptJSON, &ex.Reply, &ex.Error, &started, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		if err := json.Unmarshal([]byte(promptJSON), &ex.Prompt); err != nil {
			return nil, fmt.Errorf("failed to decode prompt of %s: %w", ex.ID, err)
		}
		ex.StartedAt = time.Unix(0, started)
		ex.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Stats returns aggregate counts over the whole journal.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	db, err := j.conn()
	if err != nil {
		return Stats{}, err
	}

	var (
		s           Stats
		avg         sql.NullFloat64
		first, last sql.NullInt64
	)
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		        AVG(duration_ms), MIN(started_at), MAX(started_at)
		 FROM exchanges`).Scan(&s.Count, &s.Errors, &avg, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	if avg.Valid {
		s.AvgDuration = time.Duration(avg.Float64 * float64(time.Millisecond))
	}
	if first.Valid {
		s.First = time.Unix(0, first.Int64)
	}
	if last.Valid {
		s.Last = time.Unix(0, last.Int64)
	}
	return s, nil
}

// Prune deletes all but the newest keep exchanges and returns how many
// were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int, error) {
	db, err := j.conn()
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM exchanges WHERE id NOT IN (
		     SELECT id FROM exchanges ORDER BY started_at DESC, rowid DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database. Further calls return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
