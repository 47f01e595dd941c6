// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package journal records conversion jobs in a persistent ledger.
// The journal is observational; it never gates conversion output.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	// For sql.DB registration.
	_ "modernc.org/sqlite"

	"github.com/zoetrope-dev/zoetrope/internal/slogext"
)

// Job states.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// DB is a persistent conversion ledger.
type DB struct {
	mu    sync.Mutex
	store *sql.DB
	log   *slog.Logger
}

// Schema is the DB schema.
const Schema = `
create table if not exists conversion(
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	input    TEXT NOT NULL,
	output   TEXT,
	frames   INTEGER,
	rate     INTEGER,
	status   TEXT NOT NULL,
	error    TEXT,
	started  TEXT NOT NULL,
	finished TEXT
);
`

const (
	insertJob = `
insert into conversion(input, status, started) values(?, ?, ?);
`

	completeJob = `
update conversion set status=?, output=?, frames=?, rate=?, finished=? where id=?;
`

	failJob = `
update conversion set status=?, error=?, finished=? where id=?;
`

	getJob = `
select input, output, frames, rate, status, error from conversion where id=?;
`
)

// Open opens a DB, creating the tables if required.
// See https://pkg.go.dev/modernc.org/sqlite#Driver.Open for name
// handling details.
func Open(name string, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(Schema)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slogext.DiscardHandler)
	}
	return &DB{store: db, log: log.With(slog.String("component", "zoetrope.journal"))}, nil
}

// Begin records the start of a conversion job for input and returns
// the job identifier.
func (db *DB) Begin(ctx context.Context, input string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	res, err := db.store.ExecContext(ctx, insertJob, input, StatusRunning, now())
	if err != nil {
		return 0, fmt.Errorf("journal begin: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal begin: %w", err)
	}
	db.log.LogAttrs(ctx, slog.LevelDebug, "job started", slog.Int64("job", id), slog.String("input", input))
	return id, nil
}

// Complete marks the job as successfully finished.
func (db *DB) Complete(ctx context.Context, id int64, output string, frames, rate int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.store.ExecContext(ctx, completeJob, StatusDone, output, frames, rate, now(), id)
	if err != nil {
		return fmt.Errorf("journal complete: %w", err)
	}
	return nil
}

// Fail marks the job as failed with the terminal error.
func (db *DB) Fail(ctx context.Context, id int64, jobErr error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.store.ExecContext(ctx, failJob, StatusFailed, jobErr.Error(), now(), id)
	if err != nil {
		return fmt.Errorf("journal fail: %w", err)
	}
	return nil
}

// Record is one journalled conversion job.
type Record struct {
	Input  string
	Output string
	Frames int
	Rate   int
	Status string
	Error  string
}

// Job returns the journalled state of the identified job.
func (db *DB) Job(ctx context.Context, id int64) (Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var (
		rec            Record
		output, jobErr sql.NullString
		frames, rate   sql.NullInt64
	)
	err := db.store.QueryRowContext(ctx, getJob, id).Scan(&rec.Input, &output, &frames, &rate, &rec.Status, &jobErr)
	if err != nil {
		return Record{}, fmt.Errorf("journal job %d: %w", id, err)
	}
	rec.Output = output.String
	rec.Error = jobErr.String
	rec.Frames = int(frames.Int64)
	rec.Rate = int(rate.Int64)
	return rec, nil
}

// Close closes the database.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
