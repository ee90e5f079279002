// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package recorder drains a sensor result channel into a SQLite database,
// one row per result.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omnitrace/omnitrace/lib/sensor"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      DATETIME NOT NULL,
	payload TEXT NOT NULL
);`

// Recorder is a suture.Service consuming one result channel. It drains
// independently of the sensor's poll cycle; a slow disk shows up as
// dropped results at the registry, never as a stalled dispatch.
type Recorder struct {
	db      *sql.DB
	results <-chan sensor.Result
}

func New(path string, results <-chan sensor.Result) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL on %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema in %s: %w", path, err)
	}
	return &Recorder{db: db, results: results}, nil
}

func (r *Recorder) Serve(ctx context.Context) error {
	defer r.db.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-r.results:
			if !ok {
				return nil
			}
			r.record(ctx, res)
		}
	}
}

func (r *Recorder) record(ctx context.Context, res sensor.Result) {
	payload, err := json.Marshal(res)
	if err != nil {
		l.Warnf("Dropping unmarshallable result: %v", err)
		return
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO results (at, payload) VALUES (?, ?)`, time.Now(), string(payload)); err != nil && ctx.Err() == nil {
		l.Warnf("Failed to record result: %v", err)
	}
	l.Debugf("Recorded result (%d bytes)", len(payload))
}

func (r *Recorder) String() string {
	return fmt.Sprintf("recorder.Recorder@%p", r)
}
