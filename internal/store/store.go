// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store records estimator events and innovations in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/local_position_estimator/internal/estimator"
)

const queueLen = 1024

// DB is a diagnostics recorder. Notify and PublishInnovation queue rows
// for a background writer and never block; rows are dropped when the
// queue is full.
type DB struct {
	*sql.DB

	queue   chan any
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// Open opens or creates the database at path and starts the writer.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics db: %w", err)
	}
	// one connection keeps writes serialized
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			time_ns INTEGER NOT NULL,
			level TEXT NOT NULL,
			kind TEXT NOT NULL,
			sensor TEXT NOT NULL,
			message TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS innovations (
			innovation_id INTEGER PRIMARY KEY AUTOINCREMENT,
			time_ns INTEGER NOT NULL,
			sensor TEXT NOT NULL,
			dim INTEGER NOT NULL,
			r0 DOUBLE, r1 DOUBLE, r2 DOUBLE, r3 DOUBLE, r4 DOUBLE, r5 DOUBLE,
			s0 DOUBLE, s1 DOUBLE, s2 DOUBLE, s3 DOUBLE, s4 DOUBLE, s5 DOUBLE,
			beta DOUBLE NOT NULL,
			fault BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS innovations_sensor_time ON innovations (sensor, time_ns);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create diagnostics schema: %w", err)
	}

	d := &DB{
		DB:    db,
		queue: make(chan any, queueLen),
		done:  make(chan struct{}),
	}
	go d.writer()
	return d, nil
}

func (d *DB) writer() {
	defer close(d.done)
	for row := range d.queue {
		var err error
		switch v := row.(type) {
		case estimator.Event:
			err = d.RecordEvent(v)
		case estimator.Innovation:
			err = d.RecordInnovation(v)
		}
		if err != nil {
			log.Printf("store: %v", err)
		}
	}
}

func (d *DB) enqueue(row any) {
	select {
	case d.queue <- row:
	default:
		d.dropped.Add(1)
	}
}

// Notify implements estimator.Notifier.
func (d *DB) Notify(e estimator.Event) { d.enqueue(e) }

// PublishInnovation implements estimator.Diagnostics.
func (d *DB) PublishInnovation(in estimator.Innovation) { d.enqueue(in) }

// Dropped returns how many rows were discarded because the queue was full.
func (d *DB) Dropped() uint64 { return d.dropped.Load() }

// Flush waits until queued rows are written and stops the writer. Later
// Notify or PublishInnovation calls panic.
func (d *DB) Flush() {
	d.once.Do(func() { close(d.queue) })
	<-d.done
}

// Close flushes pending rows and closes the database.
func (d *DB) Close() error {
	d.Flush()
	return d.DB.Close()
}

// RecordEvent writes one event synchronously.
func (d *DB) RecordEvent(e estimator.Event) error {
	_, err := d.Exec(
		"INSERT INTO events (event_id, time_ns, level, kind, sensor, message) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID.String(), e.Time.UnixNano(), e.Level.String(), string(e.Kind), e.Sensor, e.Message,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// RecordInnovation writes one innovation synchronously.
func (d *DB) RecordInnovation(in estimator.Innovation) error {
	r, s := in.Residual, in.Variance
	_, err := d.Exec(`INSERT INTO innovations
		(time_ns, sensor, dim, r0, r1, r2, r3, r4, r5, s0, s1, s2, s3, s4, s5, beta, fault)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Time.UnixNano(), in.Sensor, in.Dim,
		r[0], r[1], r[2], r[3], r[4], r[5],
		s[0], s[1], s[2], s[3], s[4], s[5],
		in.Beta, in.Fault,
	)
	if err != nil {
		return fmt.Errorf("insert innovation: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (d *DB) RecentEvents(limit int) ([]estimator.Event, error) {
	rows, err := d.Query(
		"SELECT event_id, time_ns, level, kind, sensor, message FROM events ORDER BY time_ns DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []estimator.Event
	for rows.Next() {
		var (
			e      estimator.Event
			id     string
			timeNS int64
			level  string
			kind   string
		)
		if err := rows.Scan(&id, &timeNS, &level, &kind, &e.Sensor, &e.Message); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("event id %q: %w", id, err)
		}
		if err := e.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, timeNS).UTC()
		e.Kind = estimator.Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentInnovations returns up to limit innovations of sensor, newest
// first.
func (d *DB) RecentInnovations(sensor string, limit int) ([]estimator.Innovation, error) {
	rows, err := d.Query(`SELECT time_ns, sensor, dim, r0, r1, r2, r3, r4, r5, s0, s1, s2, s3, s4, s5, beta, fault
		FROM innovations WHERE sensor = ? ORDER BY time_ns DESC, innovation_id DESC LIMIT ?`,
		sensor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query innovations: %w", err)
	}
	defer rows.Close()

	var out []estimator.Innovation
	for rows.Next() {
		var (
			in     estimator.Innovation
			timeNS int64
		)
		r, s := &in.Residual, &in.Variance
		err := rows.Scan(&timeNS, &in.Sensor, &in.Dim,
			&r[0], &r[1], &r[2], &r[3], &r[4], &r[5],
			&s[0], &s[1], &s[2], &s[3], &s[4], &s[5],
			&in.Beta, &in.Fault)
		if err != nil {
			return nil, fmt.Errorf("scan innovation: %w", err)
		}
		in.Time = time.Unix(0, timeNS).UTC()
		out = append(out, in)
	}
	return out, rows.Err()
}
