// Package sqlite provides a SQLite-backed snapshot store.
//
// Each user record is a row holding the record's JSON document. A save
// replaces the full set of rows inside one transaction, so readers always
// observe a complete snapshot much like the file store's atomic rename.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	user_id  TEXT PRIMARY KEY,
	record   TEXT NOT NULL,
	saved_at TIMESTAMP NOT NULL
);
`

// Driver implements store.Driver on a SQLite database.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (or creates) a SQLite-backed snapshot store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Registered as "sqlite3" by github.com/mattn/go-sqlite3.
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Save replaces the stored snapshot with the given one in a single
// transaction.
func (d *Driver) Save(ctx context.Context, snapshot memory.Snapshot) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return store.DurabilityError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return store.DurabilityError{Op: "clear", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO records (user_id, record, saved_at) VALUES (?, ?, ?)")
	if err != nil {
		return store.DurabilityError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for userID, record := range snapshot {
		doc, err := json.Marshal(record)
		if err != nil {
			return store.DurabilityError{Op: "encode", Err: err}
		}

		if _, err := stmt.ExecContext(ctx, userID, string(doc), now); err != nil {
			return store.DurabilityError{Op: "insert", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return store.DurabilityError{Op: "commit", Err: err}
	}

	return nil
}

// Load assembles the snapshot from all stored rows. An empty table yields an
// empty snapshot.
func (d *Driver) Load(ctx context.Context) (memory.Snapshot, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT user_id, record FROM records")
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	snapshot := memory.Snapshot{}
	for rows.Next() {
		var userID, doc string
		if err := rows.Scan(&userID, &doc); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}

		var record memory.Record
		if err := json.Unmarshal([]byte(doc), &record); err != nil {
			return nil, fmt.Errorf("decoding record for %s: %w", userID, err)
		}

		snapshot[userID] = &record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record rows: %w", err)
	}

	return snapshot, nil
}

// Close releases the underlying database handle.
func (d *Driver) Close() error {
	return d.db.Close()
}
