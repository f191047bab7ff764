// Package sqlite provides a SQLite-backed storage repository using the pure
// Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmcleod/mathquiz/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	namespace   TEXT NOT NULL,
	record_type TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	data        BLOB NOT NULL,
	PRIMARY KEY (namespace, record_type, record_id)
);
CREATE TABLE IF NOT EXISTS sequences (
	namespace TEXT PRIMARY KEY,
	value     INTEGER NOT NULL
);`

// Store implements storage.Repository on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ storage.Repository = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(namespace, recordType, recordID string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO records (namespace, record_type, record_id, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, record_type, record_id) DO UPDATE SET data = excluded.data`,
		namespace, recordType, recordID, data)
	return err
}

func (s *Store) Get(namespace, recordType, recordID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM records WHERE namespace = ? AND record_type = ? AND record_id = ?`,
		namespace, recordType, recordID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) List(namespace, recordType string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT record_id FROM records WHERE namespace = ? AND record_type = ?`,
		namespace, recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(namespace, recordType, recordID string) error {
	res, err := s.db.Exec(
		`DELETE FROM records WHERE namespace = ? AND record_type = ? AND record_id = ?`,
		namespace, recordType, recordID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) NextSequence(namespace string) (uint64, error) {
	var n uint64
	err := s.db.QueryRow(
		`INSERT INTO sequences (namespace, value) VALUES (?, 1)
		 ON CONFLICT (namespace) DO UPDATE SET value = value + 1
		 RETURNING value`, namespace).Scan(&n)
	return n, err
}
