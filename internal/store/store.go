package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a database from user_version i to i+1.
// schema.sql always describes the latest layout, so every step must be
// a no-op on a freshly created database.
var migrations = []func(*sql.Tx) error{
	addVoteCount, // 0 -> 1
}

// Store persists lockchain roots and their receipt leaves in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the lockchain database at path and brings its
// schema up to date. Opening an existing database is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open lockchain db: %w", err)
	}

	// One writer: roots are persisted from the commit path only.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open lockchain db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// dsn encodes the connection pragmas understood by go-sqlite3.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply lockchain schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for ; version < len(migrations); version++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		if err := migrations[version](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
	}
	return nil
}

// addVoteCount adds lockchain_roots.vote_count to databases created
// before roots carried their quorum size.
func addVoteCount(tx *sql.Tx) error {
	var present int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('lockchain_roots') WHERE name = 'vote_count'
	`).Scan(&present)
	if err != nil || present > 0 {
		return err
	}
	_, err = tx.Exec(`ALTER TABLE lockchain_roots ADD COLUMN vote_count INTEGER NOT NULL DEFAULT 0`)
	return err
}

// verifyPragma checks a connection pragma. Test hook.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
