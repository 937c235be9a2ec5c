package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqlBackend stores browser storage rows in MariaDB:
//
//	browser_storage(browser_id, storage_key, value, updated_at)
//
// with (browser_id, storage_key) as the primary key. See
// db/migrations/000001_browser_storage.up.sql.
type sqlBackend struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLBackend creates a backend on the given MariaDB pool.
func NewSQLBackend(db *sql.DB) Backend {
	return &sqlBackend{db: db, now: time.Now}
}

// ForBrowser returns the storage area for browserID.
func (b *sqlBackend) ForBrowser(browserID string) Storage {
	return &sqlStorage{backend: b, browserID: browserID}
}

type sqlStorage struct {
	backend   *sqlBackend
	browserID string
}

// Load reads both keys for the browser.
func (s *sqlStorage) Load(ctx context.Context) (Persisted, error) {
	query := `SELECT storage_key, value FROM browser_storage
	          WHERE browser_id = ? AND storage_key IN (?, ?)`

	rows, err := s.backend.db.QueryContext(ctx, query, s.browserID, KeyToken, KeyUser)
	if err != nil {
		return Persisted{}, fmt.Errorf("querying browser storage: %w", err)
	}
	defer rows.Close()

	var token, user string
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Persisted{}, fmt.Errorf("scanning browser storage row: %w", err)
		}
		switch key {
		case KeyToken:
			token = value
		case KeyUser:
			user = value
		}
	}
	if err := rows.Err(); err != nil {
		return Persisted{}, fmt.Errorf("iterating browser storage rows: %w", err)
	}

	p, err := decodeSnapshot(user)
	if err != nil {
		return Persisted{Token: token}, err
	}
	return Persisted{Token: token, Principal: p}, nil
}

// Save upserts both keys in one transaction.
func (s *sqlStorage) Save(ctx context.Context, p Persisted) error {
	user, err := encodeSnapshot(p.Principal)
	if err != nil {
		return err
	}

	tx, err := s.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning browser storage transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO browser_storage (browser_id, storage_key, value, updated_at)
	          VALUES (?, ?, ?, ?), (?, ?, ?, ?)
	          ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`

	now := s.backend.now().UTC()
	if _, err := tx.ExecContext(ctx, query,
		s.browserID, KeyToken, p.Token, now,
		s.browserID, KeyUser, user, now,
	); err != nil {
		return fmt.Errorf("upserting browser storage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing browser storage: %w", err)
	}
	return nil
}

// Clear deletes both keys with a single statement.
func (s *sqlStorage) Clear(ctx context.Context) error {
	query := `DELETE FROM browser_storage WHERE browser_id = ? AND storage_key IN (?, ?)`
	if _, err := s.backend.db.ExecContext(ctx, query, s.browserID, KeyToken, KeyUser); err != nil {
		return fmt.Errorf("deleting browser storage: %w", err)
	}
	return nil
}
