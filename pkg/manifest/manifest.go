// Package manifest keeps a local record of files already synced to a remote
// destination, so that re-runs only touch what changed.
package manifest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS synced_files (
	destination TEXT NOT NULL,
	path        TEXT NOT NULL,
	sha256      TEXT NOT NULL,
	synced_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (destination, path)
);
`

type Manifest struct {
	db *sql.DB
}

// Open opens (creating if needed) the manifest database at path.
func Open(path string) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing manifest %s: %w", path, err)
	}
	return &Manifest{db: db}, nil
}

func (m *Manifest) Close() error {
	return m.db.Close()
}

// HashFile returns the hex sha256 of the file content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsSynced reports whether path was already synced to destination with the
// same content hash.
func (m *Manifest) IsSynced(ctx context.Context, destination, path, sha string) (bool, error) {
	var stored string
	err := m.db.QueryRowContext(
		ctx,
		`SELECT sha256 FROM synced_files WHERE destination = ? AND path = ?`,
		destination, path,
	).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == sha, nil
}

// MarkSynced records (or refreshes) a successful sync.
func (m *Manifest) MarkSynced(ctx context.Context, destination, path, sha string) error {
	_, err := m.db.ExecContext(
		ctx,
		`INSERT INTO synced_files (destination, path, sha256, synced_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (destination, path) DO UPDATE
		 SET sha256 = excluded.sha256, synced_at = CURRENT_TIMESTAMP`,
		destination, path, sha,
	)
	return err
}

// Forget drops every record for destination. Used when the remote side is
// torn down or replaced wholesale.
func (m *Manifest) Forget(ctx context.Context, destination string) error {
	_, err := m.db.ExecContext(
		ctx, `DELETE FROM synced_files WHERE destination = ?`, destination,
	)
	return err
}
