// Package trash moves deleted note files into a recoverable trash folder and
// keeps a SQLite ledger of where each one came from.
package trash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/inkwell/internal/apperr"
)

// DirName is the trash folder created next to trashed files.
const DirName = ".trash"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS trash (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id     TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	origin_path TEXT NOT NULL,
	trash_path  TEXT NOT NULL UNIQUE,
	deleted_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trash_note ON trash(note_id);
CREATE INDEX IF NOT EXISTS idx_trash_deleted ON trash(deleted_at DESC);
`

// Entry is one trashed file.
type Entry struct {
	ID         int64     `json:"id"`
	NoteID     string    `json:"note_id"`
	Title      string    `json:"title"`
	OriginPath string    `json:"origin_path"`
	TrashPath  string    `json:"trash_path"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// Bin is the trash ledger plus the file moves it records.
type Bin struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the ledger database and applies the schema.
func Open(dsn string) (*Bin, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("trash: mkdir ledger dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("trash: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("trash: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("trash: apply schema: %w", err)
	}
	return &Bin{conn: conn, now: time.Now}, nil
}

// Close closes the ledger database.
func (b *Bin) Close() error {
	return b.conn.Close()
}

// Trash moves the file at path into the sibling trash folder and records it.
func (b *Bin) Trash(ctx context.Context, path, noteID, title string) (*Entry, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("trash: stat %s: %w", path, err)
	}

	now := b.now().UTC()
	dir := filepath.Join(filepath.Dir(path), DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("trash: mkdir: %w", err)
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	dest := filepath.Join(dir, stem+"."+strconv.FormatInt(now.UnixNano(), 10)+ext)

	if err := os.Rename(path, dest); err != nil {
		return nil, fmt.Errorf("trash: move: %w", err)
	}

	res, err := b.conn.ExecContext(ctx, `
		INSERT INTO trash (note_id, title, origin_path, trash_path, deleted_at)
		VALUES (?, ?, ?, ?, ?)
	`, noteID, title, path, dest, now.Format(time.RFC3339Nano))
	if err != nil {
		// Keep the file where the caller can still see it.
		_ = os.Rename(dest, path)
		return nil, fmt.Errorf("trash: record: %w", err)
	}
	id, _ := res.LastInsertId()

	return &Entry{
		ID:         id,
		NoteID:     noteID,
		Title:      title,
		OriginPath: path,
		TrashPath:  dest,
		DeletedAt:  now,
	}, nil
}

// List returns trashed entries, newest first.
func (b *Bin) List(ctx context.Context) ([]Entry, error) {
	rows, err := b.conn.QueryContext(ctx, `
		SELECT id, note_id, title, origin_path, trash_path, deleted_at
		FROM trash ORDER BY deleted_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("trash: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Get returns one entry by ledger id.
func (b *Bin) Get(ctx context.Context, id int64) (*Entry, error) {
	row := b.conn.QueryRowContext(ctx, `
		SELECT id, note_id, title, origin_path, trash_path, deleted_at
		FROM trash WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return e, err
}

// Restore moves a trashed file back to where it was deleted from.
// It refuses to overwrite a file that now occupies the origin path.
func (b *Bin) Restore(ctx context.Context, id int64) (*Entry, error) {
	e, err := b.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(e.OriginPath); err == nil {
		return nil, fmt.Errorf("trash: restore %s: %w", e.OriginPath, apperr.ErrAlreadyExists)
	}
	if _, err := os.Stat(e.TrashPath); errors.Is(err, os.ErrNotExist) {
		// The file was emptied out of the trash by hand.
		_, _ = b.conn.ExecContext(ctx, `DELETE FROM trash WHERE id = ?`, id)
		return nil, apperr.ErrNotFound
	}
	if err := os.MkdirAll(filepath.Dir(e.OriginPath), 0o755); err != nil {
		return nil, fmt.Errorf("trash: mkdir origin: %w", err)
	}
	if err := os.Rename(e.TrashPath, e.OriginPath); err != nil {
		return nil, fmt.Errorf("trash: restore: %w", err)
	}
	if _, err := b.conn.ExecContext(ctx, `DELETE FROM trash WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("trash: forget entry: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var deletedAt string
	if err := s.Scan(&e.ID, &e.NoteID, &e.Title, &e.OriginPath, &e.TrashPath, &deletedAt); err != nil {
		return nil, err
	}
	e.DeletedAt, _ = time.Parse(time.RFC3339Nano, deletedAt)
	return &e, nil
}
