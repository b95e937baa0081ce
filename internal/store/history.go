package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

// History records analyses to a local sqlite file. Used when no shared
// database is configured.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the local history database. dir defaults to
// $HOME/.go_factcheck.
func OpenHistory(dir string) (*History, error) {
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".go_factcheck")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initHistorySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &History{db: db}, nil
}

func initHistorySchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT NOT NULL,
		kind        TEXT NOT NULL,
		verdict     TEXT NOT NULL,
		title       TEXT,
		source_url  TEXT,
		created_at  TEXT NOT NULL
	)`)
	return err
}

func (h *History) Close() error {
	return h.db.Close()
}

// Add records one analysis.
func (h *History) Add(ctx context.Context, kind engine.InputKind, out *engine.AnalysisOutput) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO history (fingerprint, kind, verdict, title, source_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		out.Meta.Fingerprint, string(kind), out.Verdict,
		out.Meta.Title, out.Meta.SourceURL, now)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// HistoryEntry is one recorded analysis.
type HistoryEntry struct {
	ID          int64  `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Kind        string `json:"kind"`
	Verdict     string `json:"verdict"`
	Title       string `json:"title,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Recent returns the newest entries, most recent first.
func (h *History) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, fingerprint, kind, verdict, COALESCE(title, ''), COALESCE(source_url, ''), created_at
		 FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.Kind, &e.Verdict, &e.Title, &e.SourceURL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
