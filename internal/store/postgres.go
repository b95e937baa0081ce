// Package store holds the persistence collaborators: a shared Postgres store
// and a local sqlite history. Both are optional; the pipeline treats writes
// as best-effort.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id          BIGSERIAL PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	kind        TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	scores      JSONB NOT NULL,
	claims      JSONB,
	report      TEXT,
	source_url  TEXT,
	title       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS analyses_fingerprint_idx ON analyses (fingerprint);

CREATE TABLE IF NOT EXISTS trending (
	fingerprint TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	title       TEXT,
	hits        BIGINT NOT NULL DEFAULT 1,
	last_seen   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS trending_hits_idx ON trending (hits DESC);
`

// Store persists analyses to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Connect creates a pgx pool and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	slog.Info("postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// SaveAnalysis records one finished analysis and bumps its trending counter.
func (s *Store) SaveAnalysis(ctx context.Context, kind engine.InputKind, out *engine.AnalysisOutput) error {
	scores, err := json.Marshal(out.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	claims, err := json.Marshal(out.Claims)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (fingerprint, kind, verdict, scores, claims, report, source_url, title)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		out.Meta.Fingerprint, string(kind), out.Verdict, scores, claims,
		out.Report, out.Meta.SourceURL, out.Meta.Title)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO trending (fingerprint, kind, verdict, title)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (fingerprint) DO UPDATE
		 SET hits = trending.hits + 1, verdict = EXCLUDED.verdict, last_seen = now()`,
		out.Meta.Fingerprint, string(kind), out.Verdict, out.Meta.Title)
	if err != nil {
		return fmt.Errorf("bump trending: %w", err)
	}
	return nil
}

// TrendingEntry is one row of the most-submitted content.
type TrendingEntry struct {
	Fingerprint string `json:"fingerprint"`
	Kind        string `json:"kind"`
	Verdict     string `json:"verdict"`
	Title       string `json:"title,omitempty"`
	Hits        int64  `json:"hits"`
}

// TopTrending returns the most frequently submitted content, by hits.
func (s *Store) TopTrending(ctx context.Context, limit int) ([]TrendingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT fingerprint, kind, verdict, COALESCE(title, ''), hits
		 FROM trending ORDER BY hits DESC, last_seen DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending: %w", err)
	}
	defer rows.Close()

	var out []TrendingEntry
	for rows.Next() {
		var e TrendingEntry
		if err := rows.Scan(&e.Fingerprint, &e.Kind, &e.Verdict, &e.Title, &e.Hits); err != nil {
			return nil, fmt.Errorf("scan trending: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
