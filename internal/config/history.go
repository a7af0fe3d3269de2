package config

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/model"
)

// History is a small local sqlite store recording each repository's last
// ingestion cycle, consulted by `repolex stats` so it can report recency
// without re-querying the quad store. Grounded on BeadsLog's
// internal/storage/sqlite migration machinery, reduced from its
// issue-tracker schema to one table.
type History struct {
	db *sql.DB
}

// ingestionHistorySchema is the single migration this store needs; unlike
// BeadsLog's several-dozen-migration list, repolex's stats cache has one
// table and has not yet had a reason to evolve it.
const ingestionHistorySchema = `
CREATE TABLE IF NOT EXISTS ingestion_history (
	org          TEXT NOT NULL,
	repo         TEXT NOT NULL,
	version      TEXT NOT NULL,
	quad_count   INTEGER NOT NULL,
	ingested_at  TEXT NOT NULL,
	PRIMARY KEY (org, repo)
);
`

// OpenHistory opens (creating if absent) the ingestion-history database at
// dbPath, normally <repolex home>/oxigraph/cache.db alongside the query
// result cache (they share the file; each owns its own table).
func OpenHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "opening ingestion history database", err)
	}
	if _, err := db.Exec(ingestionHistorySchema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.KindStorage, "migrating ingestion history schema", err)
	}
	return &History{db: db}, nil
}

// Close releases the underlying database handle.
func (h *History) Close() error { return h.db.Close() }

// Record upserts repo's most recent ingestion: version, quad count, and
// timestamp. Called by the CLI's add/update verbs after a successful
// graph-add or graph-update.
func (h *History) Record(ctx context.Context, repo model.Repository, version string, quadCount int64, at time.Time) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO ingestion_history (org, repo, version, quad_count, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (org, repo) DO UPDATE SET
			version = excluded.version,
			quad_count = excluded.quad_count,
			ingested_at = excluded.ingested_at
	`, repo.Org, repo.Repo, version, quadCount, at.UTC().Format(time.RFC3339))
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "recording ingestion history for "+repo.Slug(), err)
	}
	return nil
}

// IngestionRecord is one repository's last-known ingestion state.
type IngestionRecord struct {
	Version    string
	QuadCount  int64
	IngestedAt time.Time
}

// Lookup returns repo's last recorded ingestion, or (nil, nil) if none has
// ever been recorded.
func (h *History) Lookup(ctx context.Context, repo model.Repository) (*IngestionRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT version, quad_count, ingested_at FROM ingestion_history
		WHERE org = ? AND repo = ?
	`, repo.Org, repo.Repo)

	var rec IngestionRecord
	var ingestedAt string
	if err := row.Scan(&rec.Version, &rec.QuadCount, &ingestedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.KindStorage, "looking up ingestion history for "+repo.Slug(), err)
	}
	parsed, err := time.Parse(time.RFC3339, ingestedAt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "parsing ingested_at for "+repo.Slug(), err)
	}
	rec.IngestedAt = parsed
	return &rec, nil
}
