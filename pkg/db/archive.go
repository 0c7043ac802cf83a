package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantdesk/command-registry/pkg/journal"
)

const archiveLogPrefix = "db:archive"

const archiveSchema = `
CREATE TABLE IF NOT EXISTS journal_entries (
    id          TEXT PRIMARY KEY,
    path        TEXT NOT NULL,
    provider    TEXT NOT NULL DEFAULT '',
    args        JSONB,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    output      JSONB,
    aliases     TEXT[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS journal_entries_started_at_idx ON journal_entries (started_at DESC);
`

// JournalArchive is a journal.Archiver writing committed entries to
// postgres. Entries are insert-only, matching the journal's immutability.
type JournalArchive struct {
	pool *pgxpool.Pool
}

// NewJournalArchive creates a JournalArchive on the given pool.
func NewJournalArchive(pool *pgxpool.Pool) *JournalArchive {
	return &JournalArchive{pool: pool}
}

// EnsureSchema creates the journal_entries table if missing.
func (a *JournalArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, archiveSchema); err != nil {
		return fmt.Errorf("%s - failed to ensure schema: %w", archiveLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - journal archive schema ensured", archiveLogPrefix))
	return nil
}

// Archive inserts one committed journal entry.
func (a *JournalArchive) Archive(ctx context.Context, entry *journal.Entry) error {
	args, err := json.Marshal(entry.Args)
	if err != nil {
		return fmt.Errorf("%s - failed to encode args for %s: %w", archiveLogPrefix, entry.ID, err)
	}
	output, err := json.Marshal(entry.Output)
	if err != nil {
		return fmt.Errorf("%s - failed to encode output for %s: %w", archiveLogPrefix, entry.ID, err)
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO journal_entries (id, path, provider, args, started_at, duration_ms, output, aliases)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Path, entry.Provider, args, entry.StartedAt,
		entry.Duration.Milliseconds(), output, entry.Aliases)
	if err != nil {
		return fmt.Errorf("%s - failed to insert entry %s: %w", archiveLogPrefix, entry.ID, err)
	}
	return nil
}

// ArchivedEntry is one archived journal row, output left as raw JSON.
type ArchivedEntry struct {
	ID         string
	Path       string
	Provider   string
	StartedAt  time.Time
	DurationMs int64
	Output     json.RawMessage
	Aliases    []string
}

// RecentEntries returns up to n archived entries, newest first.
func (a *JournalArchive) RecentEntries(ctx context.Context, n int) ([]ArchivedEntry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := a.pool.Query(ctx,
		`SELECT id, path, provider, started_at, duration_ms, output, aliases
		 FROM journal_entries
		 ORDER BY started_at DESC
		 LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to query entries: %w", archiveLogPrefix, err)
	}
	defer rows.Close()

	var entries []ArchivedEntry
	for rows.Next() {
		var e ArchivedEntry
		if err := rows.Scan(&e.ID, &e.Path, &e.Provider, &e.StartedAt, &e.DurationMs, &e.Output, &e.Aliases); err != nil {
			return nil, fmt.Errorf("%s - failed to scan entry: %w", archiveLogPrefix, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
