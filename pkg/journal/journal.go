// Package journal implements the invocation journal: an append-only,
// process-wide audit log of completed dispatches. Entries are immutable
// after creation and ordered by completion, since duration is only known at
// completion. The journal is capacity-bounded with oldest-entry eviction;
// capacity zero means unbounded.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantdesk/command-registry/pkg/registry"
)

const logPrefix = "journal:journal"

// Entry is an immutable audit record of one completed dispatch.
type Entry struct {
	ID        string                 `json:"id"`
	Path      string                 `json:"path"`
	Provider  string                 `json:"provider,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
	StartedAt time.Time              `json:"startedAt"`
	Duration  time.Duration          `json:"duration"`
	// Output references the result envelope returned to the caller.
	Output  interface{} `json:"output,omitempty"`
	Aliases []string    `json:"aliases,omitempty"`
}

// Archiver mirrors committed entries to durable storage. The journal itself
// owns no persisted state; archiving is an injected collaborator.
type Archiver interface {
	Archive(ctx context.Context, entry *Entry) error
}

// Journal is the process-wide invocation journal. Appends are serialized by
// a mutex; committed entries are never mutated, so readers holding an Entry
// pointer are unaffected by later appends or eviction.
type Journal struct {
	mu       sync.Mutex
	entries  []*Entry
	byID     map[string]*Entry
	byAlias  map[string]*Entry // latest entry wins per alias
	capacity int
	archiver Archiver
}

// Option configures a Journal.
type Option func(*Journal)

// WithCapacity bounds the journal to n entries with oldest-entry eviction.
// Zero or negative means unbounded.
func WithCapacity(n int) Option {
	return func(j *Journal) { j.capacity = n }
}

// WithArchiver mirrors every append to the given archiver.
func WithArchiver(a Archiver) Option {
	return func(j *Journal) { j.archiver = a }
}

// New creates an empty Journal.
func New(opts ...Option) *Journal {
	j := &Journal{
		byID:    make(map[string]*Entry),
		byAlias: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Append commits an entry. The entry must not be mutated afterwards.
// Archiving runs outside the journal lock; an archive failure is logged,
// never surfaced to the dispatching caller.
func (j *Journal) Append(ctx context.Context, entry *Entry) {
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.byID[entry.ID] = entry
	for _, alias := range entry.Aliases {
		j.byAlias[alias] = entry
	}
	if j.capacity > 0 && len(j.entries) > j.capacity {
		evicted := j.entries[0]
		j.entries = j.entries[1:]
		delete(j.byID, evicted.ID)
		for _, alias := range evicted.Aliases {
			if j.byAlias[alias] == evicted {
				delete(j.byAlias, alias)
			}
		}
	}
	j.mu.Unlock()

	if j.archiver != nil {
		if err := j.archiver.Archive(ctx, entry); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to archive entry %s: %v", logPrefix, entry.ID, err))
		}
	}
}

// Find returns the entry with the given identifier or fails with NOT_FOUND.
func (j *Journal) Find(id string) (*Entry, *registry.Error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if e, ok := j.byID[id]; ok {
		return e, nil
	}
	return nil, registry.NewError(registry.CodeNotFound, fmt.Sprintf("no journal entry with id %s", id))
}

// FindByAlias returns the most recent entry carrying the alias or fails
// with NOT_FOUND.
func (j *Journal) FindByAlias(alias string) (*Entry, *registry.Error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if e, ok := j.byAlias[alias]; ok {
		return e, nil
	}
	return nil, registry.NewError(registry.CodeNotFound, fmt.Sprintf("no journal entry with alias %s", alias))
}

// ListRecent returns up to n entries, newest first. n <= 0 returns all.
func (j *Journal) ListRecent(n int) []*Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	total := len(j.entries)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]*Entry, 0, n)
	for i := total - 1; i >= total-n; i-- {
		out = append(out, j.entries[i])
	}
	return out
}

// Len returns the number of committed entries currently retained.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
