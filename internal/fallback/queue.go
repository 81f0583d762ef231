// Package fallback is the durable local queue of student writes pending
// while the primary store is unreachable. The queue is a single JSON file
// rewritten atomically (write-to-temp, rename) on every mutation; entries
// are removed only after the primary store accepted them.
package fallback

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/model"
)

// StatusPending marks an entry awaiting drain.
const StatusPending = "pending"

// Entry is one queued student write.
type Entry struct {
	FallbackID string              `json:"fallback_id"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
	Status     string              `json:"status"`
	Student    model.StudentRecord `json:"student"`
}

// Queue serialises read-modify-write cycles on the backing file with an
// in-process lock. Multi-process callers must coordinate externally.
type Queue struct {
	mu    sync.Mutex
	path  string
	clock ident.Clock
	log   zerolog.Logger
}

// NewQueue creates a queue backed by the file at path. The file is created
// lazily on first enqueue and removed when the last entry is consumed.
func NewQueue(path string, clock ident.Clock, log zerolog.Logger) *Queue {
	return &Queue{
		path:  path,
		clock: clock,
		log:   log.With().Str("component", "fallback_queue").Logger(),
	}
}

// Enqueue appends a pending entry and returns its fallback ID. Once Enqueue
// returns, the entry survives a crash.
func (q *Queue) Enqueue(rec model.StudentRecord) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return "", err
	}

	now := q.clock.Now()
	entry := Entry{
		FallbackID: fallbackID(rec.Name, now),
		EnqueuedAt: now,
		Status:     StatusPending,
		Student:    rec,
	}
	entries = append(entries, entry)

	if err := q.save(entries); err != nil {
		return "", err
	}

	q.log.Warn().
		Str("fallback_id", entry.FallbackID).
		Str("student", rec.Name).
		Int("pending", len(entries)).
		Msg("Student write queued locally; primary store unavailable")
	return entry.FallbackID, nil
}

// ListPending returns all pending entries in enqueue order.
func (q *Queue) ListPending() ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return nil, err
	}
	pending := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status == StatusPending {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// Pending returns the number of queued entries. Errors count as zero; the
// status endpoint must not fail because the queue file is briefly locked.
func (q *Queue) Pending() int {
	entries, err := q.ListPending()
	if err != nil {
		q.log.Error().Err(err).Msg("Failed to read fallback queue")
		return 0
	}
	return len(entries)
}

// MarkConsumed removes the entry once the primary store accepted it. When
// the queue empties, the backing file is deleted.
func (q *Queue) MarkConsumed(fallbackID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		// Remove the first match only; identical names enqueued within the
		// same second share an ID.
		if !found && e.FallbackID == fallbackID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fmt.Errorf("fallback entry %s not found", fallbackID)
	}

	if len(kept) == 0 {
		if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove queue file: %w", err)
		}
		return nil
	}
	return q.save(kept)
}

// load reads the backing file. A missing file is an empty queue.
func (q *Queue) load() ([]Entry, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode queue file: %w", err)
	}
	return entries, nil
}

// save rewrites the backing file atomically.
func (q *Queue) save(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".fallback-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace queue file: %w", err)
	}
	return nil
}

// fallbackID is "fallback_<unix seconds>_<hash of name>".
func fallbackID(name string, now time.Time) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("fallback_%d_%08x", now.Unix(), h.Sum32())
}
