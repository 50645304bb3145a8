package store

import (
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// snapshot is never mutated after it is published.
type snapshot struct {
	records  []record.Record
	byID     map[string]int
	loadedAt time.Time
}

// Store holds the current processed record set in memory. Readers always see
// one complete snapshot: ReplaceAll builds the next set aside and swaps it in.
type Store struct {
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
	now     func() time.Time
}

func New(logger *slog.Logger) *Store {
	s := &Store{logger: logger, now: time.Now}
	s.current.Store(&snapshot{byID: map[string]int{}})
	return s
}

// ReplaceAll discards the held set and installs recs in their given order.
// A record whose id is already present in recs is skipped with a warning.
// It returns the number of records stored.
func (s *Store) ReplaceAll(recs []record.Record) int {
	next := &snapshot{
		records:  make([]record.Record, 0, len(recs)),
		byID:     make(map[string]int, len(recs)),
		loadedAt: s.now().UTC(),
	}
	for _, r := range recs {
		if _, dup := next.byID[r.ID]; dup {
			s.logger.Warn("duplicate record id skipped", "id", r.ID, "subject", r.Subject)
			continue
		}
		next.byID[r.ID] = len(next.records)
		next.records = append(next.records, r.Clone())
	}

	prev := s.current.Swap(next)
	s.logger.Info("records replaced", "count", len(next.records), "previous", len(prev.records))
	return len(next.records)
}

// All returns every record in ingest order. The result is a private copy.
func (s *Store) All() []record.Record {
	return cloneAll(s.current.Load().records)
}

// ByID reports false when no record has the id.
func (s *Store) ByID(id string) (record.Record, bool) {
	snap := s.current.Load()
	i, ok := snap.byID[id]
	if !ok {
		return record.Record{}, false
	}
	return snap.records[i].Clone(), true
}

// Recent returns up to n records, newest first. Records with equal
// timestamps keep ingest order.
func (s *Store) Recent(n int) []record.Record {
	if n <= 0 {
		return []record.Record{}
	}
	recs := cloneAll(s.current.Load().records)
	slices.SortStableFunc(recs, func(a, b record.Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs
}

func (s *Store) Len() int {
	return len(s.current.Load().records)
}

// LoadedAt is the time of the last ReplaceAll, zero if none happened.
func (s *Store) LoadedAt() time.Time {
	return s.current.Load().loadedAt
}

func cloneAll(recs []record.Record) []record.Record {
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
