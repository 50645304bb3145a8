package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// Source supplies the record set queries run over.
type Source interface {
	All() []record.Record
}

// Filters narrows a search. Zero-valued fields are ignored; the rest are ANDed.
type Filters struct {
	// Query matches subject, body, sender name or sender address, case-insensitively.
	Query string
	// Sender matches sender name or address, case-insensitively.
	Sender    string
	Priority  record.Priority
	Sentiment record.Sentiment
	Category  string
	// Start and End bound the timestamp inclusively.
	Start time.Time
	End   time.Time
}

// Validate rejects enum filters that could never match.
func (f Filters) Validate() error {
	if f.Priority != "" && !f.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", f.Priority)
	}
	if f.Sentiment != "" && !f.Sentiment.Valid() {
		return fmt.Errorf("invalid sentiment %q", f.Sentiment)
	}
	return nil
}

func (f Filters) match(r record.Record) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !containsFold(r.Subject, q) && !containsFold(r.Body, q) &&
			!containsFold(r.Sender.Email, q) && !containsFold(r.Sender.Name, q) {
			return false
		}
	}
	if f.Sender != "" {
		q := strings.ToLower(f.Sender)
		if !containsFold(r.Sender.Email, q) && !containsFold(r.Sender.Name, q) {
			return false
		}
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.Sentiment != "" && r.Sentiment != f.Sentiment {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if !f.Start.IsZero() && r.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.Timestamp.After(f.End) {
		return false
	}
	return true
}

func containsFold(s, lowerSubstr string) bool {
	return strings.Contains(strings.ToLower(s), lowerSubstr)
}

// Engine answers searches and aggregates over a Source.
type Engine struct {
	source Source
}

func New(source Source) *Engine {
	return &Engine{source: source}
}

// Search returns the matching records in source order.
func (e *Engine) Search(f Filters) []record.Record {
	out := []record.Record{}
	for _, r := range e.source.All() {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}
