package ingest

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// ErrNoSource is returned when an ingest is requested without an adapter.
var ErrNoSource = errors.New("no ingest source configured")

// Source produces raw records for one ingest cycle. Fields arrive in the
// fixed order sender, subject, body, sent-at.
type Source interface {
	// Name labels the source in logs, events and the archive.
	Name() string
	Fetch(ctx context.Context) ([]record.Raw, error)
}
