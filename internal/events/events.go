package events

import (
	"errors"
	"fmt"
	"log/slog"
)

// Publisher sends a JSON-encodable payload on a subject.
type Publisher interface {
	Publish(subject string, data any) error
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(string, any) error { return nil }

type sink struct {
	name string
	pub  Publisher
}

// Fanout publishes every event to all registered sinks. A failing sink does
// not stop delivery to the others.
type Fanout struct {
	sinks  []sink
	logger *slog.Logger
}

func NewFanout(logger *slog.Logger) *Fanout {
	return &Fanout{logger: logger}
}

// Add registers a named sink. Nil publishers are ignored.
func (f *Fanout) Add(name string, p Publisher) {
	if p == nil {
		return
	}
	f.sinks = append(f.sinks, sink{name: name, pub: p})
}

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Publish(subject string, data any) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.pub.Publish(subject, data); err != nil {
			f.logger.Warn("publish failed", "sink", s.name, "subject", subject, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
