package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/triage/internal/classifier"
	"github.com/MikeSquared-Agency/triage/internal/events"
	"github.com/MikeSquared-Agency/triage/internal/extractor"
	"github.com/MikeSquared-Agency/triage/internal/hermes"
	"github.com/MikeSquared-Agency/triage/internal/ingest"
	"github.com/MikeSquared-Agency/triage/internal/record"
	"github.com/MikeSquared-Agency/triage/internal/responder"
	"github.com/MikeSquared-Agency/triage/internal/slack"
	"github.com/MikeSquared-Agency/triage/internal/store"
)

// RecordStore receives the records of each successful ingest.
type RecordStore interface {
	ReplaceAll(recs []record.Record) int
}

// Archiver persists a finished batch.
type Archiver interface {
	WriteBatch(ctx context.Context, b store.Batch, recs []record.Record) error
}

// Alerter delivers a high-priority alert to people.
type Alerter interface {
	PostAlert(ctx context.Context, a slack.Alert) (string, error)
}

// Drafter produces a reply draft for a record.
type Drafter interface {
	Generate(r record.Record) responder.Draft
}

// dropCounter is implemented by sources that skip malformed input.
type dropCounter interface {
	Dropped() int
}

// Deps are the collaborators of a Processor. Store is required; a nil
// Classifier or Extractor gets the keyword defaults, and the remaining
// fields are optional.
type Deps struct {
	Store      RecordStore
	Classifier classifier.Classifier
	Extractor  *extractor.Extractor
	Responder  Drafter
	Events     events.Publisher
	Archive    Archiver
	Alerts     Alerter
	Source     ingest.Source
	Logger     *slog.Logger
}

type Options struct {
	// Workers bounds concurrent classification. Default 4.
	Workers int
	// KeepOnFailure retains the previous records when an ingest fails
	// instead of clearing the store.
	KeepOnFailure bool
	// Now is the clock used for unparseable timestamps and batch times.
	Now func() time.Time
}

// Processor runs ingest cycles: fetch, classify and extract, replace the
// store, then notify.
type Processor struct {
	store      RecordStore
	classifier classifier.Classifier
	extractor  *extractor.Extractor
	responder  Drafter
	events     events.Publisher
	archive    Archiver
	alerts     Alerter
	alertGuard *events.Breaker
	source     ingest.Source
	logger     *slog.Logger

	workers       int
	keepOnFailure bool
	now           func() time.Time
}

// Report summarises one ingest cycle.
type Report struct {
	BatchID    uuid.UUID `json:"batchId"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Received   int       `json:"received"`
	Dropped    int       `json:"dropped"`
	Stored     int       `json:"stored"`
	High       int       `json:"high"`
	Err        error     `json:"-"`
}

// Failed reports whether the cycle ended without replacing the store.
func (r Report) Failed() bool { return r.Err != nil }

func New(d Deps, o Options) *Processor {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Classifier == nil {
		d.Classifier = classifier.NewKeywordClassifier()
	}
	if d.Extractor == nil {
		d.Extractor = extractor.New()
	}
	if d.Events == nil {
		d.Events = events.Discard
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	p := &Processor{
		store:         d.Store,
		classifier:    d.Classifier,
		extractor:     d.Extractor,
		responder:     d.Responder,
		events:        d.Events,
		archive:       d.Archive,
		alerts:        d.Alerts,
		source:        d.Source,
		logger:        d.Logger,
		workers:       o.Workers,
		keepOnFailure: o.KeepOnFailure,
		now:           o.Now,
	}
	if d.Alerts != nil {
		p.alertGuard = events.NewBreaker("slack-alerts", events.BreakerSettings{}, d.Logger)
	}
	return p
}

// Source returns the configured default source, or nil.
func (p *Processor) Source() ingest.Source { return p.source }

// Ingest runs one full cycle against src, or the configured source when src
// is nil. Failures are logged and reported, never returned as panics.
func (p *Processor) Ingest(ctx context.Context, src ingest.Source) Report {
	if src == nil {
		src = p.source
	}
	rep := Report{BatchID: uuid.New(), StartedAt: p.now().UTC()}
	if src == nil {
		rep.Err = ingest.ErrNoSource
		return p.fail(rep)
	}
	rep.Source = src.Name()

	raws, err := src.Fetch(ctx)
	if dc, ok := src.(dropCounter); ok {
		rep.Dropped = dc.Dropped()
	}
	if err != nil {
		rep.Err = fmt.Errorf("fetch %s: %w", rep.Source, err)
		return p.fail(rep)
	}
	rep.Received = len(raws)

	recs, err := p.Process(ctx, raws)
	if err != nil {
		rep.Err = fmt.Errorf("process batch: %w", err)
		return p.fail(rep)
	}
	recs = p.dedupe(recs)

	rep.Stored = p.store.ReplaceAll(recs)
	rep.FinishedAt = p.now().UTC()
	for _, r := range recs {
		if r.Priority == record.PriorityHigh {
			rep.High++
		}
	}

	if p.archive != nil {
		b := store.Batch{
			ID:         rep.BatchID,
			Source:     rep.Source,
			StartedAt:  rep.StartedAt,
			FinishedAt: rep.FinishedAt,
			Received:   rep.Received,
			Dropped:    rep.Dropped,
			Stored:     rep.Stored,
		}
		if err := p.archive.WriteBatch(ctx, b, recs); err != nil {
			p.logger.Error("archive write failed", "batch_id", rep.BatchID, "error", err)
		}
	}

	p.publishCompleted(rep)
	p.notifyHighPriority(ctx, rep.BatchID, recs)

	p.logger.Info("ingest complete",
		"batch_id", rep.BatchID,
		"source", rep.Source,
		"received", rep.Received,
		"dropped", rep.Dropped,
		"stored", rep.Stored,
		"high", rep.High,
	)
	return rep
}

func (p *Processor) fail(rep Report) Report {
	rep.FinishedAt = p.now().UTC()
	if p.keepOnFailure {
		p.logger.Error("ingest failed, keeping previous records", "batch_id", rep.BatchID, "source", rep.Source, "error", rep.Err)
	} else {
		p.store.ReplaceAll(nil)
		p.logger.Error("ingest failed, records cleared", "batch_id", rep.BatchID, "source", rep.Source, "error", rep.Err)
	}
	p.publishCompleted(rep)
	return rep
}

// Process classifies and extracts raws into records, preserving input order.
func (p *Processor) Process(ctx context.Context, raws []record.Raw) ([]record.Record, error) {
	recs := make([]record.Record, len(raws))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, raw := range raws {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs[i] = p.build(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recs, nil
}

// dedupe keeps the first record for each id, the same rule the store applies,
// so the archive, counts and alerts see exactly what gets stored.
func (p *Processor) dedupe(recs []record.Record) []record.Record {
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if _, dup := seen[r.ID]; dup {
			p.logger.Warn("duplicate record skipped", "id", r.ID, "subject", r.Subject)
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func (p *Processor) build(raw record.Raw) record.Record {
	ts, ok := ingest.ParseTimestamp(raw.SentAt)
	if !ok {
		ts = p.now().UTC()
		p.logger.Debug("unparseable timestamp, using now", "sent_at", raw.SentAt)
	}

	c := p.classifier.Classify(raw.Subject, raw.Body)
	return record.Record{
		ID:            record.DeriveID(raw.Sender, raw.Subject, raw.SentAt),
		Sender:        ingest.ParseSender(raw.Sender),
		Subject:       raw.Subject,
		Body:          raw.Body,
		Timestamp:     ts,
		Priority:      c.Priority,
		Sentiment:     c.Sentiment,
		Category:      c.Category,
		Confidence:    c.Confidence,
		UrgencyScore:  c.UrgencyScore,
		ExtractedInfo: p.extractor.Extract(raw.Subject, raw.Body),
	}
}

func (p *Processor) publishCompleted(rep Report) {
	evt := hermes.IngestCompleted{
		BatchID:    rep.BatchID.String(),
		Source:     rep.Source,
		Received:   rep.Received,
		Stored:     rep.Stored,
		High:       rep.High,
		Failed:     rep.Failed(),
		FinishedAt: rep.FinishedAt,
	}
	if rep.Err != nil {
		evt.Error = rep.Err.Error()
	}
	if err := p.events.Publish(hermes.SubjectIngestCompleted, evt); err != nil {
		p.logger.Error("failed to publish ingest completed", "batch_id", rep.BatchID, "error", err)
	}
}

func (p *Processor) notifyHighPriority(ctx context.Context, batchID uuid.UUID, recs []record.Record) {
	for _, r := range recs {
		if r.Priority != record.PriorityHigh {
			continue
		}

		var draft responder.Draft
		if p.responder != nil {
			draft = p.responder.Generate(r)
		}

		if err := p.events.Publish(hermes.SubjectHighPriority, hermes.HighPriorityRecord{
			BatchID:      batchID.String(),
			RecordID:     r.ID,
			Sender:       r.Sender.Email,
			Subject:      r.Subject,
			Category:     r.Category,
			IssueType:    string(r.ExtractedInfo.IssueType),
			UrgencyScore: r.UrgencyScore,
			CaseID:       draft.CaseID,
		}); err != nil {
			p.logger.Error("failed to publish high priority record", "record_id", r.ID, "error", err)
		}

		if p.alerts == nil {
			continue
		}
		err := p.alertGuard.Do(func() error {
			_, err := p.alerts.PostAlert(ctx, slack.Alert{
				Record: r,
				CaseID: draft.CaseID,
				Agent:  draft.Agent,
				Draft:  draft.Body,
			})
			return err
		})
		if errors.Is(err, events.ErrUnavailable) {
			p.logger.Warn("slack alerts paused", "record_id", r.ID)
			continue
		}
		if err != nil {
			p.logger.Error("slack alert failed", "record_id", r.ID, "error", err)
		}
	}
}

// HandleIngestRequested is the NATS handler for swarm.triage.ingest.requested.
// A payload with CSV text ingests that text; an empty payload re-reads the
// configured source.
func (p *Processor) HandleIngestRequested(subject string, data []byte) {
	var req hermes.IngestRequested
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			p.logger.Error("failed to parse ingest request", "subject", subject, "error", err)
			return
		}
	}

	var src ingest.Source
	if req.CSV != "" {
		label := "nats"
		if req.RequestID != "" {
			label = "nats:" + req.RequestID
		}
		src = ingest.NewReaderSource(label, []byte(req.CSV), p.logger)
	}

	rep := p.Ingest(context.Background(), src)
	p.logger.Info("ingest request handled",
		"request_id", req.RequestID,
		"batch_id", rep.BatchID,
		"failed", rep.Failed(),
	)
}
