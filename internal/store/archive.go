package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// Batch describes one ingest cycle written to the archive.
type Batch struct {
	ID         uuid.UUID
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Received   int
	Dropped    int
	Stored     int
}

// Archive appends ingest batches to Postgres for audit. It is write-only;
// the in-memory Store is never rebuilt from it.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Archive{pool: pool}, nil
}

func (a *Archive) Close() {
	a.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS triage_batches (
	id          UUID PRIMARY KEY,
	source      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	received    INT NOT NULL,
	dropped     INT NOT NULL,
	stored      INT NOT NULL
);
CREATE TABLE IF NOT EXISTS triage_records (
	batch_id       UUID NOT NULL REFERENCES triage_batches(id) ON DELETE CASCADE,
	record_id      TEXT NOT NULL,
	sender_name    TEXT NOT NULL,
	sender_email   TEXT NOT NULL,
	subject        TEXT NOT NULL,
	body           TEXT NOT NULL,
	sent_at        TIMESTAMPTZ NOT NULL,
	priority       TEXT NOT NULL,
	sentiment      TEXT NOT NULL,
	category       TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	urgency_score  DOUBLE PRECISION NOT NULL,
	extracted_info JSONB NOT NULL,
	PRIMARY KEY (batch_id, record_id)
);`

// Migrate creates the archive tables when they do not exist.
func (a *Archive) Migrate(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

// WriteBatch stores the batch row and all of its records in one transaction.
func (a *Archive) WriteBatch(ctx context.Context, b Batch, recs []record.Record) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO triage_batches (id, source, started_at, finished_at, received, dropped, stored)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Source, b.StartedAt, b.FinishedAt, b.Received, b.Dropped, b.Stored,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, r := range recs {
		info, err := json.Marshal(r.ExtractedInfo)
		if err != nil {
			return fmt.Errorf("marshal extracted info: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO triage_records (batch_id, record_id, sender_name, sender_email, subject, body,
				sent_at, priority, sentiment, category, confidence, urgency_score, extracted_info)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			b.ID, r.ID, r.Sender.Name, r.Sender.Email, r.Subject, r.Body,
			r.Timestamp, string(r.Priority), string(r.Sentiment), r.Category, r.Confidence, r.UrgencyScore, info,
		)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountRecords returns how many records the archive holds for a batch.
func (a *Archive) CountRecords(ctx context.Context, batchID uuid.UUID) (int, error) {
	var n int
	err := a.pool.QueryRow(ctx, `SELECT count(*) FROM triage_records WHERE batch_id = $1`, batchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
