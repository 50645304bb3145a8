package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

const csvFields = 4

// ParseCSV reads sender,subject,body,sent_date rows. A leading header row is
// skipped. Rows with fewer than four fields, or that cannot be parsed, are
// dropped and counted; extra fields are ignored.
func ParseCSV(r io.Reader) ([]record.Raw, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		raws    []record.Raw
		dropped int
		first   = true
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				dropped++
				continue
			}
			return nil, dropped, fmt.Errorf("read csv: %w", err)
		}
		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}
		if len(row) < csvFields {
			dropped++
			continue
		}
		raws = append(raws, record.Raw{
			Sender:  strings.TrimSpace(row[0]),
			Subject: strings.TrimSpace(row[1]),
			Body:    strings.TrimSpace(row[2]),
			SentAt:  strings.TrimSpace(row[3]),
		})
	}
	return raws, dropped, nil
}

func isHeader(row []string) bool {
	return len(row) >= 2 &&
		strings.EqualFold(strings.TrimSpace(row[0]), "sender") &&
		strings.EqualFold(strings.TrimSpace(row[1]), "subject")
}

// FileSource reads a CSV file on every Fetch.
type FileSource struct {
	Path    string
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{Path: path, logger: logger}
}

func (s *FileSource) Name() string { return "file:" + s.Path }

// Dropped reports the rows skipped by the last Fetch.
func (s *FileSource) Dropped() int { return int(s.dropped.Load()) }

func (s *FileSource) Fetch(ctx context.Context) ([]record.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	raws, dropped, err := ParseCSV(f)
	s.dropped.Store(int64(dropped))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	if dropped > 0 {
		s.logger.Warn("dropped malformed rows", "path", s.Path, "dropped", dropped)
	}
	return raws, nil
}

// ReaderSource serves CSV held in memory, such as an uploaded request body.
type ReaderSource struct {
	label   string
	data    []byte
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewReaderSource(label string, data []byte, logger *slog.Logger) *ReaderSource {
	return &ReaderSource{label: label, data: data, logger: logger}
}

func (s *ReaderSource) Name() string { return s.label }

func (s *ReaderSource) Dropped() int { return int(s.dropped.Load()) }

func (s *ReaderSource) Fetch(ctx context.Context) ([]record.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raws, dropped, err := ParseCSV(bytes.NewReader(s.data))
	s.dropped.Store(int64(dropped))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.label, err)
	}
	if dropped > 0 {
		s.logger.Warn("dropped malformed rows", "source", s.label, "dropped", dropped)
	}
	return raws, nil
}
