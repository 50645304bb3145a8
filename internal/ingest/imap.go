package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// Mailbox is the subset of an IMAP session the IMAP source needs.
type Mailbox interface {
	Connect(server string) error
	Login(user, password string) error
	SelectReadOnly(name string) error
	SearchSince(since time.Time) ([]uint32, error)
	FetchMessage(uid uint32) (*imap.Message, error)
	Close() error
}

// IMAPConfig locates the mailbox to read.
type IMAPConfig struct {
	Server   string
	Login    string
	Password string
	Mailbox  string
	Since    time.Duration
}

// IMAPSource reads recent messages from a mailbox without changing flags.
type IMAPSource struct {
	cfg    IMAPConfig
	dial   func() Mailbox
	now    func() time.Time
	logger *slog.Logger

	dropped atomic.Int64
}

func NewIMAPSource(cfg IMAPConfig, logger *slog.Logger) *IMAPSource {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPSource{
		cfg:    cfg,
		dial:   func() Mailbox { return newTLSMailbox(30 * time.Second) },
		now:    time.Now,
		logger: logger,
	}
}

func (s *IMAPSource) Name() string {
	return fmt.Sprintf("imap:%s/%s", s.cfg.Server, s.cfg.Mailbox)
}

// Dropped reports the messages skipped by the last Fetch.
func (s *IMAPSource) Dropped() int { return int(s.dropped.Load()) }

// Fetch returns one raw record per message newer than the configured window.
// A message that cannot be fetched or parsed, or lacks a sender or date, is
// skipped with a warning and counted in Dropped.
func (s *IMAPSource) Fetch(ctx context.Context) ([]record.Raw, error) {
	s.dropped.Store(0)
	mb := s.dial()
	if err := mb.Connect(s.cfg.Server); err != nil {
		return nil, fmt.Errorf("connect imap: %w", err)
	}
	defer func() {
		if err := mb.Close(); err != nil {
			s.logger.Warn("imap logout failed", "error", err)
		}
	}()

	if err := mb.Login(s.cfg.Login, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("login imap: %w", err)
	}
	if err := mb.SelectReadOnly(s.cfg.Mailbox); err != nil {
		return nil, fmt.Errorf("select mailbox %s: %w", s.cfg.Mailbox, err)
	}

	uids, err := mb.SearchSince(s.now().Add(-s.cfg.Since))
	if err != nil {
		return nil, fmt.Errorf("search mailbox: %w", err)
	}
	s.logger.Info("imap messages found", "mailbox", s.cfg.Mailbox, "count", len(uids))

	raws := make([]record.Raw, 0, len(uids))
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := mb.FetchMessage(uid)
		if err != nil {
			s.logger.Warn("fetch message failed", "uid", uid, "error", err)
			s.dropped.Add(1)
			continue
		}
		body := msg.GetBody(&imap.BodySectionName{})
		if body == nil {
			s.logger.Warn("message has no body", "uid", uid)
			s.dropped.Add(1)
			continue
		}
		raw, err := ParseMessage(body, msg.InternalDate)
		if err != nil {
			s.logger.Warn("parse message failed", "uid", uid, "error", err)
			s.dropped.Add(1)
			continue
		}
		// Sender and sent-at must resolve, like the four CSV columns.
		if raw.Sender == "" || raw.SentAt == "" {
			s.logger.Warn("message missing sender or date", "uid", uid, "subject", raw.Subject)
			s.dropped.Add(1)
			continue
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// ParseMessage turns an RFC 5322 message into a raw record. The sender keeps
// its display name, the body is the first text/plain part, and the Date
// header falls back to internalDate.
func ParseMessage(r io.Reader, internalDate time.Time) (record.Raw, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return record.Raw{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var raw record.Raw
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		raw.Sender = formatAddress(from[0])
	}
	if subject, err := mr.Header.Subject(); err == nil {
		raw.Subject = subject
	}

	sent, err := mr.Header.Date()
	if err != nil || sent.IsZero() {
		sent = internalDate
	}
	if !sent.IsZero() {
		raw.SentAt = sent.UTC().Format(time.RFC3339)
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return record.Raw{}, fmt.Errorf("read part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if !isPlainText(h) {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return record.Raw{}, fmt.Errorf("read body: %w", err)
		}
		raw.Body = strings.TrimSpace(string(b))
		break
	}
	return raw, nil
}

// A part without Content-Type is text/plain.
func isPlainText(h *mail.InlineHeader) bool {
	if h.Get("Content-Type") == "" {
		return true
	}
	contentType, _, err := h.ContentType()
	return err == nil && contentType == "text/plain"
}

func formatAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

type tlsMailbox struct {
	client  *client.Client
	timeout time.Duration
}

func newTLSMailbox(timeout time.Duration) *tlsMailbox {
	return &tlsMailbox{timeout: timeout}
}

func (m *tlsMailbox) Connect(server string) error {
	c, err := client.DialTLS(server, nil)
	if err != nil {
		return err
	}
	c.Timeout = m.timeout
	m.client = c
	return nil
}

func (m *tlsMailbox) Login(user, password string) error {
	if m.client == nil {
		return fmt.Errorf("not connected")
	}
	return m.client.Login(user, password)
}

func (m *tlsMailbox) SelectReadOnly(name string) error {
	if m.client == nil {
		return fmt.Errorf("not connected")
	}
	_, err := m.client.Select(name, true)
	return err
}

func (m *tlsMailbox) SearchSince(since time.Time) ([]uint32, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	return m.client.UidSearch(criteria)
}

func (m *tlsMailbox) FetchMessage(uid uint32) (*imap.Message, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for mm := range messages {
		msg = mm
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch uid %d: %w", uid, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("no message for uid %d", uid)
	}
	return msg, nil
}

func (m *tlsMailbox) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Logout()
}
