package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix scopes every subject the service publishes or consumes.
const SubjectPrefix = "swarm.triage."

// QueueGroup load-balances ingest requests across service replicas.
const QueueGroup = "triage"

// ErrForeignSubject is returned for subjects outside SubjectPrefix.
var ErrForeignSubject = errors.New("subject outside " + SubjectPrefix)

// Client is the triage service's NATS link: it emits ingest outcomes and
// high-priority records, and hands ingest requests to one replica.
type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

// NewClient connects with retry. With RetryOnFailedConnect the call returns
// before the server is reachable and publishes are buffered until it is.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("triage"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

func checkSubject(subject string) error {
	if !strings.HasPrefix(subject, SubjectPrefix) || len(subject) == len(SubjectPrefix) {
		return fmt.Errorf("%w: %q", ErrForeignSubject, subject)
	}
	return nil
}

// Publish sends a triage event as JSON.
func (c *Client) Publish(subject string, data any) error {
	if err := checkSubject(subject); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe joins QueueGroup on subject, so each ingest request runs on one
// replica only.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	if err := checkSubject(subject); err != nil {
		return err
	}
	sub, err := c.conn.QueueSubscribe(subject, QueueGroup, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject, "queue", QueueGroup)
	return nil
}

// Connected reports whether the link to the server is up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

// Close drops subscriptions and gives buffered events two seconds to flush.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.FlushTimeout(2 * time.Second); err != nil {
		c.logger.Warn("nats flush on close failed", "error", err)
	}
	c.conn.Close()
}
