package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Alert is a high-priority record together with its drafted reply.
type Alert struct {
	Record record.Record
	CaseID string
	Agent  string
	Draft  string
}

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostAlert posts the alert summary and threads the draft reply under it.
// Returns the timestamp of the summary message.
func (p *Poster) PostAlert(ctx context.Context, a Alert) (string, error) {
	text := formatAlert(a)
	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("Case %s | draft reply in thread", a.CaseID),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted alert to slack", "ts", ts, "record_id", a.Record.ID)

	if a.Draft != "" {
		if err := p.PostThread(ctx, ts, "```"+a.Draft+"```"); err != nil {
			return ts, fmt.Errorf("post draft: %w", err)
		}
	}
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatAlert(a Alert) string {
	r := a.Record
	var sb strings.Builder

	fmt.Fprintf(&sb, ":rotating_light: *High priority:* %s\n", r.Subject)
	fmt.Fprintf(&sb, "*From:* %s <%s>\n", r.Sender.Name, r.Sender.Email)
	fmt.Fprintf(&sb, "*Category:* %s | *Issue:* %s | *Sentiment:* %s\n", r.Category, r.ExtractedInfo.IssueType, r.Sentiment)
	fmt.Fprintf(&sb, "*Urgency:* %.2f | *Confidence:* %.2f\n", r.UrgencyScore, r.Confidence)

	info := r.ExtractedInfo
	var refs []string
	refs = append(refs, info.AccountIDs...)
	refs = append(refs, info.TransactionIDs...)
	if len(refs) > 0 {
		fmt.Fprintf(&sb, "*References:* %s\n", strings.Join(refs, ", "))
	}
	if a.Agent != "" {
		fmt.Fprintf(&sb, "*Suggested agent:* %s\n", a.Agent)
	}
	return sb.String()
}
