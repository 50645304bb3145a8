package main

import (
	"fmt"
	"os"

	"github.com/MikeSquared-Agency/triage/internal/classifier"
	"github.com/MikeSquared-Agency/triage/internal/config"
	"github.com/MikeSquared-Agency/triage/internal/ingest"
	"github.com/MikeSquared-Agency/triage/internal/logging"
	"github.com/MikeSquared-Agency/triage/internal/responder"
)

func newClassifier(c config.Config) classifier.Classifier {
	return classifier.NewKeywordClassifier(classifier.WithExtraUrgencyKeywords(c.UrgencyKeywords...))
}

func newGenerator(c config.Config) (*responder.Generator, error) {
	var opts []responder.Option
	if c.TemplatesFile != "" {
		f, err := os.Open(c.TemplatesFile)
		if err != nil {
			return nil, fmt.Errorf("open templates: %w", err)
		}
		defer f.Close()
		table, err := responder.LoadTemplates(f)
		if err != nil {
			return nil, fmt.Errorf("load templates %s: %w", c.TemplatesFile, err)
		}
		opts = append(opts, responder.WithTemplates(table))
	}
	if len(c.Agents) > 0 {
		opts = append(opts, responder.WithAgents(c.Agents))
	}
	return responder.New(opts...)
}

// newSource picks the startup source: a mailbox when configured, otherwise
// the CSV path, otherwise none.
func newSource(c config.Config) ingest.Source {
	switch {
	case c.IMAP.Enabled():
		return ingest.NewIMAPSource(ingest.IMAPConfig{
			Server:   c.IMAP.Server,
			Login:    c.IMAP.Login,
			Password: c.IMAP.Password,
			Mailbox:  c.IMAP.Mailbox,
			Since:    c.IMAP.Since,
		}, logging.New("imap"))
	case c.Source != "":
		return ingest.NewFileSource(c.Source, logging.New("ingest"))
	default:
		return nil
	}
}
