package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/triage/internal/api"
	"github.com/MikeSquared-Agency/triage/internal/events"
	"github.com/MikeSquared-Agency/triage/internal/hermes"
	"github.com/MikeSquared-Agency/triage/internal/kafka"
	"github.com/MikeSquared-Agency/triage/internal/logging"
	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/slack"
	"github.com/MikeSquared-Agency/triage/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event consumers",
	Long: `Starts the HTTP API. When a source is configured it is ingested at startup;
further ingests arrive over HTTP (POST /api/v1/ingest) or NATS
(swarm.triage.ingest.requested). NATS, Kafka, Postgres and Slack are each
optional and enabled by their settings.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New("triage")
	logger.Info("triage starting", "port", cfg.Port)

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	fanout := events.NewFanout(logging.New("events"))

	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logging.New("hermes"))
		if err != nil {
			return err
		}
		defer hermesClient.Close()
		fanout.Add("nats", events.Guard("nats", hermesClient, logger))
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS not configured, events stay local")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logging.New("kafka"))
		defer producer.Close()
		fanout.Add("kafka", events.Guard("kafka", producer, logger))
		logger.Info("kafka producer ready", "brokers", cfg.KafkaBrokers, "prefix", cfg.KafkaTopicPrefix)
	}

	var archive processor.Archiver
	if cfg.DatabaseURL != "" {
		a, err := store.NewArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Migrate(ctx); err != nil {
			return err
		}
		archive = a
		logger.Info("archive connected")
	}

	var alerts processor.Alerter
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		alerts = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logging.New("slack"))
		logger.Info("slack alerts ready", "channel", cfg.SlackChannel)
	}

	st := store.New(logging.New("store"))
	proc := processor.New(processor.Deps{
		Store:      st,
		Classifier: newClassifier(cfg),
		Responder:  gen,
		Events:     fanout,
		Archive:    archive,
		Alerts:     alerts,
		Source:     newSource(cfg),
		Logger:     logging.New("processor"),
	}, processor.Options{
		Workers:       cfg.Workers,
		KeepOnFailure: cfg.KeepOnFailure,
	})

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectIngestRequested, proc.HandleIngestRequested); err != nil {
			return err
		}
	}

	if proc.Source() != nil {
		proc.Ingest(ctx, nil)
	} else {
		logger.Warn("no startup source configured, waiting for ingest requests")
	}

	srv := api.NewServer(cfg.Port, api.Deps{
		Store:     st,
		Responder: gen,
		Ingester:  proc,
		APIToken:  cfg.APIToken,
		Logger:    logging.New("api"),
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("triage ready", "port", cfg.Port, "records", st.Len(), "sinks", fanout.Len())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	logger.Info("triage stopped")
	return nil
}
