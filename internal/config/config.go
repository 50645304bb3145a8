package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	APIToken  string `yaml:"api_token"`

	Source          string   `yaml:"source"`
	Workers         int      `yaml:"workers"`
	KeepOnFailure   bool     `yaml:"keep_on_failure"`
	UrgencyKeywords []string `yaml:"urgency_keywords"`
	TemplatesFile   string   `yaml:"templates"`
	Agents          []string `yaml:"agents"`

	NatsURL          string   `yaml:"nats_url"`
	NatsToken        string   `yaml:"nats_token"`
	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaTopicPrefix string   `yaml:"kafka_topic_prefix"`
	DatabaseURL      string   `yaml:"database_url"`
	SlackBotToken    string   `yaml:"slack_bot_token"`
	SlackChannel     string   `yaml:"slack_alerts_channel"`

	IMAP IMAP `yaml:"imap"`
}

type IMAP struct {
	Server   string        `yaml:"server"`
	Login    string        `yaml:"login"`
	Password string        `yaml:"password"`
	Mailbox  string        `yaml:"mailbox"`
	Since    time.Duration `yaml:"since"`
}

// Enabled reports whether a mailbox is configured.
func (c IMAP) Enabled() bool { return c.Server != "" && c.Login != "" }

func defaults() Config {
	return Config{
		Port:             8760,
		LogLevel:         "info",
		LogFormat:        "json",
		Workers:          4,
		KafkaTopicPrefix: "triage",
		IMAP: IMAP{
			Mailbox: "INBOX",
			Since:   72 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// TRIAGE_CONFIG if set, then environment variables.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("TRIAGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = envInt("TRIAGE_PORT", cfg.Port)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envStr("LOG_FORMAT", cfg.LogFormat)
	cfg.APIToken = envStr("TRIAGE_API_TOKEN", cfg.APIToken)

	cfg.Source = envStr("TRIAGE_SOURCE", cfg.Source)
	cfg.Workers = envInt("TRIAGE_WORKERS", cfg.Workers)
	cfg.KeepOnFailure = envBool("TRIAGE_KEEP_ON_FAILURE", cfg.KeepOnFailure)
	cfg.UrgencyKeywords = envList("TRIAGE_URGENCY_KEYWORDS", cfg.UrgencyKeywords)
	cfg.TemplatesFile = envStr("TRIAGE_TEMPLATES", cfg.TemplatesFile)
	cfg.Agents = envList("TRIAGE_AGENTS", cfg.Agents)

	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.KafkaBrokers = envList("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicPrefix = envStr("KAFKA_TOPIC_PREFIX", cfg.KafkaTopicPrefix)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.SlackBotToken = envStr("SLACK_BOT_TOKEN", cfg.SlackBotToken)
	cfg.SlackChannel = envStr("SLACK_ALERTS_CHANNEL", cfg.SlackChannel)

	cfg.IMAP.Server = envStr("IMAP_SERVER", cfg.IMAP.Server)
	cfg.IMAP.Login = envStr("IMAP_LOGIN", cfg.IMAP.Login)
	cfg.IMAP.Password = envStr("IMAP_PASSWORD", cfg.IMAP.Password)
	cfg.IMAP.Mailbox = envStr("IMAP_MAILBOX", cfg.IMAP.Mailbox)
	cfg.IMAP.Since = envDuration("IMAP_SINCE", cfg.IMAP.Since)

	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blank entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
