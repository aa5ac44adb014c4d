package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// NWIS retrieval.
	NWISBaseURL  string
	UserAgent    string
	HTTPTimeout  time.Duration
	Service      string // "iv" or "dv"
	Sites        []string
	ParameterCds []string
	StatCds      []string
	StartDT      string
	EndDT        string
	Period       string

	// Normalization options.
	ParseDatetime    bool
	TimezoneOverride string

	// Sinks.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
	SQLitePath     string
	CSVPath        string

	// Service plumbing.
	PollInterval    time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	httpTimeout, err := parseDurationEnv("NWIS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePollInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NWISBaseURL:  envOrDefault("NWIS_BASE_URL", "https://waterservices.usgs.gov/nwis"),
		UserAgent:    envOrDefault("NWIS_USER_AGENT", "dataRetrieval-go/1.0"),
		HTTPTimeout:  httpTimeout,
		Service:      envOrDefault("NWIS_SERVICE", "dv"),
		Sites:        splitList(os.Getenv("NWIS_SITES")),
		ParameterCds: splitList(os.Getenv("NWIS_PARAMETER_CDS")),
		StatCds:      splitList(os.Getenv("NWIS_STAT_CDS")),
		StartDT:      os.Getenv("NWIS_START_DT"),
		EndDT:        os.Getenv("NWIS_END_DT"),
		Period:       os.Getenv("NWIS_PERIOD"),

		ParseDatetime:    os.Getenv("PARSE_DATETIME") == "true",
		TimezoneOverride: os.Getenv("TZ_OVERRIDE"),

		KafkaBrokers:   splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "nwis-observations"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		CSVPath:        os.Getenv("CSV_PATH"),

		PollInterval:    pollInterval,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	cfg.KafkaEnabled = os.Getenv("KAFKA_ENABLED") == "true"

	if cfg.Service != "iv" && cfg.Service != "dv" {
		return nil, fmt.Errorf("NWIS_SERVICE must be iv or dv, got %q", cfg.Service)
	}
	if len(cfg.Sites) == 0 {
		return nil, errors.New("NWIS_SITES is required")
	}
	if cfg.Period != "" && (cfg.StartDT != "" || cfg.EndDT != "") {
		return nil, errors.New("NWIS_PERIOD is mutually exclusive with NWIS_START_DT/NWIS_END_DT")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when Kafka is enabled")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when Kafka is enabled")
	}
	if !cfg.KafkaEnabled && cfg.SQLitePath == "" && cfg.CSVPath == "" {
		return nil, errors.New("at least one sink is required (KAFKA_ENABLED, SQLITE_PATH, or CSV_PATH)")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

// parsePollInterval returns the polling interval; zero means run once and exit.
func parsePollInterval() (time.Duration, error) {
	raw := os.Getenv("POLL_INTERVAL")
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid POLL_INTERVAL: %q", raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
