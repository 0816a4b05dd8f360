// Package config holds the process configuration, read once at startup from
// flags and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/channels/kafka"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

const (
	DefaultPort              = 5000
	DefaultTwelveLabsBaseURL = "https://api.twelvelabs.io/v1.3"
	DefaultPerplexityBaseURL = "https://api.perplexity.ai"
	DefaultResearchModel     = "sonar-deep-research"
	DefaultResearchTimeout   = 180 * time.Second
	DefaultVideoTimeout      = 60 * time.Second
	DefaultChunkSize         = 8000
	DefaultMaxPayloadBytes   = 30000
	DefaultRateLimit         = 30
	DefaultKeepaliveSchedule = "@every 9m"
)

// Config is immutable after Load and shared by reference.
type Config struct {
	Port     int    `validate:"min=1,max=65535"`
	LogLevel string `validate:"oneof=debug info warn error"`

	TwelveLabsAPIKey  string
	TwelveLabsIndexID string
	TwelveLabsBaseURL string        `validate:"required,url"`
	VideoTimeout      time.Duration `validate:"min=1s"`

	PerplexityAPIKey  string
	PerplexityBaseURL string        `validate:"required,url"`
	ResearchModel     string        `validate:"required"`
	ResearchTimeout   time.Duration `validate:"min=1s"`

	AnalysisPromptPath string
	ResearchPromptPath string

	ChunkSize       int `validate:"min=1"`
	MaxPayloadBytes int `validate:"min=1024"`

	FirebaseAPIKey string
	RedisURL       string `validate:"omitempty,url"`
	RateLimit      int    `validate:"min=1"`

	EventBus     string   `validate:"oneof=gochannel kafka"`
	KafkaBrokers []string `validate:"required_if=EventBus kafka"`

	AppURL            string `validate:"omitempty,url"`
	KeepaliveSchedule string `validate:"required"`
	OTelEnabled       bool
}

// Flags are the server flags, each backed by an environment variable.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   DefaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "twelvelabs-api-key",
			Usage:   "Fallback TwelveLabs API key used when a request carries none",
			Sources: cli.EnvVars("TWELVELABS_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "twelvelabs-index-id",
			Usage:   "Default TwelveLabs index reported to clients",
			Sources: cli.EnvVars("TWELVELABS_INDEX_ID"),
		},
		&cli.StringFlag{
			Name:    "twelvelabs-base-url",
			Usage:   "TwelveLabs API base URL",
			Value:   DefaultTwelveLabsBaseURL,
			Sources: cli.EnvVars("TWELVELABS_BASE_URL"),
		},
		&cli.DurationFlag{
			Name:    "video-timeout",
			Usage:   "Timeout for each TwelveLabs request",
			Value:   DefaultVideoTimeout,
			Sources: cli.EnvVars("TWELVELABS_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "perplexity-api-key",
			Usage:   "Perplexity API key used for research",
			Sources: cli.EnvVars("PERPLEXITY", "PERPLEXITY_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "perplexity-base-url",
			Usage:   "Perplexity API base URL",
			Value:   DefaultPerplexityBaseURL,
			Sources: cli.EnvVars("PERPLEXITY_BASE_URL"),
		},
		&cli.StringFlag{
			Name:    "research-model",
			Usage:   "Model used for deep research",
			Value:   DefaultResearchModel,
			Sources: cli.EnvVars("SONAR_MODEL"),
		},
		&cli.DurationFlag{
			Name:    "research-timeout",
			Usage:   "Timeout for one research call",
			Value:   DefaultResearchTimeout,
			Sources: cli.EnvVars("RESEARCH_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "analysis-prompt-path",
			Usage:   "File path or s3://bucket/key of the default analysis prompt",
			Sources: cli.EnvVars("ANALYSIS_PROMPT_PATH"),
		},
		&cli.StringFlag{
			Name:    "research-prompt-path",
			Usage:   "File path or s3://bucket/key of the research query template",
			Sources: cli.EnvVars("RESEARCH_PROMPT_PATH"),
		},
		&cli.IntFlag{
			Name:    "chunk-size",
			Usage:   "Characters per research_chunk event",
			Value:   DefaultChunkSize,
			Sources: cli.EnvVars("STREAM_CHUNK_SIZE"),
		},
		&cli.IntFlag{
			Name:    "max-payload-bytes",
			Usage:   "Size limit of the complete event payload",
			Value:   DefaultMaxPayloadBytes,
			Sources: cli.EnvVars("STREAM_MAX_PAYLOAD_BYTES"),
		},
		&cli.StringFlag{
			Name:    "firebase-api-key",
			Usage:   "Firebase web API key used to verify ID tokens",
			Sources: cli.EnvVars("FIREBASE_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for shared rate limiting, in-memory when empty",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.IntFlag{
			Name:    "rate-limit",
			Usage:   "Workflow and research requests allowed per client per minute",
			Value:   DefaultRateLimit,
			Sources: cli.EnvVars("RATE_LIMIT_PER_MINUTE"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Lifecycle event bus (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers for the kafka event bus",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "app-url",
			Usage:   "Public URL pinged by the keep-alive job, disabled when empty",
			Sources: cli.EnvVars("APP_URL"),
		},
		&cli.StringFlag{
			Name:    "keepalive-schedule",
			Usage:   "Cron schedule of the keep-alive job",
			Value:   DefaultKeepaliveSchedule,
			Sources: cli.EnvVars("KEEPALIVE_SCHEDULE"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

// Load reads the flags of command and validates the result.
func Load(command *cli.Command, validate *validator.Validate) (*Config, error) {
	cfg := &Config{
		Port:               int(command.Int("port")),
		LogLevel:           command.String("log-level"),
		TwelveLabsAPIKey:   command.String("twelvelabs-api-key"),
		TwelveLabsIndexID:  command.String("twelvelabs-index-id"),
		TwelveLabsBaseURL:  command.String("twelvelabs-base-url"),
		VideoTimeout:       command.Duration("video-timeout"),
		PerplexityAPIKey:   command.String("perplexity-api-key"),
		PerplexityBaseURL:  command.String("perplexity-base-url"),
		ResearchModel:      command.String("research-model"),
		ResearchTimeout:    command.Duration("research-timeout"),
		AnalysisPromptPath: command.String("analysis-prompt-path"),
		ResearchPromptPath: command.String("research-prompt-path"),
		ChunkSize:          int(command.Int("chunk-size")),
		MaxPayloadBytes:    int(command.Int("max-payload-bytes")),
		FirebaseAPIKey:     command.String("firebase-api-key"),
		RedisURL:           command.String("redis-url"),
		RateLimit:          int(command.Int("rate-limit")),
		EventBus:           command.String("event-bus"),
		KafkaBrokers:       kafka.ParseBrokers(command.String("kafka-brokers")),
		AppURL:             command.String("app-url"),
		KeepaliveSchedule:  command.String("keepalive-schedule"),
		OTelEnabled:        command.Bool("otel"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
