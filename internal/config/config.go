// Package config defines the process configuration for the CALI+SEED
// services. Configuration is loaded once at startup and is read-only
// afterwards.
//
// Values are resolved in priority order:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format makes LoadConfig fail and the
// binary exits before serving anything.
package config

import (
	"time"

	"caliseed/internal/types"
)

// SecretString is an alias for types.SecretString so that config consumers do
// not need to import types for redacted values.
type SecretString = types.SecretString

// Store backends.
const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Alert publisher kinds.
const (
	PublisherNone    = "none"
	PublisherSQS     = "sqs"
	PublisherKafka   = "kafka"
	PublisherPubSub  = "pubsub"
	PublisherWebhook = "webhook"
)

// Config is the top-level configuration. Components receive only the
// sub-config they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"caliseed"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Store         StoreConfig
	Database      DatabaseConfig
	Firestore     FirestoreConfig
	Weather       WeatherConfig
	Generator     GeneratorConfig
	Publisher     PublisherConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings for the query API.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// StoreConfig selects the event/alert storage backend.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"postgres" validate:"oneof=postgres firestore memory"`
}

// DatabaseConfig holds PostgreSQL connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	ConnectTimeout    time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"5s"`
	AutoMigrate       bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// FirestoreConfig holds the document store settings.
type FirestoreConfig struct {
	ProjectID        string `envconfig:"FIRESTORE_PROJECT_ID"`
	EventsCollection string `envconfig:"FIRESTORE_EVENTS_COLLECTION" default:"seed_events"`
	AlertsCollection string `envconfig:"FIRESTORE_ALERTS_COLLECTION" default:"alerts_log"`
}

// WeatherConfig holds the OpenWeatherMap client settings used by the poller.
type WeatherConfig struct {
	APIKey        SecretString  `envconfig:"OPENWEATHER_API_KEY"`
	BaseURL       string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5/weather" validate:"url"`
	Timeout       time.Duration `envconfig:"OPENWEATHER_TIMEOUT" default:"5s"`
	Language      string        `envconfig:"OPENWEATHER_LANG" default:"es"`
	LocationsFile string        `envconfig:"LOCATIONS_FILE"`
}

// GeneratorConfig controls the synthetic event generator.
type GeneratorConfig struct {
	Count int `envconfig:"SEED_COUNT" default:"10" validate:"min=1,max=100000"`
	// Seed fixes the random sequence when non-zero.
	Seed uint64 `envconfig:"SEED_RANDOM_SEED" default:"0"`
}

// PublisherConfig selects where produced alerts are fanned out to. Delivery
// is best effort; the alert log remains the system of record.
type PublisherConfig struct {
	Kind            string       `envconfig:"ALERT_PUBLISHER" default:"none" validate:"oneof=none sqs kafka pubsub webhook"`
	SQSQueueURL     string       `envconfig:"ALERT_SQS_QUEUE_URL"`
	KafkaBrokers    []string     `envconfig:"ALERT_KAFKA_BROKERS"`
	KafkaTopic      string       `envconfig:"ALERT_KAFKA_TOPIC" default:"caliseed.alerts"`
	PubSubProjectID string       `envconfig:"ALERT_PUBSUB_PROJECT_ID"`
	PubSubTopic     string       `envconfig:"ALERT_PUBSUB_TOPIC" default:"caliseed-alerts"`
	WebhookURL      string       `envconfig:"ALERT_WEBHOOK_URL" validate:"omitempty,url"`
	WebhookSecret   SecretString `envconfig:"ALERT_WEBHOOK_SECRET"`

	// WebhookAllowPrivate disables the private-range block so a local
	// receiver can be used in development.
	WebhookAllowPrivate bool `envconfig:"ALERT_WEBHOOK_ALLOW_PRIVATE" default:"false"`
}

// AWSConfig holds regional settings shared by the SQS, CloudWatch and SSM
// clients.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-1"`
	// LocalStack support. Empty in deployed environments.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecurityConfig holds CORS settings for the read-only API.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds metrics settings.
type ObservabilityConfig struct {
	MetricNamespace  string `envconfig:"METRIC_NAMESPACE" default:"CaliSeed"`
	EnableCloudWatch bool   `envconfig:"ENABLE_CLOUDWATCH" default:"false"`

	// PushgatewayURL receives the registry of one-shot jobs (detect,
	// weather-poller) after they finish. Empty disables pushing.
	PushgatewayURL string `envconfig:"PROMETHEUS_PUSHGATEWAY_URL" validate:"omitempty,url"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
