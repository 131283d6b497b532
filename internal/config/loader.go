package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is returned by LoadConfig. Type tells the operator which stage
// of loading failed.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks an environment variable whose value is an SSM path.
// DATABASE_URL_SSM_PARAM=/prod/caliseed/database-url resolves DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// loaderDeps holds the environment accessors so tests can run the loader
// without touching the process environment.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads, resolves and validates the configuration.
//
// The process timezone is forced to UTC, a .env file is loaded when present,
// and outside APP_ENV=local every *_SSM_PARAM pointer is resolved through
// provider before envconfig reads the environment. provider may be nil when
// no pointers are set.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// Does not override variables that are already set.
	_ = godotenv.Load()

	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := cfg.checkSelected(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkSelected enforces the variables that are only required by the store
// backend and alert publisher actually selected.
func (c *Config) checkSelected() error {
	var missing []string

	switch c.Store.Backend {
	case BackendPostgres:
		if c.Database.URL.IsEmpty() {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			missing = append(missing, "FIRESTORE_PROJECT_ID")
		}
	}

	switch c.Publisher.Kind {
	case PublisherSQS:
		if c.Publisher.SQSQueueURL == "" {
			missing = append(missing, "ALERT_SQS_QUEUE_URL")
		}
	case PublisherKafka:
		if len(c.Publisher.KafkaBrokers) == 0 {
			missing = append(missing, "ALERT_KAFKA_BROKERS")
		}
	case PublisherPubSub:
		if c.Publisher.PubSubProjectID == "" {
			missing = append(missing, "ALERT_PUBSUB_PROJECT_ID")
		}
	case PublisherWebhook:
		if c.Publisher.WebhookURL == "" {
			missing = append(missing, "ALERT_WEBHOOK_URL")
		}
		if c.Publisher.WebhookSecret.IsEmpty() {
			missing = append(missing, "ALERT_WEBHOOK_SECRET")
		}
	}

	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: fmt.Sprintf("required by STORE_BACKEND=%s ALERT_PUBLISHER=%s: %s", c.Store.Backend, c.Publisher.Kind, strings.Join(missing, ", ")),
		}
	}
	return nil
}

// RequireWeather reports whether the weather poller can run with c.
func (c *Config) RequireWeather() error {
	if c.Weather.APIKey.IsEmpty() {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "OPENWEATHER_API_KEY is required by the weather poller",
		}
	}
	return nil
}

// ResolveSecrets runs only the SSM resolution step. Entry points that read
// single variables with os.Getenv call it before doing so. It is a no-op for
// APP_ENV=local.
func ResolveSecrets(provider SecretProvider) error {
	if appEnv, _ := os.LookupEnv("APP_ENV"); appEnv == localEnv {
		return nil
	}
	return resolveSSMParams(provider, defaultDeps())
}

// resolveSSMParams finds every *_SSM_PARAM variable whose target is not
// already set, fetches the values in one batch and writes them back into the
// environment under the target name.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	targets := make(map[string]string) // ssm path -> target variable
	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := deps.lookupEnv(target); set {
			continue
		}
		targets[path] = target
	}
	if len(targets) == 0 {
		return nil
	}

	paths := make([]string, 0, len(targets))
	for path := range targets {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if provider == nil {
		names := make([]string, 0, len(paths))
		for _, p := range paths {
			names = append(names, targets[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("a SecretProvider is required to resolve: %s", strings.Join(names, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, targets[path])
			continue
		}
		if err := deps.setEnv(targets[path], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", targets[path]),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}
