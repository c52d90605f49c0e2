// Package config provides configuration loading and validation.
//
// Configuration is read once at process start from an optional YAML file,
// an optional .env file and the process environment (environment always
// wins). The resulting Config is never reloaded: everything derived from it,
// the schema descriptor in particular, lives for the whole process.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Defaults for the predefine resolver.
const (
	DefaultLocale         = "en"
	DefaultNamespace      = "Setting"
	DefaultModelName      = "Predefine"
	DefaultCollectionName = "predefines"
	DefaultAPIVersion     = "1.0.0"
)

// Environment variables read by the predefine resolver.
const (
	EnvDefaultLocale      = "DEFAULT_LOCALE"
	EnvLocales            = "LOCALES"
	EnvModelName          = "PREDEFINE_MODEL_NAME"
	EnvCollectionName     = "PREDEFINE_COLLECTION_NAME"
	EnvDefaultNamespace   = "PREDEFINE_DEFAULT_NAMESPACE"
	EnvNamespaces         = "PREDEFINE_NAMESPACES"
	EnvRelations          = "PREDEFINE_RELATIONS"
	EnvIDFormat           = "PREDEFINE_ID_FORMAT"
	EnvAPIVersion         = "API_VERSION"
	EnvServerHost         = "PREDEFINE_SERVER_HOST"
	EnvServerPort         = "PREDEFINE_SERVER_PORT"
	EnvServerReadTimeout  = "PREDEFINE_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout = "PREDEFINE_SERVER_WRITE_TIMEOUT"
	EnvDatabaseDriver     = "PREDEFINE_DATABASE_DRIVER"
	EnvDatabaseDSN        = "PREDEFINE_DATABASE_DSN"
	EnvLogLevel           = "PREDEFINE_LOG_LEVEL"
	EnvLogFormat          = "PREDEFINE_LOG_FORMAT"
	EnvMetricsEnabled     = "PREDEFINE_METRICS_ENABLED"
	EnvMetricsPath        = "PREDEFINE_METRICS_PATH"
	EnvOpenAPIEnabled     = "PREDEFINE_OPENAPI_ENABLED"
	EnvEventsNATSURL      = "PREDEFINE_EVENTS_NATS_URL"
	EnvEventsSubject      = "PREDEFINE_EVENTS_SUBJECT"
)

// ID formats for generated document identifiers.
const (
	IDFormatUUID     = "uuid"
	IDFormatObjectID = "objectid"
)

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the root configuration structure.
type Config struct {
	Locale    LocaleConfig    `yaml:"locale"`
	Predefine PredefineConfig `yaml:"predefine"`
	API       APIConfig       `yaml:"api"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	OpenAPI   OpenAPIConfig   `yaml:"openapi"`
	Events    EventsConfig    `yaml:"events"`
}

// LocaleConfig configures localized fields.
type LocaleConfig struct {
	Default   string   `yaml:"default"`
	Supported []string `yaml:"supported"`
}

// PredefineConfig configures the predefine document model.
type PredefineConfig struct {
	ModelName        string   `yaml:"model_name"`
	CollectionName   string   `yaml:"collection_name"`
	DefaultNamespace string   `yaml:"default_namespace"`
	Namespaces       []string `yaml:"namespaces"`

	// Relations holds raw relation declarations keyed by relation name.
	// Each entry is a partial descriptor, e.g. {"ref": "Party"}.
	Relations map[string]map[string]any `yaml:"relations"`

	// IDFormat selects the identifier generator: "uuid" or "objectid".
	IDFormat string `yaml:"id_format"`
}

// APIConfig configures the REST surface.
type APIConfig struct {
	Version string `yaml:"version"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EventsConfig configures change-event publishing.
// Events are only forwarded to NATS when NATSURL is set.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ConfigurationError reports a configuration value that cannot be used.
// It is fatal at startup.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load reads configuration from a YAML file, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Key: path, Err: err}
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration entirely from environment variables.
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback loads the file when it exists, otherwise the environment only.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment. Variables that are already set are left untouched and a
// missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &ConfigurationError{Key: path, Err: err}
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) error {
	// Locale configuration
	if v := os.Getenv(EnvDefaultLocale); v != "" {
		cfg.Locale.Default = v
	}
	if v := os.Getenv(EnvLocales); v != "" {
		cfg.Locale.Supported = splitList(v)
	}

	// Predefine configuration
	if v := os.Getenv(EnvModelName); v != "" {
		cfg.Predefine.ModelName = v
	}
	if v := os.Getenv(EnvCollectionName); v != "" {
		cfg.Predefine.CollectionName = v
	}
	if v := os.Getenv(EnvDefaultNamespace); v != "" {
		cfg.Predefine.DefaultNamespace = v
	}
	if v := os.Getenv(EnvNamespaces); v != "" {
		cfg.Predefine.Namespaces = splitList(v)
	}
	if v := os.Getenv(EnvRelations); v != "" {
		relations, err := parseRelations(v)
		if err != nil {
			return &ConfigurationError{Key: EnvRelations, Err: err}
		}
		cfg.Predefine.Relations = relations
	}
	if v := os.Getenv(EnvIDFormat); v != "" {
		cfg.Predefine.IDFormat = strings.ToLower(v)
	}
	if v := os.Getenv(EnvAPIVersion); v != "" {
		cfg.API.Version = v
	}

	// Server configuration
	if v := os.Getenv(EnvServerHost); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(EnvServerReadTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv(EnvServerWriteTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv(EnvDatabaseDriver); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv(EnvMetricsEnabled); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvMetricsPath); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv(EnvOpenAPIEnabled); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}

	// Events configuration
	if v := os.Getenv(EnvEventsNATSURL); v != "" {
		cfg.Events.NATSURL = v
	}
	if v := os.Getenv(EnvEventsSubject); v != "" {
		cfg.Events.Subject = v
	}

	return nil
}

// parseRelations decodes the JSON object held by PREDEFINE_RELATIONS.
func parseRelations(raw string) (map[string]map[string]any, error) {
	var relations map[string]map[string]any
	if err := json.Unmarshal([]byte(raw), &relations); err != nil {
		return nil, fmt.Errorf("invalid relations json: %w", err)
	}
	return relations, nil
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// splitList splits a comma separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Predefine.IDFormat == "" {
		cfg.Predefine.IDFormat = IDFormatUUID
	}
	if cfg.API.Version == "" {
		cfg.API.Version = DefaultAPIVersion
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "predefine.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "predefine"
	}
}

func validate(cfg *Config) error {
	if _, err := canonicalLocale(cfg.DefaultLocale()); err != nil {
		return &ConfigurationError{Key: EnvDefaultLocale, Err: err}
	}
	for _, l := range cfg.Locale.Supported {
		if _, err := canonicalLocale(l); err != nil {
			return &ConfigurationError{Key: EnvLocales, Err: err}
		}
	}

	for name := range cfg.Predefine.Relations {
		if strings.TrimSpace(name) == "" {
			return &ConfigurationError{Key: EnvRelations, Err: errors.New("relation name must not be empty")}
		}
	}

	validIDFormats := map[string]bool{IDFormatUUID: true, IDFormatObjectID: true}
	if !validIDFormats[cfg.Predefine.IDFormat] {
		return &ConfigurationError{
			Key: EnvIDFormat,
			Err: fmt.Errorf("must be %q or %q, got %q", IDFormatUUID, IDFormatObjectID, cfg.Predefine.IDFormat),
		}
	}

	if cfg.Database.Driver != DriverSQLite && cfg.Database.Driver != DriverMemory {
		return &ConfigurationError{Key: "database.driver", Err: fmt.Errorf("unsupported driver %q", cfg.Database.Driver)}
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return &ConfigurationError{Key: EnvLogFormat, Err: fmt.Errorf("must be 'json' or 'console', got %q", cfg.Logging.Format)}
	}

	return nil
}

// canonicalLocale parses a BCP 47 tag and returns its canonical form.
func canonicalLocale(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", code, err)
	}
	return tag.String(), nil
}
