package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/predefine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)

	content := `
locale:
  default: en
  supported: [en, sw]

predefine:
  default_namespace: Setting
  namespaces: [Currency, Unit]
  relations:
    owner:
      ref: Party

server:
  host: "127.0.0.1"
  port: 9090

database:
  dsn: ":memory:"
`

	cfg := writeAndLoad(t, content)

	assert.Equal(t, "en", cfg.DefaultLocale())
	assert.Equal(t, []string{"en", "sw"}, cfg.Locales())
	assert.Equal(t, []string{"Currency", "Unit"}, cfg.Namespaces())
	assert.Equal(t, "Party", cfg.RawRelations()["owner"]["ref"])
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := writeAndLoad(t, "{}\n")

	assert.Equal(t, "en", cfg.DefaultLocale())
	assert.Equal(t, []string{"en"}, cfg.Locales())
	assert.Equal(t, "Setting", cfg.DefaultNamespace())
	assert.Equal(t, []string{"Setting"}, cfg.Namespaces())
	assert.Empty(t, cfg.RawRelations())
	assert.Equal(t, "Predefine", cfg.ModelName())
	assert.Equal(t, "predefines", cfg.CollectionName())
	assert.Equal(t, config.IDFormatUUID, cfg.Predefine.IDFormat)
	assert.Equal(t, "1.0.0", cfg.API.Version)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "predefine.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "predefine", cfg.Events.Subject)
}

func TestLoad_EnvExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_PREDEFINE_DSN", "/tmp/env-test.db")

	cfg := writeAndLoad(t, `
database:
  dsn: "${TEST_PREDEFINE_DSN}"
`)

	assert.Equal(t, "/tmp/env-test.db", cfg.Database.DSN)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvDefaultLocale, "en")
	t.Setenv(config.EnvLocales, "en, sw ,en")
	t.Setenv(config.EnvNamespaces, "Currency,Unit,Currency")
	t.Setenv(config.EnvDefaultNamespace, "Currency")
	t.Setenv(config.EnvModelName, "Lookup")
	t.Setenv(config.EnvCollectionName, "lookups")
	t.Setenv(config.EnvRelations, `{"owner":{"ref":"Party","required":true}}`)
	t.Setenv(config.EnvIDFormat, "ObjectID")
	t.Setenv(config.EnvServerPort, "7070")
	t.Setenv(config.EnvMetricsEnabled, "yes")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "sw"}, cfg.Locales())
	assert.Equal(t, []string{"Currency", "Unit"}, cfg.Namespaces())
	assert.Equal(t, "Currency", cfg.DefaultNamespace())
	assert.Equal(t, "Lookup", cfg.ModelName())
	assert.Equal(t, "lookups", cfg.CollectionName())
	assert.Equal(t, map[string]any{"ref": "Party", "required": true}, cfg.RawRelations()["owner"])
	assert.Equal(t, config.IDFormatObjectID, cfg.Predefine.IDFormat)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvNamespaces, "Unit")

	cfg := writeAndLoad(t, `
predefine:
  namespaces: [Currency]
`)

	assert.Equal(t, []string{"Unit"}, cfg.Namespaces())
}

func TestLocales_DefaultAlwaysIncluded(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvDefaultLocale, "sw")
	t.Setenv(config.EnvLocales, "en,fr")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"sw", "en", "fr"}, cfg.Locales())
}

func TestLocales_Canonicalized(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvDefaultLocale, "EN")
	t.Setenv(config.EnvLocales, "en,SW")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.DefaultLocale())
	assert.Equal(t, []string{"en", "sw"}, cfg.Locales())
}

func TestLoad_MalformedRelations(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvRelations, `{"owner":`)

	_, err := config.LoadFromEnv()
	require.Error(t, err)

	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, config.EnvRelations, cfgErr.Key)
}

func TestLoad_InvalidLocale(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvLocales, "en,not a locale")

	_, err := config.LoadFromEnv()

	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, config.EnvLocales, cfgErr.Key)
}

func TestLoad_InvalidIDFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvIDFormat, "serial")

	_, err := config.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvIDFormat)
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	clearEnv(t)

	_, err := writeAndLoadErr(t, `
logging:
  format: xml
`)
	require.Error(t, err)
}

func TestLoad_MemoryDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvDatabaseDriver, "Memory")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, cfg.Database.Driver)

	t.Setenv(config.EnvDatabaseDriver, "postgres")
	_, err = config.LoadFromEnv()
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)

	_, err := writeAndLoadErr(t, "predefine: [unclosed")

	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/predefine.yaml")
	assert.Error(t, err)
}

func TestLoadWithFallback_NoFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvNamespaces, "Currency")

	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Currency"}, cfg.Namespaces())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PREDEFINE_NAMESPACES=Currency,Unit\n"), 0644))
	// godotenv never overrides a variable that exists, even when blank.
	os.Unsetenv(config.EnvNamespaces)

	require.NoError(t, config.LoadEnvFile(path))

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"Currency", "Unit"}, cfg.Namespaces())
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, config.LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
	assert.NoError(t, config.LoadEnvFile(""))
}

func TestRawRelations_ReturnsCopy(t *testing.T) {
	cfg := &config.Config{
		Predefine: config.PredefineConfig{
			Relations: map[string]map[string]any{"owner": {"ref": "Party"}},
		},
	}

	raw := cfg.RawRelations()
	raw["owner"]["ref"] = "Changed"

	assert.Equal(t, "Party", cfg.RawRelations()["owner"]["ref"])
}

// clearEnv blanks every variable the loader reads so tests do not depend
// on the caller's environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvDefaultLocale, config.EnvLocales, config.EnvModelName,
		config.EnvCollectionName, config.EnvDefaultNamespace, config.EnvNamespaces,
		config.EnvRelations, config.EnvIDFormat, config.EnvAPIVersion,
		config.EnvServerHost, config.EnvServerPort, config.EnvServerReadTimeout,
		config.EnvServerWriteTimeout, config.EnvDatabaseDriver, config.EnvDatabaseDSN, config.EnvLogLevel,
		config.EnvLogFormat, config.EnvMetricsEnabled, config.EnvMetricsPath,
		config.EnvOpenAPIEnabled, config.EnvEventsNATSURL, config.EnvEventsSubject,
	} {
		t.Setenv(key, "")
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	require.NoError(t, err)
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "predefine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return config.Load(path)
}
