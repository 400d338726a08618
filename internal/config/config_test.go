package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Data.BasePath = "/var/lib/ecotrack"
	return &cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"PRODUCTION", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"empty data path", func(c *Config) { c.Data.BasePath = "" }},
		{"non numeric port", func(c *Config) { c.Server.Port = "http" }},
		{"zero attempts", func(c *Config) { c.SIDRA.MaxAttempts = 0 }},
		{"zero rate", func(c *Config) { c.SIDRA.RequestsPerSecond = 0 }},
		{"empty base url", func(c *Config) { c.SIDRA.BaseURL = "" }},
		{"empty schedule", func(c *Config) { c.Scheduler.Spec = " " }},
		{"unknown timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_EmptyScheduleAllowedWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.Spec = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)

	cfg, err := LoadConfig([]string{"-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "0 2 1 * *", cfg.Scheduler.Spec)
	assert.Equal(t, 3, cfg.SIDRA.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.SIDRA.Timeout)
	assert.Equal(t, filepath.Join(dir, "ecotrack.db"), cfg.Data.RelationalPath)
	assert.Equal(t, filepath.Join(dir, "documents"), cfg.Data.DocumentsPath)
	assert.Equal(t, filepath.Join(dir, "search"), cfg.Data.SearchPath)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
logger:
  level: debug
server:
  port: "9000"
sidra:
  timeout: 90s
  max_attempts: 5
scheduler:
  spec: "0 3 1 * *"
`), 0o600))

	t.Setenv("DATA_PATH", dir)
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := LoadConfig([]string{
		"-config", yamlPath,
		"-env-file", filepath.Join(dir, "missing.env"),
		"-sidra-attempts", "4",
	})
	require.NoError(t, err)

	// YAML over defaults.
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 90*time.Second, cfg.SIDRA.Timeout)
	assert.Equal(t, "0 3 1 * *", cfg.Scheduler.Spec)
	// Env over YAML.
	assert.Equal(t, "9100", cfg.Server.Port)
	// Flag over YAML.
	assert.Equal(t, 4, cfg.SIDRA.MaxAttempts)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("SIDRA_TIMEOUT", "soon")

	_, err := LoadConfig([]string{"-env-file", filepath.Join(dir, "missing.env")})
	assert.ErrorContains(t, err, "SIDRA_TIMEOUT")
}

func TestLoadConfig_MissingYAMLFile(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig([]string{"-config", filepath.Join(dir, "nope.yaml"), "-env-file", filepath.Join(dir, "x")})
	assert.Error(t, err)
}

func TestLoadConfig_CORSOrigins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://ecotrack.example ,")

	cfg, err := LoadConfig([]string{"-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "https://ecotrack.example"}, cfg.Server.CORSOrigins)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/ecotrack", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "ecotrack"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("relative/dir", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("ECOTRACK_TEST_KEY", "env-value")

	assert.Equal(t, "flag-value", getConfigValue("flag-value", "ECOTRACK_TEST_KEY", "default"))
	assert.Equal(t, "env-value", getConfigValue("", "ECOTRACK_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "ECOTRACK_UNSET_KEY", "default"))
}

func TestGetBoolAndNumberValues(t *testing.T) {
	t.Setenv("ECOTRACK_BOOL", "YES")
	t.Setenv("ECOTRACK_INT", "not-a-number")
	t.Setenv("ECOTRACK_FLOAT", "0.5")

	assert.True(t, getBoolConfigValue("", "ECOTRACK_BOOL", false))
	assert.False(t, getBoolConfigValue("0", "ECOTRACK_BOOL", true))
	assert.Equal(t, 7, getIntConfigValue("", "ECOTRACK_INT", 7))
	assert.InDelta(t, 0.5, getFloatConfigValue("", "ECOTRACK_FLOAT", 1), 1e-9)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
ECOTRACK_ENVFILE_A="quoted value"
  ECOTRACK_ENVFILE_B = spaced
ECOTRACK_ENVFILE_KEEP=from-file
`), 0o600))

	t.Setenv("ECOTRACK_ENVFILE_KEEP", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("ECOTRACK_ENVFILE_A") //nolint:errcheck // test cleanup
		os.Unsetenv("ECOTRACK_ENVFILE_B") //nolint:errcheck // test cleanup
	})

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "quoted value", os.Getenv("ECOTRACK_ENVFILE_A"))
	assert.Equal(t, "spaced", os.Getenv("ECOTRACK_ENVFILE_B"))
	assert.Equal(t, "from-env", os.Getenv("ECOTRACK_ENVFILE_KEEP"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NO_EQUALS_SIGN\n"), 0o600))

	assert.ErrorContains(t, loadEnvFile(path), "line 1")
}
