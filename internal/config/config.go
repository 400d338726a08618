// Package config loads application configuration from command-line flags,
// environment variables, a .env file and an optional YAML file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Logger    LoggerConfig    `yaml:"logger"`
	Data      DataConfig      `yaml:"data"`
	Server    ServerConfig    `yaml:"server"`
	SIDRA     SIDRAConfig     `yaml:"sidra"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `yaml:"environment"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// DataConfig holds on-disk locations. Only BasePath is read from sources;
// the store paths are derived from it.
type DataConfig struct {
	BasePath       string `yaml:"base_path"`
	RelationalPath string `yaml:"-"`
	DocumentsPath  string `yaml:"-"`
	SearchPath     string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// SIDRAConfig controls the upstream statistics API client.
type SIDRAConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// SchedulerConfig controls the periodic pipeline trigger.
type SchedulerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Spec       string `yaml:"spec"`
	Timezone   string `yaml:"timezone"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// Defaults returns the configuration used when no source overrides a value.
func Defaults() Config {
	return Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute, // pipeline runs are synchronous
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		SIDRA: SIDRAConfig{
			BaseURL:           "https://apisidra.ibge.gov.br",
			Timeout:           60 * time.Second,
			MaxAttempts:       3,
			BackoffBase:       2 * time.Second,
			BackoffMax:        30 * time.Second,
			RequestsPerSecond: 1,
			Burst:             3,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Spec:     "0 2 1 * *",
			Timezone: "America/Sao_Paulo",
		},
	}
}

type flagValues struct {
	env, logLevel, dataPath, configFile, envFile  string
	port, readTimeout, writeTimeout, idleTimeout string
	corsOrigins                                   string
	sidraURL, sidraTimeout, sidraAttempts         string
	schedule, schedulerEnabled, runOnStart        string
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. YAML file named by --config or CONFIG_FILE.
// 5. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	var fv flagValues
	fs := flag.NewFlagSet("ecotrack", flag.ContinueOnError)
	fs.StringVar(&fv.env, "env", "", "Environment (development, staging, production)")
	fs.StringVar(&fv.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&fv.dataPath, "data-path", "", "Base directory for the relational and document stores")
	fs.StringVar(&fv.configFile, "config", "", "Path to a YAML config file")
	fs.StringVar(&fv.envFile, "env-file", ".env", "Path to .env file")
	fs.StringVar(&fv.port, "port", "", "Server port (default: 8080)")
	fs.StringVar(&fv.readTimeout, "read-timeout", "", "HTTP read timeout (default: 15s)")
	fs.StringVar(&fv.writeTimeout, "write-timeout", "", "HTTP write timeout (default: 5m)")
	fs.StringVar(&fv.idleTimeout, "idle-timeout", "", "HTTP idle timeout (default: 60s)")
	fs.StringVar(&fv.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	fs.StringVar(&fv.sidraURL, "sidra-url", "", "SIDRA API base URL")
	fs.StringVar(&fv.sidraTimeout, "sidra-timeout", "", "Per-request SIDRA timeout (default: 60s)")
	fs.StringVar(&fv.sidraAttempts, "sidra-attempts", "", "SIDRA attempts per request (default: 3)")
	fs.StringVar(&fv.schedule, "schedule", "", "Cron expression for pipeline runs (default: 0 2 1 * *)")
	fs.StringVar(&fv.schedulerEnabled, "scheduler-enabled", "", "Enable the periodic pipeline run (default: true)")
	fs.StringVar(&fv.runOnStart, "run-on-start", "", "Run the pipeline once at startup (default: false)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Missing .env is fine.
	_ = loadEnvFile(fv.envFile)

	cfg := Defaults()
	if path := getConfigValue(fv.configFile, "CONFIG_FILE", ""); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.App.Environment = getConfigValue(fv.env, "ENV", cfg.App.Environment)
	cfg.Logger.Level = getConfigValue(fv.logLevel, "LOG_LEVEL", cfg.Logger.Level)
	cfg.Data.BasePath = getConfigValue(fv.dataPath, "DATA_PATH", cfg.Data.BasePath)

	cfg.Server.Port = getConfigValue(fv.port, "SERVER_PORT", cfg.Server.Port)
	if origins := getConfigValue(fv.corsOrigins, "CORS_ORIGINS", ""); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}

	cfg.SIDRA.BaseURL = getConfigValue(fv.sidraURL, "SIDRA_BASE_URL", cfg.SIDRA.BaseURL)
	cfg.SIDRA.MaxAttempts = getIntConfigValue(fv.sidraAttempts, "SIDRA_MAX_ATTEMPTS", cfg.SIDRA.MaxAttempts)
	cfg.SIDRA.RequestsPerSecond = getFloatConfigValue("", "SIDRA_REQUESTS_PER_SECOND", cfg.SIDRA.RequestsPerSecond)
	cfg.SIDRA.Burst = getIntConfigValue("", "SIDRA_BURST", cfg.SIDRA.Burst)

	cfg.Scheduler.Enabled = getBoolConfigValue(fv.schedulerEnabled, "SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.Spec = getConfigValue(fv.schedule, "SCHEDULER_SPEC", cfg.Scheduler.Spec)
	cfg.Scheduler.Timezone = getConfigValue("", "SCHEDULER_TIMEZONE", cfg.Scheduler.Timezone)
	cfg.Scheduler.RunOnStart = getBoolConfigValue(fv.runOnStart, "SCHEDULER_RUN_ON_START", cfg.Scheduler.RunOnStart)

	durations := []struct {
		flag, env string
		dst       *time.Duration
	}{
		{fv.readTimeout, "SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout},
		{fv.writeTimeout, "SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout},
		{fv.idleTimeout, "SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout},
		{fv.sidraTimeout, "SIDRA_TIMEOUT", &cfg.SIDRA.Timeout},
		{"", "SIDRA_BACKOFF_BASE", &cfg.SIDRA.BackoffBase},
		{"", "SIDRA_BACKOFF_MAX", &cfg.SIDRA.BackoffMax},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, "")
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s %q: %w", d.env, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	if c.SIDRA.BaseURL == "" {
		return errors.New("SIDRA base URL is required")
	}
	if c.SIDRA.MaxAttempts < 1 {
		return fmt.Errorf("SIDRA max attempts must be at least 1, got %d", c.SIDRA.MaxAttempts)
	}
	if c.SIDRA.RequestsPerSecond <= 0 || c.SIDRA.Burst < 1 {
		return errors.New("SIDRA rate limit must allow at least one request")
	}
	if c.SIDRA.Timeout <= 0 {
		return errors.New("SIDRA timeout must be positive")
	}

	if c.Scheduler.Enabled && strings.TrimSpace(c.Scheduler.Spec) == "" {
		return errors.New("scheduler spec is required when the scheduler is enabled")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}

	return nil
}

// Location returns the scheduler timezone, falling back to UTC.
func (s SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, "Ecotrack", "data"))
	if err != nil {
		return err
	}
	c.Data.BasePath = base
	c.Data.RelationalPath = filepath.Join(base, "ecotrack.db")
	c.Data.DocumentsPath = filepath.Join(base, "documents")
	c.Data.SearchPath = filepath.Join(base, "search")
	return nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //#nosec G304 -- config path is operator supplied
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from a .env file. Variables already set
// in the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- env file path is operator supplied
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
