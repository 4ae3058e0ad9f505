package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config captures the scheduler service settings.
type Config struct {
	HTTPPort   int    `yaml:"http_port"`
	SQLitePath string `yaml:"sqlite_path"`

	// TimeZone is the IANA zone the audit schedule runs in.
	TimeZone string `yaml:"time_zone"`

	// ConflictLookAhead bounds conflict checks between two never-ending series.
	ConflictLookAhead time.Duration `yaml:"conflict_look_ahead"`

	// AuditSchedule is a standard cron spec for the recurrence rule audit.
	// "off" disables the audit.
	AuditSchedule string `yaml:"audit_schedule"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// AuditDisabled is the AuditSchedule value that turns the audit job off.
const AuditDisabled = "off"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPPort:          8080,
		SQLitePath:        "data/scheduler.db",
		TimeZone:          "UTC",
		ConflictLookAhead: 365 * 24 * time.Hour,
		AuditSchedule:     "0 3 * * *",
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Normalize fills zero values with defaults and canonicalizes enums.
func (c *Config) Normalize() {
	def := Default()
	if c.HTTPPort == 0 {
		c.HTTPPort = def.HTTPPort
	}
	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	if c.SQLitePath == "" {
		c.SQLitePath = def.SQLitePath
	}
	c.TimeZone = strings.TrimSpace(c.TimeZone)
	if c.TimeZone == "" {
		c.TimeZone = def.TimeZone
	}
	if c.ConflictLookAhead == 0 {
		c.ConflictLookAhead = def.ConflictLookAhead
	}
	c.AuditSchedule = strings.TrimSpace(c.AuditSchedule)
	if c.AuditSchedule == "" {
		c.AuditSchedule = def.AuditSchedule
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
}

// Validate reports every setting with an unusable value.
func (c Config) Validate() error {
	var invalid []string
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "http_port")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		invalid = append(invalid, "time_zone")
	}
	if c.ConflictLookAhead < 24*time.Hour {
		invalid = append(invalid, "conflict_look_ahead")
	}
	if c.AuditSchedule != AuditDisabled {
		if _, err := cron.ParseStandard(c.AuditSchedule); err != nil {
			invalid = append(invalid, "audit_schedule")
		}
	}
	if c.ShutdownTimeout < 0 {
		invalid = append(invalid, "shutdown_timeout")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "log_level")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, "log_format")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file at path, the dotenv file at envFile and SCHEDULER_*
// environment variables. Empty paths are skipped. A missing envFile is not
// an error; a missing YAML file is.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := applyEnvironment(&cfg); err != nil {
		return Config{}, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config) error {
	var invalid []string

	if v, ok := lookup("SCHEDULER_HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if v, ok := lookup("SCHEDULER_SQLITE_PATH"); ok {
		cfg.SQLitePath = v
	}
	if v, ok := lookup("SCHEDULER_TIME_ZONE"); ok {
		cfg.TimeZone = v
	}
	if v, ok := lookup("SCHEDULER_AUDIT_SCHEDULE"); ok {
		cfg.AuditSchedule = v
	}
	if v, ok := lookup("SCHEDULER_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookup("SCHEDULER_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SCHEDULER_CONFLICT_LOOK_AHEAD", &cfg.ConflictLookAhead},
		{"SCHEDULER_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 {
			invalid = append(invalid, d.key)
			continue
		}
		*d.dst = parsed
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}
