package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"courtside/database"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DatabaseName string `envconfig:"DATABASE_NAME"`
	StoreDriver  string `envconfig:"STORE_DRIVER" default:"postgres"` // "postgres" or "memory"

	// Wallet rules, in minor units
	MinimumBalance      int64 `envconfig:"MINIMUM_BALANCE" default:"0"`
	LowBalanceThreshold int64 `envconfig:"LOW_BALANCE_THRESHOLD" default:"500"`

	// Session defaults
	DefaultCapacity   int           `envconfig:"DEFAULT_CAPACITY" default:"12"`
	DefaultFee        int64         `envconfig:"DEFAULT_FEE" default:"100"`
	DefaultLockWindow time.Duration `envconfig:"DEFAULT_LOCK_WINDOW" default:"2h"`
	SessionInterval   time.Duration `envconfig:"SESSION_INTERVAL" default:"168h"`
	SessionWeekday    string        `envconfig:"SESSION_WEEKDAY" default:"saturday"`
	SessionHour       int           `envconfig:"SESSION_HOUR" default:"18"`
	SessionTimezone   string        `envconfig:"SESSION_TIMEZONE" default:"UTC"`

	// Cost rates used when archiving
	PlayersPerCourt int   `envconfig:"PLAYERS_PER_COURT" default:"4"`
	CourtRate       int64 `envconfig:"COURT_RATE" default:"0"`
	UnitRate        int64 `envconfig:"UNIT_RATE" default:"0"`

	// Concurrency budgets
	RosterMaxAttempts   int           `envconfig:"ROSTER_MAX_ATTEMPTS" default:"20"`
	LedgerMaxRetries    int           `envconfig:"LEDGER_MAX_RETRIES" default:"3"`
	OperationTimeout    time.Duration `envconfig:"OPERATION_TIMEOUT" default:"10s"`
	CompensationTimeout time.Duration `envconfig:"COMPENSATION_TIMEOUT" default:"10s"`

	// NATS configuration
	NATSEnabled bool   `envconfig:"NATS_ENABLED" default:"false"`
	NATSServers string `envconfig:"NATS_SERVERS" default:"nats://nats:4222"`

	// Discord configuration
	DiscordToken     string `envconfig:"DISCORD_TOKEN"`
	DiscordChannelID string `envconfig:"DISCORD_CHANNEL_ID"`

	// Elasticsearch archive mirror, disabled when empty
	ElasticsearchURL      string `envconfig:"ELASTICSEARCH_URL"`
	ElasticsearchUsername string `envconfig:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string `envconfig:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchIndex    string `envconfig:"ELASTICSEARCH_INDEX" default:"courtside_archives"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelServiceName          string `envconfig:"OTEL_SERVICE_NAME" default:"courtside"`
	OTelExporterType         string `envconfig:"OTEL_EXPORTER_TYPE" default:"console"` // console, otlp or none
	OTelOTLPEndpoint         string `envconfig:"OTEL_OTLP_ENDPOINT" default:"otel-collector:4317"`
	OTelExportIntervalMillis int    `envconfig:"OTEL_EXPORT_INTERVAL_MILLIS" default:"60000"`

	// Scheduled jobs, cron syntax. Empty disables the job.
	LowBalanceSchedule string        `envconfig:"LOW_BALANCE_SCHEDULE" default:"0 9 * * *"`
	AutoCloseSchedule  string        `envconfig:"AUTO_CLOSE_SCHEDULE"`
	AutoCloseDelay     time.Duration `envconfig:"AUTO_CLOSE_DELAY" default:"4h"` // After scheduled start

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text or json

	// Environment
	Environment string `envconfig:"ENVIRONMENT" default:"development"` // development, production or test
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Load reads the configuration from the environment without touching the global instance
func Load() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values envconfig cannot check on its own
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" && c.Environment != "test" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.DefaultCapacity <= 0 {
		return fmt.Errorf("DEFAULT_CAPACITY must be positive")
	}
	if c.DefaultFee < 0 {
		return fmt.Errorf("DEFAULT_FEE cannot be negative")
	}
	if c.SessionHour < 0 || c.SessionHour > 23 {
		return fmt.Errorf("SESSION_HOUR must be between 0 and 23")
	}
	if _, err := c.Weekday(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.PlayersPerCourt <= 0 {
		return fmt.Errorf("PLAYERS_PER_COURT must be positive")
	}
	if c.DiscordToken != "" && c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_TOKEN is set")
	}
	return nil
}

// GetDatabaseURL combines the base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Weekday parses SessionWeekday
func (c *Config) Weekday() (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(c.SessionWeekday)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown SESSION_WEEKDAY %q", c.SessionWeekday)
}

// Location loads SessionTimezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.SessionTimezone)
	if err != nil {
		return nil, fmt.Errorf("unknown SESSION_TIMEZONE %q: %w", c.SessionTimezone, err)
	}
	return loc, nil
}

// ConfigureLogging applies the log level and format to the standard logrus logger
func (c *Config) ConfigureLogging() {
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a config suitable for unit tests: in-memory store, no external
// services
func NewTestConfig() *Config {
	return &Config{
		StoreDriver:         "memory",
		MinimumBalance:      0,
		LowBalanceThreshold: 200,
		DefaultCapacity:     4,
		DefaultFee:          100,
		DefaultLockWindow:   time.Hour,
		SessionInterval:     7 * 24 * time.Hour,
		SessionWeekday:      "saturday",
		SessionHour:         18,
		SessionTimezone:     "UTC",
		PlayersPerCourt:     4,
		RosterMaxAttempts:   20,
		LedgerMaxRetries:    2,
		OperationTimeout:    5 * time.Second,
		CompensationTimeout: 5 * time.Second,
		AutoCloseDelay:      4 * time.Hour,
		OTelExporterType:    "none",
		LogLevel:            "debug",
		LogFormat:           "text",
		Environment:         "test",
	}
}
