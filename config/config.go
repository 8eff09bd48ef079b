package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
	// Embedded zone database so TIMEZONE resolves the same on every host.
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	GitHubToken    string
	APIBaseURL     string
	RequestTimeout time.Duration
	LogLevel       string
	Location       *time.Location

	ChartWindow      int
	EnrichWorkers    int
	EnrichRPS        float64
	DedupByID        bool
	ForceUpdatedDesc bool

	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnLifetime time.Duration
	WatchInterval  time.Duration
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CONFIG_FILE", ".env")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("CHART_WINDOW", 12)
	v.SetDefault("ENRICH_WORKERS", 20)
	v.SetDefault("ENRICH_RPS", 0)
	v.SetDefault("DEDUP_BY_ID", false)
	v.SetDefault("FORCE_UPDATED_DESC", true)
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "githubstats.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("WATCH_INTERVAL", "1h")
}

// Load loads configuration from an optional .env file and environment variables
func (c *Config) Load() error {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	v.SetConfigFile(v.GetString("CONFIG_FILE"))
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	c.GitHubToken = v.GetString("GITHUB_TOKEN")

	c.APIBaseURL = v.GetString("GITHUB_API_URL")
	if c.APIBaseURL == "" {
		return fmt.Errorf("GITHUB_API_URL cannot be empty")
	}

	var err error
	if c.RequestTimeout, err = time.ParseDuration(v.GetString("REQUEST_TIMEOUT")); err != nil {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	c.LogLevel = v.GetString("LOG_LEVEL")

	if c.Location, err = time.LoadLocation(v.GetString("TIMEZONE")); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	c.ChartWindow = v.GetInt("CHART_WINDOW")
	c.EnrichWorkers = v.GetInt("ENRICH_WORKERS")
	if c.EnrichWorkers < 0 {
		return fmt.Errorf("ENRICH_WORKERS must not be negative, got %d", c.EnrichWorkers)
	}
	c.EnrichRPS = v.GetFloat64("ENRICH_RPS")
	if c.EnrichRPS < 0 {
		return fmt.Errorf("ENRICH_RPS must not be negative, got %v", c.EnrichRPS)
	}
	c.DedupByID = v.GetBool("DEDUP_BY_ID")
	c.ForceUpdatedDesc = v.GetBool("FORCE_UPDATED_DESC")

	c.DBDriver = v.GetString("DB_DRIVER")
	c.DBDSN = v.GetString("DB_DSN")
	c.DBMaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	c.DBMaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	if c.DBConnLifetime, err = time.ParseDuration(v.GetString("DB_CONN_MAX_LIFETIME")); err != nil {
		return fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	if c.WatchInterval, err = time.ParseDuration(v.GetString("WATCH_INTERVAL")); err != nil {
		return fmt.Errorf("invalid WATCH_INTERVAL: %w", err)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL must be positive")
	}

	return nil
}
