package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is set at build time.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Plex       PlexConfig       `mapstructure:"plex"`
	Radarr     ArrConfig        `mapstructure:"radarr"`
	Sonarr     ArrConfig        `mapstructure:"sonarr"`
	Overseerr  SeerrConfig      `mapstructure:"overseerr"`
	Jellyseerr SeerrConfig      `mapstructure:"jellyseerr"`
	Tautulli   TautulliConfig   `mapstructure:"tautulli"`
	TMDB       TMDBConfig       `mapstructure:"tmdb"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Settings   SettingsConfig   `mapstructure:"settings"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Health     HealthConfig     `mapstructure:"health"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// PlexConfig holds the Plex Media Server connection.
type PlexConfig struct {
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// ArrConfig holds a Radarr or Sonarr connection.
type ArrConfig struct {
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// IsConfigured returns true when both the URL and API key are set.
func (c ArrConfig) IsConfigured() bool {
	return c.URL != "" && c.APIKey != ""
}

// SeerrConfig holds an Overseerr or Jellyseerr connection.
type SeerrConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// IsConfigured returns true when both the URL and API key are set.
func (c SeerrConfig) IsConfigured() bool {
	return c.URL != "" && c.APIKey != ""
}

// TautulliConfig holds the Tautulli connection.
type TautulliConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// IsConfigured returns true when both the URL and API key are set.
func (c TautulliConfig) IsConfigured() bool {
	return c.URL != "" && c.APIKey != ""
}

// TMDBConfig holds TMDB API configuration.
type TMDBConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// RulesConfig controls how often rules and collections are processed.
type RulesConfig struct {
	Cron                  string `mapstructure:"cron"`
	CollectionHandlerCron string `mapstructure:"collection_handler_cron"`
	PageSize              int    `mapstructure:"page_size"`
}

// SettingsConfig holds behavioural toggles.
type SettingsConfig struct {
	// ForceRequestSync removes the matching Overseerr/Jellyseerr request
	// after media has been handled.
	ForceRequestSync      bool          `mapstructure:"force_request_sync"`
	AvailabilitySyncDelay time.Duration `mapstructure:"availability_sync_delay"`
}

// CacheConfig controls the in-memory response cache for external clients.
type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	MaxItems int           `mapstructure:"max_items"`
}

// HealthConfig controls connection health checks.
type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// StartupAttempts bounds how often Plex is probed before the scheduler starts.
	StartupAttempts int `mapstructure:"startup_attempts"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 6246,
		},
		Database: DatabaseConfig{
			Path: "./data/curatarr.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Plex: PlexConfig{
			Timeout: 30,
		},
		TMDB: TMDBConfig{
			BaseURL: "https://api.themoviedb.org/3",
			Timeout: 30,
		},
		Rules: RulesConfig{
			Cron:                  "0 0-23/8 * * *",
			CollectionHandlerCron: "0 0-23/12 * * *",
			PageSize:              50,
		},
		Settings: SettingsConfig{
			AvailabilitySyncDelay: 7 * time.Minute,
		},
		Cache: CacheConfig{
			TTL:      10 * time.Minute,
			MaxItems: 5000,
		},
		Health: HealthConfig{
			CheckInterval:   15 * time.Minute,
			StartupAttempts: 5,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.curatarr")
	}

	v.SetEnvPrefix("CURATARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Rules.PageSize <= 0 {
		cfg.Rules.PageSize = 50
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	// Every key needs a default so AutomaticEnv can override it.
	v.SetDefault("plex.url", "")
	v.SetDefault("plex.token", "")
	v.SetDefault("plex.timeout", d.Plex.Timeout)
	for _, app := range []string{"radarr", "sonarr"} {
		v.SetDefault(app+".url", "")
		v.SetDefault(app+".api_key", "")
		v.SetDefault(app+".timeout", 30)
	}
	for _, app := range []string{"overseerr", "jellyseerr", "tautulli"} {
		v.SetDefault(app+".url", "")
		v.SetDefault(app+".api_key", "")
	}
	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.base_url", d.TMDB.BaseURL)
	v.SetDefault("tmdb.timeout", d.TMDB.Timeout)

	v.SetDefault("rules.cron", d.Rules.Cron)
	v.SetDefault("rules.collection_handler_cron", d.Rules.CollectionHandlerCron)
	v.SetDefault("rules.page_size", d.Rules.PageSize)

	v.SetDefault("settings.force_request_sync", false)
	v.SetDefault("settings.availability_sync_delay", d.Settings.AvailabilitySyncDelay)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_items", d.Cache.MaxItems)

	v.SetDefault("health.check_interval", d.Health.CheckInterval)
	v.SetDefault("health.startup_attempts", d.Health.StartupAttempts)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
