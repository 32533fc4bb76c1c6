package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Log        LogConfig
	CORS       CORSConfig
	Metrics    MetricsConfig
	Federation FederationConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	LogLevel        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled  bool
	Type     string // redis or memory
	StudyTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type MetricsConfig struct {
	Enabled bool
}

// FederationConfig tunes archive fan-out, sessions and consent
type FederationConfig struct {
	PrimaryArchiveID string
	ArchiveTimeout   time.Duration
	ArchiveRetryMax  int
	SessionTTL       time.Duration
	ConsentTTLDays   int
}

var defaults = map[string]interface{}{
	"SERVER_HOST":             "0.0.0.0",
	"SERVER_PORT":             8080,
	"SERVER_READ_TIMEOUT":     "15s",
	"SERVER_WRITE_TIMEOUT":    "60s",
	"SERVER_SHUTDOWN_TIMEOUT": "30s",

	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "",
	"DB_NAME":              "imaging_gateway",
	"DB_SSLMODE":           "disable",
	"DB_LOG_LEVEL":         "warn",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": "5m",

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"CACHE_ENABLED":   true,
	"CACHE_TYPE":      "memory",
	"CACHE_STUDY_TTL": "5m",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"CORS_ALLOWED_ORIGINS": "*",
	"CORS_ALLOWED_METHODS": "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	"CORS_ALLOWED_HEADERS": "Accept,Authorization,Content-Type,X-Request-ID,X-Caller-ID",

	"METRICS_ENABLED": true,

	"FEDERATION_PRIMARY_ARCHIVE_ID": "",
	"FEDERATION_ARCHIVE_TIMEOUT":    "10s",
	"FEDERATION_ARCHIVE_RETRY_MAX":  2,
	"FEDERATION_SESSION_TTL":        "1h",
	"FEDERATION_CONSENT_TTL_DAYS":   30,
}

// Load reads configuration from the environment, after loading a .env file
// when one is present
func Load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			LogLevel:        v.GetString("DB_LOG_LEVEL"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Enabled:  v.GetBool("CACHE_ENABLED"),
			Type:     strings.ToLower(v.GetString("CACHE_TYPE")),
			StudyTTL: v.GetDuration("CACHE_STUDY_TTL"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			AllowedMethods: splitList(v.GetString("CORS_ALLOWED_METHODS")),
			AllowedHeaders: splitList(v.GetString("CORS_ALLOWED_HEADERS")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
		Federation: FederationConfig{
			PrimaryArchiveID: v.GetString("FEDERATION_PRIMARY_ARCHIVE_ID"),
			ArchiveTimeout:   v.GetDuration("FEDERATION_ARCHIVE_TIMEOUT"),
			ArchiveRetryMax:  v.GetInt("FEDERATION_ARCHIVE_RETRY_MAX"),
			SessionTTL:       v.GetDuration("FEDERATION_SESSION_TTL"),
			ConsentTTLDays:   v.GetInt("FEDERATION_CONSENT_TTL_DAYS"),
		},
	}
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

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid DB_PORT: %d", c.Database.Port)
	}
	if c.Cache.Type != "redis" && c.Cache.Type != "memory" {
		return fmt.Errorf("invalid CACHE_TYPE %q: must be redis or memory", c.Cache.Type)
	}
	if c.Cache.Enabled && c.Cache.Type == "redis" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		return fmt.Errorf("invalid REDIS_PORT: %d", c.Redis.Port)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid LOG_FORMAT %q: must be json or console", c.Log.Format)
	}
	if c.Federation.ArchiveTimeout <= 0 {
		return fmt.Errorf("FEDERATION_ARCHIVE_TIMEOUT must be positive")
	}
	if c.Federation.SessionTTL <= 0 {
		return fmt.Errorf("FEDERATION_SESSION_TTL must be positive")
	}
	if c.Federation.ConsentTTLDays <= 0 {
		return fmt.Errorf("FEDERATION_CONSENT_TTL_DAYS must be positive")
	}
	return nil
}
