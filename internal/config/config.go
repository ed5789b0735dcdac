package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Email     EmailConfig     `mapstructure:"email"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Share     ShareConfig     `mapstructure:"share"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// SentTTL bounds how long a sent-delivery lookup stays cached
	SentTTL time.Duration `mapstructure:"sent_ttl"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider selects the transport: "smtp" or "gmail"
	Provider string `mapstructure:"provider"`
	// FromAddress is the "From" email address
	FromAddress string `mapstructure:"from_address"`
	// FromName is the display name for the sender
	FromName string `mapstructure:"from_name"`
	// ReplyTo overrides the Reply-To header; defaults to FromAddress
	ReplyTo string `mapstructure:"reply_to"`
	// SMTP holds SMTP relay configuration
	SMTP SMTPConfig `mapstructure:"smtp"`
	// Gmail holds Gmail API configuration
	Gmail GmailEmailConfig `mapstructure:"gmail"`
}

// SMTPConfig holds SMTP relay configuration.
// The password is a secret and must never be logged.
type SMTPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Login       string        `mapstructure:"login"`
	Password    string        `mapstructure:"password"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// Addr returns the SMTP relay address
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
}

// QueueConfig holds delivery queue processing configuration
type QueueConfig struct {
	// BatchSize is the maximum number of deliveries claimed per run
	BatchSize int `mapstructure:"batch_size"`
	// MaxRetries is captured onto each delivery row at creation time
	MaxRetries int `mapstructure:"max_retries"`
	// BackoffBase is the delay before the first retry; doubles per attempt
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	// DryRun skips the transport call and leaves all rows untouched
	DryRun bool `mapstructure:"dry_run"`
}

// StorageConfig holds avatar artifact storage configuration
type StorageConfig struct {
	// BasePath is the root directory for avatar image files
	BasePath string `mapstructure:"base_path"`
}

// ShareConfig holds QR share-link configuration
type ShareConfig struct {
	// BaseURL is the public root for download links embedded in QR codes
	BaseURL string `mapstructure:"base_url"`
	// SigningKey signs download tokens; a secret, never logged
	SigningKey string `mapstructure:"signing_key"`
	// TokenTTL is how long a download link stays valid
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// RateLimitConfig holds Redis-backed request rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// EnqueuePerMinute caps delivery enqueue requests per client IP
	EnqueuePerMinute int `mapstructure:"enqueue_per_minute"`
	// LookupPerMinute caps status and download requests per client IP
	LookupPerMinute int `mapstructure:"lookup_per_minute"`
}

// SchedulerConfig holds the optional in-process queue trigger configuration
type SchedulerConfig struct {
	// Enabled runs the queue processor inside the server on a ticker.
	// Leave off when an external cron invokes the worker command.
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/herogram")

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Bind environment variables
	v.SetEnvPrefix("HEROGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue.batch_size must be > 0")
	}
	if c.Queue.MaxRetries <= 0 {
		return fmt.Errorf("queue.max_retries must be > 0")
	}
	if c.Queue.BackoffBase <= 0 {
		return fmt.Errorf("queue.backoff_base must be > 0")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be > 0 when the scheduler is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "herogram")
	v.SetDefault("database.user", "herogram")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.sent_ttl", "24h")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Email defaults
	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.from_address", "avatars@herogram.dev")
	v.SetDefault("email.from_name", "Herogram Superhero Creator")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("email.smtp.host", "smtp-relay.brevo.com")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.login", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.send_timeout", "30s")

	// Queue defaults
	v.SetDefault("queue.batch_size", 50)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.backoff_base", "5m")
	v.SetDefault("queue.dry_run", false)

	// Storage defaults
	v.SetDefault("storage.base_path", "./data/avatars")

	// Share defaults
	v.SetDefault("share.base_url", "http://localhost:8080")
	v.SetDefault("share.signing_key", "")
	v.SetDefault("share.token_ttl", "48h")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "5m")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.enqueue_per_minute", 30)
	v.SetDefault("rate_limit.lookup_per_minute", 120)
}
