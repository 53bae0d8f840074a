package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	Database    DatabaseConfig    `yaml:"database"`
	JoinRequest JoinRequestConfig `yaml:"join_request"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// TelegramConfig contains Bot API and chat settings
type TelegramConfig struct {
	Token              string  `yaml:"token"`
	APIURL             string  `yaml:"api_url"`
	CommunityChatID    int64   `yaml:"community_chat_id"`
	ModeratorChatID    int64   `yaml:"moderator_chat_id"`
	ModeratorThreadID  int64   `yaml:"moderator_thread_id"`
	ErrorChatID        int64   `yaml:"error_chat_id"`   // defaults to the moderator chat
	ErrorThreadID      int64   `yaml:"error_thread_id"` // defaults to the moderator thread
	PollTimeoutSeconds int     `yaml:"poll_timeout_seconds"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	RequestBurst       int     `yaml:"request_burst"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// JoinRequestConfig contains lifecycle timing settings
type JoinRequestConfig struct {
	LifetimeMinutes               int `yaml:"lifetime_minutes"`
	CheckIntervalMinutes          int `yaml:"check_interval_minutes"`
	PendingQuestionTimeoutMinutes int `yaml:"pending_question_timeout_minutes"`
	BanCacheSize                  int `yaml:"ban_cache_size"`
	BanCacheTTLMinutes            int `yaml:"ban_cache_ttl_minutes"`
}

// ServerConfig contains the health and metrics HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ExpireJoinRequests string `yaml:"expire_join_requests"`
	RecordGauges       string `yaml:"record_gauges"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Telegram
	if val := os.Getenv("TELEGRAM_BOT_TOKEN"); val != "" {
		c.Telegram.Token = val
	}
	if val := os.Getenv("TELEGRAM_API_URL"); val != "" {
		c.Telegram.APIURL = val
	}
	if val := os.Getenv("COMMUNITY_CHAT_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.Telegram.CommunityChatID)
	}
	if val := os.Getenv("MODERATOR_CHAT_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.Telegram.ModeratorChatID)
	}
	if val := os.Getenv("MODERATOR_THREAD_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.Telegram.ModeratorThreadID)
	}
	if val := os.Getenv("ERROR_CHAT_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.Telegram.ErrorChatID)
	}
	if val := os.Getenv("ERROR_THREAD_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.Telegram.ErrorThreadID)
	}

	// Join requests
	if val := os.Getenv("JOIN_REQUEST_LIFETIME_MINUTES"); val != "" {
		fmt.Sscanf(val, "%d", &c.JoinRequest.LifetimeMinutes)
	}
	if val := os.Getenv("JOIN_REQUEST_CHECK_INTERVAL_MINUTES"); val != "" {
		fmt.Sscanf(val, "%d", &c.JoinRequest.CheckIntervalMinutes)
	}

	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Telegram validation
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if c.Telegram.CommunityChatID == 0 {
		return fmt.Errorf("community chat id is required")
	}
	if c.Telegram.ModeratorChatID == 0 {
		return fmt.Errorf("moderator chat id is required")
	}
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.ErrorChatID == 0 {
		c.Telegram.ErrorChatID = c.Telegram.ModeratorChatID
		if c.Telegram.ErrorThreadID == 0 {
			c.Telegram.ErrorThreadID = c.Telegram.ModeratorThreadID
		}
	}
	if c.Telegram.PollTimeoutSeconds <= 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
	if c.Telegram.RequestsPerSecond <= 0 {
		c.Telegram.RequestsPerSecond = 25 // Bot API allows ~30 messages/s per bot
	}
	if c.Telegram.RequestBurst <= 0 {
		c.Telegram.RequestBurst = 5
	}

	// Server validation
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	// Join request defaults
	if c.JoinRequest.LifetimeMinutes < 0 || c.JoinRequest.CheckIntervalMinutes < 0 {
		return fmt.Errorf("join request timings must not be negative")
	}
	if c.JoinRequest.LifetimeMinutes == 0 {
		c.JoinRequest.LifetimeMinutes = 1440 // 24 hours
	}
	if c.JoinRequest.CheckIntervalMinutes == 0 {
		c.JoinRequest.CheckIntervalMinutes = 15
	}
	if c.JoinRequest.PendingQuestionTimeoutMinutes <= 0 {
		c.JoinRequest.PendingQuestionTimeoutMinutes = 30
	}
	if c.JoinRequest.BanCacheSize <= 0 {
		c.JoinRequest.BanCacheSize = 10000
	}
	if c.JoinRequest.BanCacheTTLMinutes <= 0 {
		c.JoinRequest.BanCacheTTLMinutes = 60
	}

	// Scheduler defaults
	if c.Scheduler.ExpireJoinRequests == "" {
		c.Scheduler.ExpireJoinRequests = fmt.Sprintf("@every %dm", c.JoinRequest.CheckIntervalMinutes)
	}
	if c.Scheduler.RecordGauges == "" {
		c.Scheduler.RecordGauges = "0 */5 * * * *" // every 5 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the health/metrics HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Lifetime is how long a request may stay pending before the sweeper expires it.
func (c JoinRequestConfig) Lifetime() time.Duration {
	return time.Duration(c.LifetimeMinutes) * time.Minute
}

// CheckInterval is the sweeper period.
func (c JoinRequestConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

func (c JoinRequestConfig) QuestionTimeout() time.Duration {
	return time.Duration(c.PendingQuestionTimeoutMinutes) * time.Minute
}

func (c JoinRequestConfig) BanCacheTTL() time.Duration {
	return time.Duration(c.BanCacheTTLMinutes) * time.Minute
}

// PollTimeout returns the getUpdates long-poll timeout
func (c TelegramConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}
