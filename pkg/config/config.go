package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Session SessionConfig `mapstructure:"session"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	HealthCheckPath string        `mapstructure:"health_check_path"`
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	Private   bool   `mapstructure:"private"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTIssuer     string        `mapstructure:"jwt_issuer"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
}

// SessionConfig holds account session configuration
type SessionConfig struct {
	FilesRoot      string `mapstructure:"files_root"`
	FallbackName   string `mapstructure:"fallback_name"`
	RestoreOnStart bool   `mapstructure:"restore_on_start"`
}

// EventsConfig holds event bus configuration
type EventsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Backend       string `mapstructure:"backend"`
	TopicPrefix   string `mapstructure:"topic_prefix"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
	Encoding    string `mapstructure:"encoding"`
	Output      string `mapstructure:"output"`
}

// Load loads configuration from config.yaml (optional), environment variables and defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/accountd")

	return load(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// SERVER_PORT overrides server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s") // SSE streams stay open
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.rate_limit_rps", 10)
	v.SetDefault("server.rate_limit_burst", 50)
	v.SetDefault("server.health_check_path", "/health")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.private", false)
	v.SetDefault("redis.key_prefix", "accountd:")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "dev-jwt-secret-change-in-production")
	v.SetDefault("auth.jwt_issuer", "accountd")
	v.SetDefault("auth.jwt_expiration", "24h")

	// Session defaults
	v.SetDefault("session.files_root", "./data")
	v.SetDefault("session.fallback_name", "stub")
	v.SetDefault("session.restore_on_start", true)

	// Events defaults
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.backend", "gochannel")
	v.SetDefault("events.topic_prefix", "accountd-events")
	v.SetDefault("events.consumer_group", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.output", "stdout")
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if cfg.Server.RateLimitRPS <= 0 || cfg.Server.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}

	if cfg.Redis.Enabled && cfg.Redis.URL == "" {
		return fmt.Errorf("redis url cannot be empty when redis is enabled")
	}

	if len(cfg.Auth.JWTSecret) < 8 {
		return fmt.Errorf("JWT secret must be at least 8 characters long")
	}

	if cfg.Auth.JWTIssuer == "" {
		return fmt.Errorf("JWT issuer cannot be empty")
	}

	if cfg.Auth.JWTExpiration < time.Minute {
		return fmt.Errorf("JWT expiration must be at least 1 minute")
	}

	if cfg.Session.FilesRoot == "" {
		return fmt.Errorf("session files root cannot be empty")
	}

	if cfg.Events.Enabled {
		validBackends := []string{"gochannel", "redisstream"}
		if !contains(validBackends, cfg.Events.Backend) {
			return fmt.Errorf("invalid events backend: %s", cfg.Events.Backend)
		}
		if strings.EqualFold(cfg.Events.Backend, "redisstream") && !cfg.Redis.Enabled {
			return fmt.Errorf("redisstream events backend requires redis.enabled")
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, cfg.Log.Encoding) {
		return fmt.Errorf("invalid log encoding: %s", cfg.Log.Encoding)
	}

	return nil
}

// GetServerAddr returns the server address in host:port format
func (s *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction returns true if the environment is production
func (s *ServerConfig) IsProduction() bool {
	return strings.ToLower(s.Environment) == "production"
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
