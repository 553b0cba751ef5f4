package config

import (
	"fmt"

	"github.com/danghamo/accountd/pkg/logger"
)

// Initialize loads configuration and sets up global logger.
// An empty path searches the default locations for config.yaml.
func Initialize(path string) (*Config, *logger.Logger, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg, err = Load()
	} else {
		cfg, err = LoadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.SetGlobalLogger(appLogger)

	appLogger.WithFields(map[string]interface{}{
		"environment":    cfg.Server.Environment,
		"server_port":    cfg.Server.Port,
		"redis_enabled":  cfg.Redis.Enabled,
		"events_backend": cfg.Events.Backend,
		"log_level":      cfg.Log.Level,
	}).Info("Configuration and logger initialized successfully")

	return cfg, appLogger, nil
}

// NewLogger builds a logger from the log section
func NewLogger(cfg LogConfig) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Level),
		Environment: cfg.Environment,
		Encoding:    cfg.Encoding,
		Output:      cfg.Output,
	})
}

// MustInitialize is like Initialize but panics on error
func MustInitialize(path string) (*Config, *logger.Logger) {
	cfg, appLogger, err := Initialize(path)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize application: %v", err))
	}
	return cfg, appLogger
}
