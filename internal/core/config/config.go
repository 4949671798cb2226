package config

import (
	redisclient "github.com/mjones3/exception-collector/internal/infra/redis"
	"github.com/mjones3/exception-collector/internal/infra/storage/postgres"
	"github.com/mjones3/exception-collector/internal/lifecycle/bridge"
	"github.com/mjones3/exception-collector/internal/lifecycle/mutation"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig          `yaml:"server"`
	Logging  LoggingConfig         `yaml:"logging"`
	Database postgres.Config       `yaml:"database"`
	Redis    redisclient.Config    `yaml:"redis"`
	Mutation mutation.PolicyConfig `yaml:"mutation"`
	Bridge   bridge.Config         `yaml:"bridge"`
	Storage  StorageConfig         `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects the backing store.
type StorageConfig struct {
	Backend string `yaml:"backend"` // postgres, memory
}
