package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/mjones3/exception-collector/internal/lifecycle/mutation"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "postgres"
	}

	def := mutation.DefaultPolicyConfig
	if cfg.Mutation.MaxAttempts == 0 {
		cfg.Mutation.MaxAttempts = def.MaxAttempts
	}
	if cfg.Mutation.InitialDelay == 0 {
		cfg.Mutation.InitialDelay = def.InitialDelay
	}
	if cfg.Mutation.MaxDelay == 0 {
		cfg.Mutation.MaxDelay = def.MaxDelay
	}
	if cfg.Mutation.BackoffMultiple == 0 {
		cfg.Mutation.BackoffMultiple = def.BackoffMultiple
	}
	if cfg.Mutation.Timeout == 0 {
		cfg.Mutation.Timeout = def.Timeout
	}
	if cfg.Mutation.BreakerThreshold == 0 {
		cfg.Mutation.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.Mutation.BreakerCooldown == 0 {
		cfg.Mutation.BreakerCooldown = def.BreakerCooldown
	}
}
