package secrets

import (
	"context"
	"fmt"
)

// Config defines the configuration for secret resolution. The engine only
// requires an env-backed resolver; richer backends (Vault, cloud secret
// stores) are a concern of the deployment, not this module.
type Config struct {
	Type string    `yaml:"type" json:"type"` // env
	Env  EnvConfig `yaml:"env" json:"env"`
}

type EnvConfig struct {
	Prefix string `yaml:"prefix" json:"prefix"`
}

// NewManager creates a secret manager based on the provided configuration.
func NewManager(ctx context.Context, cfg Config) (Manager, error) {
	switch cfg.Type {
	case "", "env":
		return &EnvManager{Prefix: cfg.Env.Prefix}, nil
	default:
		return nil, fmt.Errorf("unsupported secret manager type: %s", cfg.Type)
	}
}
