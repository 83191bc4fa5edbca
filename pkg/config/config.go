// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/breakwater/breakwater/pkg/types"
)

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from a file
func (m *Manager) LoadConfig(path string) (*types.BreakwaterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.BreakwaterConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	// Try YAML
	cfg = types.BreakwaterConfig{}
	if err := yaml.Unmarshal(data, &cfg); err == nil && cfg.Version != "" {
		return m.validateConfig(&cfg)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// LoadOrDefault loads the config file, falling back to defaults when
// the file does not exist.
func (m *Manager) LoadOrDefault(path string) (*types.BreakwaterConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return m.GetDefaultConfig(), nil
	}
	return m.LoadConfig(path)
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(config *types.BreakwaterConfig) error {
	// Check version
	if config.Version != "1.0" {
		return fmt.Errorf("unsupported config version: %s", config.Version)
	}

	if exec := config.Execution; exec != nil {
		if exec.MaxParallel != nil && *exec.MaxParallel < 1 {
			return fmt.Errorf("maxParallel must be at least 1, got %d", *exec.MaxParallel)
		}
		if exec.StepTimeout != nil && *exec.StepTimeout < 0 {
			return fmt.Errorf("stepTimeout must not be negative, got %d", *exec.StepTimeout)
		}
		switch exec.CancelPolicy {
		case "", types.CancelPolicyFinishRunning, types.CancelPolicyCancelWave:
		default:
			return fmt.Errorf("invalid cancel policy: %s", exec.CancelPolicy)
		}
	}

	if logging := config.Logging; logging != nil {
		switch logging.Level {
		case "", types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
		default:
			return fmt.Errorf("invalid log level: %s", logging.Level)
		}
	}

	return nil
}

// SaveConfig writes a configuration as YAML.
func (m *Manager) SaveConfig(path string, config *types.BreakwaterConfig) error {
	if err := m.ValidateConfig(config); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetDefaultConfig returns the default configuration
func (m *Manager) GetDefaultConfig() *types.BreakwaterConfig {
	enabled := true
	maxParallel := 4

	return &types.BreakwaterConfig{
		Version: "1.0",
		Execution: &types.ExecutionConfig{
			MaxParallel:  &maxParallel,
			CancelPolicy: types.CancelPolicyFinishRunning,
		},
		Safety: &types.SafetyConfig{},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
		Logging: &types.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
}

// Private methods

func (m *Manager) validateConfig(cfg *types.BreakwaterConfig) (*types.BreakwaterConfig, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
