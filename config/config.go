// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure for the gateway
// process.
type Config struct {
	Environment string         `yaml:"environment" json:"environment"`
	Gateway     *GatewayConfig `yaml:"gateway" json:"gateway"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig  `yaml:"health" json:"health"`
}

// GatewayConfig holds every setting the gate & proxy orchestrator needs:
// where to listen, where to reach the key registry (and which backend to
// use), where to forward admitted requests, and the temporal/cache tuning
// knobs.
type GatewayConfig struct {
	ListenPort       int           `yaml:"listen_port" json:"listen_port"`
	RegistryURL      string        `yaml:"registry_url" json:"registry_url"`
	RegistryBackend  string        `yaml:"registry_backend" json:"registry_backend"`
	EthereumRPC      string        `yaml:"ethereum_rpc" json:"ethereum_rpc"`
	EthereumContract string        `yaml:"ethereum_contract" json:"ethereum_contract"`
	APIUpstreamURL   string        `yaml:"api_upstream_url" json:"api_upstream_url"`
	AppUpstreamURL   string        `yaml:"app_upstream_url" json:"app_upstream_url"`
	CacheTTL         time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	NonceTTL         time.Duration `yaml:"nonce_ttl" json:"nonce_ttl"`
	ClockSkew        time.Duration `yaml:"clock_skew" json:"clock_skew"`
	Debug            bool          `yaml:"debug" json:"debug"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a file
func LoadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	// Try to parse as YAML first
	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Try JSON if YAML fails
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	// Set defaults
	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file
func SaveToFile(cfg *Config, path string) error {
	// Determine format by extension
	var data []byte
	var err error

	if len(path) >= 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Gateway == nil {
		cfg.Gateway = &GatewayConfig{}
	}
	if cfg.Gateway.ListenPort == 0 {
		cfg.Gateway.ListenPort = 3001
	}
	if cfg.Gateway.RegistryBackend == "" {
		cfg.Gateway.RegistryBackend = "http"
	}
	if cfg.Gateway.CacheTTL == 0 {
		// Seconds, not milliseconds: a busy gateway must not hammer the
		// registry on every request, and key rotation still propagates
		// fast enough at this scale.
		cfg.Gateway.CacheTTL = 5 * time.Second
	}
	if cfg.Gateway.NonceTTL == 0 {
		cfg.Gateway.NonceTTL = time.Hour
	}
	if cfg.Gateway.ClockSkew == 0 {
		cfg.Gateway.ClockSkew = 60 * time.Second
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{}
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}
