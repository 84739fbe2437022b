// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.


package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// DotEnvPath overrides the .env file path loaded before process env is
	// read (default: ".env"). A missing file is not an error.
	DotEnvPath string
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
		DotEnvPath:          ".env",
	}
}

// Load loads configuration with automatic environment detection. Precedence,
// lowest to highest: built-in defaults, an environment-specific or default
// YAML config file, then direct environment variable overrides
// (LISTEN_PORT, REGISTRY_URL, ...).
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	// .env is loaded first so the process-env overrides read below see
	// its values; a missing file is a no-op.
	_ = godotenv.Load(options.DotEnvPath)

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

// loadConfigFile loads a single config file
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides config with direct environment
// variables. These take precedence over both the config file and ${VAR}
// substitution within it.
func applyEnvironmentOverrides(cfg *Config) {
	gw := cfg.Gateway
	if gw == nil {
		gw = &GatewayConfig{}
		cfg.Gateway = gw
	}

	if v := os.Getenv("LISTEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			gw.ListenPort = port
		}
	}
	if v := os.Getenv("REGISTRY_URL"); v != "" {
		gw.RegistryURL = v
	}
	if v := os.Getenv("REGISTRY_BACKEND"); v != "" {
		gw.RegistryBackend = v
	}
	if v := os.Getenv("ETHEREUM_RPC_URL"); v != "" {
		gw.EthereumRPC = v
	}
	if v := os.Getenv("ETHEREUM_REGISTRY_CONTRACT"); v != "" {
		gw.EthereumContract = v
	}
	if v := os.Getenv("API_UPSTREAM_URL"); v != "" {
		gw.APIUpstreamURL = v
	}
	if v := os.Getenv("APP_UPSTREAM_URL"); v != "" {
		gw.AppUpstreamURL = v
	}
	if v := os.Getenv("CACHE_TTL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			gw.CacheTTL = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("NONCE_TTL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			gw.NonceTTL = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("CLOCK_SKEW_S"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			gw.ClockSkew = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("DEBUG"); v != "" {
		gw.Debug = v == "true" || v == "1"
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" && cfg.Logging != nil {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" && cfg.Logging != nil {
		cfg.Logging.Format = logFormat
	}
	if os.Getenv("METRICS_ENABLED") == "true" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = true
	}
	if os.Getenv("METRICS_ENABLED") == "false" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
