// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reconcilia/config.yaml",
	"/etc/reconcilia/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "RECONCILIA_CONFIG"

// envPrefix namespaces the pipeline's environment variables.
const envPrefix = "RECONCILIA_"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/reconcilia.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Votes: VotesConfig{
			Delimiter:  ";",
			Encoding:   "latin1", // TSE exports are legacy 8-bit encoded
			State:      "",
			OfficeCode: 0,
			Round:      0,
			Year:       0,
			Legend:     false,
		},
		Portal: PortalConfig{
			BaseURL:        "",
			APIKey:         "",
			Author:         "",
			Year:           0,
			PageCap:        500,
			MaxRetries:     5,
			RetryBaseDelay: 1 * time.Second,
			Timeout:        30 * time.Second,
		},
		Census: CensusConfig{
			BaseURL:        "https://servicodados.ibge.gov.br",
			Timeout:        30 * time.Second,
			MaxRetries:     5,
			RetryBaseDelay: 1 * time.Second,
		},
	}
}

// Load builds configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML (if found)
//  3. Environment variables: override any setting
//
// Environment variable names map to koanf paths with the RECONCILIA_
// prefix stripped and the first underscore becoming a dot:
// RECONCILIA_PORTAL_API_KEY -> portal.api_key.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps an environment variable name to a koanf path.
// RECONCILIA_VOTES_SOURCE_PATH -> votes.source_path
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	// Only the first underscore separates section from key; the rest stay
	// as-is because keys themselves use snake_case.
	return strings.Replace(s, "_", ".", 1)
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
