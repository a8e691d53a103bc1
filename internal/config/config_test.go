// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Votes.Delimiter != ";" {
		t.Errorf("Votes.Delimiter = %q, want \";\"", cfg.Votes.Delimiter)
	}
	if cfg.Votes.Encoding != "latin1" {
		t.Errorf("Votes.Encoding = %q, want latin1", cfg.Votes.Encoding)
	}
	if cfg.Portal.PageCap != 500 {
		t.Errorf("Portal.PageCap = %d, want 500", cfg.Portal.PageCap)
	}
	if cfg.Portal.MaxRetries != 5 {
		t.Errorf("Portal.MaxRetries = %d, want 5", cfg.Portal.MaxRetries)
	}
	if cfg.Portal.RetryBaseDelay != time.Second {
		t.Errorf("Portal.RetryBaseDelay = %v, want 1s", cfg.Portal.RetryBaseDelay)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")
	t.Setenv("RECONCILIA_VOTES_STATE", "SP")
	t.Setenv("RECONCILIA_LOGGING_LEVEL", "debug")
	t.Setenv("RECONCILIA_DATABASE_PATH", ":memory:")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Votes.State != "SP" {
		t.Errorf("Votes.State = %q, want SP", cfg.Votes.State)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q, want :memory:", cfg.Database.Path)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("votes:\n  state: MG\n  office_code: 6\n  year: 2022\nportal:\n  base_url: https://api.example.gov\n  api_key: test-key\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Votes.State != "MG" {
		t.Errorf("Votes.State = %q, want MG", cfg.Votes.State)
	}
	if cfg.Votes.OfficeCode != 6 {
		t.Errorf("Votes.OfficeCode = %d, want 6", cfg.Votes.OfficeCode)
	}
	if cfg.Portal.APIKey != "test-key" {
		t.Errorf("Portal.APIKey = %q, want test-key", cfg.Portal.APIKey)
	}
	// Untouched sections keep their defaults.
	if cfg.Votes.Delimiter != ";" {
		t.Errorf("Votes.Delimiter = %q, want \";\"", cfg.Votes.Delimiter)
	}
}

func TestValidate(t *testing.T) {
	t.Run("portal key required with base URL", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Portal.BaseURL = "https://api.example.gov"
		cfg.Portal.APIKey = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for missing portal.api_key")
		}
	})

	t.Run("rejects unknown encoding", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Votes.Encoding = "utf16"
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for votes.encoding")
		}
	})

	t.Run("rejects round above two", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Votes.Round = 3
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for votes.round")
		}
	})

	t.Run("defaults validate clean", func(t *testing.T) {
		if err := defaultConfig().Validate(); err != nil {
			t.Errorf("default config invalid: %v", err)
		}
	})
}

func TestEnvTransform(t *testing.T) {
	tests := []struct{ in, want string }{
		{"RECONCILIA_PORTAL_API_KEY", "portal.api_key"},
		{"RECONCILIA_VOTES_SOURCE_PATH", "votes.source_path"},
		{"RECONCILIA_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
