// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package config loads and validates pipeline configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML config file,
// and environment variable overrides (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/mandatolab/reconcilia/internal/validation"
)

// Config is the root configuration for a pipeline run.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Database DatabaseConfig `koanf:"database"`
	Votes    VotesConfig    `koanf:"votes"`
	Portal   PortalConfig   `koanf:"portal"`
	Census   CensusConfig   `koanf:"census"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path to the DuckDB database file; ":memory:" for an in-memory store.
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	// Threads for DuckDB; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads" validate:"min=0"`
}

// VotesConfig configures the electoral-results file job.
type VotesConfig struct {
	// SourcePath points at a TSE results file (semicolon-delimited).
	SourcePath string `koanf:"source_path"`
	// Delimiter between fields; TSE exports use ';'.
	Delimiter string `koanf:"delimiter" validate:"required,len=1"`
	// Encoding of the source file. TSE exports use legacy 8-bit encodings,
	// never auto-detected: latin1 or utf8.
	Encoding string `koanf:"encoding" validate:"required,oneof=latin1 utf8"`
	// State restricts the run to one UF code (e.g. "SP"); empty means all.
	State string `koanf:"state"`
	// OfficeCode filters rows by elected office (1 president, 3 governor,
	// 6 federal deputy).
	OfficeCode int `koanf:"office_code" validate:"min=0"`
	// Round filters by election round (1 or 2); 0 means both.
	Round int `koanf:"round" validate:"min=0,max=2"`
	// Year stamps the aggregates; results files do not repeat it per row.
	Year int `koanf:"year" validate:"min=0"`
	// Legend switches aggregation from nominal votes to party-list
	// (legend) votes.
	Legend bool `koanf:"legend"`
}

// PortalConfig configures the transparency-portal amendments job.
type PortalConfig struct {
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
	// APIKey is sent in the portal's static key header on every request.
	APIKey string `koanf:"api_key"`
	// Author filters amendments by the legislator who authored them.
	Author string `koanf:"author"`
	Year   int    `koanf:"year" validate:"min=0"`
	// PageCap bounds pagination against APIs that never signal completion.
	PageCap int `koanf:"page_cap" validate:"min=1"`
	// MaxRetries bounds rate-limit retries per page.
	MaxRetries int `koanf:"max_retries" validate:"min=0"`
	// RetryBaseDelay is the first backoff delay; it doubles per retry.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	Timeout        time.Duration `koanf:"timeout"`
}

// CensusConfig configures the census/demographics job.
type CensusConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetries bounds rate-limit retries per lookup.
	MaxRetries     int           `koanf:"max_retries" validate:"min=0"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.Portal.BaseURL != "" && c.Portal.APIKey == "" {
		return fmt.Errorf("portal.api_key is required when portal.base_url is set")
	}
	return nil
}
