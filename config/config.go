// Copyright (C) 2025 pkstl-project
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

// Package config is cmd/pkstlctl's YAML-backed configuration layer: it
// covers session tuning, the signing key file location, and the ambient
// logging/metrics stack. It never reaches into package session directly —
// the CLI translates a loaded Config into a session.Config itself.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of a pkstlctl YAML/JSON config file.
type Config struct {
	Environment string            `yaml:"environment" json:"environment"`
	Session     *SessionConfig    `yaml:"session" json:"session"`
	SigningKey  *SigningKeyConfig `yaml:"signing_key" json:"signing_key"`
	Logging     *LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// SessionConfig mirrors package session's Config, in a form a human can
// write by hand in YAML.
type SessionConfig struct {
	EncryptAlgo     string        `yaml:"encrypt_algo" json:"encrypt_algo"`         // chacha20poly1305
	MessageFormat   string        `yaml:"message_format" json:"message_format"`     // raw, bincode, cbor, json
	MaxOrphanNonces int           `yaml:"max_orphan_nonces" json:"max_orphan_nonces"`
	DialTimeout     time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// SigningKeyConfig locates the long-term Ed25519 identity key used to
// sign CONNECT/ACK frames.
type SigningKeyConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig configures the internal/logger default logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format      string `yaml:"format" json:"format"` // json, pretty
	Output      string `yaml:"output" json:"output"` // stdout, stderr, file path
	PrettyPrint bool   `yaml:"pretty_print" json:"pretty_print"`
}

// MetricsConfig configures the internal/metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a YAML file and applies
// defaults for anything left unset.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile serializes cfg as YAML and writes it to path.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Session == nil {
		cfg.Session = &SessionConfig{}
	}
	if cfg.Session.EncryptAlgo == "" {
		cfg.Session.EncryptAlgo = "chacha20poly1305"
	}
	if cfg.Session.MessageFormat == "" {
		cfg.Session.MessageFormat = "raw"
	}
	if cfg.Session.MaxOrphanNonces == 0 {
		cfg.Session.MaxOrphanNonces = 64
	}
	if cfg.Session.DialTimeout == 0 {
		cfg.Session.DialTimeout = 10 * time.Second
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
}

// ValidationIssue is one problem found by ValidateConfiguration.
// Level is either "error" (the config cannot be used as-is) or
// "warning" (usable, but worth surfacing).
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks cfg for problems a human-edited file is
// likely to introduce. It returns every issue found rather than failing
// on the first one.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Session != nil {
		switch strings.ToLower(cfg.Session.EncryptAlgo) {
		case "chacha20poly1305":
		default:
			issues = append(issues, ValidationIssue{
				Field:   "session.encrypt_algo",
				Message: fmt.Sprintf("unsupported encrypt_algo %q", cfg.Session.EncryptAlgo),
				Level:   "error",
			})
		}
		switch strings.ToLower(cfg.Session.MessageFormat) {
		case "raw", "bincode", "cbor", "json":
		default:
			issues = append(issues, ValidationIssue{
				Field:   "session.message_format",
				Message: fmt.Sprintf("unsupported message_format %q", cfg.Session.MessageFormat),
				Level:   "error",
			})
		}
		if cfg.Session.MaxOrphanNonces <= 0 {
			issues = append(issues, ValidationIssue{
				Field:   "session.max_orphan_nonces",
				Message: "must be greater than zero",
				Level:   "error",
			})
		}
	}

	if cfg.SigningKey != nil && cfg.SigningKey.Path == "" {
		issues = append(issues, ValidationIssue{
			Field:   "signing_key.path",
			Message: "signing_key block present but path is empty",
			Level:   "warning",
		})
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		issues = append(issues, ValidationIssue{
			Field:   "metrics.addr",
			Message: "metrics enabled but no addr configured",
			Level:   "warning",
		})
	}

	return issues
}
