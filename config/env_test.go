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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVarsWithDefault(t *testing.T) {
	t.Setenv("PKSTL_TEST_VAR", "")
	assert.Equal(t, "fallback", SubstituteEnvVars("${PKSTL_TEST_VAR:fallback}"))
}

func TestSubstituteEnvVarsWithValue(t *testing.T) {
	t.Setenv("PKSTL_TEST_VAR", "actual")
	assert.Equal(t, "actual", SubstituteEnvVars("${PKSTL_TEST_VAR:fallback}"))
}

func TestSubstituteEnvVarsInConfig(t *testing.T) {
	t.Setenv("PKSTL_TEST_KEY_DIR", "/run/keys")

	cfg := &Config{
		SigningKey: &SigningKeyConfig{Path: "${PKSTL_TEST_KEY_DIR}/id.key"},
		Logging:    &LoggingConfig{Level: "${PKSTL_TEST_LEVEL:info}"},
		Metrics:    &MetricsConfig{Addr: "${PKSTL_TEST_METRICS_ADDR::9090}"},
	}
	SubstituteEnvVarsInConfig(cfg)

	assert.Equal(t, "/run/keys/id.key", cfg.SigningKey.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestGetEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv("PKSTL_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())
}

func TestGetEnvironmentPrefersPkstlEnv(t *testing.T) {
	t.Setenv("PKSTL_ENV", "Production")
	t.Setenv("ENVIRONMENT", "staging")
	assert.Equal(t, "production", GetEnvironment())
}

func TestIsProductionAndIsDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")

	t.Setenv("PKSTL_ENV", "production")
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())

	t.Setenv("PKSTL_ENV", "local")
	assert.False(t, IsProduction())
	assert.True(t, IsDevelopment())
}
