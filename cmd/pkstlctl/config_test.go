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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkstl/pkstl/config"
	"github.com/pkstl/pkstl/internal/logger"
	"github.com/pkstl/pkstl/session"
)

func TestApplyPkstlConfigEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := applyPkstlConfig("")
	require.NoError(t, err)
	assert.Equal(t, session.DefaultConfig(), cfg)
}

func TestApplyPkstlConfigLoadsSessionTuning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkstlctl.yaml")
	contents := "session:\n  message_format: cbor\n  max_orphan_nonces: 128\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := applyPkstlConfig(path)
	require.NoError(t, err)
	assert.Equal(t, session.Cbor, cfg.MessageFormat)
	assert.Equal(t, 128, cfg.MaxOrphanNonces)
	assert.Equal(t, logger.DebugLevel, logger.GetDefaultLogger().GetLevel())
}

func TestApplyPkstlConfigRejectsBadEncryptAlgo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkstlctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  encrypt_algo: aes-gcm\n"), 0o600))

	_, err := applyPkstlConfig(path)
	assert.Error(t, err)
}

func TestApplyPkstlConfigMissingFile(t *testing.T) {
	_, err := applyPkstlConfig("/nonexistent/pkstlctl.yaml")
	assert.Error(t, err)
}

func TestToSessionConfigNilUsesDefaults(t *testing.T) {
	assert.Equal(t, session.DefaultConfig(), toSessionConfig(nil))
}

func TestToSessionConfigMapsEachMessageFormat(t *testing.T) {
	cases := map[string]session.MessageFormat{
		"bincode": session.Bincode,
		"cbor":    session.Cbor,
		"json":    session.Utf8Json,
		"raw":     session.RawBinary,
		"":        session.RawBinary,
	}
	for name, want := range cases {
		got := toSessionConfig(&config.SessionConfig{MessageFormat: name})
		assert.Equal(t, want, got.MessageFormat, "format %q", name)
	}
}

func TestApplyLoggingConfigNilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { applyLoggingConfig(nil) })
}
