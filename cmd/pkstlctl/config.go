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
	"fmt"
	"strings"

	"github.com/pkstl/pkstl/config"
	"github.com/pkstl/pkstl/internal/logger"
	"github.com/pkstl/pkstl/session"
)

// applyPkstlConfig loads path (if non-empty) and returns the
// session.Config it describes, having already applied its logging
// settings to the default logger as a side effect. An empty path yields
// session.DefaultConfig() unchanged.
func applyPkstlConfig(path string) (session.Config, error) {
	if path == "" {
		return session.DefaultConfig(), nil
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return session.Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if issues := config.ValidateConfiguration(cfg); len(issues) > 0 {
		for _, issue := range issues {
			if issue.Level == "error" {
				return session.Config{}, fmt.Errorf("config %s: %s: %s", path, issue.Field, issue.Message)
			}
			logger.Warn("configuration issue", logger.String("field", issue.Field), logger.String("message", issue.Message))
		}
	}

	applyLoggingConfig(cfg.Logging)
	return toSessionConfig(cfg.Session), nil
}

func applyLoggingConfig(lc *config.LoggingConfig) {
	if lc == nil {
		return
	}
	l := logger.GetDefaultLogger()
	switch strings.ToUpper(lc.Level) {
	case "DEBUG":
		l.SetLevel(logger.DebugLevel)
	case "WARN":
		l.SetLevel(logger.WarnLevel)
	case "ERROR":
		l.SetLevel(logger.ErrorLevel)
	default:
		l.SetLevel(logger.InfoLevel)
	}
	l.SetPrettyPrint(lc.PrettyPrint)
}

func toSessionConfig(sc *config.SessionConfig) session.Config {
	out := session.DefaultConfig()
	if sc == nil {
		return out
	}
	if sc.MaxOrphanNonces > 0 {
		out.MaxOrphanNonces = sc.MaxOrphanNonces
	}
	switch strings.ToLower(sc.MessageFormat) {
	case "bincode":
		out.MessageFormat = session.Bincode
	case "cbor":
		out.MessageFormat = session.Cbor
	case "json":
		out.MessageFormat = session.Utf8Json
	default:
		out.MessageFormat = session.RawBinary
	}
	return out
}
