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

// Package metrics exposes Prometheus counters and histograms for the
// handshake FSM, session lifecycle and message processing in package
// session, collected under a single registry that cmd/pkstlctl's listen
// command serves when --metrics is set.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "pkstl"

// Registry is the Prometheus registry every metric in this package is
// registered against, so cmd/pkstlctl can serve exactly these metrics
// (and nothing pulled in transitively from the default global registry).
var Registry = prometheus.NewRegistry()
