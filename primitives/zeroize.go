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

// Package primitives is the C1 crypto primitives adapter: a uniform,
// narrow interface over ephemeral key agreement, AEAD, hashing and
// signature verification. It never makes protocol decisions; callers in
// package session own the handshake semantics.
package primitives

// Zeroize overwrites b with zeros in place. It is called on the raw
// shared secret, the HKDF output and KeyMaterial's fields; the ephemeral
// private key and the long-term signing key are not passed through it.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
