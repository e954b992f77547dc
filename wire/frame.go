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

// Package wire is the C2 wire codec: it encodes and decodes the outer
// frame layout and validates magic/version/length. It never looks inside
// the encapsulated message — that is package session's job.
package wire

import (
	"encoding/binary"

	"github.com/pkstl/pkstl/perr"
)

// Magic is the 4-byte prefix that identifies PKSTL traffic on the wire.
var Magic = [4]byte{'P', 'K', 'S', 'T'}

// CurrentVersion is the 2-byte protocol version this codec emits and the
// only version it accepts on read.
const CurrentVersion uint16 = 1

// TagSize is the AEAD authentication tag size appended after the
// ciphertext on keyed frames. Unkeyed (pre-key) frames carry no tag at
// all — see Decode.
const TagSize = 16

// CounterSize is the width of the cleartext frame counter carried on
// keyed frames (see Encode).
const CounterSize = 8

const baseHeaderSize = 4 + 2 + 8 // magic + version + length prefix

// SigningPrefix returns the fixed-size portion of the outer frame header
// (magic || version) that CONNECT/ACK signatures and USER_MSG hashes are
// computed over in place of the full frame header. The full header cannot
// be included verbatim because its length field depends on the
// encapsulation's final size, which is not yet known before the
// signature/hash that the length field's own payload must cover.
func SigningPrefix() []byte {
	p := make([]byte, 6)
	copy(p[0:4], Magic[:])
	binary.BigEndian.PutUint16(p[4:6], CurrentVersion)
	return p
}

// Encode serializes body into an outer frame. When keyed is true, body
// must be the full AEAD output (ciphertext || 16-byte tag), counter is
// written in the clear right after the length prefix, and the length
// prefix records the ciphertext length only, per spec.md §3.2. Carrying
// the AEAD counter in cleartext (rather than only implicitly, by arrival
// order) is what lets a receiver open an out-of-order frame without
// having decrypted anything yet — see DESIGN.md's discussion of the
// Open Question 1 resolution. When keyed is false, body is plaintext,
// counter is ignored, and the frame carries no tag or counter region at
// all (Open Question 2, resolved in SPEC_FULL.md).
func Encode(keyed bool, counter uint64, body []byte) []byte {
	ctLen := len(body)
	if keyed {
		ctLen -= TagSize
	}
	extra := 0
	if keyed {
		extra = CounterSize
	}
	out := make([]byte, baseHeaderSize+extra+len(body))
	copy(out[0:4], Magic[:])
	binary.BigEndian.PutUint16(out[4:6], CurrentVersion)
	binary.BigEndian.PutUint64(out[6:14], uint64(ctLen))
	if keyed {
		binary.BigEndian.PutUint64(out[14:22], counter)
	}
	copy(out[baseHeaderSize+extra:], body)
	return out
}

// Decode parses one outer frame from buf. When keyed is true it expects a
// cleartext counter field followed by ciphertext||16-byte tag; when false
// it expects a bare plaintext body and counter is always 0. Returns the
// body (ciphertext||tag, or plaintext), the counter, and the number of
// bytes of buf consumed.
func Decode(buf []byte, keyed bool) (body []byte, counter uint64, consumed int, err error) {
	if len(buf) < baseHeaderSize {
		return nil, 0, 0, perr.ErrMessageTooShort
	}
	if string(buf[0:4]) != string(Magic[:]) {
		return nil, 0, 0, perr.ErrInvalidMagicValue
	}
	version := binary.BigEndian.Uint16(buf[4:6])
	if version != CurrentVersion {
		return nil, 0, 0, perr.ErrUnsupportedVersion
	}
	ctLen := binary.BigEndian.Uint64(buf[6:14])

	headerSize := baseHeaderSize
	if keyed {
		headerSize += CounterSize
	}
	if len(buf) < headerSize {
		return nil, 0, 0, perr.ErrMessageTooShort
	}
	if keyed {
		counter = binary.BigEndian.Uint64(buf[14:22])
	}

	bodyLen := ctLen
	if keyed {
		bodyLen += TagSize
	}
	// Guard against a hostile length prefix before it drives an allocation.
	if bodyLen > uint64(len(buf)) {
		return nil, 0, 0, perr.ErrInvalidLength
	}
	end := headerSize + int(bodyLen)
	if end > len(buf) {
		return nil, 0, 0, perr.ErrInvalidLength
	}
	body = buf[headerSize:end]
	return body, counter, end, nil
}
