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

// Package serde implements the §6.3 message-format contract: a 2-byte
// MessageFormat tag prepended to every user payload so a peer can decode
// it without out-of-band agreement, plus the four codecs a session may be
// configured to use (RawBinary, Bincode, Cbor, Utf8Json).
package serde

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/pkstl/pkstl/session"
)

const tagSize = 2

// Wrap prepends the 2-byte big-endian MessageFormat tag to data. The
// result is what callers pass as custom_data to the core's CONNECT
// builder and write_message.
func Wrap(format session.MessageFormat, data []byte) []byte {
	out := make([]byte, tagSize+len(data))
	binary.BigEndian.PutUint16(out, uint16(format))
	copy(out[tagSize:], data)
	return out
}

// Unwrap strips the 2-byte tag and returns it alongside the remaining
// payload. It errors if data is shorter than the tag itself.
func Unwrap(data []byte) (session.MessageFormat, []byte, error) {
	if len(data) < tagSize {
		return 0, nil, fmt.Errorf("serde: tagged payload too short: %d bytes", len(data))
	}
	format := session.MessageFormat(binary.BigEndian.Uint16(data))
	return format, data[tagSize:], nil
}

// Encode marshals v with the codec named by format and returns the
// tagged payload ready for Wrap's caller (Encode already wraps it).
func Encode(format session.MessageFormat, v any) ([]byte, error) {
	var body []byte
	var err error

	switch format {
	case session.RawBinary:
		raw, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("serde: RawBinary requires a []byte, got %T", v)
		}
		body = raw
	case session.Bincode:
		body, err = bincodeMarshal(v)
	case session.Cbor:
		body, err = cbor.Marshal(v)
	case session.Utf8Json:
		body, err = json.Marshal(v)
	default:
		return nil, fmt.Errorf("serde: unknown message format %d", format)
	}
	if err != nil {
		return nil, fmt.Errorf("serde: encode with format %d: %w", format, err)
	}

	return Wrap(format, body), nil
}

// Decode strips the tag from data, checks it matches the expected
// format, and unmarshals the remaining bytes into v.
func Decode(expected session.MessageFormat, data []byte, v any) error {
	format, body, err := Unwrap(data)
	if err != nil {
		return err
	}
	if format != expected {
		return fmt.Errorf("serde: expected format %d, payload tagged %d", expected, format)
	}

	switch format {
	case session.RawBinary:
		dst, ok := v.(*[]byte)
		if !ok {
			return fmt.Errorf("serde: RawBinary requires a *[]byte, got %T", v)
		}
		*dst = append((*dst)[:0], body...)
		return nil
	case session.Bincode:
		return bincodeUnmarshal(body, v)
	case session.Cbor:
		return cbor.Unmarshal(body, v)
	case session.Utf8Json:
		return json.Unmarshal(body, v)
	default:
		return fmt.Errorf("serde: unknown message format %d", format)
	}
}
