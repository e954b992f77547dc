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
	"github.com/pkstl/pkstl/serde"
	"github.com/pkstl/pkstl/session"
)

// textBody is the struct bincode encodes: bincode's codec only accepts a
// struct (or pointer to struct) at the top level, unlike Cbor/Utf8Json
// which marshal a bare string directly.
type textBody struct {
	Text string
}

// encodeBody tags body with format, choosing the Go value serde expects
// for the codec in question: RawBinary codes a []byte directly, Bincode
// codes a one-field struct, and the remaining structured formats code
// the string itself.
func encodeBody(format session.MessageFormat, body string) ([]byte, error) {
	switch format {
	case session.RawBinary:
		return serde.Encode(format, []byte(body))
	case session.Bincode:
		return serde.Encode(format, textBody{Text: body})
	default:
		return serde.Encode(format, body)
	}
}

// decodeBody reverses encodeBody.
func decodeBody(format session.MessageFormat, data []byte) (string, error) {
	switch format {
	case session.RawBinary:
		var raw []byte
		if err := serde.Decode(format, data, &raw); err != nil {
			return "", err
		}
		return string(raw), nil
	case session.Bincode:
		var tb textBody
		if err := serde.Decode(format, data, &tb); err != nil {
			return "", err
		}
		return tb.Text, nil
	default:
		var s string
		if err := serde.Decode(format, data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
}
