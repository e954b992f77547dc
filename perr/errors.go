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

// Package perr defines the closed taxonomy of PKSTL error kinds, grouped
// by origin exactly as spec.md §7 lists them. Every kind is a sentinel so
// callers compare with errors.Is rather than parsing error strings.
package perr

import "errors"

// Wire/framing errors (from the C2 codec).
var (
	ErrMessageTooShort  = errors.New("pkstl: message too short")
	ErrInvalidMagicValue = errors.New("pkstl: invalid magic value")
	ErrUnsupportedVersion = errors.New("pkstl: unsupported protocol version")
	ErrInvalidLength    = errors.New("pkstl: declared length inconsistent with buffer")
)

// Crypto errors (from the C1 adapter, surfaced through C2/C3).
var (
	ErrFailToDecryptData   = errors.New("pkstl: failed to decrypt data")
	ErrFailToEncryptData   = errors.New("pkstl: failed to encrypt data")
	ErrInvalidHashOrSig    = errors.New("pkstl: invalid hash or signature")
	ErrFailToGenSigKeyPair = errors.New("pkstl: failed to generate signing keypair")
)

// Protocol/state errors (from the C3 status machine).
var (
	ErrUnexpectedMessage        = errors.New("pkstl: unexpected message for current status")
	ErrUnexpectedConnectMsg     = errors.New("pkstl: unexpected CONNECT message")
	ErrUnexpectedAckMsg         = errors.New("pkstl: unexpected ACK message")
	ErrConnectMsgAlreadyWritten = errors.New("pkstl: CONNECT message already written")
	ErrForbidWriteAckMsgNow     = errors.New("pkstl: writing ACK is not allowed in current status")
	ErrNegoMustHaveBeenSuccessful = errors.New("pkstl: negotiation must have completed successfully")
	ErrForbidChangeConfAfterClone = errors.New("pkstl: configuration is frozen after clone")
	ErrUnexpectedRemoteSigPubKey  = errors.New("pkstl: peer signing key does not match pinned value")
)

// Anti-replay errors (from the C4 nonce window).
var (
	ErrInvalidNonce         = errors.New("pkstl: invalid nonce (replay or below floor)")
	ErrInvalidChallenge     = errors.New("pkstl: invalid ACK challenge")
	ErrTooManyUnorderedMsgs = errors.New("pkstl: too many unordered messages")
)

// Buffer/IO errors (raised by callers' writers, wrapped by C5).
var (
	ErrWriteError        = errors.New("pkstl: write error")
	ErrBufferFlushError  = errors.New("pkstl: buffer flush error")
)
