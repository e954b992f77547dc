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

package wire

import (
	"encoding/binary"

	"github.com/pkstl/pkstl/perr"
)

// MsgType is the 2-byte type tag of an encapsulated message.
type MsgType uint16

// Message type codes, per spec.md §6.1.
const (
	MsgUser    MsgType = 0x0000
	MsgConnect MsgType = 0x0001
	MsgAck     MsgType = 0x0002
)

// SigAlgo identifies a signature algorithm. Only Ed25519 is defined; the
// tag exists so a future algorithm could be added without changing the
// frame layout.
type SigAlgo uint16

// SigAlgoEd25519 is the only signature algorithm defined today.
const SigAlgoEd25519 SigAlgo = 0x0001

// Fixed sizes of the pieces that make up an encapsulated message, per
// spec.md §3.2's table.
const (
	typeSize       = 2
	ephPKSize      = 32
	sigAlgoSize    = 2
	sigPKSize      = 32 // Ed25519 public key; the only sig-algo today
	challengeSize  = 32 // SHA-256 digest
	nonceSize      = 8
	signatureSize  = 64 // Ed25519 signature
	hashSize       = 32 // SHA-256 digest
	connectHeaderSize = ephPKSize + sigAlgoSize + sigPKSize
	ackHeaderSize     = challengeSize
	userHeaderSize    = nonceSize
)

// ConnectParts is a parsed CONNECT encapsulation, with offsets into the
// original buffer for the body (custom data) and the signed region.
type ConnectParts struct {
	PeerEphPK [32]byte
	SigAlgo   SigAlgo
	SigPK     [32]byte
	Body      []byte // custom data, may be empty
	Signature []byte // trailer, 64 bytes
	SignedRegion []byte // everything except the signature trailer
}

// ConnectHeaderSize, AckHeaderSize, UserHeaderSize and SignatureSize
// exported for callers that need to pre-size buffers.
const (
	ConnectHeaderSize = connectHeaderSize
	AckHeaderSize     = ackHeaderSize
	UserHeaderSize    = userHeaderSize
	SignatureSize     = signatureSize
	HashTrailerSize   = hashSize
	TypeSize          = typeSize
)

// BuildConnect assembles an unsigned CONNECT encapsulation:
// TYPE || peerEphPK || sigAlgo || sigPK || body. The caller signs the
// result and appends the signature to get the final wire bytes.
func BuildConnect(peerEphPK [32]byte, sigAlgo SigAlgo, sigPK [32]byte, body []byte) []byte {
	out := make([]byte, typeSize+connectHeaderSize+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(MsgConnect))
	copy(out[2:34], peerEphPK[:])
	binary.BigEndian.PutUint16(out[34:36], uint16(sigAlgo))
	copy(out[36:68], sigPK[:])
	copy(out[68:], body)
	return out
}

// BuildAck assembles an unsigned ACK encapsulation:
// TYPE || challenge || body.
func BuildAck(challenge [32]byte, body []byte) []byte {
	out := make([]byte, typeSize+ackHeaderSize+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(MsgAck))
	copy(out[2:34], challenge[:])
	copy(out[34:], body)
	return out
}

// BuildUser assembles a USER_MSG encapsulation without its trailer:
// TYPE || nonce || body.
func BuildUser(nonce uint64, body []byte) []byte {
	out := make([]byte, typeSize+userHeaderSize+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(MsgUser))
	binary.BigEndian.PutUint64(out[2:10], nonce)
	copy(out[10:], body)
	return out
}

// PeekType returns the message type tag without validating the rest of
// the encapsulation.
func PeekType(plaintext []byte) (MsgType, error) {
	if len(plaintext) < typeSize {
		return 0, perr.ErrMessageTooShort
	}
	return MsgType(binary.BigEndian.Uint16(plaintext[0:2])), nil
}

// ParseConnect splits a CONNECT encapsulation (without its trailer
// stripped by the caller) into its fields. signedRegion is
// plaintext[:len(plaintext)-64], the bytes the signature covers once the
// caller prepends the relevant frame header bytes.
func ParseConnect(plaintext []byte) (*ConnectParts, error) {
	if len(plaintext) < typeSize+connectHeaderSize+signatureSize {
		return nil, perr.ErrMessageTooShort
	}
	t := MsgType(binary.BigEndian.Uint16(plaintext[0:2]))
	if t != MsgConnect {
		return nil, perr.ErrUnexpectedMessage
	}
	p := &ConnectParts{}
	copy(p.PeerEphPK[:], plaintext[2:34])
	p.SigAlgo = SigAlgo(binary.BigEndian.Uint16(plaintext[34:36]))
	copy(p.SigPK[:], plaintext[36:68])
	sigStart := len(plaintext) - signatureSize
	p.Body = plaintext[68:sigStart]
	p.Signature = plaintext[sigStart:]
	p.SignedRegion = plaintext[:sigStart]
	return p, nil
}

// AckParts is a parsed ACK encapsulation.
type AckParts struct {
	Challenge    [32]byte
	Body         []byte
	Signature    []byte
	SignedRegion []byte
}

// ParseAck splits an ACK encapsulation into its fields.
func ParseAck(plaintext []byte) (*AckParts, error) {
	if len(plaintext) < typeSize+ackHeaderSize+signatureSize {
		return nil, perr.ErrMessageTooShort
	}
	t := MsgType(binary.BigEndian.Uint16(plaintext[0:2]))
	if t != MsgAck {
		return nil, perr.ErrUnexpectedMessage
	}
	p := &AckParts{}
	copy(p.Challenge[:], plaintext[2:34])
	sigStart := len(plaintext) - signatureSize
	p.Body = plaintext[34:sigStart]
	p.Signature = plaintext[sigStart:]
	p.SignedRegion = plaintext[:sigStart]
	return p, nil
}

// UserParts is a parsed USER_MSG encapsulation.
type UserParts struct {
	Nonce        uint64
	Body         []byte
	Hash         [32]byte
	HashedRegion []byte
}

// ParseUser splits a USER_MSG encapsulation into its fields.
func ParseUser(plaintext []byte) (*UserParts, error) {
	if len(plaintext) < typeSize+userHeaderSize+hashSize {
		return nil, perr.ErrMessageTooShort
	}
	t := MsgType(binary.BigEndian.Uint16(plaintext[0:2]))
	if t != MsgUser {
		return nil, perr.ErrUnexpectedMessage
	}
	p := &UserParts{}
	p.Nonce = binary.BigEndian.Uint64(plaintext[2:10])
	hashStart := len(plaintext) - hashSize
	p.Body = plaintext[10:hashStart]
	copy(p.Hash[:], plaintext[hashStart:])
	p.HashedRegion = plaintext[:hashStart]
	return p, nil
}

// AppendTrailer returns unsigned || trailer, used to finish assembling a
// CONNECT/ACK (trailer = signature) or USER_MSG (trailer = hash).
func AppendTrailer(unsigned, trailer []byte) []byte {
	out := make([]byte, len(unsigned)+len(trailer))
	copy(out, unsigned)
	copy(out[len(unsigned):], trailer)
	return out
}
