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

package primitives

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Signer is a long-term identity keypair used to sign handshake frames.
// Unlike the ephemeral agreement key, it is owned by the caller and
// outlives any one session: package session never stores it.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// GenerateSigner creates a new Ed25519 identity keypair.
func GenerateSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// SignerFromSeed reconstructs a Signer from a 32-byte Ed25519 seed, e.g.
// one loaded from a key file.
func SignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// PublicKey returns the 32-byte Ed25519 public key.
func (s *Signer) PublicKey() [32]byte {
	var out [32]byte
	copy(out[:], s.pub)
	return out
}

// Sign signs msg with the long-term private key.
func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

// VerifySig checks an Ed25519 signature under the given 32-byte public key.
func VerifySig(pub [32]byte, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

const (
	// EphemeralPubKeySize is the wire size of an X25519 public key.
	EphemeralPubKeySize = 32
	// SigPubKeySize is the wire size of an Ed25519 public key.
	SigPubKeySize = 32
	// SignatureSize is the wire size of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
	// HashSize is the digest size of SHA-256.
	HashSize = 32
	// AEADTagSize is the ChaCha20-Poly1305 authentication tag size.
	AEADTagSize = 16
	// AEADKeySize is the ChaCha20-Poly1305 key size.
	AEADKeySize = 32
	// AEADNonceSize is the ChaCha20-Poly1305 nonce size.
	AEADNonceSize = 12
	// AEADBaseAADSize is the size of the AAD seed component before the
	// per-frame counter is appended (see DeriveKeyMaterial).
	AEADBaseAADSize = 4
)
