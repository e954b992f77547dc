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
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// EphemeralKeyPair is an X25519 key-agreement keypair. It is generated
// fresh per session and consumed the moment DeriveShared runs: the
// reference to the private key is dropped, but its bytes are not
// overwritten in place.
type EphemeralKeyPair struct {
	priv *ecdh.PrivateKey
	pub  [32]byte
}

// GenerateEphemeral creates a new X25519 keypair for key agreement.
func GenerateEphemeral() (*EphemeralKeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral: %w", err)
	}
	kp := &EphemeralKeyPair{priv: priv}
	copy(kp.pub[:], priv.PublicKey().Bytes())
	return kp, nil
}

// PublicKey returns the 32-byte ephemeral public key to place on the wire.
func (kp *EphemeralKeyPair) PublicKey() [32]byte {
	return kp.pub
}

// DeriveShared computes the raw X25519 shared secret with peerPub and then
// drops the local private key (without overwriting its bytes): an
// ephemeral keypair is consumed by exactly one derivation.
func (kp *EphemeralKeyPair) DeriveShared(peerPub [32]byte) ([]byte, error) {
	if kp.priv == nil {
		return nil, fmt.Errorf("ephemeral key already consumed")
	}
	peer, err := ecdh.X25519().NewPublicKey(peerPub[:])
	if err != nil {
		return nil, fmt.Errorf("invalid peer ephemeral key: %w", err)
	}
	shared, err := kp.priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	kp.consume()
	return shared, nil
}

// consume drops the reference to the private key. Safe to call more than
// once.
func (kp *EphemeralKeyPair) consume() {
	kp.priv = nil
}
