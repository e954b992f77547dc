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
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/pkstl/pkstl/perr"
)

// KeyMaterial is the 48-byte HKDF expansion of a session's shared secret,
// split as: bytes 0..32 = key, 32..40 = base nonce, 40..44 = base AAD;
// bytes 44..48 are not used.
type KeyMaterial struct {
	Key      [AEADKeySize]byte
	BaseNonce [AEADNonceSize - 4]byte // 8 bytes; the low 4 bytes of the 12-byte nonce carry the frame counter
	BaseAAD  [AEADBaseAADSize]byte
}

// DeriveKeyMaterial expands sharedSecret into key/nonce/aad material via
// HKDF-SHA256, using sessionSalt (typically the concatenation of both
// ephemeral public keys) to bind the expansion to this session.
//
// The original design reused this single (key, nonce, aad) triple for
// every frame in a session, which is catastrophic for ChaCha20-Poly1305
// under key reuse. This adapter instead folds a per-direction frame
// counter into both the nonce and the AAD (see Seal/Open below), so the
// 48-byte expansion only ever supplies a *base* that every frame perturbs.
func DeriveKeyMaterial(sharedSecret, sessionSalt []byte) (*KeyMaterial, error) {
	h := hkdf.New(sha256.New, sharedSecret, sessionSalt, []byte("pkstl session v1"))
	buf := make([]byte, 48)
	if _, err := io.ReadFull(h, buf); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	defer Zeroize(buf)

	km := &KeyMaterial{}
	copy(km.Key[:], buf[0:32])
	copy(km.BaseNonce[:], buf[32:40])
	copy(km.BaseAAD[:], buf[40:44])
	return km, nil
}

// Zero overwrites every field of km.
func (km *KeyMaterial) Zero() {
	Zeroize(km.Key[:])
	Zeroize(km.BaseNonce[:])
	Zeroize(km.BaseAAD[:])
}

// frameNonce composes the 12-byte nonce actually passed to the AEAD for a
// given frame counter: the 8-byte base nonce half, followed by the low 32
// bits of the counter, big-endian. Distinct counters below 2^32 give
// distinct nonces; counters that differ only above bit 31 give the same
// nonce. Package session keeps the two directions apart under one
// KeyMaterial by fixing the counter's low bit per direction.
func frameNonce(base [AEADNonceSize - 4]byte, counter uint64) []byte {
	nonce := make([]byte, AEADNonceSize)
	copy(nonce, base[:])
	binary.BigEndian.PutUint32(nonce[8:], uint32(counter))
	return nonce
}

// frameAAD composes the associated data for a given frame counter: the
// 4-byte base AAD followed by the full 8-byte counter, so the AAD space
// never collides even after the 32-bit nonce suffix wraps.
func frameAAD(base [AEADBaseAADSize]byte, counter uint64) []byte {
	aad := make([]byte, AEADBaseAADSize+8)
	copy(aad, base[:])
	binary.BigEndian.PutUint64(aad[AEADBaseAADSize:], counter)
	return aad
}

// Seal AEAD-encrypts plaintext under km for the given per-direction frame
// counter, returning ciphertext||tag.
func Seal(km *KeyMaterial, counter uint64, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(km.Key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce := frameNonce(km.BaseNonce, counter)
	aad := frameAAD(km.BaseAAD, counter)
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open AEAD-decrypts ciphertextAndTag under km for the given per-direction
// frame counter. Returns perr.ErrFailToDecryptData on tag mismatch.
func Open(km *KeyMaterial, counter uint64, ciphertextAndTag []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(km.Key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce := frameNonce(km.BaseNonce, counter)
	aad := frameAAD(km.BaseAAD, counter)
	pt, err := aead.Open(nil, nonce, ciphertextAndTag, aad)
	if err != nil {
		return nil, perr.ErrFailToDecryptData
	}
	return pt, nil
}

// Hash returns the SHA-256 digest of b.
func Hash(b []byte) [HashSize]byte {
	return sha256.Sum256(b)
}
