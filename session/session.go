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

package session

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/pkstl/pkstl/perr"
	"github.com/pkstl/pkstl/primitives"
	"github.com/pkstl/pkstl/wire"
)

// Session is the C5 minimal secure layer: a single-owner, single-threaded
// value that composes the wire codec (package wire), crypto primitives
// (package primitives), the status machine and the nonce window into the
// externally visible handshake/steady-state contract. Every method
// mutates the receiver; nothing here is safe for concurrent use without
// external serialization (see spec.md §5 as restated in SPEC_FULL.md).
type Session struct {
	id     uuid.UUID
	config Config
	status Status

	ephKP      *primitives.EphemeralKeyPair
	localEphPK [32]byte

	peerEphPK    [32]byte
	peerEphPKSet bool

	peerSigPK    [32]byte
	peerSigPKSet bool

	keyMaterial *primitives.KeyMaterial
	sendCounter uint64

	nextNonceSent uint64
	nonces        *nonceWindow

	deferredAck      *[]byte
	deferredUserMsgs []deferredUserFrame

	cloned bool
}

// Create generates a fresh ephemeral keypair and returns a Session in
// Init status. expectedPeerSigPK pins the peer's signing key; pass nil to
// learn it from the peer's CONNECT instead.
func Create(config Config, expectedPeerSigPK *[32]byte) (*Session, error) {
	if config.MaxOrphanNonces <= 0 {
		return nil, fmt.Errorf("pkstl: max orphan nonces must be positive")
	}
	ephKP, err := primitives.GenerateEphemeral()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	if expectedPeerSigPK != nil {
		config.ExpectedRemoteSigPubKey = expectedPeerSigPK
	}
	return &Session{
		id:         uuid.New(),
		config:     config,
		status:     StatusInit,
		ephKP:      ephKP,
		localEphPK: ephKP.PublicKey(),
		nonces:     newNonceWindow(config.MaxOrphanNonces),
	}, nil
}

// ID is the session's correlation identifier, used in logs and metrics.
func (s *Session) ID() uuid.UUID { return s.id }

// Status reports the current FSM position.
func (s *Session) Status() Status { return s.status }

// HasKey reports whether the AEAD key material has been derived yet,
// i.e. whether the next outbound frame will be sealed or sent plaintext.
func (s *Session) HasKey() bool { return s.keyMaterial != nil }

// LocalEphemeralPublicKey returns the ephemeral public key this session
// advertises in its own CONNECT.
func (s *Session) LocalEphemeralPublicKey() [32]byte { return s.localEphPK }

// PeerSigningPublicKey returns the peer's signing key once learned, and
// whether it has been set yet.
func (s *Session) PeerSigningPublicKey() ([32]byte, bool) { return s.peerSigPK, s.peerSigPKSet }

// MessageFormat reports the serde tag this session's configuration
// expects custom_data to carry. Callers use it to pick the codec for
// WriteMessage's payload and for decoding a read Message's Body.
func (s *Session) MessageFormat() MessageFormat { return s.config.MessageFormat }

func (s *Session) fail() {
	s.status = StatusFail
	if s.keyMaterial != nil {
		s.keyMaterial.Zero()
	}
}

// sealOrPlain wraps encap in the outer frame, sealing it under the
// session's AEAD key if one has been derived yet, or emitting it
// plaintext otherwise (the pre-key frame layout, per the Open Question 2
// resolution recorded in SPEC_FULL.md).
//
// Both directions of a session share one derived KeyMaterial, so a bare
// per-direction counter starting at 0 is not enough to keep the two
// directions' (key, nonce) pairs from colliding on their very first
// frame. outboundCounter folds a direction bit into the low bit of the
// counter, giving the two directions disjoint counter spaces under the
// one shared key; the counter is carried in the frame's cleartext header
// (see wire.Encode) so the receiver can open an out-of-order frame
// without having decrypted anything first.
func (s *Session) sealOrPlain(encap []byte) ([]byte, error) {
	if s.keyMaterial == nil {
		return wire.Encode(false, 0, encap), nil
	}
	counter := s.outboundCounter()
	ct, err := primitives.Seal(s.keyMaterial, counter, encap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", perr.ErrFailToEncryptData, err)
	}
	s.sendCounter++
	return wire.Encode(true, counter, ct), nil
}

// directionBit is 0 or 1 depending on which ephemeral public key sorts
// first. A session and its peer always compute opposite bits for "my
// outbound", which is exactly what keeps the two directions' counter
// spaces disjoint.
func (s *Session) directionBit() uint64 {
	if bytes.Compare(s.localEphPK[:], s.peerEphPK[:]) < 0 {
		return 0
	}
	return 1
}

func (s *Session) outboundCounter() uint64 { return s.sendCounter<<1 | s.directionBit() }

// sessionSalt orders the two ephemeral public keys canonically so both
// peers derive the same HKDF salt regardless of who is the initiator.
func sessionSalt(a, b [32]byte) []byte {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return append(append([]byte{}, a[:]...), b[:]...)
	}
	return append(append([]byte{}, b[:]...), a[:]...)
}

// CreateConnectMessage builds, signs and frames a CONNECT message. signer
// is the caller's long-term identity key; it is never stored on Session
// (see spec.md §3.1, which lists only the peer's signing key as session
// state). The CONNECT frame is always emitted in the pre-key layout, even
// when this session already holds a key: the peer derives its key from
// this frame's ephemeral public key, so it must be readable unsealed.
func (s *Session) CreateConnectMessage(signer *primitives.Signer, customData []byte) ([]byte, error) {
	next, _, err := applyAction(s.status, actionCreateConnect)
	if err != nil {
		s.fail()
		return nil, err
	}
	unsigned := wire.BuildConnect(s.localEphPK, wire.SigAlgoEd25519, signer.PublicKey(), customData)
	sig := signer.Sign(append(wire.SigningPrefix(), unsigned...))
	encap := wire.AppendTrailer(unsigned, sig)
	s.status = next
	return wire.Encode(false, 0, encap), nil
}

// CreateAckMessage builds, signs and frames an ACK message. It requires
// that a peer CONNECT has already been observed, so the challenge and the
// AEAD key are both available.
func (s *Session) CreateAckMessage(signer *primitives.Signer, customData []byte) ([]byte, error) {
	next, _, err := applyAction(s.status, actionCreateAck)
	if err != nil {
		s.fail()
		return nil, err
	}
	if !s.peerEphPKSet {
		s.fail()
		return nil, perr.ErrForbidWriteAckMsgNow
	}
	challenge := primitives.Hash(s.peerEphPK[:])
	unsigned := wire.BuildAck(challenge, customData)
	sig := signer.Sign(append(wire.SigningPrefix(), unsigned...))
	encap := wire.AppendTrailer(unsigned, sig)
	frame, err := s.sealOrPlain(encap)
	if err != nil {
		s.fail()
		return nil, err
	}
	s.status = next
	return frame, nil
}

// WriteMessage seals payload as a USER_MSG carrying the next outbound
// nonce and writes the resulting frame to w.
func (s *Session) WriteMessage(payload []byte, w io.Writer) error {
	next, _, err := applyAction(s.status, actionCreateUser)
	if err != nil {
		s.fail()
		return err
	}
	unsigned := wire.BuildUser(s.nextNonceSent, payload)
	hash := primitives.Hash(append(wire.SigningPrefix(), unsigned...))
	encap := wire.AppendTrailer(unsigned, hash[:])
	frame, err := s.sealOrPlain(encap)
	if err != nil {
		s.fail()
		return err
	}
	if _, err := w.Write(frame); err != nil {
		s.fail()
		return fmt.Errorf("%w: %v", perr.ErrWriteError, err)
	}
	s.nextNonceSent++
	s.status = next
	return nil
}

// Read parses and validates exactly one outer frame, dispatching on its
// inner type. It returns (nil, nil) when the frame was deferred (an early
// ACK, or a user message received before negotiation completed) rather
// than surfaced immediately. A pre-key CONNECT frame that reaches a
// session which already holds a key is recognized as a CONNECT and
// rejected by the status machine.
func (s *Session) Read(frame []byte) (*Message, error) {
	region, counter, _, err := wire.Decode(frame, s.HasKey())
	if err != nil && s.HasKey() {
		if plain, _, n, perr2 := wire.Decode(frame, false); perr2 == nil && n == len(frame) {
			if t, terr := wire.PeekType(plain); terr == nil && t == wire.MsgConnect {
				return s.handleConnect(plain)
			}
		}
	}
	if err != nil {
		s.fail()
		return nil, err
	}

	var plaintext []byte
	if s.HasKey() {
		pt, err := primitives.Open(s.keyMaterial, counter, region)
		if err != nil {
			s.fail()
			return nil, err
		}
		plaintext = pt
	} else {
		plaintext = region
	}

	msgType, err := wire.PeekType(plaintext)
	if err != nil {
		s.fail()
		return nil, err
	}

	switch msgType {
	case wire.MsgConnect:
		return s.handleConnect(plaintext)
	case wire.MsgAck:
		return s.handleAck(plaintext)
	case wire.MsgUser:
		return s.handleUser(plaintext)
	default:
		s.fail()
		return nil, perr.ErrUnexpectedMessage
	}
}

func (s *Session) handleConnect(plaintext []byte) (*Message, error) {
	next, _, err := applyAction(s.status, actionRecvConnect)
	if err != nil {
		s.fail()
		return nil, err
	}
	parts, err := wire.ParseConnect(plaintext)
	if err != nil {
		s.fail()
		return nil, err
	}
	signed := append(wire.SigningPrefix(), parts.SignedRegion...)
	if !primitives.VerifySig(parts.SigPK, signed, parts.Signature) {
		s.fail()
		return nil, perr.ErrInvalidHashOrSig
	}
	if s.config.ExpectedRemoteSigPubKey != nil && parts.SigPK != *s.config.ExpectedRemoteSigPubKey {
		s.fail()
		return nil, perr.ErrUnexpectedRemoteSigPubKey
	}
	if s.peerSigPKSet && parts.SigPK != s.peerSigPK {
		s.fail()
		return nil, perr.ErrUnexpectedRemoteSigPubKey
	}
	s.peerSigPK = parts.SigPK
	s.peerSigPKSet = true
	s.peerEphPK = parts.PeerEphPK
	s.peerEphPKSet = true

	if s.keyMaterial == nil {
		shared, err := s.ephKP.DeriveShared(parts.PeerEphPK)
		if err != nil {
			s.fail()
			return nil, fmt.Errorf("%w: %v", perr.ErrFailToDecryptData, err)
		}
		km, err := primitives.DeriveKeyMaterial(shared, sessionSalt(s.localEphPK, parts.PeerEphPK))
		primitives.Zeroize(shared)
		if err != nil {
			s.fail()
			return nil, err
		}
		s.keyMaterial = km
	}

	s.status = next
	return &Message{Kind: KindConnect, Body: parts.Body, PeerEphPK: parts.PeerEphPK, PeerSigPK: parts.SigPK}, nil
}

func (s *Session) handleAck(plaintext []byte) (*Message, error) {
	next, eff, err := applyAction(s.status, actionRecvAck)
	if err != nil {
		s.fail()
		return nil, err
	}
	if eff == effectDeferAck {
		if s.deferredAck != nil {
			s.fail()
			return nil, perr.ErrUnexpectedAckMsg
		}
		buf := append([]byte{}, plaintext...)
		s.deferredAck = &buf
		s.status = next
		return nil, nil
	}
	msg, err := s.validateAckFrame(plaintext)
	if err != nil {
		s.fail()
		return nil, err
	}
	s.status = next
	return msg, nil
}

// validateAckFrame checks the challenge and signature of an ACK
// encapsulation. It is shared by handleAck's immediate path and
// TakeDeferredAck, which replays a previously buffered ACK once the peer
// signing key has become known.
func (s *Session) validateAckFrame(plaintext []byte) (*Message, error) {
	parts, err := wire.ParseAck(plaintext)
	if err != nil {
		return nil, err
	}
	want := primitives.Hash(s.localEphPK[:])
	if parts.Challenge != want {
		return nil, perr.ErrInvalidChallenge
	}
	if !s.peerSigPKSet {
		return nil, perr.ErrUnexpectedRemoteSigPubKey
	}
	signed := append(wire.SigningPrefix(), parts.SignedRegion...)
	if !primitives.VerifySig(s.peerSigPK, signed, parts.Signature) {
		return nil, perr.ErrInvalidHashOrSig
	}
	return &Message{Kind: KindAck, Body: parts.Body}, nil
}

func (s *Session) handleUser(plaintext []byte) (*Message, error) {
	next, eff, err := applyAction(s.status, actionRecvUser)
	if err != nil {
		s.fail()
		return nil, err
	}
	if eff == effectDeferUser {
		if len(s.deferredUserMsgs) >= s.config.MaxOrphanNonces {
			s.fail()
			return nil, perr.ErrTooManyUnorderedMsgs
		}
		s.deferredUserMsgs = append(s.deferredUserMsgs, deferredUserFrame{plaintext: append([]byte{}, plaintext...)})
		s.status = next
		return nil, nil
	}
	msg, err := s.validateUserFrame(plaintext)
	if err != nil {
		s.fail()
		return nil, err
	}
	s.status = next
	return msg, nil
}

// validateUserFrame checks the hash trailer and runs the frame's nonce
// through the anti-replay window. It operates on already-decrypted
// plaintext, so DrainDeferredUserMsgs can reuse it without re-running
// AEAD (the Open Question 3 resolution recorded in SPEC_FULL.md).
func (s *Session) validateUserFrame(plaintext []byte) (*Message, error) {
	parts, err := wire.ParseUser(plaintext)
	if err != nil {
		return nil, err
	}
	want := primitives.Hash(append(wire.SigningPrefix(), parts.HashedRegion...))
	if want != parts.Hash {
		return nil, perr.ErrInvalidHashOrSig
	}
	if err := s.nonces.accept(parts.Nonce); err != nil {
		return nil, err
	}
	return &Message{Kind: KindUser, Nonce: parts.Nonce, Body: parts.Body}, nil
}

// TakeDeferredAck returns the single buffered early ACK, if any, now that
// the peer's signing key is known. Callers invoke this before
// DrainDeferredUserMsgs, per spec.md §4.3.
func (s *Session) TakeDeferredAck() (*Message, bool, error) {
	if s.deferredAck == nil {
		return nil, false, nil
	}
	plaintext := *s.deferredAck
	s.deferredAck = nil
	msg, err := s.validateAckFrame(plaintext)
	if err != nil {
		s.fail()
		return nil, false, err
	}
	return msg, true, nil
}

// DrainDeferredUserMsgs re-validates every buffered user frame in arrival
// order and returns the decoded messages.
func (s *Session) DrainDeferredUserMsgs() ([]Message, error) {
	pending := s.deferredUserMsgs
	s.deferredUserMsgs = nil
	out := make([]Message, 0, len(pending))
	for _, d := range pending {
		msg, err := s.validateUserFrame(d.plaintext)
		if err != nil {
			s.fail()
			return nil, err
		}
		out = append(out, *msg)
	}
	return out, nil
}

// TryClone splits an established session into two independent handles
// that share config and hold equal copies of the AEAD key material, but
// carry separate frame counters and no private keypair. Each handle
// zeroizes only its own copy on fail or Destroy. It is the caller's responsibility to
// ensure only one of the original and its clone ever calls WriteMessage
// (spec.md §5, §9 "Clone as directional split"); this package performs no
// detection of concurrent writers.
func (s *Session) TryClone() (*Session, error) {
	if s.status != StatusNegotiationSuccessful {
		return nil, perr.ErrNegoMustHaveBeenSuccessful
	}
	km := *s.keyMaterial
	clone := &Session{
		id:           uuid.New(),
		config:       s.config,
		status:       StatusNegotiationSuccessful,
		localEphPK:   s.localEphPK,
		peerEphPK:    s.peerEphPK,
		peerEphPKSet: s.peerEphPKSet,
		peerSigPK:    s.peerSigPK,
		peerSigPKSet: s.peerSigPKSet,
		keyMaterial:  &km,
		sendCounter:  s.sendCounter,
		nextNonceSent: s.nextNonceSent,
		nonces:        s.nonces.snapshot(),
		cloned:        true,
	}
	s.cloned = true
	return clone, nil
}

// ChangeConfig replaces the session's configuration. It fails once the
// session (or any of its clones) has been cloned, per spec.md §3.1.
func (s *Session) ChangeConfig(newConfig Config) error {
	if s.cloned {
		return perr.ErrForbidChangeConfAfterClone
	}
	s.config = newConfig
	s.nonces.maxOrphans = newConfig.MaxOrphanNonces
	return nil
}

// Destroy zeroizes the AEAD key material and drops the ephemeral keypair
// (see primitives.EphemeralKeyPair for what that does and does not
// overwrite). Go has no deterministic
// destructors, so callers must invoke this explicitly once a session is
// no longer needed, mirroring the teacher's Close()-on-drop convention.
func (s *Session) Destroy() {
	if s.keyMaterial != nil {
		s.keyMaterial.Zero()
	}
	s.ephKP = nil
}
