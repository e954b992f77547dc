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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkstl/pkstl/perr"
	"github.com/pkstl/pkstl/primitives"
	"github.com/pkstl/pkstl/wire"
)

func newPeer(t *testing.T) (*Session, *primitives.Signer) {
	t.Helper()
	cfg := DefaultConfig()
	s, err := Create(cfg, nil)
	require.NoError(t, err)
	signer, err := primitives.GenerateSigner()
	require.NoError(t, err)
	return s, signer
}

// handshake drives A and B through CONNECT/CONNECT/ACK/ACK and returns
// both sessions in NegotiationSuccessful, per scenario S1.
func handshake(t *testing.T) (a, b *Session, aSigner, bSigner *primitives.Signer) {
	t.Helper()
	a, aSigner = newPeer(t)
	b, bSigner = newPeer(t)

	aConnect, err := a.CreateConnectMessage(aSigner, nil)
	require.NoError(t, err)

	msg, err := b.Read(aConnect)
	require.NoError(t, err)
	require.Equal(t, KindConnect, msg.Kind)

	bConnect, err := b.CreateConnectMessage(bSigner, nil)
	require.NoError(t, err)

	msg, err = a.Read(bConnect)
	require.NoError(t, err)
	require.Equal(t, KindConnect, msg.Kind)

	aAck, err := a.CreateAckMessage(aSigner, nil)
	require.NoError(t, err)
	msg, err = b.Read(aAck)
	require.NoError(t, err)
	require.Equal(t, KindAck, msg.Kind)

	bAck, err := b.CreateAckMessage(bSigner, nil)
	require.NoError(t, err)
	msg, err = a.Read(bAck)
	require.NoError(t, err)
	require.Equal(t, KindAck, msg.Kind)

	require.Equal(t, StatusNegotiationSuccessful, a.Status())
	require.Equal(t, StatusNegotiationSuccessful, b.Status())
	return a, b, aSigner, bSigner
}

func TestHappyPath_S1(t *testing.T) {
	a, b, _, _ := handshake(t)

	var buf bytes.Buffer
	require.NoError(t, a.WriteMessage([]byte{1, 2, 3, 4}, &buf))

	msg, err := b.Read(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, KindUser, msg.Kind)
	assert.Equal(t, []byte{1, 2, 3, 4}, msg.Body)
	assert.Equal(t, uint64(0), msg.Nonce)
}

func TestDoubleConnectReceive_S2(t *testing.T) {
	a, aSigner := newPeer(t)
	b, _ := newPeer(t)

	aConnect, err := a.CreateConnectMessage(aSigner, nil)
	require.NoError(t, err)

	_, err = b.Read(aConnect)
	require.NoError(t, err)

	_, err = b.Read(aConnect)
	assert.ErrorIs(t, err, perr.ErrUnexpectedConnectMsg)
	assert.Equal(t, StatusFail, b.Status())
}

func TestAckWrongChallenge_S3(t *testing.T) {
	a, aSigner := newPeer(t)
	b, bSigner := newPeer(t)

	aConnect, err := a.CreateConnectMessage(aSigner, nil)
	require.NoError(t, err)
	_, err = b.Read(aConnect)
	require.NoError(t, err)

	bConnect, err := b.CreateConnectMessage(bSigner, nil)
	require.NoError(t, err)
	_, err = a.Read(bConnect)
	require.NoError(t, err)

	// Forge an ACK with a zeroed challenge instead of the real
	// SHA-256(a's ephemeral pk), bypassing CreateAckMessage's derivation.
	var zero [32]byte
	forged := forgeAckWithChallenge(t, b, bSigner, zero)

	_, err = a.Read(forged)
	assert.ErrorIs(t, err, perr.ErrInvalidChallenge)
	assert.Equal(t, StatusFail, a.Status())
}

func TestWriteUserMessageBeforeNegotiation_S4(t *testing.T) {
	a, _ := newPeer(t)

	var buf bytes.Buffer
	err := a.WriteMessage([]byte("too early"), &buf)
	assert.ErrorIs(t, err, perr.ErrNegoMustHaveBeenSuccessful)
	assert.Equal(t, StatusFail, a.Status())
}

func TestRecvUserMessageBeforeNegotiation_S4(t *testing.T) {
	a, _ := newPeer(t)
	b, _ := newPeer(t)

	forgedUser := forgeUserFrame(t, a, 0, []byte("too early"))
	_, err := b.Read(forgedUser)
	assert.ErrorIs(t, err, perr.ErrUnexpectedMessage)
	assert.Equal(t, StatusFail, b.Status())
}

func TestUserMessagePreNegotiationDeferred(t *testing.T) {
	a, aSigner := newPeer(t)
	b, bSigner := newPeer(t)

	aConnect, err := a.CreateConnectMessage(aSigner, nil)
	require.NoError(t, err)
	_, err = b.Read(aConnect)
	require.NoError(t, err)

	bConnect, err := b.CreateConnectMessage(bSigner, nil)
	require.NoError(t, err)
	_, err = a.Read(bConnect)
	require.NoError(t, err)

	// Both sides are HandshakeInProgress; neither has created its ACK
	// yet. A user frame arriving now must be deferred, not surfaced or
	// rejected, per spec.md §4.3's HandshakeInProgress row.
	forgedUser := forgeUserFrame(t, a, 0, []byte("early"))
	msg, err := b.Read(forgedUser)
	require.NoError(t, err)
	assert.Nil(t, msg)

	aAck, err := a.CreateAckMessage(aSigner, nil)
	require.NoError(t, err)
	_, err = b.Read(aAck)
	require.NoError(t, err)
	bAck, err := b.CreateAckMessage(bSigner, nil)
	require.NoError(t, err)
	_, err = a.Read(bAck)
	require.NoError(t, err)
	require.Equal(t, StatusNegotiationSuccessful, b.Status())

	drained, err := b.DrainDeferredUserMsgs()
	require.NoError(t, err)
	require.Len(t, drained, 1)
	assert.Equal(t, []byte("early"), drained[0].Body)
}

func TestOutOfOrderDelivery_S5(t *testing.T) {
	a, b, _, _ := handshake(t)

	var frames [][]byte
	for i := 0; i < 4; i++ {
		var buf bytes.Buffer
		require.NoError(t, a.WriteMessage([]byte{byte(i)}, &buf))
		frames = append(frames, buf.Bytes())
	}

	order := []int{0, 2, 3, 1}
	var lastMsg *Message
	for _, idx := range order {
		msg, err := b.Read(frames[idx])
		require.NoError(t, err)
		require.NotNil(t, msg)
		lastMsg = msg
	}
	assert.Equal(t, byte(1), lastMsg.Body[0])
}

func TestReplay_S6(t *testing.T) {
	a, b, _, _ := handshake(t)

	var frames [][]byte
	for i := 0; i < 4; i++ {
		var buf bytes.Buffer
		require.NoError(t, a.WriteMessage([]byte{byte(i)}, &buf))
		frames = append(frames, buf.Bytes())
	}

	for _, idx := range []int{0, 2, 3, 1} {
		_, err := b.Read(frames[idx])
		require.NoError(t, err)
	}

	_, err := b.Read(frames[2])
	assert.ErrorIs(t, err, perr.ErrInvalidNonce)
}

func TestOrphanOverflow_S7(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrphanNonces = 8
	a, err := Create(cfg, nil)
	require.NoError(t, err)
	aSigner, err := primitives.GenerateSigner()
	require.NoError(t, err)
	b, err := Create(cfg, nil)
	require.NoError(t, err)
	bSigner, err := primitives.GenerateSigner()
	require.NoError(t, err)

	aConnect, err := a.CreateConnectMessage(aSigner, nil)
	require.NoError(t, err)
	_, err = b.Read(aConnect)
	require.NoError(t, err)
	bConnect, err := b.CreateConnectMessage(bSigner, nil)
	require.NoError(t, err)
	_, err = a.Read(bConnect)
	require.NoError(t, err)
	aAck, err := a.CreateAckMessage(aSigner, nil)
	require.NoError(t, err)
	_, err = b.Read(aAck)
	require.NoError(t, err)
	bAck, err := b.CreateAckMessage(bSigner, nil)
	require.NoError(t, err)
	_, err = a.Read(bAck)
	require.NoError(t, err)

	// Nonces 0..9: nonce 0 is never delivered, nonces 1..8 fill the
	// 8-slot orphan window exactly, and nonce 9 is the ninth skip-0 read
	// that must overflow it.
	var frames [][]byte
	for i := 0; i < 10; i++ {
		var buf bytes.Buffer
		require.NoError(t, a.WriteMessage([]byte{byte(i)}, &buf))
		frames = append(frames, buf.Bytes())
	}

	for i := 1; i <= 8; i++ {
		_, err := b.Read(frames[i])
		require.NoError(t, err)
	}

	_, err = b.Read(frames[9])
	assert.ErrorIs(t, err, perr.ErrTooManyUnorderedMsgs)
	assert.Equal(t, StatusFail, b.Status())
}

func TestFailIsTerminal_Invariant6(t *testing.T) {
	a, b, _, _ := handshake(t)

	// Force Fail by tampering with a sealed frame.
	var buf bytes.Buffer
	require.NoError(t, a.WriteMessage([]byte{1}, &buf))
	tampered := append([]byte{}, buf.Bytes()...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err := b.Read(tampered)
	require.Error(t, err)
	assert.Equal(t, StatusFail, b.Status())

	_, err = b.Read(buf.Bytes())
	assert.Error(t, err)
}

func TestTryCloneRequiresNegotiationSuccessful(t *testing.T) {
	a, _ := newPeer(t)
	_, err := a.TryClone()
	assert.ErrorIs(t, err, perr.ErrNegoMustHaveBeenSuccessful)
}

func TestChangeConfigFrozenAfterClone(t *testing.T) {
	a, _, _, _ := handshake(t)
	_, err := a.TryClone()
	require.NoError(t, err)
	err = a.ChangeConfig(DefaultConfig())
	assert.ErrorIs(t, err, perr.ErrForbidChangeConfAfterClone)
}

func TestCloneSharesKeyMaterialIndependentCounters(t *testing.T) {
	a, b, _, _ := handshake(t)
	writer, err := a.TryClone()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writer.WriteMessage([]byte("hi"), &buf))
	msg, err := b.Read(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), msg.Body)
}

// forgeAckWithChallenge builds an ACK encapsulation with an arbitrary
// challenge value, bypassing CreateAckMessage's normal derivation, to
// exercise the challenge-mismatch path deterministically.
func forgeAckWithChallenge(t *testing.T, s *Session, signer *primitives.Signer, challenge [32]byte) []byte {
	t.Helper()
	unsigned := wire.BuildAck(challenge, nil)
	sig := signer.Sign(append(wire.SigningPrefix(), unsigned...))
	encap := wire.AppendTrailer(unsigned, sig)
	frame, err := s.sealOrPlain(encap)
	require.NoError(t, err)
	return frame
}

// forgeUserFrame builds a well-formed USER_MSG frame sealed under s's
// current key material, without going through WriteMessage's status
// check, so deferral behavior can be exercised at states WriteMessage
// itself would reject.
func forgeUserFrame(t *testing.T, s *Session, nonce uint64, payload []byte) []byte {
	t.Helper()
	unsigned := wire.BuildUser(nonce, payload)
	hash := primitives.Hash(append(wire.SigningPrefix(), unsigned...))
	encap := wire.AppendTrailer(unsigned, hash[:])
	frame, err := s.sealOrPlain(encap)
	require.NoError(t, err)
	return frame
}
