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

// Package session is the C3 status machine, C4 nonce window and C5
// minimal secure layer: it composes the wire codec and crypto primitives
// into the handshake/steady-state protocol.
package session

import "github.com/pkstl/pkstl/perr"

// Status is a tagged position in the handshake/steady-state state machine.
// Every externally visible operation consults it before doing anything
// else.
type Status int

const (
	StatusInit Status = iota
	StatusConnectMsgSent
	StatusConnectMsgRecv
	StatusHandshakeInProgress
	StatusAckSent
	StatusAckRecv
	StatusNegotiationSuccessful
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "Init"
	case StatusConnectMsgSent:
		return "ConnectMsgSent"
	case StatusConnectMsgRecv:
		return "ConnectMsgRecv"
	case StatusHandshakeInProgress:
		return "HandshakeInProgress"
	case StatusAckSent:
		return "AckSent"
	case StatusAckRecv:
		return "AckRecv"
	case StatusNegotiationSuccessful:
		return "NegotiationSuccessful"
	case StatusFail:
		return "Fail"
	default:
		return "Unknown"
	}
}

// action is one of the six create/receive events the state machine reacts
// to. It is unexported: callers drive the machine through Session's
// methods, never directly.
type action int

const (
	actionCreateConnect action = iota
	actionCreateAck
	actionCreateUser
	actionRecvConnect
	actionRecvAck
	actionRecvUser
)

// effect is an optional side-effect marker returned alongside a
// transition, per spec.md §9's "tagged variant, never a raw boolean"
// guidance.
type effect int

const (
	effectNone effect = iota
	effectDeferAck
	effectDeferUser
)

// applyAction is the state table from spec.md §4.3. It never mutates
// Session state itself; callers apply the returned Status and effect.
func applyAction(cur Status, a action) (next Status, eff effect, err error) {
	if cur == StatusFail {
		return StatusFail, effectNone, perr.ErrUnexpectedMessage
	}

	switch cur {
	case StatusInit:
		switch a {
		case actionCreateConnect:
			return StatusConnectMsgSent, effectNone, nil
		case actionCreateUser:
			return cur, effectNone, perr.ErrNegoMustHaveBeenSuccessful
		case actionRecvConnect:
			return StatusConnectMsgRecv, effectNone, nil
		case actionRecvAck:
			return StatusInit, effectDeferAck, nil
		}

	case StatusConnectMsgSent:
		switch a {
		case actionCreateConnect:
			return cur, effectNone, perr.ErrConnectMsgAlreadyWritten
		case actionCreateUser:
			return cur, effectNone, perr.ErrNegoMustHaveBeenSuccessful
		case actionRecvConnect:
			return StatusHandshakeInProgress, effectNone, nil
		case actionRecvAck:
			return cur, effectDeferAck, nil
		}

	case StatusConnectMsgRecv:
		switch a {
		case actionCreateConnect:
			return StatusHandshakeInProgress, effectNone, nil
		case actionCreateUser:
			return cur, effectNone, perr.ErrNegoMustHaveBeenSuccessful
		case actionRecvAck:
			return cur, effectNone, perr.ErrUnexpectedAckMsg
		case actionRecvUser:
			return cur, effectDeferUser, nil
		}

	case StatusHandshakeInProgress:
		switch a {
		case actionCreateAck:
			return StatusAckSent, effectNone, nil
		case actionCreateUser:
			return cur, effectNone, perr.ErrNegoMustHaveBeenSuccessful
		case actionRecvAck:
			return StatusAckRecv, effectNone, nil
		case actionRecvUser:
			return cur, effectDeferUser, nil
		}

	case StatusAckSent:
		switch a {
		case actionCreateUser:
			return cur, effectNone, perr.ErrNegoMustHaveBeenSuccessful
		case actionRecvAck:
			return StatusNegotiationSuccessful, effectNone, nil
		case actionRecvUser:
			return cur, effectDeferUser, nil
		}

	case StatusAckRecv:
		switch a {
		case actionCreateAck:
			return StatusNegotiationSuccessful, effectNone, nil
		case actionCreateUser:
			return cur, effectNone, perr.ErrNegoMustHaveBeenSuccessful
		}

	case StatusNegotiationSuccessful:
		switch a {
		case actionCreateUser:
			return cur, effectNone, nil
		case actionRecvUser:
			return cur, effectNone, nil
		}
	}

	return StatusFail, effectNone, unhandledActionError(a)
}

// unhandledActionError maps an action with no explicit entry for the
// current state to the most specific error kind spec.md §7 offers for it,
// rather than a generic catch-all.
func unhandledActionError(a action) error {
	switch a {
	case actionRecvConnect:
		return perr.ErrUnexpectedConnectMsg
	case actionRecvAck:
		return perr.ErrUnexpectedAckMsg
	case actionCreateConnect:
		return perr.ErrConnectMsgAlreadyWritten
	case actionCreateAck:
		return perr.ErrForbidWriteAckMsgNow
	default:
		return perr.ErrUnexpectedMessage
	}
}
