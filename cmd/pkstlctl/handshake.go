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
	"fmt"
	"time"

	"github.com/pkstl/pkstl/internal/logger"
	"github.com/pkstl/pkstl/internal/metrics"
	"github.com/pkstl/pkstl/primitives"
	"github.com/pkstl/pkstl/session"
	"github.com/pkstl/pkstl/transport/wsframe"
)

// runHandshake drives sess through the CONNECT/ACK exchange over conn.
// The status machine (package session) is symmetric, so the dialer and
// the listener call this exact same sequence; only the "role" label
// passed through to metrics/logging differs.
//
// Both sides send CONNECT before blocking on a read, and send ACK only
// after having processed the peer's CONNECT, so within one TCP-backed
// websocket connection a peer's ACK can never overtake its own CONNECT:
// the deferred-ACK path in package session exists for transports that
// don't give that ordering guarantee, which a single websocket does.
func runHandshake(role string, sess *session.Session, conn *wsframe.Conn, signer *primitives.Signer) error {
	start := time.Now()

	connectFrame, err := sess.CreateConnectMessage(signer, nil)
	if err != nil {
		return fmt.Errorf("create CONNECT: %w", err)
	}
	metrics.HandshakesInitiated.WithLabelValues(role).Inc()
	if err := conn.WriteFrame(connectFrame); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}
	metrics.HandshakeDuration.WithLabelValues("connect_sent").Observe(time.Since(start).Seconds())

	ackSent := false
	for sess.Status() != session.StatusNegotiationSuccessful {
		frame, err := conn.ReadFrame()
		if err != nil {
			return fmt.Errorf("read handshake frame: %w", err)
		}

		if _, err := sess.Read(frame); err != nil {
			metrics.HandshakesFailed.WithLabelValues(sess.Status().String()).Inc()
			return fmt.Errorf("process handshake frame: %w", err)
		}
		metrics.HandshakeDuration.WithLabelValues("connect_recv").Observe(time.Since(start).Seconds())

		if !ackSent && sess.Status() == session.StatusHandshakeInProgress {
			ackFrame, err := sess.CreateAckMessage(signer, nil)
			if err != nil {
				return fmt.Errorf("create ACK: %w", err)
			}
			if err := conn.WriteFrame(ackFrame); err != nil {
				return fmt.Errorf("send ACK: %w", err)
			}
			ackSent = true
			metrics.HandshakeDuration.WithLabelValues("ack_sent").Observe(time.Since(start).Seconds())
		}

		if sess.Status() == session.StatusFail {
			metrics.HandshakesFailed.WithLabelValues("fail").Inc()
			return fmt.Errorf("session entered Fail status during handshake")
		}
	}

	metrics.HandshakesCompleted.WithLabelValues("negotiation_successful").Inc()
	logger.Info("handshake complete",
		logger.String("role", role),
		logger.String("session_id", sess.ID().String()),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}
