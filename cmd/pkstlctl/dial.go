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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkstl/pkstl/internal/logger"
	"github.com/pkstl/pkstl/internal/metrics"
	"github.com/pkstl/pkstl/session"
	"github.com/pkstl/pkstl/transport/wsframe"
)

var (
	dialURL        string
	dialKeyPath    string
	dialMessage    string
	dialConfigPath string
)

var dialCmd = &cobra.Command{
	Use:   "dial",
	Short: "Connect to a PKSTL listener and complete the handshake",
	Long: `dial opens a websocket connection, runs the CONNECT/ACK
handshake as the initiator, optionally sends one user message, and
prints whatever the peer sends back.`,
	Example: `  pkstlctl dial --url ws://127.0.0.1:8765/ws --key identity.key --message "hello"`,
	RunE:    runDial,
}

func init() {
	rootCmd.AddCommand(dialCmd)
	dialCmd.Flags().StringVar(&dialURL, "url", "ws://127.0.0.1:8765/ws", "Listener websocket URL")
	dialCmd.Flags().StringVar(&dialKeyPath, "key", "identity.key", "Path to this peer's signing key seed")
	dialCmd.Flags().StringVar(&dialMessage, "message", "", "A single user message to send once negotiated")
	dialCmd.Flags().StringVar(&dialConfigPath, "config", "", "Path to a pkstlctl YAML config file (session tuning, logging)")
}

func runDial(cmd *cobra.Command, args []string) error {
	signer, err := loadSigner(dialKeyPath)
	if err != nil {
		return err
	}
	sessionConfig, err := applyPkstlConfig(dialConfigPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsframe.DefaultHandshakeTimeout)
	defer cancel()
	conn, err := wsframe.Dial(ctx, dialURL, 30*time.Second, 30*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", dialURL, err)
	}
	defer conn.Close()

	sess, err := session.Create(sessionConfig, nil)
	if err != nil {
		metrics.SessionsCreated.WithLabelValues("failure").Inc()
		return fmt.Errorf("create session: %w", err)
	}
	metrics.SessionsCreated.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	if err := runHandshake("initiator", sess, conn, signer); err != nil {
		metrics.SessionsFailed.Inc()
		return err
	}

	if dialMessage != "" {
		tagged, err := encodeBody(sess.MessageFormat(), dialMessage)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if err := sess.WriteMessage(tagged, conn); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		logger.Info("sent message", logger.String("body", dialMessage))
	}

	frame, err := conn.ReadFrame()
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	msg, err := sess.Read(frame)
	if err != nil {
		return fmt.Errorf("process reply: %w", err)
	}
	if msg != nil && msg.Kind == session.KindUser {
		reply, err := decodeBody(sess.MessageFormat(), msg.Body)
		if err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		fmt.Printf("peer replied: %s\n", reply)
	}
	return nil
}
