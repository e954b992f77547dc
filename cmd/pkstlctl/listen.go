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
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkstl/pkstl/internal/logger"
	"github.com/pkstl/pkstl/internal/metrics"
	"github.com/pkstl/pkstl/primitives"
	"github.com/pkstl/pkstl/session"
	"github.com/pkstl/pkstl/transport/wsframe"
)

var (
	listenAddr       string
	listenKeyPath    string
	listenMetricsOn  bool
	listenMetrics    string
	listenConfigPath string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept PKSTL connections and echo user messages back",
	Long: `listen serves a websocket endpoint, runs the CONNECT/ACK
handshake as the responder for each inbound connection, and echoes every
user message it receives back to the sender until the connection closes.`,
	Example: `  pkstlctl listen --addr :8765 --key identity.key --metrics`,
	RunE:    runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVar(&listenAddr, "addr", ":8765", "Address to listen on")
	listenCmd.Flags().StringVar(&listenKeyPath, "key", "identity.key", "Path to this peer's signing key seed")
	listenCmd.Flags().BoolVar(&listenMetricsOn, "metrics", false, "Serve Prometheus metrics alongside /ws")
	listenCmd.Flags().StringVar(&listenMetrics, "metrics-path", "/metrics", "Path to serve metrics on")
	listenCmd.Flags().StringVar(&listenConfigPath, "config", "", "Path to a pkstlctl YAML config file (session tuning, logging)")
}

func runListen(cmd *cobra.Command, args []string) error {
	signer, err := loadSigner(listenKeyPath)
	if err != nil {
		return err
	}
	sessionConfig, err := applyPkstlConfig(listenConfigPath)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConnection(w, r, signer, sessionConfig)
	})
	if listenMetricsOn {
		mux.Handle(listenMetrics, metrics.Handler())
	}

	logger.Info("listening", logger.String("addr", listenAddr))
	return http.ListenAndServe(listenAddr, mux)
}

func handleConnection(w http.ResponseWriter, r *http.Request, signer *primitives.Signer, sessionConfig session.Config) {
	conn, err := wsframe.Accept(w, r, 30*time.Second, 30*time.Second)
	if err != nil {
		logger.ErrorMsg("upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	sess, err := session.Create(sessionConfig, nil)
	if err != nil {
		metrics.SessionsCreated.WithLabelValues("failure").Inc()
		logger.ErrorMsg("create session failed", logger.Error(err))
		return
	}
	metrics.SessionsCreated.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	if err := runHandshake("responder", sess, conn, signer); err != nil {
		metrics.SessionsFailed.Inc()
		logger.ErrorMsg("handshake failed", logger.Error(err))
		return
	}
	logger.Info("peer negotiated", logger.String("session_id", sess.ID().String()))

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			logger.Info("connection closed", logger.Error(err))
			return
		}
		msg, err := sess.Read(frame)
		if err != nil {
			metrics.SessionsFailed.Inc()
			logger.ErrorMsg("read failed", logger.Error(err))
			return
		}
		if msg == nil || msg.Kind != session.KindUser {
			continue
		}

		body, err := decodeBody(sess.MessageFormat(), msg.Body)
		if err != nil {
			logger.ErrorMsg("decode message failed", logger.Error(err))
			return
		}
		tagged, err := encodeBody(sess.MessageFormat(), "echo: "+body)
		if err != nil {
			logger.ErrorMsg("encode reply failed", logger.Error(err))
			return
		}
		if err := sess.WriteMessage(tagged, conn); err != nil {
			logger.ErrorMsg("write reply failed", logger.Error(err))
			return
		}
	}
}
