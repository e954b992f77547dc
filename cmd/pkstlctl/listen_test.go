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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkstl/pkstl/primitives"
	"github.com/pkstl/pkstl/session"
	"github.com/pkstl/pkstl/transport/wsframe"
)

func TestDialListenHandshakeAndEcho(t *testing.T) {
	responderSigner, err := primitives.GenerateSigner()
	require.NoError(t, err)
	initiatorSigner, err := primitives.GenerateSigner()
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConnection(w, r, responderSigner, session.DefaultConfig())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := wsframe.Dial(ctx, url, 5*time.Second, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	sess, err := session.Create(session.DefaultConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, runHandshake("initiator", sess, conn, initiatorSigner))
	assert.Equal(t, session.StatusNegotiationSuccessful, sess.Status())

	tagged, err := encodeBody(sess.MessageFormat(), "ping")
	require.NoError(t, err)
	require.NoError(t, sess.WriteMessage(tagged, conn))

	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	msg, err := sess.Read(frame)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, session.KindUser, msg.Kind)

	reply, err := decodeBody(sess.MessageFormat(), msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", reply)
}
