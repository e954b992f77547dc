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

// Package wsframe carries PKSTL's own wire frames (package wire) over a
// websocket binary message per frame. Unlike a generic RPC transport it
// does no JSON envelope and no request/response correlation: PKSTL
// already frames, authenticates and orders its own traffic, so the
// transport's only job is to deliver one opaque []byte per Read/Write
// without mangling message boundaries, which websocket's binary message
// framing gives for free.
package wsframe

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a *websocket.Conn and exposes the minimal frame-oriented
// interface session.Session's caller needs: one PKSTL frame in, one
// PKSTL frame out, each mapped onto exactly one websocket binary message.
type Conn struct {
	ws *websocket.Conn

	writeMu      sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// DefaultHandshakeTimeout bounds how long Dial waits for the TCP+TLS+
// websocket upgrade handshake to complete.
const DefaultHandshakeTimeout = 10 * time.Second

// Dial opens a websocket connection to url and wraps it as a Conn.
func Dial(ctx context.Context, url string, readTimeout, writeTimeout time.Duration) (*Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsframe: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("wsframe: dial failed: %w", err)
	}
	return &Conn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}, nil
}

// Upgrader upgrades an inbound HTTP request to a Conn. It permits all
// origins, matching a CLI demo tool rather than a browser-facing service.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Accept upgrades r/w to a websocket connection and wraps it as a Conn.
func Accept(w http.ResponseWriter, r *http.Request, readTimeout, writeTimeout time.Duration) (*Conn, error) {
	ws, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wsframe: upgrade failed: %w", err)
	}
	return &Conn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}, nil
}

// ReadFrame blocks until the next binary websocket message arrives and
// returns its payload unmodified. It errors on anything but a binary
// message, since PKSTL never sends text frames.
func (c *Conn) ReadFrame() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.ws.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, fmt.Errorf("wsframe: set read deadline: %w", err)
		}
	}

	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("wsframe: read: %w", err)
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("wsframe: unexpected websocket message type %d", kind)
	}
	return data, nil
}

// WriteFrame sends data as a single binary websocket message. Writes are
// serialized: gorilla/websocket forbids concurrent writers on one
// connection, and PKSTL's reader/writer split (session.Session.TryClone)
// means two goroutines may call WriteFrame on the same underlying
// connection's write half.
func (c *Conn) WriteFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("wsframe: set write deadline: %w", err)
		}
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("wsframe: write: %w", err)
	}
	return nil
}

// Write implements io.Writer by sending p as a single binary websocket
// message, so a Conn can be passed directly to session.Session's
// WriteMessage.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.WriteFrame(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal-closure control frame and closes the underlying
// connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	closeErr := c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	if err := c.ws.Close(); err != nil {
		return err
	}
	return closeErr
}
