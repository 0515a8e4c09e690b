// Package transport adapts a binary message-oriented carrier (the stock
// implementation is WebSocket over TCP) to the Connection abstraction
// the connection task drives (spec §4.2, §6.2).
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyguts/kazahane/internal/dispatch"
	"github.com/rustyguts/kazahane/internal/types"
	"github.com/rustyguts/kazahane/internal/wire"
)

const writeTimeout = 5 * time.Second

// ErrTextFrame is returned by Recv when the peer sends a text frame;
// binary frames only are accepted (spec §4.2).
var ErrTextFrame = errors.New("carrier: text frame is a protocol error")

// Connection is a bidirectional, framed, identity-stable carrier for one
// client. The stock implementation wraps a gorilla/websocket connection.
type Connection struct {
	id   types.ConnectionID
	conn *websocket.Conn
}

// New wraps an already-upgraded websocket connection with a freshly
// assigned ConnectionID.
func New(conn *websocket.Conn) *Connection {
	return &Connection{id: types.NewConnectionID(), conn: conn}
}

// ConnectionID returns this connection's stable identity.
func (c *Connection) ConnectionID() types.ConnectionID { return c.id }

// Send encodes packet and writes it as one binary frame. May block on
// carrier flow control.
func (c *Connection) Send(packet wire.Packet) error {
	frame := wire.Encode(packet)
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("carrier: set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("carrier: write: %w", err)
	}
	return nil
}

// Recv blocks for the next inbound packet. Carrier-level keepalives
// (ping/pong control frames) are handled transparently by the underlying
// library and never surface here; a close frame from the peer surfaces as
// a read error. Errors are wrapped with the
// dispatch sentinel that classifies them (spec §7): a closed socket or
// other I/O failure is ErrCarrier, a text frame or malformed frame is
// ErrProtocol. The caller treats both as fatal to the connection but
// reacts differently to each (metrics, logging).
func (c *Connection) Recv(_ context.Context) (wire.Packet, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("%w: carrier read: %w", dispatch.ErrCarrier, err)
		}
		if msgType != websocket.BinaryMessage {
			return nil, fmt.Errorf("%w: %w", dispatch.ErrProtocol, ErrTextFrame)
		}
		packet, err := wire.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: carrier decode: %w", dispatch.ErrProtocol, err)
		}
		return packet, nil
	}
}

// Close closes the underlying carrier.
func (c *Connection) Close() error {
	return c.conn.Close()
}
