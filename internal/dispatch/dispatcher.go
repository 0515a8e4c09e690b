package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyguts/kazahane/internal/logging"
	"github.com/rustyguts/kazahane/internal/metrics"
	"github.com/rustyguts/kazahane/internal/types"
)

var log = logging.Component("dispatch")

// Dispatcher is the per-server registry of mailboxes (spec §4.3). Its
// maps are guarded by a short-critical-section mutex; only insert,
// remove, and lookup happen inside the lock. Sends always happen outside
// the lock against a snapshot of the channel, so a slow or blocked
// receiver never holds up registry operations for unrelated identities.
type Dispatcher struct {
	mu          sync.Mutex
	serverInbox chan MessageToServer
	rooms       map[types.RoomID]chan MessageToRoom
	connections map[types.ConnectionID]chan MessageToConnection
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		rooms:       make(map[types.RoomID]chan MessageToRoom),
		connections: make(map[types.ConnectionID]chan MessageToConnection),
	}
}

// RegisterServer installs the single server mailbox. Called once.
func (d *Dispatcher) RegisterServer() <-chan MessageToServer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.serverInbox = make(chan MessageToServer, MailboxCapacity)
	return d.serverInbox
}

// RegisterRoom installs a mailbox for roomID, overwriting any prior one.
func (d *Dispatcher) RegisterRoom(roomID types.RoomID) <-chan MessageToRoom {
	ch := make(chan MessageToRoom, MailboxCapacity)
	d.mu.Lock()
	d.rooms[roomID] = ch
	d.mu.Unlock()
	metrics.RoomsActive.Inc()
	return ch
}

// DropRoom removes roomID's mailbox. Safe to call more than once.
func (d *Dispatcher) DropRoom(roomID types.RoomID) {
	d.mu.Lock()
	_, existed := d.rooms[roomID]
	delete(d.rooms, roomID)
	d.mu.Unlock()
	if existed {
		metrics.RoomsActive.Dec()
	}
}

// RegisterConnection installs a mailbox for connID.
func (d *Dispatcher) RegisterConnection(connID types.ConnectionID) <-chan MessageToConnection {
	ch := make(chan MessageToConnection, MailboxCapacity)
	d.mu.Lock()
	d.connections[connID] = ch
	d.mu.Unlock()
	metrics.ConnectionsActive.Inc()
	return ch
}

// DropConnection removes connID's mailbox. Safe to call more than once.
func (d *Dispatcher) DropConnection(connID types.ConnectionID) {
	d.mu.Lock()
	_, existed := d.connections[connID]
	delete(d.connections, connID)
	d.mu.Unlock()
	if existed {
		metrics.ConnectionsActive.Dec()
	}
}

// PublishToServer sends msg to the server inbox. Fails silently (wrapped
// with ErrMailboxClosed) if no server task is registered.
func (d *Dispatcher) PublishToServer(ctx context.Context, msg MessageToServer) {
	d.mu.Lock()
	ch := d.serverInbox
	d.mu.Unlock()
	if ch == nil {
		log.Debug().Err(fmt.Errorf("%w: server inbox not registered", ErrMailboxClosed)).Msg("publish to server dropped")
		return
	}
	sendOrCountFull(ctx, ch, msg, "server")
}

// PublishToRoom sends msg to roomID's mailbox. Silently dropped if the
// room is not registered (spec §4.3: rooms may be torn down concurrently,
// callers cannot coordinate).
func (d *Dispatcher) PublishToRoom(ctx context.Context, roomID types.RoomID, msg MessageToRoom) {
	d.mu.Lock()
	ch, ok := d.rooms[roomID]
	d.mu.Unlock()
	if !ok {
		log.Debug().Err(fmt.Errorf("%w: room %s", ErrMailboxClosed, roomID)).Msg("publish to room dropped")
		return
	}
	sendOrCountFull(ctx, ch, msg, "room")
}

// PublishToConnection sends msg to connID's mailbox. Silently dropped if
// the connection is not registered.
func (d *Dispatcher) PublishToConnection(ctx context.Context, connID types.ConnectionID, msg MessageToConnection) {
	d.mu.Lock()
	ch, ok := d.connections[connID]
	d.mu.Unlock()
	if !ok {
		log.Debug().Err(fmt.Errorf("%w: connection %s", ErrMailboxClosed, connID)).Msg("publish to connection dropped")
		return
	}
	sendOrCountFull(ctx, ch, msg, "connection")
}

// BroadcastToConnections sends msg to every currently-registered
// connection mailbox. It snapshots the registry once, then sends to each
// target outside the lock; a connection that drops mid-broadcast is
// silently skipped.
func (d *Dispatcher) BroadcastToConnections(ctx context.Context, msg MessageToConnection) {
	d.mu.Lock()
	targets := make([]chan MessageToConnection, 0, len(d.connections))
	for _, ch := range d.connections {
		targets = append(targets, ch)
	}
	d.mu.Unlock()

	for _, ch := range targets {
		if !sendOrCountFull(ctx, ch, msg, "connection") {
			return
		}
	}
}

// sendOrCountFull sends msg on ch, counting the publish under
// MailboxFullTotal[class] if the mailbox was already at capacity (spec
// §4.9). It reports whether the send completed (false means ctx was
// cancelled first).
func sendOrCountFull[T any](ctx context.Context, ch chan T, msg T, class string) bool {
	select {
	case ch <- msg:
		return true
	default:
	}
	metrics.MailboxFullTotal.WithLabelValues(class).Inc()
	select {
	case ch <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// RoomExists reports whether roomID currently has a live mailbox. Used by
// the server task to decide whether a room needs spawning.
func (d *Dispatcher) RoomExists(roomID types.RoomID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.rooms[roomID]
	return ok
}

// ConnectionExists reports whether connID currently has a live mailbox,
// the symmetric counterpart to RoomExists used to verify deregistration
// (spec §8: a dropped connection's id must no longer resolve).
func (d *Dispatcher) ConnectionExists(connID types.ConnectionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.connections[connID]
	return ok
}
