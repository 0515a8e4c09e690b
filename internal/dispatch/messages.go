// Package dispatch implements the registry of per-server, per-room, and
// per-connection mailboxes (spec §4.3) and the message types exchanged
// through them (spec §4.1).
package dispatch

import "github.com/rustyguts/kazahane/internal/types"

// MailboxCapacity bounds every mailbox; a full mailbox blocks the
// publisher rather than dropping the message (spec §4.3).
const MailboxCapacity = 8

// MessageToServer is sent to the single server task.
type MessageToServer interface {
	isMessageToServer()
}

type ServerJoin struct {
	ConnID types.ConnectionID
	RoomID types.RoomID
}

func (ServerJoin) isMessageToServer() {}

type ServerShutdown struct {
	Reason string
}

func (ServerShutdown) isMessageToServer() {}

// MessageToRoom is sent to one room task.
type MessageToRoom interface {
	isMessageToRoom()
}

type RoomJoin struct {
	ConnID types.ConnectionID
}

func (RoomJoin) isMessageToRoom() {}

type RoomBroadcast struct {
	Sender  types.ConnectionID
	Payload []byte
}

func (RoomBroadcast) isMessageToRoom() {}

type RoomTestCountUp struct {
	Sender types.ConnectionID
}

func (RoomTestCountUp) isMessageToRoom() {}

// MessageToConnection is sent to one connection task.
type MessageToConnection interface {
	isMessageToConnection()
}

type ConnectionJoinResponse struct {
	RoomID types.RoomID
}

func (ConnectionJoinResponse) isMessageToConnection() {}

type ConnectionBroadcast struct {
	Payload []byte
}

func (ConnectionBroadcast) isMessageToConnection() {}

type ConnectionTestCountUpResponse struct {
	Counter uint64
}

func (ConnectionTestCountUpResponse) isMessageToConnection() {}

type ConnectionShutdown struct {
	Reason string
}

func (ConnectionShutdown) isMessageToConnection() {}

// PubSubEnvelope is the payload carried over the bus between server
// instances (spec §6.4).
type PubSubEnvelope interface {
	isPubSubEnvelope()
}

type EnvelopeBroadcast struct {
	SenderServer types.ServerID
	Sender       types.ConnectionID
	Payload      []byte
}

func (EnvelopeBroadcast) isPubSubEnvelope() {}
