// Package types defines the opaque 128-bit identifiers shared across the
// dispatcher, room, connection, and server tasks.
package types

import "github.com/google/uuid"

// ServerID identifies one running server process.
type ServerID uuid.UUID

// RoomID identifies a room; membership in a room can span server instances.
type RoomID uuid.UUID

// ConnectionID identifies one live client connection.
type ConnectionID uuid.UUID

// NewServerID returns a fresh, randomly generated ServerID.
func NewServerID() ServerID { return ServerID(uuid.New()) }

// NewRoomID returns a fresh, randomly generated RoomID.
func NewRoomID() RoomID { return RoomID(uuid.New()) }

// NewConnectionID returns a fresh, randomly generated ConnectionID.
func NewConnectionID() ConnectionID { return ConnectionID(uuid.New()) }

// RoomIDFromBytes parses the 16-byte wire representation of a RoomID.
func RoomIDFromBytes(b []byte) (RoomID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return RoomID{}, err
	}
	return RoomID(id), nil
}

// ConnectionIDFromBytes parses the 16-byte wire representation of a ConnectionID.
func ConnectionIDFromBytes(b []byte) (ConnectionID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return ConnectionID{}, err
	}
	return ConnectionID(id), nil
}

// ServerIDFromBytes parses the 16-byte wire representation of a ServerID.
func ServerIDFromBytes(b []byte) (ServerID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return ServerID{}, err
	}
	return ServerID(id), nil
}

func (id RoomID) String() string       { return uuid.UUID(id).String() }
func (id ConnectionID) String() string { return uuid.UUID(id).String() }
func (id ServerID) String() string     { return uuid.UUID(id).String() }

// Bytes returns the canonical 16-byte wire representation.
func (id RoomID) Bytes() []byte       { u := uuid.UUID(id); return u[:] }
func (id ConnectionID) Bytes() []byte { u := uuid.UUID(id); return u[:] }
func (id ServerID) Bytes() []byte     { u := uuid.UUID(id); return u[:] }

// Topic returns the pub/sub topic this room is addressed by on the bus:
// the canonical text form of the RoomID, per spec §6.4.
func (id RoomID) Topic() string { return id.String() }
