package wire

import "github.com/rustyguts/kazahane/internal/types"

// PacketType is the one-byte tag identifying a packet's wire shape.
type PacketType uint8

const (
	TypeHelloRequest        PacketType = 0x01
	TypeHelloResponse       PacketType = 0x02
	TypeJoinRoomRequest     PacketType = 0x03
	TypeJoinRoomResponse    PacketType = 0x04
	TypeBroadcastRequest    PacketType = 0x05
	TypeRoomNotification    PacketType = 0x06
	TypeServerNotification  PacketType = 0x07
	TypeTestCountUp         PacketType = 0xDE
	TypeTestCountUpResponse PacketType = 0xDF
)

// HelloStatus is the status code carried in a HelloResponse.
type HelloStatus uint8

const (
	HelloUnknown HelloStatus = 0x00
	HelloOK      HelloStatus = 0x01
	HelloDenied  HelloStatus = 0x02
)

// RoomNotificationKind selects the variant of a RoomNotification packet.
type RoomNotificationKind uint8

const (
	RoomNotificationPlayerJoined RoomNotificationKind = 0x01
	RoomNotificationPlayerLeft   RoomNotificationKind = 0x02
	RoomNotificationBroadcast    RoomNotificationKind = 0x03
)

// ServerNotificationKind selects the variant of a ServerNotification packet.
type ServerNotificationKind uint8

const (
	ServerNotificationShutdown ServerNotificationKind = 0x01
)

// Packet is implemented by every concrete wire message. It exists purely to
// let Encode/Decode dispatch on the packet's tag; callers type-switch on the
// concrete value returned by Decode.
type Packet interface {
	PacketType() PacketType
}

type HelloRequest struct {
	Token []byte
}

func (HelloRequest) PacketType() PacketType { return TypeHelloRequest }

type HelloResponse struct {
	Status  HelloStatus
	Message []byte
}

func (HelloResponse) PacketType() PacketType { return TypeHelloResponse }

type JoinRoomRequest struct {
	RoomID types.RoomID
}

func (JoinRoomRequest) PacketType() PacketType { return TypeJoinRoomRequest }

// JoinRoomResponse carries no body; a connection only ever receives this for
// the room it just joined.
type JoinRoomResponse struct{}

func (JoinRoomResponse) PacketType() PacketType { return TypeJoinRoomResponse }

type BroadcastRequest struct {
	Payload []byte
}

func (BroadcastRequest) PacketType() PacketType { return TypeBroadcastRequest }

// RoomNotification is server-to-client only; see spec §6.1 on the asymmetric
// split between BroadcastRequest (client→server) and RoomNotification
// (server→client).
type RoomNotification struct {
	Kind      RoomNotificationKind
	Player    types.ConnectionID // PlayerJoined / PlayerLeft
	Payload   []byte             // Broadcast
}

func (RoomNotification) PacketType() PacketType { return TypeRoomNotification }

type ServerNotification struct {
	Kind ServerNotificationKind
}

func (ServerNotification) PacketType() PacketType { return TypeServerNotification }

type TestCountUp struct{}

func (TestCountUp) PacketType() PacketType { return TypeTestCountUp }

type TestCountUpResponse struct {
	Counter uint64
}

func (TestCountUpResponse) PacketType() PacketType { return TypeTestCountUpResponse }
