// Package wire implements the kazahane binary frame codec described in
// spec §6.1: a 14-byte magic, a one-byte packet tag, and a per-type body
// with all integers little-endian and length-prefixed byte sequences using
// a u16 length. Stateless and safe for concurrent use, matching the shape
// of a cannelloni-style frame codec: one Encode/Decode pair, sentinel
// errors wrapped with %w.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rustyguts/kazahane/internal/types"
)

// Magic is the literal prefix every encoded frame begins with.
const Magic = "KAZAHANE 1.0.0"

// MaxFrameSize bounds the total encoded frame, per spec §3.
const MaxFrameSize = 4096

var (
	// ErrMagicMismatch is returned when a frame does not begin with Magic.
	ErrMagicMismatch = errors.New("wire: magic mismatch")
	// ErrUnknownTag is returned for a packet tag this codec does not recognize.
	ErrUnknownTag = errors.New("wire: unknown packet tag")
	// ErrShortFrame is returned when the buffer ends mid-field.
	ErrShortFrame = errors.New("wire: short frame")
	// ErrLengthOverflow is returned when a length prefix claims more bytes
	// than remain in the frame, or the total frame exceeds MaxFrameSize.
	ErrLengthOverflow = errors.New("wire: length overflow")
)

// Encode serializes a well-typed packet to its wire form. It does not
// return an error: every Packet variant this codec knows about has a
// bounded, self-consistent encoding (callers are responsible for keeping
// payloads within MaxFrameSize before constructing one).
func Encode(p Packet) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, Magic...)
	buf = append(buf, byte(p.PacketType()))

	switch v := p.(type) {
	case HelloRequest:
		buf = appendLenPrefixed(buf, v.Token)
	case *HelloRequest:
		buf = appendLenPrefixed(buf, v.Token)
	case HelloResponse:
		buf = append(buf, byte(v.Status))
		buf = appendLenPrefixed(buf, v.Message)
	case *HelloResponse:
		buf = append(buf, byte(v.Status))
		buf = appendLenPrefixed(buf, v.Message)
	case JoinRoomRequest:
		buf = append(buf, v.RoomID.Bytes()...)
	case *JoinRoomRequest:
		buf = append(buf, v.RoomID.Bytes()...)
	case JoinRoomResponse, *JoinRoomResponse:
		// empty body
	case BroadcastRequest:
		buf = appendLenPrefixed(buf, v.Payload)
	case *BroadcastRequest:
		buf = appendLenPrefixed(buf, v.Payload)
	case RoomNotification:
		buf = encodeRoomNotification(buf, v)
	case *RoomNotification:
		buf = encodeRoomNotification(buf, *v)
	case ServerNotification:
		buf = append(buf, byte(v.Kind))
	case *ServerNotification:
		buf = append(buf, byte(v.Kind))
	case TestCountUp, *TestCountUp:
		// empty body
	case TestCountUpResponse:
		buf = appendU64(buf, v.Counter)
	case *TestCountUpResponse:
		buf = appendU64(buf, v.Counter)
	default:
		panic(fmt.Sprintf("wire: Encode: unhandled packet type %T", p))
	}
	return buf
}

func encodeRoomNotification(buf []byte, v RoomNotification) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case RoomNotificationPlayerJoined, RoomNotificationPlayerLeft:
		buf = append(buf, v.Player.Bytes()...)
	case RoomNotificationBroadcast:
		buf = appendLenPrefixed(buf, v.Payload)
	}
	return buf
}

func appendLenPrefixed(buf []byte, data []byte) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(data)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, data...)
	return buf
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// Decode parses one frame into its concrete Packet value. It returns
// ErrMagicMismatch, ErrUnknownTag, ErrShortFrame, or ErrLengthOverflow on
// malformed input.
func Decode(frame []byte) (Packet, error) {
	if len(frame) > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds max %d", ErrLengthOverflow, len(frame), MaxFrameSize)
	}
	r := &reader{buf: frame}
	magic, err := r.take(len(Magic))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortFrame, err)
	}
	if string(magic) != Magic {
		return nil, ErrMagicMismatch
	}
	tagByte, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing packet tag", ErrShortFrame)
	}
	tag := PacketType(tagByte)

	switch tag {
	case TypeHelloRequest:
		token, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		return HelloRequest{Token: token}, nil
	case TypeHelloResponse:
		status, err := r.byte()
		if err != nil {
			return nil, err
		}
		msg, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		return HelloResponse{Status: HelloStatus(status), Message: msg}, nil
	case TypeJoinRoomRequest:
		idBytes, err := r.take(16)
		if err != nil {
			return nil, err
		}
		roomID, perr := types.RoomIDFromBytes(idBytes)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrShortFrame, perr)
		}
		return JoinRoomRequest{RoomID: roomID}, nil
	case TypeJoinRoomResponse:
		return JoinRoomResponse{}, nil
	case TypeBroadcastRequest:
		payload, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		return BroadcastRequest{Payload: payload}, nil
	case TypeRoomNotification:
		return decodeRoomNotification(r)
	case TypeServerNotification:
		kind, err := r.byte()
		if err != nil {
			return nil, err
		}
		return ServerNotification{Kind: ServerNotificationKind(kind)}, nil
	case TypeTestCountUp:
		return TestCountUp{}, nil
	case TypeTestCountUpResponse:
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		return TestCountUpResponse{Counter: n}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, tagByte)
	}
}

func decodeRoomNotification(r *reader) (Packet, error) {
	kind, err := r.byte()
	if err != nil {
		return nil, err
	}
	n := RoomNotification{Kind: RoomNotificationKind(kind)}
	switch n.Kind {
	case RoomNotificationPlayerJoined, RoomNotificationPlayerLeft:
		b, err := r.take(16)
		if err != nil {
			return nil, err
		}
		id, perr := types.ConnectionIDFromBytes(b)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrShortFrame, perr)
		}
		n.Player = id
	case RoomNotificationBroadcast:
		payload, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		n.Payload = payload
	default:
		return nil, fmt.Errorf("%w: room notification subtag 0x%02x", ErrUnknownTag, kind)
	}
	return n, nil
}

// reader is a bounds-checked cursor over a frame's trailing bytes.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortFrame, n, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) lenPrefixed() ([]byte, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, fmt.Errorf("%w: declared length %d exceeds remaining frame", ErrLengthOverflow, n)
	}
	return r.take(int(n))
}
