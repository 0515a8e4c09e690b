package dispatch

import (
	"encoding/binary"
	"fmt"

	"github.com/rustyguts/kazahane/internal/types"
	"github.com/rustyguts/kazahane/internal/wire"
)

const envelopeBroadcastTag = 0x01

// EncodeEnvelope serializes a PubSubEnvelope for publication on the bus
// (spec §6.4). Uses the same little-endian, length-prefixed conventions
// as the client wire codec, with its own one-byte subtag space.
func EncodeEnvelope(e PubSubEnvelope) []byte {
	switch v := e.(type) {
	case EnvelopeBroadcast:
		buf := make([]byte, 0, 1+16+16+2+len(v.Payload))
		buf = append(buf, envelopeBroadcastTag)
		buf = append(buf, v.SenderServer.Bytes()...)
		buf = append(buf, v.Sender.Bytes()...)
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(v.Payload)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, v.Payload...)
		return buf
	default:
		panic(fmt.Sprintf("dispatch: unencodable PubSubEnvelope %T", e))
	}
}

// DecodeEnvelope parses a PubSubEnvelope previously produced by EncodeEnvelope.
func DecodeEnvelope(frame []byte) (PubSubEnvelope, error) {
	if len(frame) < 1 {
		return nil, fmt.Errorf("dispatch: decode envelope: %w", wire.ErrShortFrame)
	}
	switch frame[0] {
	case envelopeBroadcastTag:
		r := frame[1:]
		if len(r) < 16+16+2 {
			return nil, fmt.Errorf("dispatch: decode envelope broadcast: %w", wire.ErrShortFrame)
		}
		senderServer, err := types.ServerIDFromBytes(r[:16])
		if err != nil {
			return nil, fmt.Errorf("dispatch: decode envelope broadcast sender_server: %w", err)
		}
		r = r[16:]
		sender, err := types.ConnectionIDFromBytes(r[:16])
		if err != nil {
			return nil, fmt.Errorf("dispatch: decode envelope broadcast sender: %w", err)
		}
		r = r[16:]
		payloadLen := int(binary.LittleEndian.Uint16(r[:2]))
		r = r[2:]
		if len(r) < payloadLen {
			return nil, fmt.Errorf("dispatch: decode envelope broadcast payload: %w", wire.ErrLengthOverflow)
		}
		payload := make([]byte, payloadLen)
		copy(payload, r[:payloadLen])
		return EnvelopeBroadcast{SenderServer: senderServer, Sender: sender, Payload: payload}, nil
	default:
		return nil, fmt.Errorf("dispatch: decode envelope: tag 0x%02x: %w", frame[0], wire.ErrUnknownTag)
	}
}
