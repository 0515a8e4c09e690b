// Package connection implements the per-connection protocol state
// machine (spec §4.4): parses inbound packets, forwards Join/Broadcast/
// TestCountUp requests through the dispatcher, and serialises downstream
// messages back to the carrier.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyguts/kazahane/internal/dispatch"
	"github.com/rustyguts/kazahane/internal/logging"
	"github.com/rustyguts/kazahane/internal/metrics"
	"github.com/rustyguts/kazahane/internal/transport"
	"github.com/rustyguts/kazahane/internal/types"
	"github.com/rustyguts/kazahane/internal/wire"
)

// state is the connection's protocol state (spec §3): NotJoined or
// Joined{room_id}.
type state struct {
	joined bool
	roomID types.RoomID
}

// Carrier is the subset of transport.Connection the task drives; an
// interface so tests can substitute an in-memory carrier.
type Carrier interface {
	ConnectionID() types.ConnectionID
	Send(packet wire.Packet) error
	Recv(ctx context.Context) (wire.Packet, error)
	Close() error
}

var _ Carrier = (*transport.Connection)(nil)

// Task runs one connection's state machine until its carrier or inbox
// closes. It unconditionally deregisters from the dispatcher on every
// exit path before returning.
func Task(ctx context.Context, carrier Carrier, d *dispatch.Dispatcher) {
	self := carrier.ConnectionID()
	log := logging.Component("connection").With().Str("connection_id", self.String()).Logger()

	inbox := d.RegisterConnection(self)
	defer d.DropConnection(self)

	st := state{}

	packets := make(chan wire.Packet)
	recvErrs := make(chan error, 1)
	go func() {
		for {
			packet, err := carrier.Recv(ctx)
			if err != nil {
				recvErrs <- err
				return
			}
			select {
			case packets <- packet:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("connection task cancelled")
			return

		case err := <-recvErrs:
			if errors.Is(err, context.Canceled) {
				return
			}
			// Classify the way the teacher's mapErrToMetric does: a
			// protocol violation counts against ProtocolErrorsTotal, a
			// carrier-level failure (closed socket, reset) does not.
			if errors.Is(err, dispatch.ErrProtocol) {
				log.Debug().Err(err).Msg("protocol error; closing connection")
				metrics.ProtocolErrorsTotal.Inc()
			} else {
				log.Debug().Err(err).Msg("carrier closed")
			}
			return

		case packet := <-packets:
			if !handlePacket(ctx, log, carrier, d, self, &st, packet) {
				return
			}

		case msg, ok := <-inbox:
			if !ok {
				log.Debug().Msg("inbox closed")
				return
			}
			if !handleInboxMessage(log, carrier, &st, msg) {
				return
			}
		}
	}
}

func handlePacket(ctx context.Context, log zerolog.Logger, carrier Carrier, d *dispatch.Dispatcher, self types.ConnectionID, st *state, packet wire.Packet) bool {
	switch p := packet.(type) {
	case wire.HelloRequest:
		if err := carrier.Send(wire.HelloResponse{Status: wire.HelloOK, Message: []byte("hello")}); err != nil {
			log.Debug().Err(err).Msg("send hello response failed")
			return false
		}
		return true

	case wire.JoinRoomRequest:
		if st.joined {
			log.Warn().Err(fmt.Errorf("%w: join request while already joined", dispatch.ErrIllegalStateTransition)).Msg("ignoring")
			return true
		}
		d.PublishToServer(ctx, dispatch.ServerJoin{ConnID: self, RoomID: p.RoomID})
		return true

	case wire.BroadcastRequest:
		if !st.joined {
			log.Warn().Err(fmt.Errorf("%w: broadcast request before join", dispatch.ErrIllegalStateTransition)).Msg("ignoring")
			return true
		}
		d.PublishToRoom(ctx, st.roomID, dispatch.RoomBroadcast{Sender: self, Payload: p.Payload})
		return true

	case wire.TestCountUp:
		if !st.joined {
			log.Warn().Err(fmt.Errorf("%w: test_count_up before join", dispatch.ErrIllegalStateTransition)).Msg("ignoring")
			return true
		}
		d.PublishToRoom(ctx, st.roomID, dispatch.RoomTestCountUp{Sender: self})
		return true

	default:
		log.Warn().Uint8("tag", uint8(packet.PacketType())).Msg("unhandled packet in current state")
		return true
	}
}

func handleInboxMessage(log zerolog.Logger, carrier Carrier, st *state, msg dispatch.MessageToConnection) bool {
	switch m := msg.(type) {
	case dispatch.ConnectionShutdown:
		_ = carrier.Send(wire.ServerNotification{Kind: wire.ServerNotificationShutdown})
		return true

	case dispatch.ConnectionJoinResponse:
		st.joined = true
		st.roomID = m.RoomID
		if err := carrier.Send(wire.JoinRoomResponse{}); err != nil {
			log.Debug().Err(err).Msg("send join response failed")
			return false
		}
		return true

	case dispatch.ConnectionBroadcast:
		if !st.joined {
			log.Warn().Msg("broadcast delivered to unjoined connection; ignoring")
			return true
		}
		if err := carrier.Send(wire.RoomNotification{Kind: wire.RoomNotificationBroadcast, Payload: m.Payload}); err != nil {
			log.Debug().Err(err).Msg("send broadcast failed")
			return false
		}
		return true

	case dispatch.ConnectionTestCountUpResponse:
		if err := carrier.Send(wire.TestCountUpResponse{Counter: m.Counter}); err != nil {
			log.Debug().Err(err).Msg("send test_count_up response failed")
			return false
		}
		return true

	default:
		log.Warn().Msg("unhandled inbox message")
		return true
	}
}
