// Package room implements the per-room authoritative loop (spec §4.5):
// local member set, broadcast fan-out, cross-server fan-out via pub/sub,
// and the counter state manipulation used by TestCountUp.
package room

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyguts/kazahane/internal/dispatch"
	"github.com/rustyguts/kazahane/internal/logging"
	"github.com/rustyguts/kazahane/internal/metrics"
	"github.com/rustyguts/kazahane/internal/pubsub"
	"github.com/rustyguts/kazahane/internal/statestore"
	"github.com/rustyguts/kazahane/internal/types"
)

const counterKey = "counter"

// Task runs one room's loop until ctx is cancelled, its inbox closes, or
// the initial Subscribe fails. A later failure of the subscription's Next
// call is logged and the room keeps serving its local members only.
// serverID identifies the owning server instance so the room can suppress
// loopback on messages it published itself.
func Task(
	ctx context.Context,
	serverID types.ServerID,
	roomID types.RoomID,
	inbox <-chan dispatch.MessageToRoom,
	d *dispatch.Dispatcher,
	bus pubsub.PubSub,
	store statestore.StateStore,
) {
	log := logging.Component("room").With().Str("room_id", roomID.String()).Logger()

	sub, err := bus.Subscribe(ctx, pubsub.Topic(roomID.Topic()))
	if err != nil {
		busErr := fmt.Errorf("%w: subscribe: %v", dispatch.ErrBus, err)
		log.Error().Err(busErr).Msg("subscribe failed at startup; room task exiting")
		if errors.Is(busErr, dispatch.ErrBus) {
			metrics.BusErrorsTotal.Inc()
		}
		d.DropRoom(roomID)
		return
	}
	defer sub.Close()

	members := make(map[types.ConnectionID]struct{})

	envelopes := make(chan dispatch.PubSubEnvelope)
	subErrs := make(chan error, 1)
	go func() {
		for {
			payload, err := sub.Next(ctx)
			if err != nil {
				subErrs <- err
				return
			}
			envelope, err := dispatch.DecodeEnvelope(payload)
			if err != nil {
				log.Warn().Err(err).Msg("malformed pub/sub envelope; dropping")
				continue
			}
			select {
			case envelopes <- envelope:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			d.DropRoom(roomID)
			return

		case err := <-subErrs:
			busErr := fmt.Errorf("%w: subscription lost: %v", dispatch.ErrBus, err)
			log.Warn().Err(busErr).Msg("pub/sub subscription lost; room continuing local-only")
			if errors.Is(busErr, dispatch.ErrBus) {
				metrics.BusErrorsTotal.Inc()
			}

		case msg, ok := <-inbox:
			if !ok {
				d.DropRoom(roomID)
				return
			}
			handleRoomMessage(ctx, log, serverID, roomID, msg, members, d, bus, store)

		case envelope := <-envelopes:
			handleEnvelope(ctx, log, serverID, envelope, members, d)
		}
	}
}

func handleRoomMessage(
	ctx context.Context,
	log zerolog.Logger,
	serverID types.ServerID,
	roomID types.RoomID,
	msg dispatch.MessageToRoom,
	members map[types.ConnectionID]struct{},
	d *dispatch.Dispatcher,
	bus pubsub.PubSub,
	store statestore.StateStore,
) {
	switch m := msg.(type) {
	case dispatch.RoomJoin:
		members[m.ConnID] = struct{}{}
		d.PublishToConnection(ctx, m.ConnID, dispatch.ConnectionJoinResponse{RoomID: roomID})

	case dispatch.RoomBroadcast:
		for member := range members {
			if member == m.Sender {
				continue
			}
			d.PublishToConnection(ctx, member, dispatch.ConnectionBroadcast{Payload: m.Payload})
		}
		metrics.BroadcastsLocalTotal.Inc()

		envelope := dispatch.EnvelopeBroadcast{SenderServer: serverID, Sender: m.Sender, Payload: m.Payload}
		if err := bus.Publish(ctx, pubsub.Topic(roomID.Topic()), dispatch.EncodeEnvelope(envelope)); err != nil {
			busErr := fmt.Errorf("%w: publish: %v", dispatch.ErrBus, err)
			log.Warn().Err(busErr).Msg("publish to bus failed; broadcast stayed local-only")
			if errors.Is(busErr, dispatch.ErrBus) {
				metrics.BusErrorsTotal.Inc()
			}
		} else {
			metrics.BroadcastsRemoteTotal.Inc()
		}

	case dispatch.RoomTestCountUp:
		counter, err := readCounter(ctx, store, roomID)
		if err != nil {
			storeErr := fmt.Errorf("%w: read counter: %v", dispatch.ErrStore, err)
			log.Error().Err(storeErr).Msg("read counter failed; request dropped")
			if errors.Is(storeErr, dispatch.ErrStore) {
				metrics.StoreErrorsTotal.Inc()
			}
			return
		}
		counter++
		if err := writeCounter(ctx, store, roomID, counter); err != nil {
			storeErr := fmt.Errorf("%w: write counter: %v", dispatch.ErrStore, err)
			log.Error().Err(storeErr).Msg("write counter failed; request dropped")
			if errors.Is(storeErr, dispatch.ErrStore) {
				metrics.StoreErrorsTotal.Inc()
			}
			return
		}
		d.PublishToConnection(ctx, m.Sender, dispatch.ConnectionTestCountUpResponse{Counter: counter})
	}
}

func handleEnvelope(
	ctx context.Context,
	_ zerolog.Logger,
	serverID types.ServerID,
	envelope dispatch.PubSubEnvelope,
	members map[types.ConnectionID]struct{},
	d *dispatch.Dispatcher,
) {
	b, ok := envelope.(dispatch.EnvelopeBroadcast)
	if !ok {
		return
	}
	if b.SenderServer == serverID {
		// Loopback: this server already delivered it to local members
		// via the direct fan-out path.
		return
	}
	for member := range members {
		d.PublishToConnection(ctx, member, dispatch.ConnectionBroadcast{Payload: b.Payload})
	}
}

func readCounter(ctx context.Context, store statestore.StateStore, roomID types.RoomID) (uint64, error) {
	data, ok, err := store.Get(ctx, roomID.String(), counterKey)
	if err != nil {
		return 0, err
	}
	if !ok || len(data) < 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(data), nil
}

func writeCounter(ctx context.Context, store statestore.StateStore, roomID types.RoomID, counter uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, counter)
	return store.Set(ctx, roomID.String(), counterKey, buf)
}
