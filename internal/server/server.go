// Package server implements the process-wide server task (spec §4.6):
// accepts new connections, lazily spawns room tasks on first join, and
// handles process-wide control messages.
package server

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rustyguts/kazahane/internal/connection"
	"github.com/rustyguts/kazahane/internal/dispatch"
	"github.com/rustyguts/kazahane/internal/logging"
	"github.com/rustyguts/kazahane/internal/pubsub"
	"github.com/rustyguts/kazahane/internal/room"
	"github.com/rustyguts/kazahane/internal/statestore"
	"github.com/rustyguts/kazahane/internal/types"
)

// Task runs the single server loop until ctx is cancelled or its inbox
// closes. accepted delivers newly-upgraded carriers from the transport
// layer; the server task spawns a connection task for each.
func Task(
	ctx context.Context,
	serverID types.ServerID,
	d *dispatch.Dispatcher,
	bus pubsub.PubSub,
	store statestore.StateStore,
	accepted <-chan connection.Carrier,
) {
	log := logging.Component("server").With().Str("server_id", serverID.String()).Logger()

	inbox := d.RegisterServer()
	rooms := make(map[types.RoomID]struct{})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("server task cancelled")
			return

		case carrier, ok := <-accepted:
			if !ok {
				log.Debug().Msg("accept channel closed")
				return
			}
			go connection.Task(ctx, carrier, d)

		case msg, ok := <-inbox:
			if !ok {
				return
			}
			handleServerMessage(ctx, log, serverID, msg, rooms, d, bus, store)
		}
	}
}

func handleServerMessage(
	ctx context.Context,
	log zerolog.Logger,
	serverID types.ServerID,
	msg dispatch.MessageToServer,
	rooms map[types.RoomID]struct{},
	d *dispatch.Dispatcher,
	bus pubsub.PubSub,
	store statestore.StateStore,
) {
	switch m := msg.(type) {
	case dispatch.ServerJoin:
		if _, exists := rooms[m.RoomID]; !exists {
			rooms[m.RoomID] = struct{}{}
			roomInbox := d.RegisterRoom(m.RoomID)
			go room.Task(ctx, serverID, m.RoomID, roomInbox, d, bus, store)
		}
		d.PublishToRoom(ctx, m.RoomID, dispatch.RoomJoin{ConnID: m.ConnID})

	case dispatch.ServerShutdown:
		log.Info().Str("reason", m.Reason).Msg("broadcasting shutdown to all connections")
		d.BroadcastToConnections(ctx, dispatch.ConnectionShutdown{Reason: m.Reason})
	}
}
