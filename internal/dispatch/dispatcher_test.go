package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rustyguts/kazahane/internal/metrics"
	"github.com/rustyguts/kazahane/internal/types"
)

func TestPublishToRoomSilentlyDropsUnknownRoom(t *testing.T) {
	d := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// No room registered; this must return promptly rather than block
	// or panic.
	d.PublishToRoom(ctx, types.NewRoomID(), RoomJoin{ConnID: types.NewConnectionID()})
}

func TestPublishToConnectionSilentlyDropsUnknownConnection(t *testing.T) {
	d := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d.PublishToConnection(ctx, types.NewConnectionID(), ConnectionBroadcast{Payload: []byte("x")})
}

func TestPublishToServerSilentlyDropsWhenUnregistered(t *testing.T) {
	d := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d.PublishToServer(ctx, ServerShutdown{Reason: "test"})
}

func TestRegisterRoomThenPublishDelivers(t *testing.T) {
	d := New()
	roomID := types.NewRoomID()
	inbox := d.RegisterRoom(roomID)

	connID := types.NewConnectionID()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.PublishToRoom(ctx, roomID, RoomJoin{ConnID: connID})

	select {
	case msg := <-inbox:
		join, ok := msg.(RoomJoin)
		if !ok || join.ConnID != connID {
			t.Fatalf("got %#v, want RoomJoin{%v}", msg, connID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivered message")
	}
}

func TestDropRoomThenPublishSilentlyDrops(t *testing.T) {
	d := New()
	roomID := types.NewRoomID()
	d.RegisterRoom(roomID)
	d.DropRoom(roomID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.PublishToRoom(ctx, roomID, RoomJoin{ConnID: types.NewConnectionID()})

	if d.RoomExists(roomID) {
		t.Fatal("room still registered after DropRoom")
	}
}

func TestBroadcastToConnectionsSkipsDroppedTarget(t *testing.T) {
	d := New()
	staying := types.NewConnectionID()
	leaving := types.NewConnectionID()

	stayingInbox := d.RegisterConnection(staying)
	d.RegisterConnection(leaving)
	d.DropConnection(leaving)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.BroadcastToConnections(ctx, ConnectionShutdown{Reason: "bye"})

	select {
	case msg := <-stayingInbox:
		if _, ok := msg.(ConnectionShutdown); !ok {
			t.Fatalf("got %#v, want ConnectionShutdown", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast to surviving connection")
	}
}

func TestConnectionExistsReflectsRegistration(t *testing.T) {
	d := New()
	connID := types.NewConnectionID()

	if d.ConnectionExists(connID) {
		t.Fatal("connection reported live before registration")
	}
	d.RegisterConnection(connID)
	if !d.ConnectionExists(connID) {
		t.Fatal("connection reported absent right after registration")
	}
	d.DropConnection(connID)
	if d.ConnectionExists(connID) {
		t.Fatal("connection still reported live after DropConnection")
	}
}

func TestPublishToRoomCountsMailboxFullOnBackpressure(t *testing.T) {
	d := New()
	roomID := types.NewRoomID()
	inbox := d.RegisterRoom(roomID)
	connID := types.NewConnectionID()

	before := testutil.ToFloat64(metrics.MailboxFullTotal.WithLabelValues("room"))

	for i := 0; i < MailboxCapacity; i++ {
		d.PublishToRoom(context.Background(), roomID, RoomTestCountUp{Sender: connID})
	}

	// The mailbox is now exactly at capacity; this publish must block on
	// the buffer until drained, so count the mailbox-full event before
	// the send completes, then drain to unblock it.
	done := make(chan struct{})
	go func() {
		d.PublishToRoom(context.Background(), roomID, RoomJoin{ConnID: connID})
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && testutil.ToFloat64(metrics.MailboxFullTotal.WithLabelValues("room")) == before {
		time.Sleep(5 * time.Millisecond)
	}
	if got := testutil.ToFloat64(metrics.MailboxFullTotal.WithLabelValues("room")); got != before+1 {
		t.Fatalf("MailboxFullTotal[room] = %v, want %v", got, before+1)
	}

	for i := 0; i < MailboxCapacity; i++ {
		<-inbox
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked publish never completed after inbox was drained")
	}
	if _, ok := (<-inbox).(RoomJoin); !ok {
		t.Fatal("blocked publish did not eventually deliver its message")
	}
}

func TestMailboxOrderingIsFIFOPerSender(t *testing.T) {
	d := New()
	roomID := types.NewRoomID()
	inbox := d.RegisterRoom(roomID)
	connID := types.NewConnectionID()

	ctx := context.Background()
	// The capacity-th send fills the mailbox; the one after that blocks
	// until this loop starts draining, so publish from a goroutine.
	go func() {
		for i := 0; i < MailboxCapacity; i++ {
			d.PublishToRoom(ctx, roomID, RoomTestCountUp{Sender: connID})
		}
		d.PublishToRoom(ctx, roomID, RoomJoin{ConnID: connID})
	}()

	for i := 0; i < MailboxCapacity; i++ {
		if _, ok := (<-inbox).(RoomTestCountUp); !ok {
			t.Fatalf("message %d out of FIFO order", i)
		}
	}
	if _, ok := (<-inbox).(RoomJoin); !ok {
		t.Fatal("final message out of FIFO order")
	}
}
