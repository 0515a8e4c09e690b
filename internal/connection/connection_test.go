package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rustyguts/kazahane/internal/dispatch"
	"github.com/rustyguts/kazahane/internal/types"
	"github.com/rustyguts/kazahane/internal/wire"
)

// fakeCarrier is an in-memory Carrier for driving the connection task
// without a real websocket.
type fakeCarrier struct {
	id types.ConnectionID

	mu      sync.Mutex
	inbound []wire.Packet
	sent    []wire.Packet
	closed  bool
}

func newFakeCarrier(inbound ...wire.Packet) *fakeCarrier {
	return &fakeCarrier{id: types.NewConnectionID(), inbound: inbound}
}

func (c *fakeCarrier) ConnectionID() types.ConnectionID { return c.id }

func (c *fakeCarrier) Send(p wire.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, p)
	return nil
}

func (c *fakeCarrier) Recv(ctx context.Context) (wire.Packet, error) {
	c.mu.Lock()
	if len(c.inbound) == 0 {
		c.mu.Unlock()
		<-ctx.Done()
		return nil, errors.New("carrier: closed")
	}
	p := c.inbound[0]
	c.inbound = c.inbound[1:]
	c.mu.Unlock()
	return p, nil
}

func (c *fakeCarrier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeCarrier) sentPackets() []wire.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Packet(nil), c.sent...)
}

func TestHelloRequestGetsOKResponse(t *testing.T) {
	carrier := newFakeCarrier(wire.HelloRequest{Token: []byte("tok")})
	d := dispatch.New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { Task(ctx, carrier, d); close(done) }()

	waitForSent(t, carrier, 1)
	cancel()
	<-done

	sent := carrier.sentPackets()
	resp, ok := sent[0].(wire.HelloResponse)
	if !ok || resp.Status != wire.HelloOK {
		t.Fatalf("got %#v, want HelloResponse{OK}", sent[0])
	}
}

func TestJoinRoomRequestPublishesToServer(t *testing.T) {
	roomID := types.NewRoomID()
	carrier := newFakeCarrier(wire.JoinRoomRequest{RoomID: roomID})
	d := dispatch.New()
	serverInbox := d.RegisterServer()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() { Task(ctx, carrier, d); close(done) }()

	select {
	case msg := <-serverInbox:
		join, ok := msg.(dispatch.ServerJoin)
		if !ok || join.RoomID != roomID || join.ConnID != carrier.ConnectionID() {
			t.Fatalf("got %#v, want ServerJoin{%v,%v}", msg, carrier.ConnectionID(), roomID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ServerJoin")
	}
	cancel()
	<-done
}

func TestJoinResponseTransitionsToJoinedAndRepliesJoinRoomResponse(t *testing.T) {
	carrier := newFakeCarrier()
	d := dispatch.New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { Task(ctx, carrier, d); close(done) }()

	roomID := types.NewRoomID()
	d.PublishToConnection(ctx, carrier.ConnectionID(), dispatch.ConnectionJoinResponse{RoomID: roomID})

	waitForSent(t, carrier, 1)
	cancel()
	<-done

	sent := carrier.sentPackets()
	if _, ok := sent[0].(wire.JoinRoomResponse); !ok {
		t.Fatalf("got %#v, want JoinRoomResponse{}", sent[0])
	}
}

func TestBroadcastBeforeJoinIsIgnoredNotClosed(t *testing.T) {
	carrier := newFakeCarrier(wire.BroadcastRequest{Payload: []byte("hi")})
	d := dispatch.New()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() { Task(ctx, carrier, d); close(done) }()
	<-done

	if len(carrier.sentPackets()) != 0 {
		t.Fatalf("expected no reply to an ignored broadcast, got %v", carrier.sentPackets())
	}
}

func TestDropConnectionRunsOnCarrierClose(t *testing.T) {
	carrier := newFakeCarrier()
	d := dispatch.New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { Task(ctx, carrier, d); close(done) }()

	waitForRegistered(t, d, carrier.ConnectionID())
	if !d.ConnectionExists(carrier.ConnectionID()) {
		t.Fatal("connection was never registered; test cannot verify deregistration")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not exit after context cancellation")
	}
	if d.ConnectionExists(carrier.ConnectionID()) {
		t.Fatal("connection still registered in dispatcher after task exit")
	}
}

func waitForRegistered(t *testing.T, d *dispatch.Dispatcher, connID types.ConnectionID) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if d.ConnectionExists(connID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for connection to register")
}

func waitForSent(t *testing.T, carrier *fakeCarrier, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(carrier.sentPackets()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent packets, got %d", n, len(carrier.sentPackets()))
}
