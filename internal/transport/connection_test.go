package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyguts/kazahane/internal/dispatch"
	"github.com/rustyguts/kazahane/internal/wire"
)

var upgrader = websocket.Upgrader{}

// startTestServer upgrades every incoming request to a websocket and hands
// the wrapped *Connection to the test over accepted, the same shape as
// httpapi's /ws handler but without the echo router in between.
func startTestServer(t *testing.T) (string, <-chan *Connection) {
	t.Helper()
	accepted := make(chan *Connection, 4)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- New(conn)
	})
	httpServer := httptest.NewServer(handler)
	t.Cleanup(httpServer.Close)
	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	return wsURL, accepted
}

func dialClient(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	return conn
}

func acceptServerConn(t *testing.T, accepted <-chan *Connection) *Connection {
	t.Helper()
	select {
	case c := <-accepted:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server to accept connection")
		return nil
	}
}

func TestSendRecvRoundTripOverRealWebsocket(t *testing.T) {
	wsURL, accepted := startTestServer(t)
	client := dialClient(t, wsURL)
	defer client.Close()
	server := acceptServerConn(t, accepted)
	defer server.Close()

	if err := server.Send(wire.HelloRequest{Token: []byte("tok")}); err != nil {
		t.Fatalf("server Send: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client ReadMessage: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("got message type %d, want BinaryMessage", msgType)
	}
	got, err := wire.Decode(data)
	if err != nil {
		t.Fatalf("wire.Decode: %v", err)
	}
	req, ok := got.(wire.HelloRequest)
	if !ok || string(req.Token) != "tok" {
		t.Fatalf("got %#v, want HelloRequest{tok}", got)
	}

	if err := client.WriteMessage(websocket.BinaryMessage, wire.Encode(wire.HelloResponse{Status: wire.HelloOK, Message: []byte("hi")})); err != nil {
		t.Fatalf("client WriteMessage: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	packet, err := server.Recv(ctx)
	if err != nil {
		t.Fatalf("server Recv: %v", err)
	}
	resp, ok := packet.(wire.HelloResponse)
	if !ok || resp.Status != wire.HelloOK || string(resp.Message) != "hi" {
		t.Fatalf("got %#v, want HelloResponse{OK,hi}", packet)
	}
}

func TestRecvTextFrameIsClassifiedAsProtocolError(t *testing.T) {
	wsURL, accepted := startTestServer(t)
	client := dialClient(t, wsURL)
	defer client.Close()
	server := acceptServerConn(t, accepted)
	defer server.Close()

	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("client WriteMessage: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := server.Recv(ctx)
	if err == nil {
		t.Fatal("expected an error for a text frame, got nil")
	}
	if !errors.Is(err, dispatch.ErrProtocol) {
		t.Fatalf("got %v, want dispatch.ErrProtocol", err)
	}
	if !errors.Is(err, ErrTextFrame) {
		t.Fatalf("got %v, want wrapped ErrTextFrame", err)
	}
}

func TestRecvUnknownTagIsClassifiedAsProtocolError(t *testing.T) {
	wsURL, accepted := startTestServer(t)
	client := dialClient(t, wsURL)
	defer client.Close()
	server := acceptServerConn(t, accepted)
	defer server.Close()

	frame := append([]byte(wire.Magic), 0xFF)
	if err := client.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("client WriteMessage: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := server.Recv(ctx)
	if err == nil {
		t.Fatal("expected an error for an unknown packet tag, got nil")
	}
	if !errors.Is(err, dispatch.ErrProtocol) {
		t.Fatalf("got %v, want dispatch.ErrProtocol", err)
	}
	if !errors.Is(err, wire.ErrUnknownTag) {
		t.Fatalf("got %v, want wrapped wire.ErrUnknownTag", err)
	}
}

func TestRecvCarrierCloseIsClassifiedAsCarrierError(t *testing.T) {
	wsURL, accepted := startTestServer(t)
	client := dialClient(t, wsURL)
	server := acceptServerConn(t, accepted)
	defer server.Close()

	client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := server.Recv(ctx)
	if err == nil {
		t.Fatal("expected an error after the client closed, got nil")
	}
	if !errors.Is(err, dispatch.ErrCarrier) {
		t.Fatalf("got %v, want dispatch.ErrCarrier", err)
	}
	if errors.Is(err, dispatch.ErrProtocol) {
		t.Fatalf("carrier close misclassified as ErrProtocol: %v", err)
	}
}
