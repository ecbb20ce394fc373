package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingHandler struct {
	mu           sync.Mutex
	frames       []string
	disconnected []string
}

func (h *recordingHandler) Dispatch(_ context.Context, connID string, raw []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, connID+":"+string(raw))
	return nil
}

func (h *recordingHandler) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, connID)
}

// attach registers a connection-less client directly, without pumps.
func attach(h *Hub) *Client {
	c := NewClient(nil, h, "127.0.0.1:12345")
	h.mutex.Lock()
	h.clients[c.id] = c
	h.mutex.Unlock()
	return c
}

// TestNewClientAssignsUniqueIDs verifies each client gets its own id.
func TestNewClientAssignsUniqueIDs(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := NewClient(nil, hub, "127.0.0.1:1")
	b := NewClient(nil, hub, "127.0.0.1:2")

	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID(), b.ID())
	}
	if cap(a.send) != sendBufferSize {
		t.Errorf("expected send buffer %d, got %d", sendBufferSize, cap(a.send))
	}
}

// TestHubSendTargetsOneConnection verifies Send queues only for its target.
func TestHubSendTargetsOneConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := attach(hub)
	b := attach(hub)

	if !hub.Send(a.ID(), []byte("hello")) {
		t.Fatal("Send to a registered client failed")
	}
	if hub.Send("missing", []byte("hello")) {
		t.Error("Send to an unknown connection should fail")
	}

	select {
	case msg := <-a.GetSendChan():
		if string(msg) != "hello" {
			t.Errorf("unexpected frame %q", msg)
		}
	default:
		t.Fatal("expected a queued frame")
	}
	select {
	case msg := <-b.GetSendChan():
		t.Errorf("other client received %q", msg)
	default:
	}
}

// TestHubDropsClientWithFullBuffer verifies a slow consumer is removed
// instead of blocking delivery.
func TestHubDropsClientWithFullBuffer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := attach(hub)

	for i := 0; i < sendBufferSize; i++ {
		if !hub.Send(c.ID(), []byte("x")) {
			t.Fatalf("send %d failed before the buffer was full", i)
		}
	}
	if hub.Send(c.ID(), []byte("overflow")) {
		t.Fatal("send into a full buffer should fail")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected slow client to be removed, %d remain", hub.ClientCount())
	}

	drained := 0
	for range c.GetSendChan() {
		drained++
	}
	if drained != sendBufferSize {
		t.Errorf("expected %d queued frames before close, got %d", sendBufferSize, drained)
	}
}

// TestHubCloseFlushesQueuedFrames verifies frames sent before Close are
// still delivered ahead of the close.
func TestHubCloseFlushesQueuedFrames(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := attach(hub)

	hub.Send(c.ID(), []byte("banned"))
	hub.Close(c.ID())
	hub.Close(c.ID())

	msg, ok := <-c.GetSendChan()
	if !ok || string(msg) != "banned" {
		t.Fatalf("expected queued frame before close, got %q ok=%v", msg, ok)
	}
	if _, ok := <-c.GetSendChan(); ok {
		t.Error("expected send channel to be closed")
	}
	if hub.Send(c.ID(), []byte("late")) {
		t.Error("Send after Close should fail")
	}
}

// TestProcessMessageForwardsToHandler verifies inbound frames reach the
// handler tagged with the connection id.
func TestProcessMessageForwardsToHandler(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	h := &recordingHandler{}
	hub.SetHandler(h)
	c := NewClient(nil, hub, "127.0.0.1:1")

	if !c.processMessage([]byte(`{"event":"heartbeat"}`)) {
		t.Fatal("processMessage rejected the frame")
	}
	if len(h.frames) != 1 || h.frames[0] != c.ID()+`:{"event":"heartbeat"}` {
		t.Errorf("unexpected frames %v", h.frames)
	}
}

// TestHubShutdownWithoutClients verifies Shutdown returns promptly.
func TestHubShutdownWithoutClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	if err := hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}

// TestHubIgnoresNilRegistration verifies a nil client does not crash Run.
func TestHubIgnoresNilRegistration(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	select {
	case hub.GetRegisterChan() <- nil:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("register channel blocked")
	}
	if err := hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}
