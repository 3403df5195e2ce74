package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func connCount(reg *Registry, identity string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.conns[identity])
}

func waitForConns(t *testing.T, reg *Registry, identity string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if connCount(reg, identity) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connections for %s = %d, want %d", identity, connCount(reg, identity), want)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	wc, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return wc
}

func TestServeWSDeliversBroadcasts(t *testing.T) {
	reg := NewRegistry()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(reg, "p1", w, r)
	}))
	defer srv.Close()

	c1 := dial(t, srv)
	defer c1.Close()
	c2 := dial(t, srv)
	waitForConns(t, reg, "p1", 2)

	want := Event{Type: EventGigsChanged, GigID: "g1"}
	reg.Broadcast("p1", want)

	for i, wc := range []*websocket.Conn{c1, c2} {
		wc.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got Event
		if err := wc.ReadJSON(&got); err != nil {
			t.Fatalf("client %d read: %v", i+1, err)
		}
		if got != want {
			t.Fatalf("client %d got %+v, want %+v", i+1, got, want)
		}
	}

	// Closing one client unregisters it; the survivor still gets events.
	c2.Close()
	waitForConns(t, reg, "p1", 1)

	want = Event{Type: EventGigsChanged, GigID: "g2"}
	reg.Broadcast("p1", want)

	c1.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := c1.ReadJSON(&got); err != nil {
		t.Fatalf("survivor read: %v", err)
	}
	if got != want {
		t.Fatalf("survivor got %+v, want %+v", got, want)
	}
}

func TestWSConnSendFailsWhenBufferFull(t *testing.T) {
	c := &wsConn{send: make(chan Event, 1), done: make(chan struct{})}
	if err := c.Send(Event{Type: EventGigsChanged}); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	// No write pump draining: the buffer is full, the client counts as lost.
	if err := c.Send(Event{Type: EventGigsChanged}); err != ErrConnectionLost {
		t.Fatalf("second Send = %v, want ErrConnectionLost", err)
	}
}

func TestWSConnSendFailsAfterClose(t *testing.T) {
	c := &wsConn{send: make(chan Event, 8), done: make(chan struct{})}
	_ = c.Close()
	_ = c.Close() // idempotent
	if err := c.Send(Event{Type: EventGigsChanged}); err != ErrConnectionLost {
		t.Fatalf("Send after close = %v, want ErrConnectionLost", err)
	}
}
