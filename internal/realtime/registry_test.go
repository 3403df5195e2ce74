package realtime

import (
	"sort"
	"sync"
	"testing"
)

// fakeConn records delivered events and can be flipped into a dead state
// where every send fails.
type fakeConn struct {
	mu     sync.Mutex
	events []Event
	dead   bool
	closed bool
}

func (c *fakeConn) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return ErrConnectionLost
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestBroadcastDeliversToAllConnections(t *testing.T) {
	reg := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	reg.Register("p1", a)
	reg.Register("p1", b)

	ev := Event{Type: EventGigsChanged, GigID: "g1"}
	reg.Broadcast("p1", ev)

	for name, c := range map[string]*fakeConn{"a": a, "b": b} {
		got := c.received()
		if len(got) != 1 || got[0] != ev {
			t.Fatalf("conn %s received %v, want [%v]", name, got, ev)
		}
	}
}

func TestBroadcastAfterUnregisterSkipsClosedConnection(t *testing.T) {
	reg := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	reg.Register("p1", a)
	reg.Register("p1", b)

	reg.Unregister("p1", a)
	reg.Broadcast("p1", Event{Type: EventGigsChanged, GigID: "g1"})

	if got := a.received(); len(got) != 0 {
		t.Fatalf("unregistered conn received %v, want nothing", got)
	}
	if got := b.received(); len(got) != 1 {
		t.Fatalf("remaining conn received %d events, want 1", len(got))
	}
}

func TestBroadcastDropsDeadConnectionAndContinues(t *testing.T) {
	reg := NewRegistry()
	dead := &fakeConn{dead: true}
	live1, live2 := &fakeConn{}, &fakeConn{}
	reg.Register("p1", dead)
	reg.Register("p1", live1)
	reg.Register("p1", live2)

	reg.Broadcast("p1", Event{Type: EventGigsChanged, GigID: "g1"})

	if got := len(live1.received()); got != 1 {
		t.Fatalf("live1 received %d events, want 1", got)
	}
	if got := len(live2.received()); got != 1 {
		t.Fatalf("live2 received %d events, want 1", got)
	}
	if !dead.closed {
		t.Fatal("dead connection was not closed")
	}

	// The dead conn must be gone: a second broadcast reaches only the
	// two live ones.
	reg.Broadcast("p1", Event{Type: EventGigsChanged, GigID: "g2"})
	if got := len(dead.received()); got != 0 {
		t.Fatalf("dead conn received %d events, want 0", got)
	}
	if got := len(live1.received()); got != 2 {
		t.Fatalf("live1 received %d events after second broadcast, want 2", got)
	}
}

func TestUnregisterRemovesEmptyIdentity(t *testing.T) {
	reg := NewRegistry()
	a := &fakeConn{}
	reg.Register("p1", a)
	reg.Register("p2", &fakeConn{})

	reg.Unregister("p1", a)

	got := reg.ActiveIdentities()
	sort.Strings(got)
	if len(got) != 1 || got[0] != "p2" {
		t.Fatalf("ActiveIdentities() = %v, want [p2]", got)
	}
}

func TestBroadcastToUnknownIdentityIsNoop(t *testing.T) {
	reg := NewRegistry()
	reg.Broadcast("ghost", Event{Type: EventGigsChanged})
	if got := reg.ActiveIdentities(); len(got) != 0 {
		t.Fatalf("ActiveIdentities() = %v, want empty", got)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			reg.Register("p1", c)
			reg.Broadcast("p1", Event{Type: EventGigsChanged, GigID: "g1"})
			reg.Unregister("p1", c)
		}()
	}
	wg.Wait()

	if got := reg.ActiveIdentities(); len(got) != 0 {
		t.Fatalf("ActiveIdentities() = %v, want empty after all unregister", got)
	}
}

func TestNotifierFansOutPerGent(t *testing.T) {
	reg := NewRegistry()
	p1, p2, p3 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	reg.Register("p1", p1)
	reg.Register("p2", p2)
	reg.Register("p3", p3)

	n := NewNotifier(reg)
	n.GigsChanged("g1", "p1", "p2")

	want := Event{Type: EventGigsChanged, GigID: "g1"}
	for name, c := range map[string]*fakeConn{"p1": p1, "p2": p2} {
		got := c.received()
		if len(got) != 1 || got[0] != want {
			t.Fatalf("%s received %v, want [%v]", name, got, want)
		}
	}
	if got := p3.received(); len(got) != 0 {
		t.Fatalf("p3 received %v, want nothing", got)
	}
}
