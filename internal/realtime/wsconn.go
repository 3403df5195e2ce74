package realtime

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 75 * time.Second
	pingPeriod   = 60 * time.Second
	readLimit    = 1 << 10
	sendBuffer   = 32
)

// wsConn adapts a gorilla websocket connection to the Conn interface.
// Writes go through a buffered channel drained by a dedicated goroutine, so
// a slow client backs up its own buffer and nobody else's.
type wsConn struct {
	wc   *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func newWSConn(wc *websocket.Conn) *wsConn {
	return &wsConn{
		wc:   wc,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send enqueues ev without blocking. A full buffer means the client has
// stopped draining; treat it as gone.
func (c *wsConn) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrConnectionLost
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return ErrConnectionLost
	}
}

// Close is idempotent and safe to call from any goroutine.
func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *wsConn) writePump() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	defer c.wc.Close()
	for {
		select {
		case ev := <-c.send:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.wc.WriteJSON(ev); err != nil {
				return
			}
		case <-t.C:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.wc.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readLoop blocks until the client disconnects. Inbound frames are only
// keepalives; their contents are discarded.
func (c *wsConn) readLoop() {
	c.wc.SetReadLimit(readLimit)
	c.wc.SetReadDeadline(time.Now().Add(pongTimeout))
	c.wc.SetPongHandler(func(string) error {
		return c.wc.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.wc.ReadMessage(); err != nil {
			return
		}
		c.wc.SetReadDeadline(time.Now().Add(pongTimeout))
	}
}

var upgrader = websocket.Upgrader{
	// The API is already open to any origin via the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the request to a websocket, registers the connection
// under identity, and blocks until the client goes away. The caller is
// expected to have validated the identity.
func ServeWS(reg *Registry, identity string, w http.ResponseWriter, r *http.Request) {
	wc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade for %s failed: %v", identity, err)
		return
	}
	c := newWSConn(wc)
	reg.Register(identity, c)
	go c.writePump()
	c.readLoop()
	reg.Unregister(identity, c)
	_ = c.Close()
}
