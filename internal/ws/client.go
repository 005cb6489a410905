package ws

import (
	"log"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Client is one live connection with its resolved identity and the rooms it
// has joined. The rooms set is owned by the hub and only touched under the
// hub's lock.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity models.Identity
	send     chan Outbound
	rooms    map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, identity models.Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan Outbound, sendBuffer),
		rooms:    make(map[string]struct{}),
	}
}

// enqueue queues an event for delivery, dropping it when the client cannot
// keep up. Per-client channel order is the delivery order.
func (c *Client) enqueue(ev Outbound) {
	select {
	case c.send <- ev:
	default:
		log.Printf("[WS] dropping %s for slow client %s", ev.Event, c.identity.Key())
	}
}

// readPump reads frames and hands them to the dispatcher. Each connection's
// inbound events are handled on this goroutine, so a slow storage call here
// never stalls other connections.
func (c *Client) readPump(dispatch func(*Client, Inbound)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var in Inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] read error from %s: %v", c.identity.Key(), err)
			}
			return
		}
		dispatch(c, in)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
