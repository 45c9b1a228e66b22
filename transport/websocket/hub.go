package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/playlab/roomserver/channel"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Conn is one WebSocket connection bound to a registered channel client. It
// doubles as the client's outbound sink.
type Conn struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	clientID string
}

// Send implements channel.Sink: the envelope is serialized and queued on the
// connection's outbound channel.
func (c *Conn) Send(msg channel.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		// Slow consumer: drop the connection rather than block the router.
		c.hub.unregister <- c
		return websocket.ErrCloseSent
	}
}

// Close implements channel.Sink.
func (c *Conn) Close() error {
	close(c.send)
	return nil
}

// Hub maintains the set of active connections for both endpoint roles and
// feeds inbound envelopes into the channel's serialized queue.
type Hub struct {
	channel *channel.Channel

	conns map[*Conn]bool

	register   chan *Conn
	unregister chan *Conn
}

// NewHub creates a hub bound to a channel.
func NewHub(ch *channel.Channel) *Hub {
	return &Hub{
		channel:    ch,
		conns:      make(map[*Conn]bool),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.conns[conn] = true
			log.Printf("[ws] %s connected (total conns: %d)", conn.clientID, len(h.conns))

		case conn := <-h.unregister:
			if _, ok := h.conns[conn]; ok {
				delete(h.conns, conn)
				h.channel.Post(func() {
					h.channel.Disconnect(conn.clientID)
				})
				log.Printf("[ws] %s disconnected (total conns: %d)", conn.clientID, len(h.conns))
			}
		}
	}
}

// ServePlayerWS handles player-facing WebSocket requests.
func (h *Hub) ServePlayerWS(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, channel.RolePlayer)
}

// ServeAdminWS handles admin-facing WebSocket requests. Monitors connect here
// too, with ?role=monitor.
func (h *Hub) ServeAdminWS(w http.ResponseWriter, r *http.Request) {
	role := channel.RoleAdmin
	if r.URL.Query().Get("role") == string(channel.RoleMonitor) {
		role = channel.RoleMonitor
	}
	h.serve(w, r, role)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, role channel.Role) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	conn := &Conn{
		hub:  h,
		conn: wsConn,
		send: make(chan []byte, 256),
	}

	// Registration is synchronous so a duplicate id can be refused before
	// any message flows.
	id := r.URL.Query().Get("id")
	client, err := h.channel.Connect(id, role, conn)
	if err != nil {
		log.Printf("[ws] connect refused for %q: %v", id, err)
		notice := channel.SayText("", id, err.Error())
		if data, encErr := notice.Encode(); encErr == nil {
			_ = wsConn.WriteMessage(websocket.TextMessage, data)
		}
		wsConn.Close()
		return
	}
	conn.clientID = client.ID

	h.register <- conn

	go conn.writePump()
	go conn.readPump()
}

// readPump pumps envelopes from the WebSocket connection into the channel.
// One reader goroutine per connection preserves per-client message order.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error from %s: %v", c.clientID, err)
			}
			break
		}
		c.hub.channel.Ingest(c.clientID, raw)
	}
}

// writePump pumps queued envelopes to the WebSocket connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The sink was closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
