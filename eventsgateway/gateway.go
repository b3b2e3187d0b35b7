// Package eventsgateway broadcasts runtime events over WebSocket so
// operators and dashboards can watch pipeline/node/worker lifecycle
// events without polling Prometheus or tailing logs.
package eventsgateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are typically served from a different origin than the
	// gateway; tighten CheckOrigin in deployments that need it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireEvent is the JSON shape sent to subscribers.
type wireEvent struct {
	Type       events.EventType `json:"type"`
	Timestamp  time.Time        `json:"timestamp"`
	PipelineID string           `json:"pipeline_id,omitempty"`
	NodeID     string           `json:"node_id,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
	Data       events.EventData `json:"data,omitempty"`
}

// Gateway subscribes to an events.EventBus and fans every event out to
// connected WebSocket clients as JSON.
type Gateway struct {
	bus *events.EventBus
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan wireEvent
}

// New creates a Gateway that will broadcast every event published on bus.
// Call Subscribe once to start forwarding.
func New(bus *events.EventBus) *Gateway {
	return &Gateway{
		bus:     bus,
		log:     logger.DefaultLogger.With("component", "eventsgateway"),
		clients: make(map[*client]struct{}),
	}
}

// Subscribe registers the gateway's fan-out listener on the bus. It must
// be called before ServeHTTP handles any connections.
func (g *Gateway) Subscribe() {
	g.bus.SubscribeAll(g.broadcast)
}

func (g *Gateway) broadcast(e *events.Event) {
	we := wireEvent{
		Type:       e.Type,
		Timestamp:  e.Timestamp,
		PipelineID: e.PipelineID,
		NodeID:     e.NodeID,
		SessionID:  e.SessionID,
		Data:       e.Data,
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.clients {
		select {
		case c.send <- we:
		default:
			// Slow client: drop the event rather than block the bus's
			// dispatch goroutine (§5 backpressure applies to pipeline
			// edges, not to best-effort observers).
			g.log.Warn("eventsgateway client send buffer full, dropping event")
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events to it
// until the client disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan wireEvent, clientSendSize)}
	g.addClient(c)
	defer g.removeClient(c)

	go g.readPump(c)
	g.writePump(c)
}

// readPump discards client input but watches for close/error so the
// gateway notices disconnects promptly.
func (g *Gateway) readPump(c *client) {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) writePump(c *client) {
	defer c.conn.Close()
	for we := range c.send {
		data, err := json.Marshal(we)
		if err != nil {
			g.log.Warn("marshal event failed", "error", err)
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		// gorilla/websocket requires serialized writes per connection;
		// writePump is the only goroutine that writes to c.conn.
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (g *Gateway) addClient(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[c] = struct{}{}
}

func (g *Gateway) removeClient(c *client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
	close(c.send)
}

// ClientCount returns the number of currently connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}
