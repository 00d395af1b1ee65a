package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/strefethen/sonos-display-go/internal/display"
	"github.com/strefethen/sonos-display-go/internal/nowplaying"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Renderers run on the local network
	},
}

// Message is the frame pushed to renderer clients.
type Message struct {
	Snapshot nowplaying.PlaybackSnapshot `json:"snapshot"`
	Change   nowplaying.ChangeResult     `json:"change"`
	Display  display.Frame               `json:"display"`
}

// Source is the engine surface the hub needs.
type Source interface {
	Snapshot() nowplaying.PlaybackSnapshot
	Subscribe() chan nowplaying.Event
	Unsubscribe(ch chan nowplaying.Event)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans engine events out to websocket renderers. Clients that fall
// behind are disconnected.
type Hub struct {
	logger  *log.Logger
	source  Source
	detail  *display.DetailControls
	events  chan nowplaying.Event
	changes <-chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub subscribed to source. detail may be nil.
func NewHub(source Source, detail *display.DetailControls, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	h := &Hub{
		logger:  logger,
		source:  source,
		detail:  detail,
		events:  source.Subscribe(),
		clients: make(map[*client]struct{}),
	}
	if detail != nil {
		h.changes = detail.Watch()
	}
	return h
}

// RegisterRoutes wires the websocket endpoint.
func RegisterRoutes(router chi.Router, hub *Hub) {
	router.HandleFunc("/ws", hub.ServeWS)
}

// Run broadcasts engine events until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.source.Unsubscribe(h.events)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case event, ok := <-h.events:
			if !ok {
				h.closeAll()
				return nil
			}
			h.broadcast(h.message(event.Snapshot, event.Change))
		case <-h.changes:
			h.broadcast(h.message(h.source.Snapshot(), nowplaying.ChangeResult{}))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and sends the current snapshot immediately.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade failed - error already written to response
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	snapshot := h.source.Snapshot()
	c.send <- h.encode(h.message(snapshot, nowplaying.ChangeResult{Status: snapshot.Status}))

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("STREAM: Renderer connected from %s (%d connected)", r.RemoteAddr, count)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) message(snapshot nowplaying.PlaybackSnapshot, change nowplaying.ChangeResult) Message {
	showDetails := h.detail != nil && h.detail.ShowDetails()
	return Message{
		Snapshot: snapshot,
		Change:   change,
		Display:  display.Compose(snapshot, change.IsNewTrack, showDetails),
	}
}

func (h *Hub) encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("STREAM: Failed to encode message: %v", err)
		return nil
	}
	return data
}

func (h *Hub) broadcast(msg Message) {
	data := h.encode(msg)
	if data == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Println("STREAM: Dropping slow renderer")
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, exists := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if exists {
		c.close()
		h.logger.Println("STREAM: Renderer disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
