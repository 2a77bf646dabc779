package boundary

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ws281x-core/ledctl/internal/bus"
)

// OutboundMessage is what gets marshaled to every websocket client.
type OutboundMessage struct {
	Kind      bus.Kind               `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// inboundEnvelope is the wire shape clients send commands in.
type inboundEnvelope struct {
	Kind      Kind                   `json:"kind"`
	ZoneID    string                 `json:"zone_id"`
	RequestID string                 `json:"request_id"`
	Payload   map[string]interface{} `json:"payload"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan OutboundMessage
}

// WSHub is the websocket transport adapter: a register/unregister/
// broadcast hub that dispatches through a Boundary and subscribes to
// the Event Bus instead of being pushed to directly.
type WSHub struct {
	mu       sync.RWMutex
	clients  map[string]*wsClient
	boundary *Boundary
	log      *zap.SugaredLogger
}

// NewWSHub builds a hub bound to boundary and subscribes to the bus
// kinds clients care about, applying echo suppression: a
// command-sourced event is withheld from the client whose command
// caused it, everything else is broadcast to everyone.
func NewWSHub(boundary *Boundary, b *bus.Bus, log *zap.SugaredLogger) *WSHub {
	h := &WSHub{clients: make(map[string]*wsClient), boundary: boundary, log: log}

	for _, kind := range []bus.Kind{
		bus.KindZoneStateChanged,
		bus.KindAnimationStarted,
		bus.KindAnimationStopped,
		bus.KindParamChanged,
		bus.KindModeChanged,
		bus.KindFPSUpdate,
		bus.KindLogEmitted,
	} {
		b.Subscribe(kind, h.onEvent, bus.ModeAsyncSequential, nil)
	}
	return h
}

func (h *WSHub) onEvent(e bus.Event) {
	msg := OutboundMessage{Kind: e.Kind, Timestamp: e.Timestamp, Data: e.Payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if e.SourceType == bus.SourceCommand && e.OriginClientID == c.id {
			continue
		}
		select {
		case c.send <- msg:
		default:
			if h.log != nil {
				h.log.Warnw("ws: client send buffer full, dropping message", "client", c.id)
			}
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle is the fiber/websocket connection handler; register it with
// app.Get("/ws", websocket.New(hub.Handle)).
func (h *WSHub) Handle(c *websocket.Conn) {
	client := &wsClient{id: c.Query("client_id", randomClientID()), conn: c, send: make(chan OutboundMessage, 256)}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

func (h *WSHub) readPump(c *wsClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		result := h.boundary.Dispatch(Command{
			Kind:      env.Kind,
			ClientID:  c.id,
			RequestID: env.RequestID,
			ZoneID:    env.ZoneID,
			Payload:   env.Payload,
		}, bus.SourceCommand)

		ack, _ := json.Marshal(map[string]interface{}{
			"kind": "command_result", "request_id": env.RequestID, "ok": result.OK, "error": result.Error, "data": result.Data,
		})
		_ = c.conn.WriteMessage(websocket.TextMessage, ack)
	}
}

func (h *WSHub) writePump(c *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			body, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func randomClientID() string {
	return "client-" + time.Now().Format("150405.000000000")
}
