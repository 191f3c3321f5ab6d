package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arcadia-launcher/arcadia/backend/internal/domain/registry"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same-host desktop shell; no cross-origin peers
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

// Broadcaster fans registry events out to connected WebSocket clients.
// It implements registry.EventSink; Publish never blocks the registry,
// slow clients lose events rather than stalling lifecycle operations.
type Broadcaster struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan registry.Event
}

// NewBroadcaster creates an event broadcaster
func NewBroadcaster(logger *logging.Logger) *Broadcaster {
	return &Broadcaster{
		logger:  logger,
		clients: make(map[*client]bool),
	}
}

// WithMetrics attaches the metrics collector
func (b *Broadcaster) WithMetrics(metrics *monitoring.Metrics) *Broadcaster {
	b.metrics = metrics
	return b
}

// Publish delivers an event to every connected client without blocking
func (b *Broadcaster) Publish(event registry.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		select {
		case c.send <- event:
		default:
			// Client is not keeping up; drop the event for it
		}
	}
}

// HandleConnection upgrades the request and streams events until the
// client disconnects.
func (b *Broadcaster) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan registry.Event, sendBuffer)}
	b.register(cl)
	defer b.unregister(cl)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Reads are discarded; the socket is one-way. The loop exists
		// to notice the close handshake and pong frames.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-cl.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Clients returns the number of connected clients
func (b *Broadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) register(cl *client) {
	b.mu.Lock()
	b.clients[cl] = true
	count := len(b.clients)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.WSConnections.Set(float64(count))
	}
	b.logger.Debug("WebSocket client connected", zap.Int("clients", count))
}

func (b *Broadcaster) unregister(cl *client) {
	b.mu.Lock()
	delete(b.clients, cl)
	count := len(b.clients)
	b.mu.Unlock()

	cl.conn.Close()
	if b.metrics != nil {
		b.metrics.WSConnections.Set(float64(count))
	}
	b.logger.Debug("WebSocket client disconnected", zap.Int("clients", count))
}
