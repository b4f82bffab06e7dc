package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agora-markets/agora/internal/market"
)

// envelope is the wire format for one market event.
type envelope struct {
	Type  string       `json:"type"`
	Topic string       `json:"topic"`
	Data  market.Event `json:"data"`
}

// ServerConfig holds tunable parameters for the feed server.
type ServerConfig struct {
	// PingInterval is how often the server pings each client to keep the
	// connection alive and detect dead peers.
	PingInterval time.Duration

	// WriteTimeout is the per-message write deadline. A client that cannot
	// keep up is disconnected rather than allowed to stall the feed.
	WriteTimeout time.Duration

	// Buffer sizes for the underlying TCP connection.
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultServerConfig returns defaults tuned for low-latency event delivery.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		PingInterval:    15 * time.Second,
		WriteTimeout:    5 * time.Second,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Server exposes the market event feed over WebSocket. Every connected
// client receives each event as a JSON envelope; clients that fall behind
// are dropped so the feed never backs up into the engines.
type Server struct {
	cfg      ServerConfig
	feed     *market.Feed
	upgrader websocket.Upgrader
}

// NewServer creates a Server streaming events from the given feed.
func NewServer(cfg ServerConfig, feed *market.Feed) *Server {
	return &Server{
		cfg:  cfg,
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until
// the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade failed: %v", err)
		return
	}
	go s.serve(conn)
}

func (s *Server) serve(conn *websocket.Conn) {
	events := s.feed.Subscribe()
	defer func() {
		s.feed.Unsubscribe(events)
		conn.Close()
	}()

	// Drain inbound frames so pongs and close frames are processed; the
	// feed is one-way and client payloads are discarded.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(envelope{
				Type:  ev.Kind(),
				Topic: ev.Topic().Hex(),
				Data:  ev,
			})
			if err != nil {
				log.Printf("stream: marshal %s event: %v", ev.Kind(), err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
