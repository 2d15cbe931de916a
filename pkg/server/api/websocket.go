package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/StrathCole/ocw-bridge/pkg/feeder/price"
	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/logging"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

// Feed topics.
const (
	TopicBlocks = "blocks"
	TopicPrices = "prices"
)

// WebSocketServer streams blocks and NewPrice events to connected clients.
type WebSocketServer struct {
	logger    *logging.Logger
	upgrader  websocket.Upgrader
	converter price.Converter

	// Client management
	mu      sync.RWMutex
	clients map[*WebSocketClient]bool
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *WebSocketServer
	topics map[string]bool
	mu     sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type   string   `json:"type"`   // "subscribe", "unsubscribe", "ping"
	Topics []string `json:"topics"` // "blocks", "prices"
}

// SubscribedMessage acknowledges a subscription change.
type SubscribedMessage struct {
	Type   string   `json:"type"` // "subscribed"
	Topics []string `json:"topics"`
}

// BlockMessage announces a new block.
type BlockMessage struct {
	Type  string       `json:"type"` // "block"
	Block ledger.Block `json:"block"`
}

// NewPriceMessage relays a NewPrice event.
type NewPriceMessage struct {
	Type    string          `json:"type"` // "new_price"
	Height  uint64          `json:"height"`
	Price   uint64          `json:"price"`
	Decimal string          `json:"decimal"`
	Origin  *signing.Public `json:"origin,omitempty"`
	Address string          `json:"address,omitempty"`
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(scale uint64, logger *logging.Logger) *WebSocketServer {
	return &WebSocketServer{
		logger:    logger,
		converter: price.NewConverter(scale),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow all origins (configure CORS as needed)
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
	}
}

// Run broadcasts every block from blocks until ctx is cancelled, then
// disconnects all clients.
func (s *WebSocketServer) Run(ctx context.Context, blocks <-chan ledger.Block) error {
	defer s.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-blocks:
			if !ok {
				return nil
			}
			s.Broadcast(b)
		}
	}
}

// Broadcast sends the block and its NewPrice events to subscribed clients.
func (s *WebSocketServer) Broadcast(b ledger.Block) {
	s.publish(TopicBlocks, BlockMessage{Type: "block", Block: b})

	for _, ev := range b.Events {
		np, ok := ev.(oracle.NewPrice)
		if !ok {
			continue
		}
		msg := NewPriceMessage{
			Type:    "new_price",
			Height:  b.Height,
			Price:   np.Price,
			Decimal: s.converter.ToDecimal(np.Price).String(),
			Origin:  np.Origin,
		}
		if np.Origin != nil {
			msg.Address = np.Origin.Address()
		}
		s.publish(TopicPrices, msg)
	}
}

func (s *WebSocketServer) publish(topic string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal feed message", "topic", topic, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if !client.subscribed(topic) {
			continue
		}
		select {
		case client.send <- data:
		default:
			s.logger.Warn("Client send buffer full, skipping update", "topic", topic)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *WebSocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleWebSocket upgrades a connection and registers the client.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
		topics: map[string]bool{TopicBlocks: true, TopicPrices: true},
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr().String())
}

func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *WebSocketServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
}

// writePump sends messages to the WebSocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	c.conn.SetPingHandler(func(appData string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.reply(SubscribedMessage{Type: "subscribed", Topics: c.subscribe(msg.Topics)})
	case "unsubscribe":
		c.reply(SubscribedMessage{Type: "subscribed", Topics: c.unsubscribe(msg.Topics)})
	case "ping":
		c.reply(map[string]string{"type": "pong"})
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe replaces the topic set. No topics means all.
func (c *WebSocketClient) subscribe(topics []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.topics = make(map[string]bool)
	if len(topics) == 0 {
		topics = []string{TopicBlocks, TopicPrices}
	}
	for _, t := range topics {
		if t == TopicBlocks || t == TopicPrices {
			c.topics[t] = true
		}
	}

	c.server.logger.Debug("Client subscribed", "topics", topics)
	return c.topicsLocked()
}

func (c *WebSocketClient) unsubscribe(topics []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(topics) == 0 {
		c.topics = make(map[string]bool)
	}
	for _, t := range topics {
		delete(c.topics, t)
	}

	c.server.logger.Debug("Client unsubscribed", "topics", topics)
	return c.topicsLocked()
}

func (c *WebSocketClient) topicsLocked() []string {
	out := make([]string, 0, len(c.topics))
	for _, t := range []string{TopicBlocks, TopicPrices} {
		if c.topics[t] {
			out = append(out, t)
		}
	}
	return out
}

func (c *WebSocketClient) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

func (c *WebSocketClient) reply(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	// the client may already be unregistered
	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	if !c.server.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
