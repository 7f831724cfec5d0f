// Package notify pushes session updates to WebSocket subscribers and hot
// reloads the event rules file. Both are optional surfaces; the core
// pipeline never depends on them.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Update is a snapshot pushed to subscribers after a session mutation.
type Update struct {
	Kind      string    `json:"kind"` // session, timeline
	Owner     string    `json:"owner"`
	Date      string    `json:"date"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans session updates out to connected WebSocket clients.
type Broadcaster struct {
	clients    map[subscriber]bool
	broadcast  chan Update
	register   chan subscriber
	unregister chan subscriber
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// subscriber allows both real connections and test fakes.
type subscriber interface {
	sendChannel() chan []byte
	close()
}

type wsSubscriber struct {
	b    *Broadcaster
	conn *websocket.Conn
	send chan []byte
}

func (s *wsSubscriber) sendChannel() chan []byte { return s.send }

func (s *wsSubscriber) close() {
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// NewBroadcaster creates a broadcaster. Call Run in a goroutine to start it.
func NewBroadcaster() *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broadcaster{
		clients:    make(map[subscriber]bool),
		broadcast:  make(chan Update, 256),
		register:   make(chan subscriber),
		unregister: make(chan subscriber),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registration and broadcast traffic until Stop is called.
func (b *Broadcaster) Run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.clients[sub] = true
			count := len(b.clients)
			b.mu.Unlock()
			log.Printf("notify: subscriber connected (total: %d)", count)

		case sub := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[sub]; ok {
				delete(b.clients, sub)
				close(sub.sendChannel())
			}
			count := len(b.clients)
			b.mu.Unlock()
			log.Printf("notify: subscriber disconnected (total: %d)", count)

		case update := <-b.broadcast:
			data, err := json.Marshal(update)
			if err != nil {
				log.Printf("notify: failed to encode update: %v", err)
				continue
			}
			b.mu.Lock()
			for sub := range b.clients {
				select {
				case sub.sendChannel() <- data:
				default:
					// Slow subscriber; drop it rather than block the fan-out.
					close(sub.sendChannel())
					delete(b.clients, sub)
				}
			}
			b.mu.Unlock()

		case <-b.ctx.Done():
			return
		}
	}
}

// Stop shuts down the broadcaster and disconnects all subscribers.
func (b *Broadcaster) Stop() {
	b.cancel()
	b.mu.Lock()
	for sub := range b.clients {
		close(sub.sendChannel())
		sub.close()
	}
	b.clients = make(map[subscriber]bool)
	b.mu.Unlock()
}

// Publish queues an update for all subscribers. A full queue drops the
// update; subscribers resync from the next one.
func (b *Broadcaster) Publish(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}
	select {
	case b.broadcast <- update:
	default:
		log.Println("notify: broadcast queue full, dropping update")
	}
}

// ServeHTTP upgrades the request to a WebSocket subscription.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		log.Printf("notify: websocket upgrade failed: %v", err)
		return
	}

	sub := &wsSubscriber{
		b:    b,
		conn: conn,
		send: make(chan []byte, 256),
	}
	b.register <- sub

	go sub.writePump()
	go sub.readPump()
}

func (s *wsSubscriber) writePump() {
	defer func() {
		s.b.unregister <- s
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range s.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains inbound frames to detect disconnection; subscribers are
// read-only.
func (s *wsSubscriber) readPump() {
	defer func() {
		s.b.unregister <- s
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := s.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
