package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

// ErrNoClient is returned by Navigate when no UI is connected
var ErrNoClient = errors.New("no websocket client is connected")

const (
	clientSendBuffer = 64
	writeTimeout     = 5 * time.Second
)

// EventType is the kind of a pushed event
type EventType string

const (
	EventTypeMessage  EventType = "message"
	EventTypeNavigate EventType = "navigate"
)

// Event is pushed to every connected UI
type Event struct {
	Type        EventType         `json:"type"`
	CharacterID types.CharacterID `json:"character_id,omitempty"`
	Message     *model.Message    `json:"message,omitempty"`
	PageID      string            `json:"page_id,omitempty"`
}

type wsClient struct {
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans events out to websocket clients and serves as the navigation handler
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

var _ interfaces.Navigator = &Hub{}

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.close()
}

// Broadcast sends ev to every client and returns how many received it.
// A client whose buffer is full is disconnected.
func (h *Hub) Broadcast(ctx context.Context, ev Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		logging.From(ctx).Error("failed to marshal event", logging.ErrAttr(err), "type", ev.Type)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
			logging.From(ctx).Warn("websocket client is too slow, disconnecting")
			delete(h.clients, c)
			c.close()
		}
	}
	return sent
}

// Navigate implements interfaces.Navigator by pushing a navigate event
func (h *Hub) Navigate(ctx context.Context, pageID string) error {
	if h.Broadcast(ctx, Event{Type: EventTypeNavigate, PageID: pageID}) == 0 {
		return goerr.Wrap(ErrNoClient, "failed to navigate", goerr.V("page_id", pageID))
	}
	return nil
}

// publish forwards conversation store events
func (h *Hub) publish(ev usecase.ConversationEvent) {
	msg := ev.Message
	h.Broadcast(context.Background(), Event{
		Type:        EventTypeMessage,
		CharacterID: ev.CharacterID,
		Message:     &msg,
	})
}

// ServeHTTP upgrades the request and streams events until either side closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logging.From(r.Context()).Warn("failed to accept websocket", logging.ErrAttr(err))
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "bye"); closeErr != nil {
			logging.From(r.Context()).Debug("websocket close", "error", closeErr.Error())
		}
	}()

	c := &wsClient{
		send: make(chan []byte, clientSendBuffer),
		done: make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	// clients only listen; CloseRead handles control frames and cancels on close
	ctx := ws.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if websocket.CloseStatus(err) == -1 {
					logging.From(ctx).Warn("failed to write websocket message", logging.ErrAttr(err))
				}
				return
			}
		}
	}
}
