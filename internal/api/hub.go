package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/docs"
)

const hubWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local daemon, any origin
	},
}

// Event is the change-feed frame sent to subscribers of a document.
type Event struct {
	Type       string    `json:"type"`
	DocumentID string    `json:"documentId"`
	MessageID  string    `json:"messageId"`
	Role       docs.Role `json:"role"`
}

// FromAssistant reports whether the event announces an assistant reply.
func (e Event) FromAssistant() bool {
	return e.Role == docs.RoleAssistant
}

// Hub fans message changes out to websocket subscribers, grouped by document.
type Hub struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]*sync.Mutex
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, clients: map[string]map[*websocket.Conn]*sync.Mutex{}}
}

// Publish notifies every subscriber of msg's document.
func (h *Hub) Publish(msg docs.Message) {
	data, err := json.Marshal(Event{Type: "message", DocumentID: msg.DocumentID, MessageID: msg.ID, Role: msg.Role})
	if err != nil {
		h.logger.Error("failed to marshal change event", zap.Error(err))
		return
	}

	h.mu.RLock()
	subscribers := h.clients[msg.DocumentID]
	conns := make([]*websocket.Conn, 0, len(subscribers))
	mutexes := make([]*sync.Mutex, 0, len(subscribers))
	for conn, mutex := range subscribers {
		conns = append(conns, conn)
		mutexes = append(mutexes, mutex)
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()
		if err != nil {
			h.logger.Warn("failed to send change event", zap.String("document_id", msg.DocumentID), zap.Error(err))
		}
	}
}

// Subscribers returns how many connections follow documentID.
func (h *Hub) Subscribers(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[documentID])
}

// Serve upgrades the request and keeps the connection registered until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, documentID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	h.mu.Lock()
	if h.clients[documentID] == nil {
		h.clients[documentID] = map[*websocket.Conn]*sync.Mutex{}
	}
	h.clients[documentID][conn] = &sync.Mutex{}
	h.mu.Unlock()
	h.logger.Debug("change feed subscribed", zap.String("document_id", documentID))

	defer func() {
		h.mu.Lock()
		delete(h.clients[documentID], conn)
		if len(h.clients[documentID]) == 0 {
			delete(h.clients, documentID)
		}
		h.mu.Unlock()
		conn.Close()
		h.logger.Debug("change feed closed", zap.String("document_id", documentID))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}
	}
}
