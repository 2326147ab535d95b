package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans board change events out to every WebSocket subscribed to that
// board.
type Hub struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewHub() *Hub {
	return &Hub{connections: make(map[uuid.UUID]map[*websocket.Conn]bool)}
}

// BroadcastBoardEvent sends an event to all WebSocket connections watching a
// given board.
func (h *Hub) BroadcastBoardEvent(boardID uuid.UUID, event string, payload any) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[boardID]
	if !exists {
		return
	}

	message, err := json.Marshal(map[string]any{
		"event":    event,
		"board_id": boardID,
		"payload":  payload,
	})
	if err != nil {
		log.Printf("Failed to marshal board event: %v", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

// checkOrigin allows any origin when ALLOWED_ORIGINS is empty, otherwise only
// the listed ones.
func checkOrigin(r *http.Request) bool {
	allowed := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	if allowed == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.RateLimiter.Allow(clientIP(r)) {
		sendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	boardIDStr := r.URL.Query().Get("board_id")
	boardID, err := uuid.Parse(boardIDStr)
	if err != nil {
		sendError(w, "board_id is required (uuid)", http.StatusBadRequest)
		return
	}

	// Verify the board exists and belongs to the caller before upgrading.
	board, err := h.Gateway.Boards.GetByID(r.Context(), boardID)
	if err != nil {
		sendError(w, "Board not found", storeStatus(err))
		return
	}
	if board.OwnerID != userID {
		sendError(w, "Forbidden", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.Hub.mutex.Lock()
	if h.Hub.connections[boardID] == nil {
		h.Hub.connections[boardID] = make(map[*websocket.Conn]bool)
	}
	h.Hub.connections[boardID][conn] = true
	h.Hub.mutex.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Hub.mutex.Lock()
			delete(h.Hub.connections[boardID], conn)
			h.Hub.mutex.Unlock()
			conn.Close()
			return
		}
		// Clients only listen; incoming messages are ignored.
	}
}
