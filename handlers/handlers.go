package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openkanban/boardsync/controllers"
	"github.com/openkanban/boardsync/db"
	"github.com/openkanban/boardsync/undo"
)

type Handler struct {
	Gateway     *db.Gateway
	RateLimiter *RateLimiter
	Hub         *Hub
	UndoWindow  time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// session is the per-user state the HTTP layer keeps between requests: the
// board list controller, the controller of the currently open board, and the
// single pending-undo slot shared by every delete flow.
type session struct {
	list  *controllers.BoardListController
	board *controllers.BoardController
	open  uuid.UUID // board currently held by the board controller
	undo  *undo.Slot
}

func NewHandler(gw *db.Gateway) *Handler {
	return &Handler{
		Gateway:     gw,
		RateLimiter: NewRateLimiter(5, time.Second),
		Hub:         NewHub(),
		UndoWindow:  undo.DefaultWindow,
		sessions:    make(map[uuid.UUID]*session),
	}
}

// Routes registers every endpoint on a fresh router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/boards", h.AuthMiddleware(h.HandleBoards)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/boards/{id}", h.AuthMiddleware(h.HandleBoardByID)).
		Methods(http.MethodGet, http.MethodPut, http.MethodDelete)
	r.HandleFunc("/boards/{id}/tree", h.AuthMiddleware(h.HandleBoardTree)).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}/columns", h.AuthMiddleware(h.HandleCreateColumn)).Methods(http.MethodPost)
	r.HandleFunc("/columns/{id}", h.AuthMiddleware(h.HandleUpdateColumn)).Methods(http.MethodPut)
	r.HandleFunc("/columns/{id}/tasks", h.AuthMiddleware(h.HandleCreateTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", h.AuthMiddleware(h.HandleTaskByID)).
		Methods(http.MethodPatch, http.MethodPut, http.MethodDelete)
	r.HandleFunc("/tasks/{id}/move", h.AuthMiddleware(h.HandleMoveTask)).Methods(http.MethodPost)
	r.HandleFunc("/undo", h.AuthMiddleware(h.HandleUndo)).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.AuthMiddleware(h.HandleWebSocket))
	return r
}

// session returns (creating if needed) the state for one authenticated user.
func (h *Handler) session(userID uuid.UUID) *session {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		s = &session{
			list: controllers.NewBoardListController(h.Gateway, userID),
			undo: undo.NewSlot(h.UndoWindow),
		}
		h.sessions[userID] = s
	}
	return s
}

// boardController returns the session's board controller, loading the given
// board into it if it is not the one currently open. A failed load (missing
// or foreign board) leaves no controller cached.
func (h *Handler) boardController(r *http.Request, s *session, userID, boardID uuid.UUID) (*controllers.BoardController, error) {
	h.mu.Lock()
	if s.board != nil && s.open == boardID {
		bc := s.board
		h.mu.Unlock()
		return bc, nil
	}
	bc := controllers.NewBoardController(h.Gateway, userID)
	s.board = bc
	s.open = boardID
	h.mu.Unlock()

	if err := bc.Load(r.Context(), boardID); err != nil {
		h.mu.Lock()
		if s.board == bc {
			s.board = nil
			s.open = uuid.Nil
		}
		h.mu.Unlock()
		return nil, err
	}
	return bc, nil
}

func requestUserID(r *http.Request) (uuid.UUID, bool) {
	raw, _ := r.Context().Value("user_id").(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}

func sendError(w http.ResponseWriter, msg string, code int) {
	http.Error(w, msg, code)
}

func sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// storeStatus maps gateway and controller failures onto HTTP status codes.
func storeStatus(err error) int {
	if errors.Is(err, controllers.ErrForbidden) {
		return http.StatusForbidden
	}
	if db.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = 1
		return true
	}
	if count >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(rl.window)
		rl.mutex.Lock()
		rl.attempts = make(map[string]int)
		rl.mutex.Unlock()
	}
}
