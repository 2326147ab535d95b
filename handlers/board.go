package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/openkanban/boardsync/controllers"
)

/*
handles routes:
GET /boards - list the user's boards with task counts
POST /boards - create a board with its default columns
*/
func (h *Handler) HandleBoards(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBoards(w, r)
	case http.MethodPost:
		h.createBoard(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listBoards(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess := h.session(userID)
	if err := sess.list.Load(ctx); err != nil {
		sendError(w, "Failed to fetch boards", http.StatusInternalServerError)
		return
	}
	st := sess.list.State()
	sendJSON(w, map[string]any{"boards": st.Boards, "task_counts": st.Counts})
}

func (h *Handler) createBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" || len(input.Title) > 100 {
		sendError(w, "Title is required and must be <= 100 characters", http.StatusBadRequest)
		return
	}
	if len(input.Description) > 500 {
		sendError(w, "Description must be <= 500 characters", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess := h.session(userID)
	board, err := sess.list.Create(ctx, controllers.CreateBoardInput{
		Title:       input.Title,
		Description: input.Description,
		Color:       input.Color,
	})
	if err != nil {
		sendError(w, "Failed to create board", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/boards/"+board.ID.String())
	w.WriteHeader(http.StatusCreated)
	sendJSON(w, board)
}

/*
routes:
- GET /boards/{id}
- PUT /boards/{id}
- DELETE /boards/{id} (arms the undo slot with the snapshot)
*/
func (h *Handler) HandleBoardByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.HandleBoardTree(w, r)
	case http.MethodPut:
		h.updateBoard(w, r)
	case http.MethodDelete:
		h.deleteBoard(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleBoardTree serves the nested board view the UI renders from.
func (h *Handler) HandleBoardTree(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	boardID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tree, err := h.Gateway.LoadBoardTree(ctx, boardID)
	if err != nil {
		sendError(w, "Board not found", storeStatus(err))
		return
	}
	if tree.Board.OwnerID != userID {
		sendError(w, "Forbidden", http.StatusForbidden)
		return
	}
	sendJSON(w, tree)
}

func (h *Handler) updateBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	boardID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" || len(title) > 100 {
			sendError(w, "Title is required and must be <= 100 characters", http.StatusBadRequest)
			return
		}
		input.Title = &title
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess := h.session(userID)
	if len(sess.list.State().Boards) == 0 {
		if err := sess.list.Load(ctx); err != nil {
			sendError(w, "Failed to fetch boards", http.StatusInternalServerError)
			return
		}
	}
	board, err := sess.list.Update(ctx, boardID, controllers.UpdateBoardInput{
		Title:       input.Title,
		Description: input.Description,
		Color:       input.Color,
	})
	if err != nil {
		sendError(w, "Failed to update board", storeStatus(err))
		return
	}
	h.Hub.BroadcastBoardEvent(board.ID, "board_updated", board)
	sendJSON(w, board)
}

func (h *Handler) deleteBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	boardID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess := h.session(userID)
	if len(sess.list.State().Boards) == 0 {
		if err := sess.list.Load(ctx); err != nil {
			sendError(w, "Failed to fetch boards", http.StatusInternalServerError)
			return
		}
	}
	snap, err := sess.list.Delete(ctx, boardID)
	if err != nil {
		sendError(w, "Failed to delete board", storeStatus(err))
		return
	}
	sess.undo.Arm(snap)
	h.Hub.BroadcastBoardEvent(boardID, "board_deleted", nil)
	w.WriteHeader(http.StatusNoContent)
}
