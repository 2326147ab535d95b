package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openkanban/boardsync/controllers"
	"github.com/openkanban/boardsync/models"
)

// HandleCreateColumn handles POST /boards/{id}/columns.
func (h *Handler) HandleCreateColumn(w http.ResponseWriter, r *http.Request) {
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
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		Title string `json:"title"`
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

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess := h.session(userID)
	bc, err := h.boardController(r.WithContext(ctx), sess, userID, boardID)
	if err != nil {
		sendError(w, "Failed to load board", storeStatus(err))
		return
	}
	col, err := bc.CreateColumn(ctx, input.Title)
	if err != nil {
		sendError(w, "Failed to create column", storeStatus(err))
		return
	}
	h.Hub.BroadcastBoardEvent(boardID, "column_created", col)
	w.WriteHeader(http.StatusCreated)
	sendJSON(w, col)
}

// HandleUpdateColumn handles PUT /columns/{id} (rename).
func (h *Handler) HandleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	columnID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid column ID", http.StatusBadRequest)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		Title string `json:"title"`
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

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bc, boardID, ok := h.openBoardFor(w, r, userID, func(st controllers.BoardState) bool {
		for _, col := range st.Columns {
			if col.Column.ID == columnID {
				return true
			}
		}
		return false
	})
	if !ok {
		return
	}
	col, err := bc.UpdateColumnTitle(ctx, columnID, input.Title)
	if err != nil {
		sendError(w, "Failed to update column", storeStatus(err))
		return
	}
	h.Hub.BroadcastBoardEvent(boardID, "column_updated", col)
	sendJSON(w, col)
}

// HandleCreateTask handles POST /columns/{id}/tasks.
func (h *Handler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	columnID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid column ID", http.StatusBadRequest)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Assignee    string     `json:"assignee"`
		DueDate     *time.Time `json:"due_date"`
		Priority    string     `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" || len(input.Title) > 200 {
		sendError(w, "Title is required and must be <= 200 characters", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bc, boardID, ok := h.openBoardFor(w, r, userID, func(st controllers.BoardState) bool {
		for _, col := range st.Columns {
			if col.Column.ID == columnID {
				return true
			}
		}
		return false
	})
	if !ok {
		return
	}
	task, err := bc.CreateTask(ctx, columnID, controllers.TaskInput{
		Title:       input.Title,
		Description: input.Description,
		Assignee:    input.Assignee,
		DueDate:     input.DueDate,
		Priority:    models.NormalizePriority(input.Priority),
	})
	if err != nil {
		sendError(w, "Failed to create task", storeStatus(err))
		return
	}
	h.Hub.BroadcastBoardEvent(boardID, "task_created", task)
	w.WriteHeader(http.StatusCreated)
	sendJSON(w, task)
}

// HandleTaskByID handles PATCH/PUT /tasks/{id} (partial update) and
// DELETE /tasks/{id} (delete, arming the undo slot with the snapshot).
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		h.updateTask(w, r)
	case http.MethodDelete:
		h.deleteTask(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid task ID", http.StatusBadRequest)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Assignee    *string    `json:"assignee"`
		DueDate     *time.Time `json:"due_date"`
		ClearDue    bool       `json:"clear_due_date"`
		Priority    *string    `json:"priority"`
		ColumnID    *uuid.UUID `json:"column_id"`
		Position    *int       `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" || len(title) > 200 {
			sendError(w, "Title is required and must be <= 200 characters", http.StatusBadRequest)
			return
		}
		input.Title = &title
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bc, boardID, ok := h.openBoardForTask(w, r, userID, taskID)
	if !ok {
		return
	}

	changes := controllers.TaskChanges{
		Title:       input.Title,
		Description: input.Description,
		Assignee:    input.Assignee,
		DueDate:     input.DueDate,
		ClearDue:    input.ClearDue,
		ColumnID:    input.ColumnID,
		Position:    input.Position,
	}
	if input.Priority != nil {
		p := models.NormalizePriority(*input.Priority)
		changes.Priority = &p
	}
	task, err := bc.UpdateTask(ctx, taskID, changes)
	if err != nil {
		sendError(w, "Failed to update task", storeStatus(err))
		return
	}
	h.Hub.BroadcastBoardEvent(boardID, "task_updated", task)
	sendJSON(w, task)
}

// HandleMoveTask handles POST /tasks/{id}/move, the abstract drag-and-drop
// event: target column plus target index.
func (h *Handler) HandleMoveTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid task ID", http.StatusBadRequest)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		ColumnID uuid.UUID `json:"column_id"`
		Index    int       `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.ColumnID == uuid.Nil {
		sendError(w, "column_id is required (uuid)", http.StatusBadRequest)
		return
	}
	if input.Index < 0 {
		sendError(w, "index must be >= 0", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bc, boardID, ok := h.openBoardForTask(w, r, userID, taskID)
	if !ok {
		return
	}
	task, err := bc.MoveTask(ctx, taskID, input.ColumnID, input.Index)
	if err != nil {
		sendError(w, "Failed to move task", storeStatus(err))
		return
	}
	h.Hub.BroadcastBoardEvent(boardID, "task_moved", task)
	sendJSON(w, task)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		sendError(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bc, boardID, ok := h.openBoardForTask(w, r, userID, taskID)
	if !ok {
		return
	}
	snap, err := bc.DeleteTask(ctx, taskID)
	if err != nil {
		sendError(w, "Failed to delete task", storeStatus(err))
		return
	}
	h.session(userID).undo.Arm(snap)
	h.Hub.BroadcastBoardEvent(boardID, "task_deleted", map[string]any{"task_id": taskID})
	w.WriteHeader(http.StatusNoContent)
}

// HandleUndo handles POST /undo: consume the pending snapshot, if any, and
// replay the matching restore.
func (h *Handler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sess := h.session(userID)
	pending, ok := sess.undo.Take()
	if !ok {
		sendError(w, "Nothing to undo", http.StatusGone)
		return
	}

	switch snap := pending.(type) {
	case *models.BoardSnapshot:
		board, err := sess.list.Restore(ctx, snap)
		if err != nil {
			sendError(w, "Failed to restore board", http.StatusInternalServerError)
			return
		}
		sendJSON(w, board)
	case *models.TaskSnapshot:
		h.mu.Lock()
		bc := sess.board
		h.mu.Unlock()
		if bc == nil {
			sendError(w, "No open board to restore into", http.StatusConflict)
			return
		}
		task, err := bc.RestoreTask(ctx, snap)
		if err != nil {
			sendError(w, "Failed to restore task", http.StatusInternalServerError)
			return
		}
		sendJSON(w, task)
	default:
		sendError(w, "Nothing to undo", http.StatusGone)
	}
}

// openBoardFor finds which of the user's boards satisfies the predicate and
// returns a controller with that board loaded, writing the HTTP error itself
// when it cannot.
func (h *Handler) openBoardFor(w http.ResponseWriter, r *http.Request, userID uuid.UUID, match func(controllers.BoardState) bool) (*controllers.BoardController, uuid.UUID, bool) {
	sess := h.session(userID)

	h.mu.Lock()
	bc, open := sess.board, sess.open
	h.mu.Unlock()
	if bc != nil && match(bc.State()) {
		return bc, open, true
	}

	if err := sess.list.Load(r.Context()); err != nil {
		sendError(w, "Failed to fetch boards", http.StatusInternalServerError)
		return nil, uuid.Nil, false
	}
	for _, board := range sess.list.State().Boards {
		probe, err := h.boardController(r, sess, userID, board.ID)
		if err != nil {
			continue
		}
		if match(probe.State()) {
			return probe, board.ID, true
		}
	}
	sendError(w, "Not found", http.StatusNotFound)
	return nil, uuid.Nil, false
}

func (h *Handler) openBoardForTask(w http.ResponseWriter, r *http.Request, userID, taskID uuid.UUID) (*controllers.BoardController, uuid.UUID, bool) {
	return h.openBoardFor(w, r, userID, func(st controllers.BoardState) bool {
		for _, col := range st.Columns {
			for _, task := range col.Tasks {
				if task.ID == taskID {
					return true
				}
			}
		}
		return false
	})
}
