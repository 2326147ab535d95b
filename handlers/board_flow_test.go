package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/openkanban/boardsync/db"
	"github.com/openkanban/boardsync/models"
)

// newTestHandler wires a full Handler over an in-memory SQLite store.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(db.Schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	h := NewHandler(db.NewGateway(conn))
	h.UndoWindow = time.Minute
	return h
}

func bearerFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	secret := "super_secret_for_tests"
	_ = os.Setenv("JWT_SECRET", secret)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + signed
}

func doJSON(t *testing.T, router http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
}

func TestBoardLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	router := h.Routes()
	userID := uuid.New()
	auth := bearerFor(t, userID)

	// Create a board; it comes with the four default columns.
	rec := doJSON(t, router, http.MethodPost, "/boards", auth, map[string]string{"title": "Sprint 1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create board: want 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var board models.Board
	decodeInto(t, rec, &board)

	rec = doJSON(t, router, http.MethodGet, "/boards/"+board.ID.String()+"/tree", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("board tree: want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var tree models.BoardTree
	decodeInto(t, rec, &tree)
	if len(tree.Columns) != 4 {
		t.Fatalf("expected 4 default columns, got %d", len(tree.Columns))
	}
	todo := tree.Columns[0].Column
	doing := tree.Columns[1].Column
	if todo.Title != "To Do" || doing.Title != "In Progress" {
		t.Fatalf("default columns wrong: %q, %q", todo.Title, doing.Title)
	}

	// Create a task in To Do.
	rec = doJSON(t, router, http.MethodPost, "/columns/"+todo.ID.String()+"/tasks", auth,
		map[string]string{"title": "Write report", "priority": "high"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: want 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var task models.Task
	decodeInto(t, rec, &task)
	if task.Priority != models.PriorityHigh || task.Position != 0 {
		t.Fatalf("task fields wrong: %#v", task)
	}

	// Drag it into In Progress.
	rec = doJSON(t, router, http.MethodPost, "/tasks/"+task.ID.String()+"/move", auth,
		map[string]any{"column_id": doing.ID, "index": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("move task: want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var moved models.Task
	decodeInto(t, rec, &moved)
	if moved.ColumnID != doing.ID || moved.Position != 0 {
		t.Fatalf("move not applied: %#v", moved)
	}

	// Delete it, then undo.
	rec = doJSON(t, router, http.MethodDelete, "/tasks/"+task.ID.String(), auth, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete task: want 204, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/undo", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo task delete: want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var restored models.Task
	decodeInto(t, rec, &restored)
	if restored.Title != "Write report" || restored.ColumnID != doing.ID {
		t.Fatalf("restored task wrong: %#v", restored)
	}
	if restored.ID == task.ID {
		t.Fatal("restored task must get a fresh identity")
	}

	// A second undo has nothing to work with.
	rec = doJSON(t, router, http.MethodPost, "/undo", auth, nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("second undo: want 410, got %d", rec.Code)
	}

	// Delete the whole board, then undo that too.
	rec = doJSON(t, router, http.MethodDelete, "/boards/"+board.ID.String(), auth, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete board: want 204, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/undo", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo board delete: want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var restoredBoard models.Board
	decodeInto(t, rec, &restoredBoard)
	if restoredBoard.Title != "Sprint 1" || restoredBoard.ID == board.ID {
		t.Fatalf("restored board wrong: %#v", restoredBoard)
	}

	// The boards listing reflects the restored aggregate.
	rec = doJSON(t, router, http.MethodGet, "/boards", auth, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list boards: want 200, got %d", rec.Code)
	}
	var listing struct {
		Boards     []*models.Board   `json:"boards"`
		TaskCounts map[uuid.UUID]int `json:"task_counts"`
	}
	decodeInto(t, rec, &listing)
	if len(listing.Boards) != 1 || listing.Boards[0].ID != restoredBoard.ID {
		t.Fatalf("listing wrong: %+v", listing.Boards)
	}
	if listing.TaskCounts[restoredBoard.ID] != 1 {
		t.Fatalf("restored board should count 1 task, got %d", listing.TaskCounts[restoredBoard.ID])
	}
}

func TestBoardAccessIsPerUser(t *testing.T) {
	h := newTestHandler(t)
	router := h.Routes()
	owner := uuid.New()
	stranger := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/boards", bearerFor(t, owner), map[string]string{"title": "Private"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create board: want 201, got %d", rec.Code)
	}
	var board models.Board
	decodeInto(t, rec, &board)

	rec = doJSON(t, router, http.MethodGet, "/boards/"+board.ID.String()+"/tree", bearerFor(t, stranger), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger should get 403, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/boards", bearerFor(t, stranger), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list boards: want 200, got %d", rec.Code)
	}
	var listing struct {
		Boards []*models.Board `json:"boards"`
	}
	decodeInto(t, rec, &listing)
	if len(listing.Boards) != 0 {
		t.Fatalf("stranger should see no boards, got %d", len(listing.Boards))
	}

	rec = doJSON(t, router, http.MethodGet, "/boards/"+board.ID.String()+"/tree", bearerFor(t, owner), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner tree: want 200, got %d", rec.Code)
	}
	var tree models.BoardTree
	decodeInto(t, rec, &tree)
	column := tree.Columns[0].Column

	// Mutations on someone else's board are rejected and leave it untouched.
	rec = doJSON(t, router, http.MethodDelete, "/boards/"+board.ID.String(), bearerFor(t, stranger), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger delete board: want 403, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/boards/"+board.ID.String()+"/columns", bearerFor(t, stranger),
		map[string]string{"title": "Sneaky"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger create column: want 403, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/columns/"+column.ID.String()+"/tasks", bearerFor(t, stranger),
		map[string]string{"title": "Sneaky"})
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusForbidden {
		t.Fatalf("stranger create task: want 403 or 404, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/boards/"+board.ID.String()+"/tree", bearerFor(t, owner), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("board should survive stranger mutations: got %d", rec.Code)
	}
	var after models.BoardTree
	decodeInto(t, rec, &after)
	if len(after.Columns) != 4 {
		t.Fatalf("columns changed by stranger: got %d", len(after.Columns))
	}
	for _, ct := range after.Columns {
		if len(ct.Tasks) != 0 {
			t.Fatalf("tasks created by stranger: %+v", ct.Tasks)
		}
	}
}
