package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openkanban/boardsync/models"
)

func TestTaskRepository_Create_Get_Update_Delete_List(t *testing.T) {
	gw := NewGateway(setupDB(t))
	board := insertBoard(t, gw, uuid.New(), "Board A")
	col := insertColumn(t, gw, board, "To Do", 0)

	now := time.Now().UTC()
	desc := "hello"
	due := now.Add(48 * time.Hour)
	task, err := gw.Tasks.Create(context.Background(), &models.Task{
		ID:          uuid.New(),
		ColumnID:    col.ID,
		Title:       "First task",
		Description: &desc,
		DueDate:     &due,
		Priority:    models.PriorityHigh,
		Position:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("TaskRepository.Create: %v", err)
	}
	if task.Description == nil || *task.Description != "hello" {
		t.Errorf("description lost on create: %#v", task)
	}
	if task.Assignee != nil {
		t.Errorf("expected absent assignee, got %q", *task.Assignee)
	}
	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("due date mismatch: %v", task.DueDate)
	}

	got, err := gw.Tasks.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("TaskRepository.GetByID: %v", err)
	}
	if got.ID != task.ID || got.Title != "First task" || got.Priority != models.PriorityHigh {
		t.Errorf("GetByID mismatch: %#v", got)
	}

	got.Title = "Updated"
	got.Description = nil // clear the field
	got.UpdatedAt = time.Now().UTC()
	after, err := gw.Tasks.Update(context.Background(), got)
	if err != nil {
		t.Fatalf("TaskRepository.Update: %v", err)
	}
	if after.Title != "Updated" {
		t.Errorf("Update not applied: %#v", after)
	}
	if after.Description != nil {
		t.Errorf("cleared description came back as %q", *after.Description)
	}

	list, err := gw.Tasks.ListByColumn(context.Background(), col.ID)
	if err != nil {
		t.Fatalf("TaskRepository.ListByColumn: %v", err)
	}
	if len(list) != 1 || list[0].ID != task.ID {
		t.Errorf("ListByColumn unexpected: %+v", list)
	}

	deleted, err := gw.Tasks.Delete(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("TaskRepository.Delete: %v", err)
	}
	if deleted.ID != task.ID {
		t.Errorf("Delete should return the removed record, got %#v", deleted)
	}
	if _, err := gw.Tasks.GetByID(context.Background(), task.ID); !IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
}

func TestTaskRepository_EmptyDescriptionStoredAsNull(t *testing.T) {
	gw := NewGateway(setupDB(t))
	dbx := gw.Tasks.db
	board := insertBoard(t, gw, uuid.New(), "Board A")
	col := insertColumn(t, gw, board, "To Do", 0)
	task := insertTask(t, gw, col, "A", 0)

	// A cleared field must be NULL in the store, never an empty string.
	task.Description = nil
	if _, err := gw.Tasks.Update(context.Background(), task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	var isNull bool
	err := dbx.QueryRow(`SELECT description IS NULL FROM tasks WHERE id = $1`, task.ID).Scan(&isNull)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !isNull {
		t.Error("description should be stored as NULL")
	}
}

func TestTaskRepository_ListByColumn_OrdersByPosition(t *testing.T) {
	gw := NewGateway(setupDB(t))
	board := insertBoard(t, gw, uuid.New(), "Board A")
	col := insertColumn(t, gw, board, "To Do", 0)

	insertTask(t, gw, col, "C", 2)
	insertTask(t, gw, col, "A", 0)
	insertTask(t, gw, col, "B", 1)

	list, err := gw.Tasks.ListByColumn(context.Background(), col.ID)
	if err != nil {
		t.Fatalf("ListByColumn: %v", err)
	}
	want := []string{"A", "B", "C"}
	if len(list) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(list))
	}
	for i, title := range want {
		if list[i].Title != title {
			t.Errorf("position %d: got %q, want %q", i, list[i].Title, title)
		}
	}
}

func TestTaskRepository_CountByBoard(t *testing.T) {
	gw := NewGateway(setupDB(t))
	owner := uuid.New()
	board := insertBoard(t, gw, owner, "Board A")
	other := insertBoard(t, gw, owner, "Board B")

	todo := insertColumn(t, gw, board, "To Do", 0)
	doing := insertColumn(t, gw, board, "Doing", 1)
	elsewhere := insertColumn(t, gw, other, "To Do", 0)

	insertTask(t, gw, todo, "A", 0)
	insertTask(t, gw, todo, "B", 1)
	insertTask(t, gw, doing, "C", 0)
	insertTask(t, gw, elsewhere, "D", 0)

	n, err := gw.Tasks.CountByBoard(context.Background(), board.ID)
	if err != nil {
		t.Fatalf("CountByBoard: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 tasks on board, got %d", n)
	}
}

func TestTaskRepository_Update_TouchesBoard(t *testing.T) {
	gw := NewGateway(setupDB(t))
	board := insertBoard(t, gw, uuid.New(), "Board A")
	col := insertColumn(t, gw, board, "To Do", 0)
	task := insertTask(t, gw, col, "A", 0)

	task.Title = "A2"
	task.UpdatedAt = time.Now().UTC()
	if _, err := gw.Tasks.Update(context.Background(), task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	after, err := gw.Boards.GetByID(context.Background(), board.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !after.UpdatedAt.After(board.UpdatedAt) {
		t.Errorf("board updated_at should advance after task update")
	}
}

func TestTaskRepository_Update_NonExistent(t *testing.T) {
	gw := NewGateway(setupDB(t))
	board := insertBoard(t, gw, uuid.New(), "Board A")
	col := insertColumn(t, gw, board, "To Do", 0)
	task := insertTask(t, gw, col, "A", 0)
	if _, err := gw.Tasks.Delete(context.Background(), task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := gw.Tasks.Update(context.Background(), task); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError when updating deleted task, got %v", err)
	}
}

func TestTaskRepository_ListByColumn_Empty(t *testing.T) {
	gw := NewGateway(setupDB(t))

	list, err := gw.Tasks.ListByColumn(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("TaskRepository.ListByColumn: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list for column with no tasks, got %+v", list)
	}
}
