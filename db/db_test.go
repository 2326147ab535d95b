package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/openkanban/boardsync/models"
)

func TestConnect(t *testing.T) {
	tests := []struct {
		name          string
		driverName    string
		dsn           string
		expectedError bool
	}{
		{
			name:          "Successful connection with SQLite",
			driverName:    "sqlite3",
			dsn:           ":memory:",
			expectedError: false,
		},
		{
			name:          "Failed connection with invalid DSN",
			driverName:    "sqlite3",
			dsn:           "file::memory:?mode=invalid",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := Connect(tt.driverName, tt.dsn)

			if tt.expectedError {
				if err == nil {
					t.Error("Expected error, got none")
				}
				if conn != nil {
					t.Error("Expected nil connection on error")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if conn == nil {
					t.Error("Expected non-nil connection")
				}
			}

			if conn != nil {
				conn.Close()
			}
		})
	}
}

// setupDB opens an in-memory SQLite database with the reference schema.
// A single connection keeps concurrent reads on the same in-memory store.
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(Schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func boardAt(owner uuid.UUID, title string, at time.Time) *models.Board {
	return &models.Board{
		ID:        uuid.New(),
		OwnerID:   owner,
		Title:     title,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func insertBoard(t *testing.T, gw *Gateway, owner uuid.UUID, title string) *models.Board {
	t.Helper()
	now := time.Now().UTC()
	board, err := gw.Boards.Create(context.Background(), &models.Board{
		ID:        uuid.New(),
		OwnerID:   owner,
		Title:     title,
		Color:     "blue",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert board: %v", err)
	}
	return board
}

func insertColumn(t *testing.T, gw *Gateway, board *models.Board, title string, position int) *models.Column {
	t.Helper()
	col, err := gw.Columns.Create(context.Background(), &models.Column{
		ID:        uuid.New(),
		BoardID:   board.ID,
		OwnerID:   board.OwnerID,
		Title:     title,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert column: %v", err)
	}
	return col
}

func insertTask(t *testing.T, gw *Gateway, col *models.Column, title string, position int) *models.Task {
	t.Helper()
	now := time.Now().UTC()
	task, err := gw.Tasks.Create(context.Background(), &models.Task{
		ID:        uuid.New(),
		ColumnID:  col.ID,
		Title:     title,
		Priority:  models.PriorityMedium,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	return task
}
