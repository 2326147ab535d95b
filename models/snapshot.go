package models

import "github.com/google/uuid"

// BoardSnapshot is a full copy of a board and everything under it, captured at
// the moment of deletion. It exists only in memory to drive a later restore.
type BoardSnapshot struct {
	Board   Board
	Columns []Column
	Tasks   []Task
}

// TaskSnapshot records a deleted task together with where it sat, so an undo
// can put it back at the same place.
type TaskSnapshot struct {
	Task     Task
	ColumnID uuid.UUID
	Index    int
}
