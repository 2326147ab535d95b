package controllers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openkanban/boardsync/db"
	"github.com/openkanban/boardsync/models"
)

// ColumnState is one column and its tasks in display order.
type ColumnState struct {
	Column models.Column
	Tasks  []*models.Task
}

// BoardController owns the nested column/task tree of one open board.
type BoardController struct {
	mu      sync.Mutex
	gw      *db.Gateway
	ownerID uuid.UUID

	board   *models.Board
	columns []*ColumnState
	loading bool
	errMsg  string
}

// BoardState is a read snapshot handed to the UI layer.
type BoardState struct {
	Board   *models.Board
	Columns []*ColumnState
	Loading bool
	Err     string
}

// TaskInput carries the fields of a new task. Blank text fields are stored
// as absent, not as empty strings.
type TaskInput struct {
	Title       string
	Description string
	Assignee    string
	DueDate     *time.Time
	Priority    models.Priority
}

// TaskChanges is a partial update. A nil field is left untouched; a blank
// text field clears the stored value.
type TaskChanges struct {
	Title       *string
	Description *string
	Assignee    *string
	DueDate     *time.Time
	ClearDue    bool
	Priority    *models.Priority
	ColumnID    *uuid.UUID
	Position    *int
}

func NewBoardController(gw *db.Gateway, ownerID uuid.UUID) *BoardController {
	return &BoardController{gw: gw, ownerID: ownerID}
}

func (c *BoardController) ready() error {
	if c.gw == nil || c.ownerID == uuid.Nil {
		return ErrNotReady
	}
	return nil
}

// State returns a deep-enough copy of the current read state: the column and
// task slices are copied, the records themselves are shared read-only.
func (c *BoardController) State() BoardState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := BoardState{Board: c.board, Loading: c.loading, Err: c.errMsg}
	for _, col := range c.columns {
		cp := &ColumnState{Column: col.Column, Tasks: make([]*models.Task, len(col.Tasks))}
		copy(cp.Tasks, col.Tasks)
		st.Columns = append(st.Columns, cp)
	}
	return st
}

func (c *BoardController) fail(msg string, err error) error {
	wrapped := logFail(msg, err)
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
	return wrapped
}

// Load replaces local state with the assembled tree of the given board.
func (c *BoardController) Load(ctx context.Context, boardID uuid.UUID) error {
	if err := c.ready(); err != nil {
		return c.fail("failed to load board", err)
	}
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	tree, err := c.gw.LoadBoardTree(ctx, boardID)
	if err != nil {
		return c.fail("failed to load board", err)
	}
	if tree.Board.OwnerID != c.ownerID {
		return c.fail("failed to load board", ErrForbidden)
	}

	c.mu.Lock()
	c.board = &tree.Board
	c.columns = nil
	for _, ct := range tree.Columns {
		col := &ColumnState{Column: ct.Column, Tasks: make([]*models.Task, len(ct.Tasks))}
		copy(col.Tasks, ct.Tasks)
		c.columns = append(c.columns, col)
	}
	c.errMsg = ""
	c.mu.Unlock()
	return nil
}

// UpdateBoard applies a partial change to the open board.
func (c *BoardController) UpdateBoard(ctx context.Context, changes UpdateBoardInput) (*models.Board, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to update board", err)
	}
	c.mu.Lock()
	if c.board == nil {
		c.mu.Unlock()
		return nil, c.fail("failed to update board", ErrNotReady)
	}
	updated := *c.board
	c.mu.Unlock()

	if changes.Title != nil {
		updated.Title = *changes.Title
	}
	if changes.Description != nil {
		updated.Description = optionalText(*changes.Description)
	}
	if changes.Color != nil {
		updated.Color = *changes.Color
	}
	updated.UpdatedAt = time.Now().UTC()

	board, err := c.gw.Boards.Update(ctx, &updated)
	if err != nil {
		return nil, c.fail("failed to update board", err)
	}

	c.mu.Lock()
	c.board = board
	c.errMsg = ""
	c.mu.Unlock()
	return board, nil
}

// CreateColumn appends a new column at the end of the board.
func (c *BoardController) CreateColumn(ctx context.Context, title string) (*models.Column, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to create column", err)
	}
	c.mu.Lock()
	if c.board == nil {
		c.mu.Unlock()
		return nil, c.fail("failed to create column", ErrNotReady)
	}
	boardID := c.board.ID
	position := len(c.columns)
	c.mu.Unlock()

	col, err := c.gw.Columns.Create(ctx, &models.Column{
		ID:        uuid.New(),
		BoardID:   boardID,
		OwnerID:   c.ownerID,
		Title:     title,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, c.fail("failed to create column", err)
	}

	c.mu.Lock()
	c.columns = append(c.columns, &ColumnState{Column: *col})
	c.errMsg = ""
	c.mu.Unlock()
	return col, nil
}

// UpdateColumnTitle renames a column and splices the server-returned record
// into local state.
func (c *BoardController) UpdateColumnTitle(ctx context.Context, columnID uuid.UUID, title string) (*models.Column, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to update column", err)
	}
	c.mu.Lock()
	idx := c.columnIndex(columnID)
	if idx < 0 {
		c.mu.Unlock()
		return nil, c.fail("failed to update column", &db.NotFoundError{Kind: "column", ID: columnID})
	}
	updated := c.columns[idx].Column
	c.mu.Unlock()

	updated.Title = title
	col, err := c.gw.Columns.Update(ctx, &updated)
	if err != nil {
		return nil, c.fail("failed to update column", err)
	}

	c.mu.Lock()
	if idx := c.columnIndex(columnID); idx >= 0 {
		c.columns[idx].Column = *col
	}
	c.errMsg = ""
	c.mu.Unlock()
	return col, nil
}

// CreateTask appends a new task at the end of the given column.
func (c *BoardController) CreateTask(ctx context.Context, columnID uuid.UUID, input TaskInput) (*models.Task, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to create task", err)
	}
	c.mu.Lock()
	idx := c.columnIndex(columnID)
	if idx < 0 {
		c.mu.Unlock()
		return nil, c.fail("failed to create task", &db.NotFoundError{Kind: "column", ID: columnID})
	}
	position := len(c.columns[idx].Tasks)
	c.mu.Unlock()

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	now := time.Now().UTC()
	task, err := c.gw.Tasks.Create(ctx, &models.Task{
		ID:          uuid.New(),
		ColumnID:    columnID,
		Title:       input.Title,
		Description: optionalText(input.Description),
		Assignee:    optionalText(input.Assignee),
		DueDate:     input.DueDate,
		Priority:    priority,
		Position:    position,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, c.fail("failed to create task", err)
	}

	c.mu.Lock()
	if idx := c.columnIndex(columnID); idx >= 0 {
		c.columns[idx].Tasks = append(c.columns[idx].Tasks, task)
	}
	c.errMsg = ""
	c.mu.Unlock()
	return task, nil
}

// MoveTask is the reorder primitive behind drag-and-drop: it reassigns the
// task's column and position remotely, then reinserts the confirmed record
// into the target column's list, keeping it sorted by position. Sibling
// positions are not renumbered, so when the confirmed position ties with an
// incumbent's the incumbent keeps its place and the moved task sorts after
// it.
func (c *BoardController) MoveTask(ctx context.Context, taskID, newColumnID uuid.UUID, newIndex int) (*models.Task, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to move task", err)
	}
	c.mu.Lock()
	colIdx, taskIdx := c.findTask(taskID)
	if colIdx < 0 {
		c.mu.Unlock()
		return nil, c.fail("failed to move task", &db.NotFoundError{Kind: "task", ID: taskID})
	}
	updated := *c.columns[colIdx].Tasks[taskIdx]
	c.mu.Unlock()

	updated.ColumnID = newColumnID
	updated.Position = newIndex
	updated.UpdatedAt = time.Now().UTC()

	task, err := c.gw.Tasks.Update(ctx, &updated)
	if err != nil {
		return nil, c.fail("failed to move task", err)
	}

	c.mu.Lock()
	c.removeTask(taskID)
	c.placeTask(task)
	c.errMsg = ""
	c.mu.Unlock()
	return task, nil
}

// UpdateTask applies a partial change. The confirmed record decides which
// column the task lands in, so a drag that changed columns merges cleanly
// with field edits. If the gateway yields no record the controller falls
// back to a full reload.
func (c *BoardController) UpdateTask(ctx context.Context, taskID uuid.UUID, changes TaskChanges) (*models.Task, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to update task", err)
	}
	c.mu.Lock()
	colIdx, taskIdx := c.findTask(taskID)
	if colIdx < 0 {
		c.mu.Unlock()
		return nil, c.fail("failed to update task", &db.NotFoundError{Kind: "task", ID: taskID})
	}
	updated := *c.columns[colIdx].Tasks[taskIdx]
	boardID := c.board.ID
	c.mu.Unlock()

	if changes.Title != nil {
		updated.Title = *changes.Title
	}
	if changes.Description != nil {
		updated.Description = optionalText(*changes.Description)
	}
	if changes.Assignee != nil {
		updated.Assignee = optionalText(*changes.Assignee)
	}
	if changes.DueDate != nil {
		updated.DueDate = changes.DueDate
	} else if changes.ClearDue {
		updated.DueDate = nil
	}
	if changes.Priority != nil {
		updated.Priority = *changes.Priority
	}
	if changes.ColumnID != nil {
		updated.ColumnID = *changes.ColumnID
	}
	if changes.Position != nil {
		updated.Position = *changes.Position
	}
	updated.UpdatedAt = time.Now().UTC()

	task, err := c.gw.Tasks.Update(ctx, &updated)
	if err != nil {
		return nil, c.fail("failed to update task", err)
	}
	if task == nil {
		// No confirmed record to reconcile against.
		return nil, c.Load(ctx, boardID)
	}

	c.mu.Lock()
	c.removeTask(taskID)
	placed := c.placeTask(task)
	c.mu.Unlock()
	if !placed {
		// The confirmed column is not part of local state; resync.
		return task, c.Load(ctx, boardID)
	}

	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
	return task, nil
}

// DeleteTask removes the task optimistically and confirms the delete
// remotely. On success it returns a snapshot for a possible undo; on failure
// it reinserts the task at its original index.
func (c *BoardController) DeleteTask(ctx context.Context, taskID uuid.UUID) (*models.TaskSnapshot, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to delete task", err)
	}
	c.mu.Lock()
	colIdx, taskIdx := c.findTask(taskID)
	if colIdx < 0 {
		c.mu.Unlock()
		return nil, c.fail("failed to delete task", &db.NotFoundError{Kind: "task", ID: taskID})
	}
	col := c.columns[colIdx]
	snap := &models.TaskSnapshot{
		Task:     *col.Tasks[taskIdx],
		ColumnID: col.Column.ID,
		Index:    taskIdx,
	}
	col.Tasks = append(col.Tasks[:taskIdx], col.Tasks[taskIdx+1:]...)
	c.mu.Unlock()

	if _, err := c.gw.Tasks.Delete(ctx, taskID); err != nil {
		c.mu.Lock()
		if idx := c.columnIndex(snap.ColumnID); idx >= 0 {
			c.insertTaskAt(c.columns[idx], &snap.Task, snap.Index)
		}
		c.mu.Unlock()
		return nil, c.fail("failed to delete task", err)
	}

	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
	return snap, nil
}

// RestoreTask recreates a deleted task from its snapshot, back in its
// original column at its original index. The recreated task gets a fresh
// identity and timestamps.
func (c *BoardController) RestoreTask(ctx context.Context, snap *models.TaskSnapshot) (*models.Task, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to restore task", err)
	}

	priority := snap.Task.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	now := time.Now().UTC()
	task, err := c.gw.Tasks.Create(ctx, &models.Task{
		ID:          uuid.New(),
		ColumnID:    snap.ColumnID,
		Title:       snap.Task.Title,
		Description: snap.Task.Description,
		Assignee:    snap.Task.Assignee,
		DueDate:     snap.Task.DueDate,
		Priority:    priority,
		Position:    snap.Task.Position,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, c.fail("failed to restore task", err)
	}

	c.mu.Lock()
	if idx := c.columnIndex(snap.ColumnID); idx >= 0 {
		c.insertTaskAt(c.columns[idx], task, snap.Index)
	}
	c.errMsg = ""
	c.mu.Unlock()
	return task, nil
}

// columnIndex must be called with the mutex held.
func (c *BoardController) columnIndex(columnID uuid.UUID) int {
	for i, col := range c.columns {
		if col.Column.ID == columnID {
			return i
		}
	}
	return -1
}

// findTask must be called with the mutex held.
func (c *BoardController) findTask(taskID uuid.UUID) (colIdx, taskIdx int) {
	for i, col := range c.columns {
		for j, task := range col.Tasks {
			if task.ID == taskID {
				return i, j
			}
		}
	}
	return -1, -1
}

// removeTask must be called with the mutex held.
func (c *BoardController) removeTask(taskID uuid.UUID) {
	colIdx, taskIdx := c.findTask(taskID)
	if colIdx < 0 {
		return
	}
	col := c.columns[colIdx]
	col.Tasks = append(col.Tasks[:taskIdx], col.Tasks[taskIdx+1:]...)
}

// placeTask inserts a confirmed record into the column it names, then
// re-sorts that column by ascending position. Every mutation that can change
// a task's column or position reconciles through this one path. Must be
// called with the mutex held.
func (c *BoardController) placeTask(task *models.Task) bool {
	idx := c.columnIndex(task.ColumnID)
	if idx < 0 {
		return false
	}
	col := c.columns[idx]
	col.Tasks = append(col.Tasks, task)
	sort.SliceStable(col.Tasks, func(i, j int) bool {
		return col.Tasks[i].Position < col.Tasks[j].Position
	})
	return true
}

// insertTaskAt puts a task back at a specific index, clamping to the list
// bounds. Must be called with the mutex held.
func (c *BoardController) insertTaskAt(col *ColumnState, task *models.Task, index int) {
	if index < 0 {
		index = 0
	}
	if index > len(col.Tasks) {
		index = len(col.Tasks)
	}
	col.Tasks = append(col.Tasks, nil)
	copy(col.Tasks[index+1:], col.Tasks[index:])
	col.Tasks[index] = task
}
