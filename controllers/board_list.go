package controllers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openkanban/boardsync/db"
	"github.com/openkanban/boardsync/models"
)

// BoardListController owns the list of one user's boards and their task
// counts. It is the only writer of that state.
type BoardListController struct {
	mu      sync.Mutex
	gw      *db.Gateway
	ownerID uuid.UUID

	boards  []*models.Board
	counts  map[uuid.UUID]int
	loading bool
	errMsg  string
}

// BoardListState is a read snapshot handed to the UI layer.
type BoardListState struct {
	Boards  []*models.Board
	Counts  map[uuid.UUID]int
	Loading bool
	Err     string
}

type CreateBoardInput struct {
	Title       string
	Description string
	Color       string
}

type UpdateBoardInput struct {
	Title       *string
	Description *string
	Color       *string
}

func NewBoardListController(gw *db.Gateway, ownerID uuid.UUID) *BoardListController {
	return &BoardListController{
		gw:      gw,
		ownerID: ownerID,
		counts:  make(map[uuid.UUID]int),
	}
}

func (c *BoardListController) ready() error {
	if c.gw == nil || c.ownerID == uuid.Nil {
		return ErrNotReady
	}
	return nil
}

// State returns a copy of the current read state.
func (c *BoardListController) State() BoardListState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := BoardListState{
		Boards:  make([]*models.Board, len(c.boards)),
		Counts:  make(map[uuid.UUID]int, len(c.counts)),
		Loading: c.loading,
		Err:     c.errMsg,
	}
	copy(st.Boards, c.boards)
	for id, n := range c.counts {
		st.Counts[id] = n
	}
	return st
}

func (c *BoardListController) fail(msg string, err error) error {
	wrapped := logFail(msg, err)
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
	return wrapped
}

// Load fetches the user's boards and, concurrently, a task count per board.
// Local state is replaced wholesale. A failed count degrades to zero instead
// of failing the whole load.
func (c *BoardListController) Load(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return c.fail("failed to load boards", err)
	}
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	boards, err := c.gw.Boards.ListByOwner(ctx, c.ownerID)
	if err != nil {
		return c.fail("failed to load boards", err)
	}

	counts := make([]int, len(boards))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range boards {
		i, b := i, b
		g.Go(func() error {
			n, err := c.gw.Tasks.CountByBoard(gctx, b.ID)
			if err != nil {
				logFail("failed to count tasks for board "+b.ID.String(), err)
				n = 0
			}
			counts[i] = n
			return nil
		})
	}
	g.Wait()

	c.mu.Lock()
	c.boards = boards
	c.counts = make(map[uuid.UUID]int, len(boards))
	for i, b := range boards {
		c.counts[b.ID] = counts[i]
	}
	c.errMsg = ""
	c.mu.Unlock()
	return nil
}

// Create inserts a new board and its four default columns, the columns in
// parallel. The call fails only if the board insert fails; a column that
// cannot be created is logged and left missing.
func (c *BoardListController) Create(ctx context.Context, input CreateBoardInput) (*models.Board, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to create board", err)
	}

	now := time.Now().UTC()
	board, err := c.gw.Boards.Create(ctx, &models.Board{
		ID:          uuid.New(),
		OwnerID:     c.ownerID,
		Title:       input.Title,
		Description: optionalText(input.Description),
		Color:       input.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, c.fail("failed to create board", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, title := range models.DefaultColumnTitles {
		i, title := i, title
		g.Go(func() error {
			_, err := c.gw.Columns.Create(gctx, &models.Column{
				ID:        uuid.New(),
				BoardID:   board.ID,
				OwnerID:   c.ownerID,
				Title:     title,
				Position:  i,
				CreatedAt: now,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		// The board itself is in. Missing columns surface on the next load.
		logFail("failed to create default columns for board "+board.ID.String(), err)
	}

	c.mu.Lock()
	c.boards = append([]*models.Board{board}, c.boards...)
	c.counts[board.ID] = 0
	c.errMsg = ""
	c.mu.Unlock()
	return board, nil
}

// Update applies a partial change to a board and splices the server-returned
// record into local state.
func (c *BoardListController) Update(ctx context.Context, id uuid.UUID, changes UpdateBoardInput) (*models.Board, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to update board", err)
	}

	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return nil, c.fail("failed to update board", &db.NotFoundError{Kind: "board", ID: id})
	}
	updated := *c.boards[idx]
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
	if idx := c.indexOf(id); idx >= 0 {
		c.boards[idx] = board
	}
	c.errMsg = ""
	c.mu.Unlock()
	return board, nil
}

// Delete captures a full snapshot of the board, removes it optimistically,
// then deletes it remotely. A board owned by another user is rejected before
// any change, local or remote. A snapshot failure aborts the delete with no
// local change. A remote failure reinstates the board and its count. On
// success the snapshot is returned for a possible undo.
func (c *BoardListController) Delete(ctx context.Context, id uuid.UUID) (*models.BoardSnapshot, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to delete board", err)
	}

	tree, err := c.gw.LoadBoardTree(ctx, id)
	if err != nil {
		return nil, c.fail("failed to snapshot board before delete", err)
	}
	if tree.Board.OwnerID != c.ownerID {
		return nil, c.fail("failed to delete board", ErrForbidden)
	}
	snap := tree.Flatten()

	c.mu.Lock()
	idx := c.indexOf(id)
	var removed *models.Board
	if idx >= 0 {
		removed = c.boards[idx]
		c.boards = append(c.boards[:idx], c.boards[idx+1:]...)
	}
	delete(c.counts, id)
	c.mu.Unlock()

	if _, err := c.gw.Boards.Delete(ctx, id); err != nil {
		c.mu.Lock()
		if removed != nil {
			c.boards = append([]*models.Board{removed}, c.boards...)
		}
		c.counts[id] = len(snap.Tasks)
		c.mu.Unlock()
		return nil, c.fail("failed to delete board", err)
	}

	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
	return snap, nil
}

// Restore recreates a deleted board from its snapshot under fresh identities:
// the board first, then its columns in display order, then the tasks mapped
// onto the new column IDs. A task whose column is missing from the snapshot
// is skipped. The sequence is not atomic; a partial failure leaves already
// recreated records in place.
func (c *BoardListController) Restore(ctx context.Context, snap *models.BoardSnapshot) (*models.Board, error) {
	if err := c.ready(); err != nil {
		return nil, c.fail("failed to restore board", err)
	}

	now := time.Now().UTC()
	board, err := c.gw.Boards.Create(ctx, &models.Board{
		ID:          uuid.New(),
		OwnerID:     c.ownerID,
		Title:       snap.Board.Title,
		Description: snap.Board.Description,
		Color:       snap.Board.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, c.fail("failed to restore board", err)
	}

	columns := make([]models.Column, len(snap.Columns))
	copy(columns, snap.Columns)
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].Position < columns[j].Position
	})

	columnIDs := make(map[uuid.UUID]uuid.UUID, len(columns))
	for _, col := range columns {
		created, err := c.gw.Columns.Create(ctx, &models.Column{
			ID:        uuid.New(),
			BoardID:   board.ID,
			OwnerID:   c.ownerID,
			Title:     col.Title,
			Position:  col.Position,
			CreatedAt: now,
		})
		if err != nil {
			return nil, c.fail("failed to restore board columns", err)
		}
		columnIDs[col.ID] = created.ID
	}

	restored := 0
	for _, task := range snap.Tasks {
		newColumnID, ok := columnIDs[task.ColumnID]
		if !ok {
			continue
		}
		priority := task.Priority
		if priority == "" {
			priority = models.PriorityMedium
		}
		_, err := c.gw.Tasks.Create(ctx, &models.Task{
			ID:          uuid.New(),
			ColumnID:    newColumnID,
			Title:       task.Title,
			Description: task.Description,
			Assignee:    task.Assignee,
			DueDate:     task.DueDate,
			Priority:    priority,
			Position:    task.Position,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return nil, c.fail("failed to restore board tasks", err)
		}
		restored++
	}

	c.mu.Lock()
	c.boards = append([]*models.Board{board}, c.boards...)
	c.counts[board.ID] = restored
	c.errMsg = ""
	c.mu.Unlock()
	return board, nil
}

// indexOf must be called with the mutex held.
func (c *BoardListController) indexOf(id uuid.UUID) int {
	for i, b := range c.boards {
		if b.ID == id {
			return i
		}
	}
	return -1
}
