package db

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openkanban/boardsync/models"
)

// LoadBoardTree fetches a board with its columns and tasks and assembles the
// nested view. The three reads are independent and run concurrently. Returns a
// NotFoundError if the board row is absent. Tasks pointing at a column the
// board no longer has are dropped from the tree.
func (gw *Gateway) LoadBoardTree(ctx context.Context, boardID uuid.UUID) (*models.BoardTree, error) {
	var (
		board *models.Board
		cols  []*models.Column
		tasks []*models.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		board, err = gw.Boards.GetByID(gctx, boardID)
		return err
	})
	g.Go(func() error {
		var err error
		cols, err = gw.Columns.ListByBoard(gctx, boardID)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = gw.Tasks.ListByBoard(gctx, boardID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tree := &models.BoardTree{Board: *board}
	byColumn := make(map[uuid.UUID]*models.ColumnTree, len(cols))
	for _, col := range cols {
		ct := &models.ColumnTree{Column: *col}
		byColumn[col.ID] = ct
		tree.Columns = append(tree.Columns, ct)
	}
	for _, task := range tasks {
		ct, ok := byColumn[task.ColumnID]
		if !ok {
			continue
		}
		ct.Tasks = append(ct.Tasks, task)
	}
	return tree, nil
}
