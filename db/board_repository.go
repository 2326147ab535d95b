package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openkanban/boardsync/models"
)

type BoardRepository struct {
	db *sql.DB
}

func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	query := `SELECT id, owner_id, title, description, color, created_at, updated_at
	 FROM boards WHERE id = $1`
	board := &models.Board{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&board.ID, &board.OwnerID, &board.Title, &board.Description, &board.Color,
		&board.CreatedAt, &board.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "board", ID: id}
	}
	if err != nil {
		return nil, storeErr("get board", err)
	}
	return board, nil
}

// ListByOwner returns the owner's boards, most recently modified first.
func (r *BoardRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Board, error) {
	query := `SELECT id, owner_id, title, description, color, created_at, updated_at
	 FROM boards WHERE owner_id = $1 ORDER BY updated_at DESC, created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, storeErr("list boards", err)
	}
	defer rows.Close()

	var boards []*models.Board
	for rows.Next() {
		board := &models.Board{}
		if err := rows.Scan(
			&board.ID, &board.OwnerID, &board.Title, &board.Description, &board.Color,
			&board.CreatedAt, &board.UpdatedAt,
		); err != nil {
			return nil, storeErr("scan board", err)
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list boards", err)
	}
	return boards, nil
}

func (r *BoardRepository) Create(ctx context.Context, board *models.Board) (*models.Board, error) {
	query := `INSERT INTO boards (id, owner_id, title, description, color, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx, query, board.ID, board.OwnerID, board.Title, board.Description, board.Color,
		board.CreatedAt, board.UpdatedAt)
	if err != nil {
		return nil, storeErr("create board", err)
	}
	return r.GetByID(ctx, board.ID)
}

func (r *BoardRepository) Update(ctx context.Context, board *models.Board) (*models.Board, error) {
	query := `UPDATE boards SET title = $1, description = $2, color = $3, updated_at = $4
	 WHERE id = $5`
	res, err := r.db.ExecContext(
		ctx, query, board.Title, board.Description, board.Color, board.UpdatedAt, board.ID)
	if err != nil {
		return nil, storeErr("update board", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, &NotFoundError{Kind: "board", ID: board.ID}
	}
	return r.GetByID(ctx, board.ID)
}

// Delete removes the board row and returns the record as it was before the
// delete. Columns and tasks under it are removed by the same call.
func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	board, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("delete board", err)
	}
	defer tx.Rollback()

	queries := []string{
		`DELETE FROM tasks WHERE column_id IN (SELECT id FROM columns WHERE board_id = $1)`,
		`DELETE FROM columns WHERE board_id = $1`,
		`DELETE FROM boards WHERE id = $1`,
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return nil, storeErr("delete board", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("delete board", err)
	}
	return board, nil
}

// Touch advances the board's last-modified marker. It never moves it backwards.
func (r *BoardRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE boards SET updated_at = $1 WHERE id = $2 AND updated_at < $1`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return storeErr("touch board", err)
	}
	return nil
}
