package db

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/openkanban/boardsync/models"
)

type ColumnRepository struct {
	db *sql.DB
}

func NewColumnRepository(db *sql.DB) *ColumnRepository {
	return &ColumnRepository{db: db}
}

func (r *ColumnRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	query := `SELECT id, board_id, owner_id, title, position, created_at
	 FROM columns WHERE id = $1`
	col := &models.Column{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&col.ID, &col.BoardID, &col.OwnerID, &col.Title, &col.Position, &col.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "column", ID: id}
	}
	if err != nil {
		return nil, storeErr("get column", err)
	}
	return col, nil
}

// ListByBoard returns the board's columns in ascending display order.
func (r *ColumnRepository) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*models.Column, error) {
	query := `SELECT id, board_id, owner_id, title, position, created_at
	 FROM columns WHERE board_id = $1 ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, storeErr("list columns", err)
	}
	defer rows.Close()

	var cols []*models.Column
	for rows.Next() {
		col := &models.Column{}
		if err := rows.Scan(
			&col.ID, &col.BoardID, &col.OwnerID, &col.Title, &col.Position, &col.CreatedAt,
		); err != nil {
			return nil, storeErr("scan column", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list columns", err)
	}
	return cols, nil
}

func (r *ColumnRepository) Create(ctx context.Context, col *models.Column) (*models.Column, error) {
	query := `INSERT INTO columns (id, board_id, owner_id, title, position, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(
		ctx, query, col.ID, col.BoardID, col.OwnerID, col.Title, col.Position, col.CreatedAt)
	if err != nil {
		return nil, storeErr("create column", err)
	}
	return r.GetByID(ctx, col.ID)
}

func (r *ColumnRepository) Update(ctx context.Context, col *models.Column) (*models.Column, error) {
	query := `UPDATE columns SET title = $1, position = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, col.Title, col.Position, col.ID)
	if err != nil {
		return nil, storeErr("update column", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, &NotFoundError{Kind: "column", ID: col.ID}
	}
	r.touchBoard(ctx, col.BoardID)
	return r.GetByID(ctx, col.ID)
}

func (r *ColumnRepository) Delete(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	col, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM columns WHERE id = $1`, id); err != nil {
		return nil, storeErr("delete column", err)
	}
	r.touchBoard(ctx, col.BoardID)
	return col, nil
}

// touchBoard bumps the owning board's last-modified marker. Best effort: a
// failure here never rolls back the primary mutation.
func (r *ColumnRepository) touchBoard(ctx context.Context, boardID uuid.UUID) {
	now := time.Now().UTC()
	query := `UPDATE boards SET updated_at = $1 WHERE id = $2 AND updated_at < $1`
	if _, err := r.db.ExecContext(ctx, query, now, boardID); err != nil {
		log.Printf("touch board %s: %v", boardID, err)
	}
}
