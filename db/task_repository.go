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

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, column_id, title, description, assignee, due_date, priority, position, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(
		&task.ID, &task.ColumnID, &task.Title, &task.Description, &task.Assignee,
		&task.DueDate, &task.Priority, &task.Position, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, storeErr("get task", err)
	}
	return task, nil
}

// ListByColumn returns the column's tasks in ascending display order.
func (r *TaskRepository) ListByColumn(ctx context.Context, columnID uuid.UUID) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE column_id = $1 ORDER BY position ASC`
	return r.list(ctx, query, columnID)
}

// ListByBoard returns every task on the board, ordered by position within
// whatever column holds it.
func (r *TaskRepository) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*models.Task, error) {
	query := `SELECT t.id, t.column_id, t.title, t.description, t.assignee, t.due_date,
	 t.priority, t.position, t.created_at, t.updated_at
	 FROM tasks t JOIN columns c ON t.column_id = c.id
	 WHERE c.board_id = $1 ORDER BY t.position ASC`
	return r.list(ctx, query, boardID)
}

func (r *TaskRepository) list(ctx context.Context, query string, arg any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

// CountByBoard counts every task on the board.
func (r *TaskRepository) CountByBoard(ctx context.Context, boardID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM tasks t JOIN columns c ON t.column_id = c.id
	 WHERE c.board_id = $1`
	var n int
	if err := r.db.QueryRowContext(ctx, query, boardID).Scan(&n); err != nil {
		return 0, storeErr("count tasks", err)
	}
	return n, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `INSERT INTO tasks (` + taskColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(
		ctx, query, task.ID, task.ColumnID, task.Title, task.Description, task.Assignee,
		task.DueDate, task.Priority, task.Position, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return nil, storeErr("create task", err)
	}
	return r.GetByID(ctx, task.ID)
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `UPDATE tasks SET column_id = $1, title = $2, description = $3, assignee = $4,
	 due_date = $5, priority = $6, position = $7, updated_at = $8 WHERE id = $9`
	res, err := r.db.ExecContext(
		ctx, query, task.ColumnID, task.Title, task.Description, task.Assignee,
		task.DueDate, task.Priority, task.Position, task.UpdatedAt, task.ID)
	if err != nil {
		return nil, storeErr("update task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, &NotFoundError{Kind: "task", ID: task.ID}
	}
	r.touchBoard(ctx, task.ColumnID)
	return r.GetByID(ctx, task.ID)
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return nil, storeErr("delete task", err)
	}
	r.touchBoard(ctx, task.ColumnID)
	return task, nil
}

// touchBoard bumps the last-modified marker of the board owning the given
// column. Best effort: a failure never rolls back the primary mutation.
func (r *TaskRepository) touchBoard(ctx context.Context, columnID uuid.UUID) {
	now := time.Now().UTC()
	query := `UPDATE boards SET updated_at = $1
	 WHERE id = (SELECT board_id FROM columns WHERE id = $2) AND updated_at < $1`
	if _, err := r.db.ExecContext(ctx, query, now, columnID); err != nil {
		log.Printf("touch board for column %s: %v", columnID, err)
	}
}
