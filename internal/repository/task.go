package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evotodo/evotodo/internal/model"
)

// ErrTaskNotFound is returned when no task row exists for the given id.
var ErrTaskNotFound = errors.New("task not found")

const taskColumns = "id, owner_id, title, description, completed, created_at, updated_at"

// CreateTask inserts a new task row owned by task.OwnerID and fills in
// the server-assigned id and timestamps.
func (r *Repository) CreateTask(ctx context.Context, task *model.Task) error {
	query := `
		INSERT INTO tasks (owner_id, title, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query,
		task.OwnerID,
		task.Title,
		task.Description,
		task.Completed,
		now,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetTaskByID retrieves a task by id regardless of owner. Callers use
// the unfiltered lookup to tell "absent" apart from "not yours".
func (r *Repository) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task by id: %w", err)
	}

	return task, nil
}

// ListTasksByOwner retrieves every task owned by ownerID in insertion
// order. The owner filter runs in SQL; rows of other tenants are never
// read off the wire.
func (r *Repository) ListTasksByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTask loads the task row locked for update, applies fn to it and
// persists the mutable fields, all inside one transaction. fn sees the
// committed row state and may reject the mutation by returning an
// error, which rolls the transaction back untranslated. updated_at is
// refreshed on every successful write.
func (r *Repository) UpdateTask(ctx context.Context, id int64, fn func(*model.Task) error) (*model.Task, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := lockTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(task); err != nil {
		return nil, err
	}

	task.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET title = $2, description = $3, completed = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Completed,
		task.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}

	return task, nil
}

// DeleteTask removes the task row after fn approves it, with the row
// locked so the approval and the delete see the same state. Removal is
// permanent.
func (r *Repository) DeleteTask(ctx context.Context, id int64, fn func(*model.Task) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := lockTask(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := fn(task); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit task delete: %w", err)
	}

	return nil
}

// lockTask reads a task row with a row-level lock inside tx.
func lockTask(ctx context.Context, tx pgx.Tx, id int64) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 FOR UPDATE`

	task, err := scanTask(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}

	return task, nil
}

// scanTask scans a single row into a Task model.
func scanTask(row pgx.Row) (*model.Task, error) {
	var task model.Task
	err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	return &task, err
}
