package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/tasktalk/internal/types"
)

const taskColumns = `id, user_id, title, description, completed, created_at, updated_at, completed_at`

func notFound(id types.TaskID) error {
	return fmt.Errorf("task %d: %w", id, types.ErrNotFound)
}

func scanTask(row pgx.Row) (*types.Task, error) {
	var t types.Task
	var id int64
	if err := row.Scan(&id, &t.Owner, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	t.ID = types.TaskID(id)
	return &t, nil
}

// CreateTask inserts the task and sets its ID.
func (s *Store) CreateTask(ctx context.Context, task *types.Task) error {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (user_id, title, description, completed, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		task.Owner, task.Title, task.Description, task.Completed, task.CreatedAt, task.UpdatedAt, task.CompletedAt).
		Scan(&id)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	task.ID = types.TaskID(id)
	return nil
}

func (s *Store) GetTask(ctx context.Context, owner string, id types.TaskID) (*types.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, int64(id), owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, owner string, filter types.TaskFilter) ([]*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	switch filter {
	case types.FilterPending:
		query += ` AND NOT completed`
	case types.FilterCompleted:
		query += ` AND completed`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*types.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, task *types.Task) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET title = $1, description = $2, completed = $3, updated_at = $4, completed_at = $5
		WHERE id = $6 AND user_id = $7`,
		task.Title, task.Description, task.Completed, task.UpdatedAt, task.CompletedAt, int64(task.ID), task.Owner)
	if err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(task.ID)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, owner string, id types.TaskID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, int64(id), owner)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}
