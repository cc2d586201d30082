package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/user/tasktalk/internal/types"
)

const taskColumns = `id, user_id, title, description, completed, created_at, updated_at, completed_at`

func notFound(id types.TaskID) error {
	return fmt.Errorf("task %d: %w", id, types.ErrNotFound)
}

func scanTask(row scanner) (*types.Task, error) {
	var (
		t                types.Task
		created, updated string
		completedAt      sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &t.Completed, &created, &updated, &completedAt); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		at, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		t.CompletedAt = &at
	}
	return &t, nil
}

func nullTime(task *types.Task) sql.NullString {
	if task.CompletedAt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*task.CompletedAt), Valid: true}
}

// CreateTask inserts the task and sets its ID.
func (s *Store) CreateTask(ctx context.Context, task *types.Task) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, title, description, completed, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.Owner, task.Title, task.Description, task.Completed,
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt), nullTime(task))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	task.ID = types.TaskID(id)
	return nil
}

func (s *Store) GetTask(ctx context.Context, owner string, id types.TaskID) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, owner string, filter types.TaskFilter) ([]*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	switch filter {
	case types.FilterPending:
		query += ` AND completed = 0`
	case types.FilterCompleted:
		query += ` AND completed = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, owner)
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, completed = ?, updated_at = ?, completed_at = ?
		 WHERE id = ? AND user_id = ?`,
		task.Title, task.Description, task.Completed, formatTime(task.UpdatedAt), nullTime(task),
		task.ID, task.Owner)
	if err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return expectOne(res, task.ID)
}

func (s *Store) DeleteTask(ctx context.Context, owner string, id types.TaskID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id types.TaskID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}
