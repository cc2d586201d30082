package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/types"
)

// Tool names. The set is fixed; both agent strategies and the REST API
// address tools by these names.
const (
	AddTask      = "add_task"
	ListTasks    = "list_tasks"
	CompleteTask = "complete_task"
	UpdateTask   = "update_task"
	DeleteTask   = "delete_task"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// RegisterTaskTools registers the five task tools on r in their canonical order.
func RegisterTaskTools(r *runtime.Registry, store types.TaskStore, now Clock) {
	if now == nil {
		now = time.Now
	}
	r.Register(&addTask{store: store, now: now})
	r.Register(&listTasks{store: store})
	r.Register(&completeTask{store: store, now: now})
	r.Register(&updateTask{store: store, now: now})
	r.Register(&deleteTask{store: store})
}

func cleanTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", runtime.Invalid("title is required")
	}
	if utf8.RuneCountInString(s) > types.MaxTitleLength {
		return "", runtime.Invalid("title must be at most %d characters", types.MaxTitleLength)
	}
	return s, nil
}

func cleanDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > types.MaxDescriptionLength {
		return "", runtime.Invalid("description must be at most %d characters", types.MaxDescriptionLength)
	}
	return s, nil
}

func taskID(args runtime.Args) (types.TaskID, error) {
	id, ok, err := args.Int64("task_id")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, runtime.Invalid("task_id is required")
	}
	if id <= 0 {
		return 0, runtime.Invalid("task_id must be a positive integer")
	}
	return types.TaskID(id), nil
}

type addTask struct {
	store types.TaskStore
	now   Clock
}

func (t *addTask) Name() string  { return AddTask }
func (t *addTask) Mutates() bool { return true }
func (t *addTask) Description() string {
	return "Create a new task for the user. Use when the user wants to add, remember or create something to do."
}
func (t *addTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "description": "Short task title, 1-200 characters"},
			"description": {"type": "string", "description": "Optional details, up to 1000 characters"}
		},
		"required": ["title"]
	}`)
}

func (t *addTask) Execute(ctx context.Context, owner string, args runtime.Args) (any, error) {
	raw, _, err := args.String("title")
	if err != nil {
		return nil, err
	}
	title, err := cleanTitle(raw)
	if err != nil {
		return nil, err
	}
	rawDesc, _, err := args.String("description")
	if err != nil {
		return nil, err
	}
	desc, err := cleanDescription(rawDesc)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	task := &types.Task{
		Owner:       owner,
		Title:       title,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return TaskPayload{Task: task}, nil
}

type listTasks struct {
	store types.TaskStore
}

func (t *listTasks) Name() string { return ListTasks }
func (t *listTasks) Description() string {
	return "List the user's tasks, newest first, with a summary of pending and completed counts."
}
func (t *listTasks) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status_filter": {
				"type": "string",
				"enum": ["all", "pending", "completed"],
				"description": "Which tasks to return (default all)"
			}
		}
	}`)
}

func (t *listTasks) Execute(ctx context.Context, owner string, args runtime.Args) (any, error) {
	raw, _, err := args.String("status_filter")
	if err != nil {
		return nil, err
	}
	filter, ok := types.ParseTaskFilter(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		return nil, runtime.Invalid("status_filter must be one of all, pending, completed")
	}
	tasks, err := t.store.ListTasks(ctx, owner, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*types.Task{}
	}
	return ListPayload{Tasks: tasks, Summary: types.Summarize(tasks)}, nil
}

type completeTask struct {
	store types.TaskStore
	now   Clock
}

func (t *completeTask) Name() string  { return CompleteTask }
func (t *completeTask) Mutates() bool { return true }
func (t *completeTask) Description() string {
	return "Mark a task as completed, or as not completed again when completed is false."
}
func (t *completeTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "ID of the task"},
			"completed": {"type": "boolean", "description": "New completion state (default true)"}
		},
		"required": ["task_id"]
	}`)
}

func (t *completeTask) Execute(ctx context.Context, owner string, args runtime.Args) (any, error) {
	id, err := taskID(args)
	if err != nil {
		return nil, err
	}
	completed, ok, err := args.Bool("completed")
	if err != nil {
		return nil, err
	}
	if !ok {
		completed = true
	}

	task, err := t.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	task.SetCompleted(completed, t.now().UTC())
	if err := t.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return TaskPayload{Task: task}, nil
}

type updateTask struct {
	store types.TaskStore
	now   Clock
}

func (t *updateTask) Name() string  { return UpdateTask }
func (t *updateTask) Mutates() bool { return true }
func (t *updateTask) Description() string {
	return "Change the title and/or description of an existing task."
}
func (t *updateTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "ID of the task"},
			"title": {"type": "string", "description": "New title, 1-200 characters"},
			"description": {"type": "string", "description": "New description, up to 1000 characters"}
		},
		"required": ["task_id"]
	}`)
}

func (t *updateTask) Execute(ctx context.Context, owner string, args runtime.Args) (any, error) {
	id, err := taskID(args)
	if err != nil {
		return nil, err
	}
	rawTitle, hasTitle, err := args.String("title")
	if err != nil {
		return nil, err
	}
	rawDesc, hasDesc, err := args.String("description")
	if err != nil {
		return nil, err
	}
	if !hasTitle && !hasDesc {
		return nil, runtime.Invalid("title or description is required")
	}

	var title, desc string
	if hasTitle {
		if title, err = cleanTitle(rawTitle); err != nil {
			return nil, err
		}
	}
	if hasDesc {
		if desc, err = cleanDescription(rawDesc); err != nil {
			return nil, err
		}
	}

	task, err := t.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if hasTitle {
		task.Title = title
	}
	if hasDesc {
		task.Description = desc
	}
	task.UpdatedAt = t.now().UTC()
	if err := t.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return TaskPayload{Task: task}, nil
}

type deleteTask struct {
	store types.TaskStore
}

func (t *deleteTask) Name() string  { return DeleteTask }
func (t *deleteTask) Mutates() bool { return true }
func (t *deleteTask) Description() string {
	return "Permanently delete a task."
}
func (t *deleteTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "ID of the task to delete"}
		},
		"required": ["task_id"]
	}`)
}

func (t *deleteTask) Execute(ctx context.Context, owner string, args runtime.Args) (any, error) {
	id, err := taskID(args)
	if err != nil {
		return nil, err
	}
	task, err := t.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := t.store.DeleteTask(ctx, owner, id); err != nil {
		return nil, fmt.Errorf("delete task %d: %w", id, err)
	}
	return DeletePayload{
		Message: fmt.Sprintf("Task '%s' has been deleted", task.Title),
		TaskID:  id,
	}, nil
}
