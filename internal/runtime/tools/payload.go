package tools

import "github.com/user/tasktalk/internal/types"

// TaskPayload is returned by add_task, complete_task and update_task.
type TaskPayload struct {
	Task *types.Task `json:"task"`
}

// ListPayload is returned by list_tasks.
type ListPayload struct {
	Tasks   []*types.Task     `json:"tasks"`
	Summary types.TaskSummary `json:"summary"`
}

// DeletePayload is returned by delete_task.
type DeletePayload struct {
	Message string       `json:"message"`
	TaskID  types.TaskID `json:"task_id"`
}
