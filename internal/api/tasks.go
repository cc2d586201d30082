package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

type CreateTaskRequest struct {
	Title       string `json:"title" maxLength:"200"`
	Description string `json:"description,omitempty" maxLength:"1000"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty" maxLength:"200"`
	Description *string `json:"description,omitempty" maxLength:"1000"`
}

type taskPath struct {
	UserID string `path:"user_id"`
	TaskID int64  `path:"task_id"`
}

type taskOutput struct {
	Body *types.Task `json:"body"`
}

// dispatch runs a task tool for user, so REST writes share the chat path's
// validation.
func (s *server) dispatch(ctx context.Context, tool, user string, args runtime.Args) (any, huma.StatusError) {
	res := s.cfg.Registry.Dispatch(runtime.WithSource(ctx, Source), tool, user, args)
	if !res.Success {
		return nil, resultError(res)
	}
	return res.Payload, nil
}

func taskResult(payload any) (*taskOutput, error) {
	p, ok := payload.(tools.TaskPayload)
	if !ok {
		return nil, newAPIError(http.StatusInternalServerError, "internal_error", "unexpected tool payload")
	}
	return &taskOutput{Body: p.Task}, nil
}

func (s *server) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/api/{user_id}/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
		Status string `query:"status" enum:"all,pending,completed" default:"all"`
	}) (*struct {
		Body []*types.Task `json:"body"`
	}, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		payload, err := s.dispatch(ctx, tools.ListTasks, user, runtime.Args{"status_filter": input.Status})
		if err != nil {
			return nil, err
		}
		list, _ := payload.(tools.ListPayload)
		return &struct {
			Body []*types.Task `json:"body"`
		}{Body: list.Tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/api/{user_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserID string            `path:"user_id"`
		Body   CreateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		args := runtime.Args{"title": input.Body.Title}
		if input.Body.Description != "" {
			args["description"] = input.Body.Description
		}
		payload, err := s.dispatch(ctx, tools.AddTask, user, args)
		if err != nil {
			return nil, err
		}
		return taskResult(payload)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/api/{user_id}/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*taskOutput, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		task, err := s.cfg.Tasks.GetTask(ctx, user, types.TaskID(input.TaskID))
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/api/{user_id}/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string            `path:"user_id"`
		TaskID int64             `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		args := runtime.Args{"task_id": input.TaskID}
		if input.Body.Title != nil {
			args["title"] = *input.Body.Title
		}
		if input.Body.Description != nil {
			args["description"] = *input.Body.Description
		}
		payload, err := s.dispatch(ctx, tools.UpdateTask, user, args)
		if err != nil {
			return nil, err
		}
		return taskResult(payload)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/api/{user_id}/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body tools.DeletePayload `json:"body"`
	}, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		payload, err := s.dispatch(ctx, tools.DeleteTask, user, runtime.Args{"task_id": input.TaskID})
		if err != nil {
			return nil, err
		}
		del, _ := payload.(tools.DeletePayload)
		return &struct {
			Body tools.DeletePayload `json:"body"`
		}{Body: del}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-task",
		Method:      http.MethodPatch,
		Path:        "/api/{user_id}/tasks/{task_id}/complete",
		Summary:     "Toggle task completion",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*taskOutput, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		task, err := s.cfg.Tasks.GetTask(ctx, user, types.TaskID(input.TaskID))
		if err != nil {
			return nil, handleError(err)
		}
		payload, serr := s.dispatch(ctx, tools.CompleteTask, user, runtime.Args{
			"task_id":   input.TaskID,
			"completed": !task.Completed,
		})
		if serr != nil {
			return nil, serr
		}
		return taskResult(payload)
	})
}
