package agent

import (
	"fmt"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
)

// FormatAction describes the effect of a tool call in one short sentence.
func FormatAction(res runtime.Result) string {
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return "Error: " + msg
	}

	switch p := res.Payload.(type) {
	case tools.TaskPayload:
		switch res.Tool {
		case tools.AddTask:
			return "Created task: " + p.Task.Title
		case tools.CompleteTask:
			if p.Task.Completed {
				return "Marked task as complete"
			}
			return "Marked task as incomplete"
		case tools.UpdateTask:
			return "Updated task: " + p.Task.Title
		}
	case tools.ListPayload:
		return fmt.Sprintf("Listed %d tasks", p.Summary.Total)
	case tools.DeletePayload:
		return p.Message
	}
	return "Executed " + res.Tool
}
