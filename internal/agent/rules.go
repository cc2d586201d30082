package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/tasktalk/internal/intent"
	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

const rulesHelp = "I can help you manage your tasks! You can ask me to:\n" +
	"• Add a task: 'Remember to buy milk'\n" +
	"• List tasks: 'What do I need to do?'\n" +
	"• Complete: 'Done with groceries'\n" +
	"• Update: 'Change groceries to vegetables'\n" +
	"• Delete: 'Remove that task'"

// ruleResolver answers with the intent package's rule table. Complete,
// update and delete act on a default target: the first pending task for
// complete, the first task overall for update and delete.
type ruleResolver struct {
	registry *runtime.Registry
}

func (r *ruleResolver) Resolve(ctx context.Context, message, owner string, _ []Turn) Reply {
	m := intent.Classify(message)
	switch m.Intent {
	case intent.Add:
		return r.add(ctx, owner, m.Title)
	case intent.List:
		return r.list(ctx, owner)
	case intent.Complete:
		return r.complete(ctx, owner)
	case intent.Update:
		return r.update(ctx, owner, m.Title)
	case intent.Delete:
		return r.delete(ctx, owner)
	}
	return Reply{Text: rulesHelp}
}

// done wraps a tool result. Failures carry no tool or action.
func done(res runtime.Result, text string) Reply {
	if !res.Success {
		return Reply{Text: "Error: " + res.Error}
	}
	return Reply{Text: text, ToolUsed: res.Tool, ActionTaken: FormatAction(res)}
}

// firstTask lists the owner's tasks with filter and returns the newest one.
func (r *ruleResolver) firstTask(ctx context.Context, owner string, filter types.TaskFilter) (runtime.Result, *types.Task) {
	res := r.registry.Dispatch(ctx, tools.ListTasks, owner, runtime.Args{"status_filter": string(filter)})
	if !res.Success {
		return res, nil
	}
	tasks := res.Payload.(tools.ListPayload).Tasks
	if len(tasks) == 0 {
		return res, nil
	}
	return res, tasks[0]
}

func (r *ruleResolver) add(ctx context.Context, owner, title string) Reply {
	res := r.registry.Dispatch(ctx, tools.AddTask, owner, runtime.Args{"title": title})
	if !res.Success {
		return Reply{Text: "❌ Error: " + res.Error}
	}
	task := res.Payload.(tools.TaskPayload).Task
	return done(res, fmt.Sprintf("✅ Created task: '%s'", task.Title))
}

func (r *ruleResolver) list(ctx context.Context, owner string) Reply {
	res := r.registry.Dispatch(ctx, tools.ListTasks, owner, runtime.Args{"status_filter": string(types.FilterAll)})
	if !res.Success {
		return done(res, "")
	}
	payload := res.Payload.(tools.ListPayload)
	if len(payload.Tasks) == 0 {
		return done(res, "You have no tasks yet!")
	}
	lines := make([]string, len(payload.Tasks))
	for i, t := range payload.Tasks {
		lines[i] = fmt.Sprintf("%d. %s", i+1, t.Title)
	}
	return done(res, fmt.Sprintf("You have %d tasks:\n%s", payload.Summary.Total, strings.Join(lines, "\n")))
}

func (r *ruleResolver) complete(ctx context.Context, owner string) Reply {
	listRes, target := r.firstTask(ctx, owner, types.FilterPending)
	if target == nil {
		return done(listRes, "No pending tasks to complete!")
	}
	res := r.registry.Dispatch(ctx, tools.CompleteTask, owner, runtime.Args{"task_id": target.ID, "completed": true})
	if !res.Success {
		return done(res, "")
	}
	return done(res, fmt.Sprintf("✅ Marked '%s' as complete!", res.Payload.(tools.TaskPayload).Task.Title))
}

func (r *ruleResolver) update(ctx context.Context, owner, title string) Reply {
	listRes, target := r.firstTask(ctx, owner, types.FilterAll)
	if target == nil {
		return done(listRes, "No tasks to update!")
	}
	if title == "" {
		return done(listRes, "I need a new title. What should the task be?")
	}
	res := r.registry.Dispatch(ctx, tools.UpdateTask, owner, runtime.Args{"task_id": target.ID, "title": title})
	if !res.Success {
		return done(res, "")
	}
	return done(res, fmt.Sprintf("✅ Updated task to '%s'", res.Payload.(tools.TaskPayload).Task.Title))
}

func (r *ruleResolver) delete(ctx context.Context, owner string) Reply {
	listRes, target := r.firstTask(ctx, owner, types.FilterAll)
	if target == nil {
		return done(listRes, "No tasks to delete!")
	}
	res := r.registry.Dispatch(ctx, tools.DeleteTask, owner, runtime.Args{"task_id": target.ID})
	if !res.Success {
		return done(res, "")
	}
	return done(res, "✅ "+res.Payload.(tools.DeletePayload).Message)
}
