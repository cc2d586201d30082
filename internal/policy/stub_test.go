package policy

import (
	"context"
	"encoding/json"

	"github.com/user/tasktalk/internal/runtime"
)

type stubTool struct{}

func (stubTool) Name() string                { return "delete_task" }
func (stubTool) Description() string         { return "stub" }
func (stubTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (stubTool) Execute(context.Context, string, runtime.Args) (any, error) {
	return "deleted", nil
}
