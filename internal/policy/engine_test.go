package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tasktalk/internal/runtime"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := Load(ctx, "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		call    runtime.Call
		allowed bool
	}{
		{"api delete", runtime.Call{Tool: "delete_task", Owner: "u1", Source: "api"}, true},
		{"routine list", runtime.Call{Tool: "list_tasks", Owner: "u1", Source: "routine"}, true},
		{"routine delete", runtime.Call{Tool: "delete_task", Owner: "u1", Source: "routine"}, false},
		{"anonymous", runtime.Call{Tool: "add_task", Source: "api"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.Check(ctx, tt.call)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDenialReasonsInError(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	err = engine.Check(ctx, runtime.Call{Tool: "delete_task", Source: "routine"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routines may not delete tasks")
	assert.Contains(t, err.Error(), "a user id is required")
}

func TestCustomPolicyUsesArgs(t *testing.T) {
	module := `
package tasktalk.tools

import rego.v1

deny contains "titles may not mention passwords" if {
	input.tool_name == "add_task"
	contains(lower(input.args.title), "password")
}
`
	path := filepath.Join(t.TempDir(), "tools.rego")
	require.NoError(t, os.WriteFile(path, []byte(module), 0o644))

	ctx := context.Background()
	engine, err := Load(ctx, path)
	require.NoError(t, err)

	assert.Error(t, engine.Check(ctx, runtime.Call{Tool: "add_task", Owner: "u1", Args: runtime.Args{"title": "Reset PASSWORD"}}))
	assert.NoError(t, engine.Check(ctx, runtime.Call{Tool: "add_task", Owner: "u1", Args: runtime.Args{"title": "buy milk"}}))
	// The custom module does not carry the default routine rule.
	assert.NoError(t, engine.Check(ctx, runtime.Call{Tool: "delete_task", Owner: "u1", Source: "routine"}))
}

func TestInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\n\ndeny contains if {")
	assert.Error(t, err)
}

func TestGuardsRegistry(t *testing.T) {
	ctx := context.Background()
	engine, err := Load(ctx, "")
	require.NoError(t, err)

	r := runtime.NewRegistry()
	r.SetGuard(engine)
	r.Register(stubTool{})

	res := r.Dispatch(runtime.WithSource(ctx, "routine"), "delete_task", "u1", runtime.Args{"task_id": 1})
	assert.False(t, res.Success)
	assert.Equal(t, runtime.KindDenied, res.Kind)

	res = r.Dispatch(runtime.WithSource(ctx, "api"), "delete_task", "u1", runtime.Args{"task_id": 1})
	assert.True(t, res.Success)
}
