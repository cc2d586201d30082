// Package policy evaluates tool calls against a Rego policy before they run.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/user/tasktalk/internal/runtime"
)

// Query is the rule the policy must define: a set of denial reasons.
const Query = "data.tasktalk.tools.deny"

// DefaultPolicy keeps unattended routines from deleting tasks.
const DefaultPolicy = `
package tasktalk.tools

import rego.v1

deny contains "routines may not delete tasks" if {
	input.source == "routine"
	input.tool_name == "delete_task"
}

deny contains "a user id is required" if {
	input.user_id == ""
}
`

// Engine is a prepared OPA query implementing runtime.Guard.
type Engine struct {
	query rego.PreparedEvalQuery
}

var _ runtime.Guard = (*Engine)(nil)

// NewEngine compiles the given policy module.
func NewEngine(ctx context.Context, module string) (*Engine, error) {
	r := rego.New(
		rego.Query(Query),
		rego.Module("tools.rego", module),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Load compiles the policy at path, or DefaultPolicy when path is empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return NewEngine(ctx, string(data))
}

// Reasons returns the denial reasons for call, sorted. An empty slice allows it.
func (e *Engine) Reasons(ctx context.Context, call runtime.Call) ([]string, error) {
	input := map[string]any{
		"tool_name": call.Tool,
		"user_id":   call.Owner,
		"source":    call.Source,
		"args":      map[string]any(call.Args),
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	var reasons []string
	switch v := results[0].Expressions[0].Value.(type) {
	case []any:
		for _, item := range v {
			reasons = append(reasons, fmt.Sprint(item))
		}
	case string:
		reasons = append(reasons, v)
	case bool:
		if v {
			reasons = append(reasons, "denied by policy")
		}
	}
	sort.Strings(reasons)
	return reasons, nil
}

// Check implements runtime.Guard. Evaluation errors deny the call.
func (e *Engine) Check(ctx context.Context, call runtime.Call) error {
	reasons, err := e.Reasons(ctx, call)
	if err != nil {
		return err
	}
	if len(reasons) > 0 {
		return fmt.Errorf("policy denied: %s", strings.Join(reasons, "; "))
	}
	return nil
}
