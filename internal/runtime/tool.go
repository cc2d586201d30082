package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/tasktalk/internal/types"
	"github.com/user/tasktalk/pkg/llm"
)

// Tool defines the interface for an executable tool. Execute receives the
// caller's identity separately from the model-supplied arguments so a tool
// can never act on behalf of another owner.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, owner string, args Args) (any, error)
}

// Mutating tools report changes to observers after a successful call.
type Mutating interface {
	Mutates() bool
}

// Guard decides whether a tool call may run. A non-nil error denies it.
type Guard interface {
	Check(ctx context.Context, call Call) error
}

// Call describes one tool invocation for guards and observers.
type Call struct {
	Tool   string `json:"tool_name"`
	Owner  string `json:"user_id"`
	Source string `json:"source"`
	Args   Args   `json:"args"`
}

// Event is emitted after a successful mutating call.
type Event struct {
	Call
	Result Result
}

// Observer receives events for successful mutating calls.
type Observer func(ctx context.Context, ev Event)

// Registry holds registered tools in registration order and dispatches calls.
type Registry struct {
	tools     map[string]Tool
	order     []string
	guard     Guard
	observers []Observer
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry. Re-registering a name replaces the
// tool but keeps its original position.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// SetGuard installs a policy check run before every call.
func (r *Registry) SetGuard(g Guard) {
	r.guard = g
}

// Observe adds an observer for successful mutating calls.
func (r *Registry) Observe(o Observer) {
	r.observers = append(r.observers, o)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns all registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// AsLLMTools converts registered tools to the LLM provider format.
func (r *Registry) AsLLMTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, t := range r.All() {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// DispatchJSON decodes model-supplied arguments and dispatches the call.
func (r *Registry) DispatchJSON(ctx context.Context, name, owner string, raw json.RawMessage) Result {
	obj, err := llm.FunctionCall{Name: name, Arguments: raw}.ArgumentsObject()
	if err != nil {
		return Failed(name, KindValidation, fmt.Sprintf("invalid arguments: %v", err))
	}
	var args Args
	if err := json.Unmarshal(obj, &args); err != nil {
		return Failed(name, KindValidation, fmt.Sprintf("invalid arguments: %v", err))
	}
	return r.Dispatch(ctx, name, owner, args)
}

// Dispatch runs the named tool for owner. It never returns an error: every
// failure, including a panic inside the tool, becomes a failed Result.
func (r *Registry) Dispatch(ctx context.Context, name, owner string, args Args) (res Result) {
	tool, ok := r.tools[name]
	if !ok {
		return Failed(name, KindValidation, fmt.Sprintf("unknown tool %q", name))
	}
	if args == nil {
		args = Args{}
	}
	call := Call{Tool: name, Owner: owner, Source: SourceFrom(ctx), Args: args}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("tool panicked", "tool", name, "panic", p)
			res = Failed(name, KindInternal, fmt.Sprint(p))
		}
	}()

	if r.guard != nil {
		if err := r.guard.Check(ctx, call); err != nil {
			slog.Warn("tool call denied", "tool", name, "user_id", owner, "source", call.Source, "reason", err)
			return Failed(name, KindDenied, err.Error())
		}
	}

	payload, err := tool.Execute(ctx, owner, args)
	if err != nil {
		return classify(name, err)
	}
	res = Succeeded(name, payload)

	if m, ok := tool.(Mutating); ok && m.Mutates() {
		for _, o := range r.observers {
			o(ctx, Event{Call: call, Result: res})
		}
	}
	return res
}

func classify(name string, err error) Result {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return Failed(name, KindValidation, ve.Error())
	case errors.Is(err, types.ErrNotFound):
		return Failed(name, KindNotFound, err.Error())
	default:
		slog.Error("tool failed", "tool", name, "error", err)
		return Failed(name, KindInternal, err.Error())
	}
}
