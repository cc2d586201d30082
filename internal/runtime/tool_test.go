package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/user/tasktalk/internal/types"
)

type echoTool struct {
	mutates bool
	err     error
	panics  bool
}

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "Echoes input" }
func (e *echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
}
func (e *echoTool) Mutates() bool { return e.mutates }
func (e *echoTool) Execute(_ context.Context, owner string, args Args) (any, error) {
	if e.panics {
		panic("boom")
	}
	if e.err != nil {
		return nil, e.err
	}
	text, ok, err := args.String("text")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Invalid("text is required")
	}
	return owner + ":" + text, nil
}

type namedTool struct {
	echoTool
	name string
}

func (n *namedTool) Name() string { return n.name }

type denyAll struct{}

func (denyAll) Check(_ context.Context, call Call) error {
	return fmt.Errorf("%s not allowed from %s", call.Tool, call.Source)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	tool, ok := r.Get("echo")
	if !ok {
		t.Fatal("expected to find echo tool")
	}
	if tool.Name() != "echo" {
		t.Errorf("expected name 'echo', got %q", tool.Name())
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected not to find missing tool")
	}
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"create", "list", "complete", "update", "delete"} {
		r.Register(&namedTool{name: name})
	}
	r.Register(&namedTool{name: "list"})

	got := strings.Join(r.Names(), ",")
	if got != "create,list,complete,update,delete" {
		t.Errorf("unexpected order %q", got)
	}
	llmTools := r.AsLLMTools()
	if len(llmTools) != 5 {
		t.Fatalf("expected 5 llm tools, got %d", len(llmTools))
	}
	if llmTools[0].Function.Name != "create" || llmTools[0].Type != "function" {
		t.Errorf("unexpected first tool %+v", llmTools[0])
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	res := r.Dispatch(context.Background(), "echo", "u1", Args{"text": "hi"})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Payload != "u1:hi" {
		t.Errorf("unexpected payload %v", res.Payload)
	}
	if res.Tool != "echo" {
		t.Errorf("expected tool echo, got %q", res.Tool)
	}
}

func TestDispatchErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		tool *echoTool
		args Args
		want ErrorKind
	}{
		{"validation", &echoTool{}, Args{}, KindValidation},
		{"not found", &echoTool{err: fmt.Errorf("task 9: %w", types.ErrNotFound)}, Args{"text": "x"}, KindNotFound},
		{"internal", &echoTool{err: errors.New("disk full")}, Args{"text": "x"}, KindInternal},
		{"panic", &echoTool{panics: true}, Args{"text": "x"}, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(tt.tool)
			res := r.Dispatch(context.Background(), "echo", "u1", tt.args)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Kind != tt.want {
				t.Errorf("expected kind %s, got %s (%s)", tt.want, res.Kind, res.Error)
			}
		})
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	res := NewRegistry().Dispatch(context.Background(), "nope", "u1", nil)
	if res.Success || res.Kind != KindValidation {
		t.Fatalf("expected validation failure, got %+v", res)
	}
}

func TestDispatchGuardDenies(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})
	r.SetGuard(denyAll{})

	ctx := WithSource(context.Background(), "routine")
	res := r.Dispatch(ctx, "echo", "u1", Args{"text": "x"})
	if res.Kind != KindDenied {
		t.Fatalf("expected denied, got %+v", res)
	}
	if !strings.Contains(res.Error, "routine") {
		t.Errorf("expected source in error, got %q", res.Error)
	}
}

func TestDispatchObserversOnlyForMutations(t *testing.T) {
	r := NewRegistry()
	var events []Event
	r.Observe(func(_ context.Context, ev Event) { events = append(events, ev) })

	r.Register(&echoTool{})
	r.Dispatch(context.Background(), "echo", "u1", Args{"text": "x"})
	if len(events) != 0 {
		t.Fatalf("expected no events for read-only tool, got %d", len(events))
	}

	r.Register(&echoTool{mutates: true})
	r.Dispatch(WithSource(context.Background(), "api"), "echo", "u1", Args{"text": "x"})
	r.Dispatch(context.Background(), "echo", "u1", Args{})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Source != "api" || events[0].Owner != "u1" {
		t.Errorf("unexpected event %+v", events[0].Call)
	}
}

func TestDispatchJSONStringArguments(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	res := r.DispatchJSON(context.Background(), "echo", "u1", json.RawMessage(`"{\"text\":\"wrapped\"}"`))
	if !res.Success || res.Payload != "u1:wrapped" {
		t.Fatalf("unexpected result %+v", res)
	}
	res = r.DispatchJSON(context.Background(), "echo", "u1", json.RawMessage(`[1,2]`))
	if res.Kind != KindValidation {
		t.Fatalf("expected validation failure for non-object args, got %+v", res)
	}
}

func TestResultJSON(t *testing.T) {
	out := Failed("echo", KindNotFound, "task 3 not found").JSON()
	if !strings.Contains(out, `"error_kind":"not_found"`) || !strings.Contains(out, `"success":false`) {
		t.Errorf("unexpected json %s", out)
	}
}

func TestArgsCoercion(t *testing.T) {
	a := Args{"id": float64(3), "s": "7", "f": 1.5, "b": "true", "n": nil}
	if v, ok, err := a.Int64("id"); err != nil || !ok || v != 3 {
		t.Errorf("Int64(id) = %d %v %v", v, ok, err)
	}
	if v, _, err := a.Int64("s"); err != nil || v != 7 {
		t.Errorf("Int64(s) = %d %v", v, err)
	}
	if _, _, err := a.Int64("f"); err == nil {
		t.Error("expected error for fractional id")
	}
	if v, _, err := a.Bool("b"); err != nil || !v {
		t.Errorf("Bool(b) = %v %v", v, err)
	}
	if _, ok, _ := a.String("n"); ok {
		t.Error("expected null to read as missing")
	}
	if a.Has("n") || !a.Has("id") {
		t.Error("unexpected Has result")
	}
}
