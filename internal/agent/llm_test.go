package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/pkg/llm"
)

// scriptedProvider returns canned responses in order and records requests.
type scriptedProvider struct {
	responses []*llm.Response
	errs      []error
	calls     [][]llm.Message
	tools     [][]llm.Tool
}

func (p *scriptedProvider) Complete(_ context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	i := len(p.calls)
	p.calls = append(p.calls, append([]llm.Message(nil), messages...))
	p.tools = append(p.tools, tools)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return p.responses[i], nil
}

func toolCall(id, name, args string) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{ID: id, Type: "function", Function: llm.FunctionCall{Name: name, Arguments: raw}}
}

func TestLLMNoToolCall(t *testing.T) {
	r, _ := newRegistry(t)
	p := &scriptedProvider{responses: []*llm.Response{{Content: "Hello! How can I help?"}}}
	a := New(Options{Registry: r, Provider: p})

	history := []Turn{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}}
	reply := a.Process(context.Background(), "hi", "u1", history)

	assert.Equal(t, "Hello! How can I help?", reply.Text)
	assert.Empty(t, reply.ToolUsed)
	assert.Empty(t, reply.ActionTaken)

	require.Len(t, p.calls, 1)
	msgs := p.calls[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "earlier", msgs[1].Content)
	assert.Equal(t, "hi", msgs[3].Content)
	assert.Len(t, p.tools[0], 5)
}

func TestLLMToolRoundTrip(t *testing.T) {
	r, store := newRegistry(t)
	p := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("call_1", tools.AddTask, `{"title":"buy milk"}`)}},
		{Content: "Added buy milk to your list."},
	}}
	a := New(Options{Registry: r, Provider: p})

	reply := a.Process(context.Background(), "remember to buy milk", "u1", nil)
	assert.Equal(t, "Added buy milk to your list.", reply.Text)
	assert.Equal(t, tools.AddTask, reply.ToolUsed)
	assert.Equal(t, "Created task: buy milk", reply.ActionTaken)

	require.Len(t, p.calls, 2)
	second := p.calls[1]
	assistant := second[len(second)-2]
	assert.Equal(t, llm.RoleAssistant, assistant.Role)
	require.Len(t, assistant.Tools, 1)
	toolMsg := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `"success":true`)
	assert.Nil(t, p.tools[1], "follow-up request carries no tools")

	tasks, err := store.ListTasks(context.Background(), "u1", "all")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Title)
}

func TestLLMMultipleToolCallsReportsLast(t *testing.T) {
	r, _ := newRegistry(t)
	seed(t, r, "u1", "walk dog")
	p := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{
			toolCall("a", tools.ListTasks, `{}`),
			toolCall("b", tools.CompleteTask, `{"task_id":1}`),
		}},
		{Content: "Done!"},
	}}
	reply := New(Options{Registry: r, Provider: p}).Process(context.Background(), "finish walking the dog", "u1", nil)

	assert.Equal(t, tools.CompleteTask, reply.ToolUsed)
	assert.Equal(t, "Marked task as complete", reply.ActionTaken)
	second := p.calls[1]
	assert.Equal(t, "a", second[len(second)-2].ToolCallID)
	assert.Equal(t, "b", second[len(second)-1].ToolCallID)
}

func TestLLMFailedToolIsReported(t *testing.T) {
	r, _ := newRegistry(t)
	p := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("x", tools.DeleteTask, `{"task_id":42}`)}},
		{Content: "I couldn't find that task."},
	}}
	reply := New(Options{Registry: r, Provider: p}).Process(context.Background(), "delete task 42", "u1", nil)

	assert.Equal(t, tools.DeleteTask, reply.ToolUsed)
	assert.Contains(t, reply.ActionTaken, "Error:")
	assert.Contains(t, p.calls[1][len(p.calls[1])-1].Content, string(runtime.KindNotFound))
}

func TestLLMProviderErrors(t *testing.T) {
	r, _ := newRegistry(t)
	boom := errors.New("connection refused")

	first := &scriptedProvider{errs: []error{boom}}
	reply := New(Options{Registry: r, Provider: first}).Process(context.Background(), "hi", "u1", nil)
	assert.Equal(t, "Sorry, I encountered an error: connection refused", reply.Text)
	assert.Empty(t, reply.ToolUsed)

	second := &scriptedProvider{
		responses: []*llm.Response{{ToolCalls: []llm.ToolCall{toolCall("a", tools.ListTasks, `{}`)}}},
		errs:      []error{nil, boom},
	}
	reply = New(Options{Registry: r, Provider: second}).Process(context.Background(), "list", "u1", nil)
	assert.Contains(t, reply.Text, "Sorry, I encountered an error")
	assert.Empty(t, reply.ToolUsed)
	assert.Empty(t, reply.ActionTaken)
}
