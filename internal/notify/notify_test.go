package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

type sink struct {
	mu   sync.Mutex
	keys []types.SessionKey
	msgs []string
	err  error
}

func (s *sink) Deliver(_ context.Context, key types.SessionKey, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	s.msgs = append(s.msgs, message)
	return s.err
}

func event(tool, owner string, payload any) runtime.Event {
	return runtime.Event{
		Call:   runtime.Call{Tool: tool, Owner: owner, Source: "api"},
		Result: runtime.Succeeded(tool, payload),
	}
}

func TestDescribe(t *testing.T) {
	task := &types.Task{ID: 1, Title: "buy milk", Description: "2 litres"}

	n := Describe(event(tools.AddTask, "u1", tools.TaskPayload{Task: task}))
	assert.Equal(t, "Task created", n.Heading)
	assert.Equal(t, "buy milk", n.Title)
	assert.Equal(t, "2 litres", n.Detail)
	assert.Equal(t, "api", n.Source)

	done := *task
	done.Completed = true
	assert.Equal(t, "Task completed", Describe(event(tools.CompleteTask, "u1", tools.TaskPayload{Task: &done})).Heading)
	assert.Equal(t, "Task reopened", Describe(event(tools.CompleteTask, "u1", tools.TaskPayload{Task: task})).Heading)
	assert.Equal(t, "Task updated", Describe(event(tools.UpdateTask, "u1", tools.TaskPayload{Task: task})).Heading)

	del := Describe(event(tools.DeleteTask, "u1", tools.DeletePayload{Message: "Task 'buy milk' has been deleted", TaskID: 1}))
	assert.Equal(t, "Task deleted", del.Heading)
	assert.Equal(t, "Task 'buy milk' has been deleted", del.Detail)
}

func TestMarkdownRendering(t *testing.T) {
	n, err := New(nil, nil)
	require.NoError(t, err)

	html, err := n.HTML(Notice{Heading: "Task created", Title: "<b>milk</b>", Source: "api"})
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;b&gt;milk&lt;/b&gt;")

	md, err := n.Markdown(Notice{Heading: "Task created", Title: "buy milk", Source: "telegram"})
	require.NoError(t, err)
	assert.Contains(t, md, "**Task created**")
	assert.Contains(t, md, "buy milk")
	assert.Contains(t, md, "via telegram")
	assert.NotContains(t, md, "<p>")
}

func TestObserveDeliversToRoute(t *testing.T) {
	s := &sink{}
	n, err := New(map[string]string{"u1": "telegram:42:42"}, s)
	require.NoError(t, err)

	task := &types.Task{ID: 1, Title: "buy milk"}
	n.Observe(context.Background(), event(tools.AddTask, "u1", tools.TaskPayload{Task: task}))
	n.Observe(context.Background(), event(tools.AddTask, "u2", tools.TaskPayload{Task: task}))
	n.Wait()

	require.Len(t, s.keys, 1)
	assert.Equal(t, types.SessionKey("telegram:42:42"), s.keys[0])
	assert.Contains(t, s.msgs[0], "buy milk")
}

func TestObserveSurvivesDeliveryFailure(t *testing.T) {
	s := &sink{err: errors.New("chat not found")}
	n, err := New(map[string]string{"u1": "telegram:1:1"}, s)
	require.NoError(t, err)

	n.Observe(context.Background(), event(tools.DeleteTask, "u1", tools.DeletePayload{Message: "gone", TaskID: 3}))
	n.Wait()
	assert.Len(t, s.msgs, 1)
}
