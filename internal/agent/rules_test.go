package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

func TestRulesUnknownIntent(t *testing.T) {
	r, _ := newRegistry(t)
	a := New(Options{Registry: r, Fallback: StrategyRules})

	reply := a.Process(context.Background(), "the weather is nice", "u1", nil)
	assert.Equal(t, rulesHelp, reply.Text)
	assert.Empty(t, reply.ToolUsed)
	assert.Empty(t, reply.ActionTaken)
}

func TestRulesAddAndList(t *testing.T) {
	r, _ := newRegistry(t)
	a := New(Options{Registry: r, Fallback: StrategyRules})
	ctx := context.Background()

	reply := a.Process(ctx, "what do I need to do", "u1", nil)
	assert.Equal(t, "You have no tasks yet!", reply.Text)
	assert.Equal(t, tools.ListTasks, reply.ToolUsed)

	reply = a.Process(ctx, "remember to buy milk", "u1", nil)
	assert.Equal(t, "✅ Created task: 'buy milk'", reply.Text)
	assert.Equal(t, "Created task: buy milk", reply.ActionTaken)

	a.Process(ctx, "add task walk dog", "u1", nil)
	reply = a.Process(ctx, "show my tasks", "u1", nil)
	assert.Equal(t, "You have 2 tasks:\n1. task walk dog\n2. buy milk", reply.Text)
	assert.Equal(t, "Listed 2 tasks", reply.ActionTaken)
}

func TestRulesDefaultTargets(t *testing.T) {
	r, store := newRegistry(t)
	a := New(Options{Registry: r, Fallback: StrategyRules})
	ctx := context.Background()

	reply := a.Process(ctx, "mark the task as done", "u1", nil)
	assert.Equal(t, "No pending tasks to complete!", reply.Text)
	reply = a.Process(ctx, "delete that task", "u1", nil)
	assert.Equal(t, "No tasks to delete!", reply.Text)

	seed(t, r, "u1", "buy milk", "walk dog", "call mom")

	// complete: first pending task, newest first.
	reply = a.Process(ctx, "mark the task as done", "u1", nil)
	assert.Equal(t, "✅ Marked 'call mom' as complete!", reply.Text)
	assert.Equal(t, tools.CompleteTask, reply.ToolUsed)
	reply = a.Process(ctx, "tick off a task", "u1", nil)
	assert.Equal(t, "✅ Marked 'walk dog' as complete!", reply.Text)

	// update: first task overall, even when completed.
	reply = a.Process(ctx, "rename it to phone mum", "u1", nil)
	assert.Equal(t, "✅ Updated task to 'phone mum'", reply.Text)
	assert.Equal(t, "Updated task: phone mum", reply.ActionTaken)

	// delete: first task overall.
	reply = a.Process(ctx, "delete that task", "u1", nil)
	assert.Equal(t, "✅ Task 'phone mum' has been deleted", reply.Text)
	assert.Equal(t, tools.DeleteTask, reply.ToolUsed)

	remaining, err := store.ListTasks(ctx, "u1", types.FilterAll)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "walk dog", remaining[0].Title)
}

func TestRulesUpdateNeedsTitle(t *testing.T) {
	r, _ := newRegistry(t)
	a := New(Options{Registry: r, Fallback: StrategyRules})
	ctx := context.Background()

	reply := a.Process(ctx, "change it to something", "u1", nil)
	assert.Equal(t, "No tasks to update!", reply.Text)

	seed(t, r, "u1", "buy milk")
	reply = a.Process(ctx, "change it to", "u1", nil)
	assert.Equal(t, "I need a new title. What should the task be?", reply.Text)
	assert.Equal(t, tools.ListTasks, reply.ToolUsed)
}
