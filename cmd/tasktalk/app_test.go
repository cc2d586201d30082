package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tasktalk/internal/agent"
	"github.com/user/tasktalk/internal/config"
	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Driver = driver
	cfg.Agent.Fallback = agent.StrategyRules
	return cfg
}

func TestOpenStoresDrivers(t *testing.T) {
	for _, driver := range []string{config.DriverFile, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			ctx := runtime.WithSource(context.Background(), Source)

			st, err := openStores(ctx, cfg)
			require.NoError(t, err)
			defer st.close()

			reg, err := newRegistry(ctx, cfg, st.tasks)
			require.NoError(t, err)

			payload, err := dispatch(ctx, reg, tools.AddTask, "u1", runtime.Args{"title": "buy milk"})
			require.NoError(t, err)
			created := payload.(tools.TaskPayload).Task
			assert.Equal(t, types.TaskID(1), created.ID)

			tasks, err := st.tasks.ListTasks(ctx, "u1", types.FilterAll)
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, "buy milk", tasks[0].Title)
		})
	}
}

func TestOpenStoresSQLitePath(t *testing.T) {
	cfg := testConfig(t, config.DriverSQLite)
	st, err := openStores(context.Background(), cfg)
	require.NoError(t, err)
	st.close()
	assert.FileExists(t, filepath.Join(cfg.DataDir, "tasktalk.db"))
}

func TestDispatchFailure(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	require.NoError(t, err)
	defer st.close()

	reg, err := newRegistry(ctx, cfg, st.tasks)
	require.NoError(t, err)

	_, err = dispatch(ctx, reg, tools.CompleteTask, "u1", runtime.Args{"task_id": 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(runtime.KindNotFound))
}

func TestNewAgentFallback(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	reg := runtime.NewRegistry()

	ag, err := newAgent(cfg, reg)
	require.NoError(t, err)
	assert.Equal(t, agent.StrategyRules, ag.Strategy())

	cfg.Agent.Fallback = agent.StrategyKeywords
	ag, err = newAgent(cfg, reg)
	require.NoError(t, err)
	assert.Equal(t, agent.StrategyKeywords, ag.Strategy())
}

func TestChatLoop(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	require.NoError(t, err)
	defer st.close()
	reg, err := newRegistry(ctx, cfg, st.tasks)
	require.NoError(t, err)
	ag, err := newAgent(cfg, reg)
	require.NoError(t, err)

	gw := gateway.New(st.conversations, ag, 1)
	gw.Start(ctx)
	defer gw.Stop()

	input := strings.Join([]string{
		"remember to buy milk",
		"",
		strings.Repeat("x", types.MaxMessageLength+1),
		"show my tasks",
		"exit",
		"remember to walk the dog",
	}, "\n")
	var out bytes.Buffer
	req := gateway.Request{Key: cliKey("u1"), Owner: "u1", Source: Source}
	require.NoError(t, chatLoop(ctx, gw, req, strings.NewReader(input), &out))

	got := out.String()
	assert.Contains(t, got, "✅ Created task: 'buy milk'")
	assert.Contains(t, got, "(Created task: buy milk)")
	assert.Contains(t, got, "⚠️ message must be at most 1000 characters")
	assert.Contains(t, got, "1. buy milk")
	assert.NotContains(t, got, "walk the dog")

	conv, err := st.conversations.ResolveKey(ctx, cliKey("u1"), "u1")
	require.NoError(t, err)
	n, err := st.conversations.CountTurns(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPIDFile(t *testing.T) {
	pid := pidFileIn(t.TempDir())

	_, err := pid.process()
	assert.ErrorIs(t, err, errNotRunning)

	require.NoError(t, pid.write())
	proc, err := pid.process()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), proc.Pid)

	pid.remove()
	_, err = pid.process()
	assert.ErrorIs(t, err, errNotRunning)
}

func TestSplitConfigKey(t *testing.T) {
	tests := []struct{ key, section, rest string }{
		{"log_level", generalSection, "log_level"},
		{"storage.driver", "storage", "driver"},
		{"notify.routes.u1", "notify", "routes.u1"},
	}
	for _, tt := range tests {
		section, rest := splitKey(tt.key)
		assert.Equal(t, tt.section, section, tt.key)
		assert.Equal(t, tt.rest, rest, tt.key)
	}
}
