package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/tasktalk/internal/agent"
	"github.com/user/tasktalk/internal/config"
	ctxengine "github.com/user/tasktalk/internal/context"
	"github.com/user/tasktalk/internal/pgstore"
	"github.com/user/tasktalk/internal/policy"
	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/sqlstore"
	"github.com/user/tasktalk/internal/state"
	"github.com/user/tasktalk/internal/types"
	"github.com/user/tasktalk/pkg/llm"
	"github.com/user/tasktalk/pkg/llm/openai"
)

// stores bundles the task and conversation backends selected by
// storage.driver.
type stores struct {
	tasks         types.TaskStore
	conversations types.ConversationStore
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	switch cfg.Storage.Driver {
	case config.DriverFile:
		return &stores{
			tasks:         state.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json")),
			conversations: state.NewConversationStore(cfg.DataDir),
			close:         func() {},
		}, nil
	case config.DriverPostgres:
		pg, err := pgstore.Open(ctx, cfg.Storage.URL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &stores{tasks: pg, conversations: pg, close: pg.Close}, nil
	default:
		path := strings.TrimPrefix(cfg.Storage.URL, "sqlite:///")
		if path == "" {
			path = filepath.Join(cfg.DataDir, sqlstore.DefaultName)
		}
		db, err := sqlstore.Open(path)
		if err != nil {
			return nil, err
		}
		return &stores{
			tasks:         db,
			conversations: db,
			close: func() {
				if err := db.Close(); err != nil {
					slog.Warn("close database", "error", err)
				}
			},
		}, nil
	}
}

func routineStore(cfg *config.Config) *state.RoutineStore {
	return state.NewRoutineStore(filepath.Join(cfg.DataDir, "routines.json"))
}

// newRegistry registers the task tools behind the configured tool policy.
func newRegistry(ctx context.Context, cfg *config.Config, tasks types.TaskStore) (*runtime.Registry, error) {
	registry := runtime.NewRegistry()
	tools.RegisterTaskTools(registry, tasks, nil)

	guard, err := policy.Load(ctx, cfg.Agent.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load tool policy: %w", err)
	}
	registry.SetGuard(guard)
	return registry, nil
}

// newAgent uses the tool-calling strategy when a backend is configured and
// the configured offline fallback otherwise.
func newAgent(cfg *config.Config, registry *runtime.Registry) (*agent.Agent, error) {
	opts := agent.Options{Registry: registry, Fallback: cfg.Agent.Fallback}
	llmCfg := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	if llmCfg.Configured() {
		engine, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve, cfg.Agent.PromptPath)
		if err != nil {
			return nil, fmt.Errorf("create context engine: %w", err)
		}
		opts.Provider = openai.New(llmCfg)
		opts.Prompt = engine
	}
	return agent.New(opts), nil
}
