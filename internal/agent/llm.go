package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/pkg/llm"
)

type llmResolver struct {
	registry *runtime.Registry
	provider llm.Provider
	prompt   PromptBuilder
}

func (r *llmResolver) Resolve(ctx context.Context, message, owner string, history []Turn) Reply {
	past := make([]llm.Message, 0, len(history))
	for _, t := range history {
		past = append(past, llm.Message{Role: t.Role, Content: t.Content})
	}

	messages, err := r.prompt.BuildPrompt(owner, past, message, r.registry.Names())
	if err != nil {
		return apologize(err)
	}

	resp, err := r.provider.Complete(ctx, messages, r.registry.AsLLMTools())
	if err != nil {
		return apologize(err)
	}
	if len(resp.ToolCalls) == 0 {
		return Reply{Text: resp.Content}
	}

	messages = append(messages, llm.Message{
		Role:    llm.RoleAssistant,
		Content: resp.Content,
		Tools:   resp.ToolCalls,
	})

	var last runtime.Result
	for _, tc := range resp.ToolCalls {
		last = r.registry.DispatchJSON(ctx, tc.Function.Name, owner, tc.Function.Arguments)
		slog.Info("tool call", "tool", tc.Function.Name, "call_id", tc.ID, "user_id", owner, "success", last.Success)
		messages = append(messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    last.JSON(),
			ToolCallID: tc.ID,
		})
	}

	final, err := r.provider.Complete(ctx, messages, nil)
	if err != nil {
		return apologize(err)
	}
	return Reply{Text: final.Content, ToolUsed: last.Tool, ActionTaken: FormatAction(last)}
}

func apologize(err error) Reply {
	slog.Warn("llm round-trip failed", "error", err)
	return Reply{Text: fmt.Sprintf("Sorry, I encountered an error: %v", err)}
}

const plainSystemPrompt = `You are a helpful task management assistant. Help the user manage their todo list through natural conversation. If a task ID is needed and not provided, list tasks first to find it. After completing an action, confirm what you did.`

// plainPrompt is used when no token-budgeted builder is supplied.
type plainPrompt struct{}

func (plainPrompt) BuildPrompt(_ string, history []llm.Message, message string, _ []string) ([]llm.Message, error) {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: plainSystemPrompt})
	out = append(out, history...)
	out = append(out, llm.Message{Role: llm.RoleUser, Content: message})
	return out, nil
}
