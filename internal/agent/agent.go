// Package agent turns a chat message into a reply by resolving it to task
// tool calls. A resolver strategy is chosen once at construction: an LLM
// tool-calling round-trip when a provider is configured, otherwise a
// deterministic keyword or rule matcher.
package agent

import (
	"context"
	"log/slog"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/pkg/llm"
)

// MaxHistory is the number of prior turns a resolver ever sees.
const MaxHistory = 10

// Strategy names.
const (
	StrategyLLM      = "llm"
	StrategyKeywords = "keywords"
	StrategyRules    = "rules"
)

// Turn is one prior message in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the outcome of one chat turn. ToolUsed and ActionTaken are either
// both set or both empty.
type Reply struct {
	Text        string `json:"response"`
	ToolUsed    string `json:"tool_used,omitempty"`
	ActionTaken string `json:"action_taken,omitempty"`
}

// Resolver decides how to answer a message, invoking tools as needed.
type Resolver interface {
	Resolve(ctx context.Context, message, owner string, history []Turn) Reply
}

// PromptBuilder assembles the message sequence for the tool-calling strategy.
type PromptBuilder interface {
	BuildPrompt(userID string, history []llm.Message, message string, toolNames []string) ([]llm.Message, error)
}

// Options configures New.
type Options struct {
	Registry *runtime.Registry
	// Provider enables the tool-calling strategy when non-nil.
	Provider llm.Provider
	Prompt   PromptBuilder
	// Fallback selects the offline strategy: "keywords" (default) or "rules".
	Fallback string
}

// Agent processes chat messages with a fixed resolver.
type Agent struct {
	resolver Resolver
	strategy string
}

// New picks the resolver strategy from opts.
func New(opts Options) *Agent {
	switch {
	case opts.Provider != nil:
		prompt := opts.Prompt
		if prompt == nil {
			prompt = plainPrompt{}
		}
		return &Agent{
			resolver: &llmResolver{registry: opts.Registry, provider: opts.Provider, prompt: prompt},
			strategy: StrategyLLM,
		}
	case opts.Fallback == StrategyRules:
		return &Agent{resolver: &ruleResolver{registry: opts.Registry}, strategy: StrategyRules}
	default:
		return &Agent{resolver: &keywordResolver{registry: opts.Registry}, strategy: StrategyKeywords}
	}
}

// NewWithResolver wraps a custom resolver.
func NewWithResolver(r Resolver, strategy string) *Agent {
	return &Agent{resolver: r, strategy: strategy}
}

// Strategy returns the name of the active resolver.
func (a *Agent) Strategy() string {
	return a.strategy
}

// Process answers message for owner given the conversation so far.
func (a *Agent) Process(ctx context.Context, message, owner string, history []Turn) Reply {
	reply := a.resolver.Resolve(ctx, message, owner, TrimHistory(history))
	if reply.ToolUsed == "" || reply.ActionTaken == "" {
		reply.ToolUsed, reply.ActionTaken = "", ""
	}
	slog.Debug("agent reply", "strategy", a.strategy, "user_id", owner, "tool", reply.ToolUsed, "action", reply.ActionTaken)
	return reply
}

// TrimHistory keeps the last MaxHistory turns, oldest first.
func TrimHistory(history []Turn) []Turn {
	if len(history) > MaxHistory {
		return history[len(history)-MaxHistory:]
	}
	return history
}
