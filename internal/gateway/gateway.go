package gateway

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/user/tasktalk/internal/agent"
	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/types"
)

// Gateway turns inbound chat messages into queued runs. Each run loads the
// conversation history, records the user turn, asks the agent for a reply
// and records the assistant turn.
type Gateway struct {
	Sessions *SessionManager
	Queue    *Queue
	agent    *agent.Agent

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway with the given concurrency limit for simultaneous
// run processing.
func New(store types.ConversationStore, ag *agent.Agent, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		Sessions: NewSessionManager(store),
		Queue:    NewQueue(concurrency),
		agent:    ag,
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked when the run finishes.
func WithOnComplete(fn func(*Result, error)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// ValidateMessage trims message and checks its length.
func ValidateMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", runtime.Invalid("message is required")
	}
	if utf8.RuneCountInString(message) > types.MaxMessageLength {
		return "", runtime.Invalid("message must be at most %d characters", types.MaxMessageLength)
	}
	return message, nil
}

// HandleInbound validates the request, resolves its conversation, and
// enqueues a run without waiting for it.
func (g *Gateway) HandleInbound(ctx context.Context, req Request, opts ...RunOption) (*Run, error) {
	message, err := ValidateMessage(req.Message)
	if err != nil {
		return nil, err
	}
	req.Message = message

	conv, err := g.Sessions.LoadOrCreate(ctx, req.ConversationID, req.Key, req.Owner)
	if err != nil {
		return nil, err
	}

	run := NewRun(conv.ID, req)
	for _, opt := range opts {
		opt(run)
	}
	if run.Ctx == nil {
		run.Ctx = ctx
	}
	if err := g.Queue.Enqueue(run); err != nil {
		return nil, err
	}
	return run, nil
}

// WithContext sets the context the run executes under.
func WithContext(ctx context.Context) RunOption {
	return func(r *Run) { r.Ctx = ctx }
}

// Submit processes one chat turn and waits for its result. Validation
// failures are *runtime.ValidationError; an unknown or foreign conversation
// is types.ErrNotFound.
func (g *Gateway) Submit(ctx context.Context, req Request) (*Result, error) {
	run, err := g.HandleInbound(ctx, req)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.Done():
		if run.Error != nil {
			return nil, run.Error
		}
		return run.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.Queue.Stopped():
		return nil, fmt.Errorf("gateway stopped")
	}
}

// process is the queue processor for a single run.
func (g *Gateway) process(run *Run) error {
	ctx := run.Ctx
	if run.Request.Source != "" {
		ctx = runtime.WithSource(ctx, run.Request.Source)
	}
	req := run.Request

	// History is read before the new user turn is written.
	history, err := g.Sessions.History(ctx, run.ConversationID, agent.MaxHistory)
	if err != nil {
		return err
	}

	userTurn := &types.Turn{
		ConversationID: run.ConversationID,
		Owner:          req.Owner,
		Role:           types.RoleUser,
		Content:        req.Message,
	}
	if err := g.Sessions.AppendTurn(ctx, userTurn); err != nil {
		return err
	}

	reply := g.agent.Process(ctx, req.Message, req.Owner, history)

	assistantTurn := &types.Turn{
		ConversationID: run.ConversationID,
		Owner:          req.Owner,
		Role:           types.RoleAssistant,
		Content:        reply.Text,
		ToolUsed:       reply.ToolUsed,
		ActionTaken:    reply.ActionTaken,
	}
	if err := g.Sessions.AppendTurn(ctx, assistantTurn); err != nil {
		return err
	}
	if err := g.Sessions.Touch(ctx, run.ConversationID); err != nil {
		return err
	}

	run.Result = &Result{
		ConversationID: run.ConversationID,
		UserTurn:       userTurn,
		AssistantTurn:  assistantTurn,
		Reply:          reply,
	}
	return nil
}
