package gateway

import (
	"context"
	"time"

	"github.com/user/tasktalk/internal/agent"
	"github.com/user/tasktalk/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusSkipped  RunStatus = "skipped"
)

// Request is one inbound chat message. Either ConversationID or Key may
// name the conversation; with neither a new conversation is started.
type Request struct {
	ConversationID types.ConversationID
	Key            types.SessionKey
	Owner          string
	Message        string
	// Source tags tool calls made during the turn ("api", "telegram", "routine").
	Source string
}

// Result is the persisted outcome of a processed turn.
type Result struct {
	ConversationID types.ConversationID
	UserTurn       *types.Turn
	AssistantTurn  *types.Turn
	Reply          agent.Reply
}

// Run tracks a single turn of a conversation through the queue.
type Run struct {
	ID             types.RunID
	ConversationID types.ConversationID
	Request        Request
	Status         RunStatus
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
	Result         *Result
	Error          error
	OnComplete     func(*Result, error)

	// Ctx is the caller's context. A run whose context is already done when
	// it reaches the front of its lane is skipped.
	Ctx  context.Context
	done chan struct{}
}

// NewRun creates a Run in the Queued state for the given conversation.
func NewRun(conversationID types.ConversationID, req Request) *Run {
	return &Run{
		ID:             types.NewRunID(),
		ConversationID: conversationID,
		Request:        req,
		Status:         RunStatusQueued,
		CreatedAt:      time.Now(),
		done:           make(chan struct{}),
	}
}

// Done is closed when the run has finished, failed or been skipped.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) start() {
	now := time.Now()
	r.StartedAt = &now
	r.Status = RunStatusRunning
}

func (r *Run) finish(status RunStatus, err error) {
	now := time.Now()
	r.EndedAt = &now
	r.Status = status
	r.Error = err
	if r.OnComplete != nil {
		r.OnComplete(r.Result, err)
	}
	close(r.done)
}
