// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// TaskStore persists tasks. Every lookup is scoped to the owner; a task
// owned by someone else is reported as ErrNotFound.
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, owner string, id TaskID) (*Task, error)
	// ListTasks returns the owner's tasks, newest created first.
	ListTasks(ctx context.Context, owner string, filter TaskFilter) ([]*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, owner string, id TaskID) error
}

// ConversationStore persists conversations and their turns.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, error)
	// ResolveKey returns the owner's conversation bound to key, creating it if needed.
	ResolveKey(ctx context.Context, key SessionKey, owner string) (*Conversation, error)
	// ListConversations returns the owner's conversations, most recently updated first.
	ListConversations(ctx context.Context, owner string) ([]*Conversation, error)
	Touch(ctx context.Context, id ConversationID, at time.Time) error
	// AppendTurn assigns the next sequence number and stores the turn.
	AppendTurn(ctx context.Context, turn *Turn) error
	// RecentTurns returns up to limit turns, oldest first. limit <= 0 returns all.
	RecentTurns(ctx context.Context, id ConversationID, limit int) ([]*Turn, error)
	CountTurns(ctx context.Context, id ConversationID) (int64, error)
}
