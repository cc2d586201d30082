package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/user/tasktalk/internal/agent"
	"github.com/user/tasktalk/internal/types"
)

// SessionManager owns the conversation and turn lifecycle on top of a
// ConversationStore and enforces that a conversation is only used by its owner.
type SessionManager struct {
	store types.ConversationStore
	now   func() time.Time
}

// NewSessionManager creates a SessionManager backed by store.
func NewSessionManager(store types.ConversationStore) *SessionManager {
	return &SessionManager{store: store, now: time.Now}
}

// Store returns the underlying conversation store.
func (m *SessionManager) Store() types.ConversationStore {
	return m.store
}

// LoadOrCreate resolves the conversation for a turn. An existing id must
// belong to owner; a foreign or unknown id is reported as ErrNotFound. A
// channel key resolves (or creates) its bound conversation. With neither a
// fresh conversation is created.
func (m *SessionManager) LoadOrCreate(ctx context.Context, id types.ConversationID, key types.SessionKey, owner string) (*types.Conversation, error) {
	switch {
	case id != "":
		conv, err := m.store.GetConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		if conv.Owner != owner {
			return nil, fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
		}
		return conv, nil
	case key != "":
		conv, err := m.store.ResolveKey(ctx, key, owner)
		if err != nil {
			return nil, fmt.Errorf("resolve conversation key: %w", err)
		}
		return conv, nil
	}

	now := m.now().UTC()
	conv := &types.Conversation{Owner: owner, CreatedAt: now, UpdatedAt: now}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Get returns the owner's conversation.
func (m *SessionManager) Get(ctx context.Context, id types.ConversationID, owner string) (*types.Conversation, error) {
	return m.LoadOrCreate(ctx, id, "", owner)
}

// History returns up to limit recent turns, oldest first, in agent form.
func (m *SessionManager) History(ctx context.Context, id types.ConversationID, limit int) ([]agent.Turn, error) {
	turns, err := m.store.RecentTurns(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]agent.Turn, 0, len(turns))
	for _, t := range turns {
		history = append(history, agent.Turn{Role: string(t.Role), Content: t.Content})
	}
	return history, nil
}

// AppendTurn stores a turn, stamping its creation time.
func (m *SessionManager) AppendTurn(ctx context.Context, turn *types.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = m.now().UTC()
	}
	if err := m.store.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("append %s turn: %w", turn.Role, err)
	}
	return nil
}

// Touch bumps the conversation's UpdatedAt.
func (m *SessionManager) Touch(ctx context.Context, id types.ConversationID) error {
	if err := m.store.Touch(ctx, id, m.now().UTC()); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
