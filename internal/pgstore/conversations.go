package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/user/tasktalk/internal/types"
)

const conversationColumns = `id, user_id, key, created_at, updated_at`

func scanConversation(row pgx.Row) (*types.Conversation, error) {
	var c types.Conversation
	var id, key string
	if err := row.Scan(&id, &c.Owner, &key, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = types.ConversationID(id)
	c.Key = types.SessionKey(key)
	return &c, nil
}

func conversationNotFound(id types.ConversationID) error {
	return fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
}

func (s *Store) CreateConversation(ctx context.Context, conv *types.Conversation) error {
	if conv.ID == "" {
		conv.ID = types.NewConversationID()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (`+conversationColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		string(conv.ID), conv.Owner, string(conv.Key), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id types.ConversationID) (*types.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

// ResolveKey upserts on the (user_id, key) index so concurrent callers
// converge on one conversation.
func (s *Store) ResolveKey(ctx context.Context, key types.SessionKey, owner string) (*types.Conversation, error) {
	now := time.Now().UTC()
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, key) WHERE key <> '' DO UPDATE SET key = EXCLUDED.key
		RETURNING `+conversationColumns,
		string(types.NewConversationID()), owner, string(key), now))
	if err != nil {
		return nil, fmt.Errorf("resolve key %s: %w", key, err)
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, owner string) ([]*types.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []*types.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Touch(ctx context.Context, id types.ConversationID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE conversations SET updated_at = $1 WHERE id = $2`, at, string(id))
	if err != nil {
		return fmt.Errorf("touch conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return conversationNotFound(id)
	}
	return nil
}

// AppendTurn locks the conversation row while picking the next sequence number.
func (s *Store) AppendTurn(ctx context.Context, turn *types.Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, string(turn.ConversationID)).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversationNotFound(turn.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}

	var last int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM turns WHERE conversation_id = $1`, string(turn.ConversationID)).Scan(&last); err != nil {
		return fmt.Errorf("next turn seq: %w", err)
	}
	turn.Seq = last + 1
	if turn.ID == "" {
		turn.ID = types.NewTurnID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO turns (id, conversation_id, user_id, seq, role, content, tool_used, action_taken, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(turn.ID), string(turn.ConversationID), turn.Owner, turn.Seq, string(turn.Role), turn.Content,
		turn.ToolUsed, turn.ActionTaken, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return tx.Commit(ctx)
}

// RecentTurns returns up to limit turns, oldest first. limit <= 0 returns all.
func (s *Store) RecentTurns(ctx context.Context, id types.ConversationID, limit int) ([]*types.Turn, error) {
	query := `SELECT id, conversation_id, user_id, seq, role, content, tool_used, action_taken, created_at
		FROM (SELECT * FROM turns WHERE conversation_id = $1 ORDER BY seq DESC`
	args := []any{string(id)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	query += `) recent ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []*types.Turn
	for rows.Next() {
		var (
			t                    types.Turn
			turnID, convID, role string
		)
		if err := rows.Scan(&turnID, &convID, &t.Owner, &t.Seq, &role, &t.Content,
			&t.ToolUsed, &t.ActionTaken, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.ID = types.TurnID(turnID)
		t.ConversationID = types.ConversationID(convID)
		t.Role = types.Role(role)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

func (s *Store) CountTurns(ctx context.Context, id types.ConversationID) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM turns WHERE conversation_id = $1`, string(id)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}
