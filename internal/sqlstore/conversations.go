package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/tasktalk/internal/types"
)

const conversationColumns = `id, user_id, key, created_at, updated_at`

func scanConversation(row scanner) (*types.Conversation, error) {
	var (
		c                types.Conversation
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.Owner, &c.Key, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func prepareConversation(conv *types.Conversation) {
	if conv.ID == "" {
		conv.ID = types.NewConversationID()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertConversation(ctx context.Context, db execer, conv *types.Conversation) error {
	prepareConversation(conv)
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Owner, conv.Key, formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, conv *types.Conversation) error {
	return insertConversation(ctx, s.db, conv)
}

func (s *Store) GetConversation(ctx context.Context, id types.ConversationID) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) ResolveKey(ctx context.Context, key types.SessionKey, owner string) (*types.Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE key = ? AND user_id = ?`, key, owner)
	c, err := scanConversation(row)
	switch {
	case err == nil:
		return c, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("resolve key %s: %w", key, err)
	}

	c = &types.Conversation{Owner: owner, Key: key}
	if err := insertConversation(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit conversation: %w", err)
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, owner string) ([]*types.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, owner)
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
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch conversation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// AppendTurn stores the turn with the next sequence number of its conversation.
func (s *Store) AppendTurn(ctx context.Context, turn *types.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM turns WHERE conversation_id = ?`, turn.ConversationID).Scan(&last); err != nil {
		return fmt.Errorf("next turn seq: %w", err)
	}
	turn.Seq = last + 1
	if turn.ID == "" {
		turn.ID = types.NewTurnID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, user_id, seq, role, content, tool_used, action_taken, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.ConversationID, turn.Owner, turn.Seq, turn.Role, turn.Content,
		turn.ToolUsed, turn.ActionTaken, formatTime(turn.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return tx.Commit()
}

// RecentTurns returns up to limit turns, oldest first. limit <= 0 returns all.
func (s *Store) RecentTurns(ctx context.Context, id types.ConversationID, limit int) ([]*types.Turn, error) {
	query := `SELECT id, conversation_id, user_id, seq, role, content, tool_used, action_taken, created_at
		FROM turns WHERE conversation_id = ? ORDER BY seq DESC`
	args := []any{id}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []*types.Turn
	for rows.Next() {
		var (
			t       types.Turn
			created string
		)
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Owner, &t.Seq, &t.Role, &t.Content,
			&t.ToolUsed, &t.ActionTaken, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *Store) CountTurns(ctx context.Context, id types.ConversationID) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE conversation_id = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}
