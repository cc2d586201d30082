package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/tasktalk/internal/types"
)

// ConversationStore is a file-backed conversation store. The conversation
// index is a single JSON file; turns are appended per conversation to a
// JSONL file guarded by a per-conversation lock.
type ConversationStore struct {
	root string
	mu   sync.RWMutex // guards the index file

	lockMu sync.Mutex
	locks  map[types.ConversationID]*sync.Mutex
}

// NewConversationStore creates a ConversationStore rooted at the given directory.
func NewConversationStore(root string) *ConversationStore {
	return &ConversationStore{
		root:  root,
		locks: make(map[types.ConversationID]*sync.Mutex),
	}
}

func (s *ConversationStore) indexPath() string {
	return filepath.Join(s.root, "conversations", "conversations.json")
}

func (s *ConversationStore) turnsPath(id types.ConversationID) string {
	return filepath.Join(s.root, "conversations", string(id), "turns.jsonl")
}

// getLock returns the per-conversation mutex, creating one if it doesn't exist.
func (s *ConversationStore) getLock(id types.ConversationID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if lock, ok := s.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[id] = lock
	return lock
}

func (s *ConversationStore) load() ([]*types.Conversation, error) {
	var convs []*types.Conversation
	if _, err := readJSON(s.indexPath(), &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *ConversationStore) save(convs []*types.Conversation) error {
	return writeJSON(s.indexPath(), convs)
}

func (s *ConversationStore) insert(convs []*types.Conversation, conv *types.Conversation) error {
	if conv.ID == "" {
		conv.ID = types.NewConversationID()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	for _, c := range convs {
		if c.ID == conv.ID {
			return fmt.Errorf("conversation already exists: %s", conv.ID)
		}
	}
	return s.save(append(convs, conv))
}

// CreateConversation stores a new conversation, assigning an ID and
// timestamps when they are unset.
func (s *ConversationStore) CreateConversation(_ context.Context, conv *types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return err
	}
	return s.insert(convs, conv)
}

// GetConversation returns the conversation with the given ID.
func (s *ConversationStore) GetConversation(_ context.Context, id types.ConversationID) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
}

// ResolveKey returns the owner's conversation bound to key, creating a new
// one if needed.
func (s *ConversationStore) ResolveKey(_ context.Context, key types.SessionKey, owner string) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		if c.Key == key && c.Owner == owner {
			return c, nil
		}
	}

	conv := &types.Conversation{Owner: owner, Key: key}
	if err := s.insert(convs, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns the owner's conversations, most recently updated first.
func (s *ConversationStore) ListConversations(_ context.Context, owner string) ([]*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Conversation, 0, len(convs))
	for _, c := range convs {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Touch sets the conversation's UpdatedAt.
func (s *ConversationStore) Touch(_ context.Context, id types.ConversationID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load()
	if err != nil {
		return err
	}
	for _, c := range convs {
		if c.ID == id {
			c.UpdatedAt = at.UTC()
			return s.save(convs)
		}
	}
	return fmt.Errorf("conversation %s: %w", id, types.ErrNotFound)
}

// count reads the turns file and counts lines. Caller must hold the conversation lock.
func (s *ConversationStore) count(id types.ConversationID) (int64, error) {
	f, err := os.Open(s.turnsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan turns file: %w", err)
	}
	return count, nil
}

// AppendTurn adds a turn to the conversation log with the next sequence number.
func (s *ConversationStore) AppendTurn(_ context.Context, turn *types.Turn) error {
	lock := s.getLock(turn.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	path := s.turnsPath(turn.ConversationID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}

	existing, err := s.count(turn.ConversationID)
	if err != nil {
		return err
	}
	turn.Seq = existing + 1
	if turn.ID == "" {
		turn.ID = types.NewTurnID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit turns, oldest first. limit <= 0 returns all.
func (s *ConversationStore) RecentTurns(_ context.Context, id types.ConversationID, limit int) ([]*types.Turn, error) {
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(s.turnsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	var turns []*types.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var turn types.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan turns file: %w", err)
	}

	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// CountTurns returns the number of turns in the conversation.
func (s *ConversationStore) CountTurns(_ context.Context, id types.ConversationID) (int64, error) {
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	return s.count(id)
}
