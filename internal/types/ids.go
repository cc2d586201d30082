// internal/types/ids.go
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type SessionKey string
type ConversationID string
type TurnID string
type RunID string
type TaskID int64

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// NewSessionKey joins channel-specific parts, e.g. "telegram:42:42".
func NewSessionKey(parts ...string) SessionKey {
	return SessionKey(strings.Join(parts, ":"))
}

// Prefix returns the channel part of the key ("telegram" for "telegram:1:2").
func (k SessionKey) Prefix() string {
	s := string(k)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

// ParseTaskID parses a decimal task id.
func ParseTaskID(s string) (TaskID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return TaskID(n), nil
}
