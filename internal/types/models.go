// internal/types/models.go
package types

import (
	"time"
)

// Field limits shared by every entry point that writes tasks.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxMessageLength     = 1000
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Task struct {
	ID          TaskID     `json:"id"`
	Owner       string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// SetCompleted flips the completion flag, keeping CompletedAt in step with it.
// Completing an already completed task keeps the original timestamp.
func (t *Task) SetCompleted(completed bool, now time.Time) {
	if completed {
		if !t.Completed || t.CompletedAt == nil {
			at := now
			t.CompletedAt = &at
		}
	} else {
		t.CompletedAt = nil
	}
	t.Completed = completed
	t.UpdatedAt = now
}

type TaskFilter string

const (
	FilterAll       TaskFilter = "all"
	FilterPending   TaskFilter = "pending"
	FilterCompleted TaskFilter = "completed"
)

// ParseTaskFilter maps user input to a filter; empty input means all.
func ParseTaskFilter(s string) (TaskFilter, bool) {
	switch TaskFilter(s) {
	case "", FilterAll:
		return FilterAll, true
	case FilterPending, FilterCompleted:
		return TaskFilter(s), true
	}
	return "", false
}

// Match reports whether a task passes the filter.
func (f TaskFilter) Match(t *Task) bool {
	switch f {
	case FilterPending:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	}
	return true
}

type TaskSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

// Summarize counts tasks by completion state.
func Summarize(tasks []*Task) TaskSummary {
	s := TaskSummary{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		} else {
			s.Pending++
		}
	}
	return s
}

type Conversation struct {
	ID        ConversationID `json:"id"`
	Owner     string         `json:"user_id"`
	Key       SessionKey     `json:"key,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Turn struct {
	ID             TurnID         `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	Owner          string         `json:"user_id"`
	Seq            int64          `json:"seq"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	ToolUsed       string         `json:"tool_used,omitempty"`
	ActionTaken    string         `json:"action_taken,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
