// Package state provides filesystem-backed storage implementations.
//
// Conversations are indexed in conversations/conversations.json and their
// turns are appended to conversations/<id>/turns.jsonl. Tasks live in
// tasks.json and routines in routines.json.
package state

import "github.com/user/tasktalk/internal/types"

// Compile-time interface compliance checks.
var _ types.ConversationStore = (*ConversationStore)(nil)
var _ types.TaskStore = (*TaskStore)(nil)
