// Package delivery routes outbound messages to the channel named by a
// session key prefix, retrying transient failures.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/user/tasktalk/internal/types"
)

// ErrNoHandler is returned when no handler matches a session key.
var ErrNoHandler = errors.New("no delivery handler")

// Handler delivers a message to the conversation identified by key.
type Handler func(ctx context.Context, key types.SessionKey, message string) error

// Registry routes messages to the appropriate delivery handler based on
// session key prefix (e.g. "telegram:", "log:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	retry    *RetryPolicy
}

// NewRegistry creates an empty delivery registry using DefaultRetryPolicy.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		retry:    DefaultRetryPolicy(),
	}
}

// SetRetryPolicy replaces the retry policy.
func (r *Registry) SetRetryPolicy(p *RetryPolicy) {
	r.retry = p
}

// Register adds a handler for session keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Prefixes returns the registered prefixes, sorted.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// lookup picks the longest registered prefix of key.
func (r *Registry) lookup(key types.SessionKey) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best string
	var handler Handler
	for prefix, h := range r.handlers {
		if strings.HasPrefix(string(key), prefix) && len(prefix) >= len(best) {
			best, handler = prefix, h
		}
	}
	return handler, handler != nil
}

// Deliver finds the handler matching the session key prefix and calls it,
// retrying transient failures.
func (r *Registry) Deliver(ctx context.Context, key types.SessionKey, message string) error {
	handler, ok := r.lookup(key)
	if !ok {
		return fmt.Errorf("%w for session key: %s", ErrNoHandler, key)
	}
	attempt := 0
	err := r.retry.Execute(ctx, func() error {
		attempt++
		err := handler(ctx, key, message)
		if err != nil {
			slog.Warn("delivery attempt failed", "session_key", string(key), "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", key, err)
	}
	return nil
}

// LogHandler writes deliveries to the structured log. It backs the "log:"
// prefix so routines and notices have a sink without a chat channel.
func LogHandler(_ context.Context, key types.SessionKey, message string) error {
	slog.Info("delivery", "session_key", string(key), "message", message)
	return nil
}
