// Package scheduler runs routines: named prompts submitted as chat turns
// for their owner, on a cron schedule or on demand.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/state"
	"github.com/user/tasktalk/internal/types"
)

// Source tags tool calls made by routine turns.
const Source = "routine"

// Submitter processes one chat turn and waits for the reply.
type Submitter interface {
	Submit(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// Deliverer sends a reply to the channel behind a session key.
type Deliverer interface {
	Deliver(ctx context.Context, key types.SessionKey, message string) error
}

// Scheduler registers enabled routines that have a schedule as cron entries.
type Scheduler struct {
	store   *state.RoutineStore
	gw      Submitter
	deliver Deliverer

	mu   sync.Mutex
	cron *cron.Cron
	ctx  context.Context
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether expr is a schedule the scheduler accepts.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// SessionKey is the conversation key a routine's turns are threaded under.
func SessionKey(name string) types.SessionKey {
	return types.NewSessionKey(Source, name)
}

// New creates a Scheduler. deliver may be nil, in which case replies are
// only logged.
func New(store *state.RoutineStore, gw Submitter, deliver Deliverer) *Scheduler {
	return &Scheduler{
		store:   store,
		gw:      gw,
		deliver: deliver,
		cron:    cron.New(cron.WithParser(cronParser)),
		ctx:     context.Background(),
	}
}

// Start loads routines from the store, registers the scheduled ones, and
// starts the cron ticker. Fired runs use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	return s.startLocked()
}

func (s *Scheduler) startLocked() error {
	routines, err := s.store.List()
	if err != nil {
		return err
	}

	for _, routine := range routines {
		if routine.Schedule == "" || !routine.Enabled {
			continue
		}
		r := routine
		_, err := s.cron.AddFunc(r.Schedule, func() {
			slog.Info("cron firing routine", "name", r.Name, "user_id", r.Owner)
			if _, err := s.execute(s.ctx, r); err != nil {
				slog.Error("routine failed", "name", r.Name, "error", err)
			}
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", r.Name, "schedule", r.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled routine", "name", r.Name, "schedule", r.Schedule)
	}

	s.cron.Start()
	return nil
}

// Reload stops the existing cron, creates a new one, and registers the
// routines again.
func (s *Scheduler) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.startLocked()
}

// Stop stops the cron ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	<-c.Stop().Done()
}

// Entries reports how many routines are scheduled.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cron.Entries())
}

// Run executes the named routine now on behalf of owner. A routine owned by
// someone else is reported as not found; a disabled one is forbidden.
func (s *Scheduler) Run(ctx context.Context, name, owner string) (*gateway.Result, error) {
	r, err := s.store.Get(name)
	if err != nil {
		return nil, err
	}
	if r.Owner != owner {
		return nil, fmt.Errorf("routine %s: %w", name, types.ErrNotFound)
	}
	if !r.Enabled {
		return nil, fmt.Errorf("routine %s is disabled: %w", name, types.ErrForbidden)
	}
	return s.execute(ctx, r)
}

func (s *Scheduler) execute(ctx context.Context, r *state.Routine) (*gateway.Result, error) {
	res, err := s.gw.Submit(ctx, gateway.Request{
		Key:     SessionKey(r.Name),
		Owner:   r.Owner,
		Message: r.Prompt,
		Source:  Source,
	})
	if err != nil {
		return nil, fmt.Errorf("run routine %s: %w", r.Name, err)
	}

	slog.Info("routine finished",
		"name", r.Name,
		"conversation_id", string(res.ConversationID),
		"tool_used", res.Reply.ToolUsed)

	if r.DeliverTo != "" && s.deliver != nil {
		if err := s.deliver.Deliver(ctx, r.DeliverTo, res.Reply.Text); err != nil {
			return res, fmt.Errorf("deliver routine %s: %w", r.Name, err)
		}
	}
	return res, nil
}
