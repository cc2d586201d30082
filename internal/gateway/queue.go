package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/tasktalk/internal/types"
)

// LaneIdleTimeout is how long an empty lane keeps its goroutine before it is
// released. The next turn for that conversation opens a fresh lane.
const LaneIdleTimeout = time.Minute

// Queue manages per-conversation lanes with a global concurrency semaphore.
// Each conversation gets its own FIFO channel (lane) so that turns within a
// conversation are processed sequentially, while the semaphore limits the
// total number of concurrent run processors across all conversations.
type Queue struct {
	lanes       map[types.ConversationID]chan *Run
	semaphore   *semaphore.Weighted
	processor   func(*Run) error
	active      atomic.Int64
	idleTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously across all conversation lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:       make(map[types.ConversationID]chan *Run),
		semaphore:   semaphore.NewWeighted(maxConcurrent),
		idleTimeout: LaneIdleTimeout,
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Stopped is closed once the queue has been stopped.
func (q *Queue) Stopped() <-chan struct{} {
	return q.ctx.Done()
}

// Enqueue adds a Run to the conversation's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full or
// the queue is stopped.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.ctx.Err() != nil {
		return fmt.Errorf("queue is not running")
	}

	lane, exists := q.lanes[run.ConversationID]
	if !exists {
		lane = make(chan *Run, 100)
		q.lanes[run.ConversationID] = lane
		q.wg.Add(1)
		go q.processLane(run.ConversationID, lane)
	}

	select {
	case lane <- run:
		return nil
	default:
		return fmt.Errorf("queue full for conversation %s", run.ConversationID)
	}
}

// processLane drains a single conversation lane, acquiring a semaphore slot
// before running the processor synchronously. This ensures strict FIFO
// ordering within a conversation while the semaphore limits cross-conversation
// parallelism. A lane left empty for idleTimeout is removed and its goroutine
// exits.
func (q *Queue) processLane(id types.ConversationID, lane chan *Run) {
	defer q.wg.Done()
	idle := time.NewTimer(q.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			q.execute(run)
			idle.Reset(q.idleTimeout)
		case <-idle.C:
			if q.release(id, lane) {
				return
			}
			idle.Reset(q.idleTimeout)
		case <-q.ctx.Done():
			return
		}
	}
}

// release drops an empty lane from the map. Enqueue sends under mu, so an
// empty lane seen here cannot receive another run.
func (q *Queue) release(id types.ConversationID, lane chan *Run) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(lane) > 0 {
		return false
	}
	if q.lanes[id] == lane {
		delete(q.lanes, id)
	}
	return true
}

func (q *Queue) execute(run *Run) {
	if run.Ctx == nil {
		run.Ctx = q.ctx
	}
	if err := run.Ctx.Err(); err != nil {
		slog.Info("run skipped", "run_id", string(run.ID), "conversation_id", string(run.ConversationID), "reason", err)
		run.finish(RunStatusSkipped, err)
		return
	}
	if err := q.semaphore.Acquire(run.Ctx, 1); err != nil {
		run.finish(RunStatusSkipped, err)
		return
	}
	defer q.semaphore.Release(1)

	if q.processor == nil {
		run.finish(RunStatusFailed, fmt.Errorf("no processor"))
		return
	}

	q.active.Add(1)
	defer q.active.Add(-1)

	run.start()
	if err := q.processor(run); err != nil {
		slog.Error("run failed", "run_id", string(run.ID), "conversation_id", string(run.ConversationID), "error", err)
		run.finish(RunStatusFailed, err)
		return
	}
	run.finish(RunStatusComplete, nil)
}

// WaitIdle blocks until no runs are actively being processed, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Run.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.processor = fn
}
