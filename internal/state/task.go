package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/user/tasktalk/internal/types"
)

type taskFile struct {
	NextID types.TaskID  `json:"next_id"`
	Tasks  []*types.Task `json:"tasks"`
}

// TaskStore is a JSON-file-backed task store. IDs are allocated from a
// counter kept in the same file so they are never reused.
type TaskStore struct {
	path string
	mu   sync.RWMutex
}

// NewTaskStore creates a new file-backed TaskStore at the given file path.
func NewTaskStore(path string) *TaskStore {
	return &TaskStore{path: path}
}

// Path returns the file path used by this store.
func (s *TaskStore) Path() string {
	return s.path
}

func (s *TaskStore) load() (*taskFile, error) {
	tf := &taskFile{}
	if _, err := readJSON(s.path, tf); err != nil {
		return nil, err
	}
	if tf.NextID < 1 {
		tf.NextID = 1
	}
	return tf, nil
}

func notFound(id types.TaskID) error {
	return fmt.Errorf("task %d: %w", id, types.ErrNotFound)
}

// CreateTask assigns the next ID and stores the task.
func (s *TaskStore) CreateTask(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := s.load()
	if err != nil {
		return err
	}
	task.ID = tf.NextID
	tf.NextID++
	tf.Tasks = append(tf.Tasks, task)
	return writeJSON(s.path, tf)
}

// GetTask returns the owner's task with the given ID.
func (s *TaskStore) GetTask(_ context.Context, owner string, id types.TaskID) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tf, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, t := range tf.Tasks {
		if t.ID == id && t.Owner == owner {
			return t, nil
		}
	}
	return nil, notFound(id)
}

// ListTasks returns the owner's tasks matching filter, newest created first.
func (s *TaskStore) ListTasks(_ context.Context, owner string, filter types.TaskFilter) ([]*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tf, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Task, 0, len(tf.Tasks))
	for _, t := range tf.Tasks {
		if t.Owner == owner && filter.Match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateTask replaces the stored task with the same ID and owner.
func (s *TaskStore) UpdateTask(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := s.load()
	if err != nil {
		return err
	}
	for i, t := range tf.Tasks {
		if t.ID == task.ID && t.Owner == task.Owner {
			tf.Tasks[i] = task
			return writeJSON(s.path, tf)
		}
	}
	return notFound(task.ID)
}

// DeleteTask removes the owner's task with the given ID.
func (s *TaskStore) DeleteTask(_ context.Context, owner string, id types.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := s.load()
	if err != nil {
		return err
	}
	for i, t := range tf.Tasks {
		if t.ID == id && t.Owner == owner {
			tf.Tasks = append(tf.Tasks[:i], tf.Tasks[i+1:]...)
			return writeJSON(s.path, tf)
		}
	}
	return notFound(id)
}
