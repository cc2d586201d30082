package state

import (
	"fmt"
	"sync"

	"github.com/user/tasktalk/internal/types"
)

// Routine is a named prompt run as a chat turn for its owner, on a cron
// schedule or on demand.
type Routine struct {
	Name      string           `json:"name"`
	Prompt    string           `json:"prompt"`
	Schedule  string           `json:"schedule,omitempty"`
	Owner     string           `json:"user_id"`
	DeliverTo types.SessionKey `json:"deliver_to,omitempty"`
	Enabled   bool             `json:"enabled"`
}

// RoutineStore is a JSON-file-backed store for routines.
type RoutineStore struct {
	path string
	mu   sync.RWMutex
}

// NewRoutineStore creates a new file-backed RoutineStore at the given file path.
func NewRoutineStore(path string) *RoutineStore {
	return &RoutineStore{path: path}
}

// Path returns the file path used by this store.
func (s *RoutineStore) Path() string {
	return s.path
}

// List returns all routines. Returns an empty slice if the file doesn't exist.
func (s *RoutineStore) List() ([]*Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routines, err := s.load()
	if err != nil {
		return nil, err
	}
	if routines == nil {
		return []*Routine{}, nil
	}
	return routines, nil
}

// Get finds a routine by name.
func (s *RoutineStore) Get(name string) (*Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routines, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range routines {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("routine %s: %w", name, types.ErrNotFound)
}

// Add appends a routine. Names are unique.
func (s *RoutineStore) Add(routine *Routine) error {
	if routine.Name == "" || routine.Prompt == "" || routine.Owner == "" {
		return fmt.Errorf("routine needs a name, a prompt and an owner")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	routines, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range routines {
		if existing.Name == routine.Name {
			return fmt.Errorf("routine already exists: %s", routine.Name)
		}
	}
	return writeJSON(s.path, append(routines, routine))
}

// Remove deletes a routine by name.
func (s *RoutineStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	routines, err := s.load()
	if err != nil {
		return err
	}
	for i, r := range routines {
		if r.Name == name {
			routines = append(routines[:i], routines[i+1:]...)
			return writeJSON(s.path, routines)
		}
	}
	return fmt.Errorf("routine %s: %w", name, types.ErrNotFound)
}

// SetEnabled toggles the enabled flag for a routine.
func (s *RoutineStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	routines, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range routines {
		if r.Name == name {
			r.Enabled = enabled
			return writeJSON(s.path, routines)
		}
	}
	return fmt.Errorf("routine %s: %w", name, types.ErrNotFound)
}

func (s *RoutineStore) load() ([]*Routine, error) {
	var routines []*Routine
	if _, err := readJSON(s.path, &routines); err != nil {
		return nil, err
	}
	return routines, nil
}
