package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/user/tasktalk/internal/types"
)

func TestRoutineStore_ListEmpty(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	routines, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(routines) != 0 {
		t.Errorf("expected empty list, got %d routines", len(routines))
	}
}

func TestRoutineStore_AddAndGet(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	routine := &Routine{
		Name:      "morning",
		Prompt:    "What do I need to do today?",
		Schedule:  "0 8 * * *",
		Owner:     "u1",
		DeliverTo: "telegram:123",
		Enabled:   true,
	}
	if err := store.Add(routine); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("morning")
	if err != nil {
		t.Fatal(err)
	}
	if got.Prompt != routine.Prompt || got.Schedule != "0 8 * * *" || got.Owner != "u1" {
		t.Errorf("unexpected routine %+v", got)
	}
	if got.DeliverTo != "telegram:123" || !got.Enabled {
		t.Errorf("unexpected delivery fields %+v", got)
	}

	if err := store.Add(routine); err == nil {
		t.Fatal("expected error for duplicate routine name")
	}
}

func TestRoutineStore_AddRequiresFields(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))
	if err := store.Add(&Routine{Name: "x", Prompt: "p"}); err == nil {
		t.Fatal("expected error for routine without owner")
	}
}

func TestRoutineStore_SetEnabledAndRemove(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	if err := store.Add(&Routine{Name: "weekly", Prompt: "review", Owner: "u1", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetEnabled("weekly", false); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("weekly")
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("expected routine to be disabled")
	}

	if err := store.Remove("weekly"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("weekly"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
	if err := store.SetEnabled("weekly", true); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Remove("weekly"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
