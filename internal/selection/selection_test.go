// ABOUTME: Tests for the selection service.
// ABOUTME: Checks cached reads are invalidated by every change and deleted projects drop out.

package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/2389/sitewalk/internal/querycache"
	"github.com/2389/sitewalk/internal/store"
)

func setup(t *testing.T) (*Service, *store.Store, *querycache.Cache) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	cache := querycache.New()
	return New(st, cache), st, cache
}

func createProject(t *testing.T, st *store.Store, name string) *store.Project {
	t.Helper()
	p := &store.Project{Name: name}
	if err := st.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func TestService_SelectUpdatesState(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	a := createProject(t, st, "Harbor Point Tower")
	b := createProject(t, st, "Riverside Clinic")

	state, err := svc.State(ctx, "harper")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state.Current != nil || len(state.Recent) != 0 {
		t.Fatalf("fresh state = %+v", state)
	}

	if err := svc.Select(ctx, "harper", a.ID); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := svc.Select(ctx, "harper", b.ID); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	state, err = svc.State(ctx, "harper")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state.Current == nil || state.Current.ID != b.ID {
		t.Errorf("Current = %+v, want %d", state.Current, b.ID)
	}
	if len(state.Recent) != 2 || state.Recent[0].ID != b.ID || state.Recent[1].ID != a.ID {
		t.Errorf("Recent = %+v", state.Recent)
	}

	other, _ := svc.State(ctx, "sam")
	if other.Current != nil {
		t.Error("selection leaked to another user")
	}
}

func TestService_SelectMissingProject(t *testing.T) {
	svc, _, _ := setup(t)
	if err := svc.Select(context.Background(), "harper", 42); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Select() error = %v, want ErrNotFound", err)
	}
}

func TestService_PinsAndDeletedProjects(t *testing.T) {
	svc, st, cache := setup(t)
	ctx := context.Background()
	a := createProject(t, st, "Harbor Point Tower")
	b := createProject(t, st, "Riverside Clinic")

	for _, id := range []int64{a.ID, b.ID} {
		if err := svc.Pin(ctx, "harper", id); err != nil {
			t.Fatalf("Pin() error = %v", err)
		}
	}
	if err := svc.Select(ctx, "harper", a.ID); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := svc.Unpin(ctx, "harper", b.ID); err != nil {
		t.Fatalf("Unpin() error = %v", err)
	}

	state, _ := svc.State(ctx, "harper")
	if len(state.Pinned) != 1 || state.Pinned[0].ID != a.ID {
		t.Errorf("Pinned = %+v", state.Pinned)
	}

	if err := st.DeleteProject(ctx, a.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	cache.Invalidate(UsersKey)

	state, err := svc.State(ctx, "harper")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state.Current != nil || len(state.Pinned) != 0 || len(state.Recent) != 0 {
		t.Errorf("deleted project still selected: %+v", state)
	}
}
