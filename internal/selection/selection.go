// ABOUTME: The single source of truth for an engineer's current project and project lists.
// ABOUTME: Reads go through the query cache; every change invalidates the user's selection key.

package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/sitewalk/internal/querycache"
	"github.com/2389/sitewalk/internal/store"
)

// State is what the navigation shows for one user.
type State struct {
	Current *store.Project   `json:"current"`
	Pinned  []*store.Project `json:"pinned"`
	Recent  []*store.Project `json:"recent"`
}

type Service struct {
	store *store.Store
	cache *querycache.Cache
}

func New(st *store.Store, cache *querycache.Cache) *Service {
	return &Service{store: st, cache: cache}
}

// Key is the cache key of a user's selection.
func Key(user string) string {
	return querycache.Key("users", user, "selection")
}

// UsersKey covers every user's selection, for changes such as a project
// deletion that affect everyone.
const UsersKey = "users"

func (s *Service) State(ctx context.Context, user string) (*State, error) {
	return querycache.Query(ctx, s.cache, Key(user), func(ctx context.Context) (*State, error) {
		return s.load(ctx, user)
	})
}

func (s *Service) load(ctx context.Context, user string) (*State, error) {
	state := &State{Pinned: []*store.Project{}, Recent: []*store.Project{}}

	currentID, err := s.store.CurrentProject(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("current project: %w", err)
	}
	if currentID != 0 {
		if state.Current, err = s.project(ctx, currentID); err != nil {
			return nil, err
		}
	}

	pinned, err := s.store.PinnedProjects(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("pinned projects: %w", err)
	}
	if state.Pinned, err = s.projects(ctx, pinned); err != nil {
		return nil, err
	}

	recent, err := s.store.RecentProjects(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("recent projects: %w", err)
	}
	if state.Recent, err = s.projects(ctx, recent); err != nil {
		return nil, err
	}
	return state, nil
}

// project returns nil for a project deleted since the id was read.
func (s *Service) project(ctx context.Context, id int64) (*store.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *Service) projects(ctx context.Context, ids []int64) ([]*store.Project, error) {
	out := make([]*store.Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.project(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// Select makes projectID the user's current project. 0 clears it.
func (s *Service) Select(ctx context.Context, user string, projectID int64) error {
	if err := s.store.SetCurrentProject(ctx, user, projectID); err != nil {
		return err
	}
	s.cache.Invalidate(Key(user))
	return nil
}

func (s *Service) Pin(ctx context.Context, user string, projectID int64) error {
	if err := s.store.PinProject(ctx, user, projectID); err != nil {
		return err
	}
	s.cache.Invalidate(Key(user))
	return nil
}

func (s *Service) Unpin(ctx context.Context, user string, projectID int64) error {
	if err := s.store.UnpinProject(ctx, user, projectID); err != nil {
		return err
	}
	s.cache.Invalidate(Key(user))
	return nil
}
