// ABOUTME: Workspace keeps one live sheet per engineer, project and kind.
// ABOUTME: Cache invalidations mark affected sheets stale so their next operation reloads.

package equipment

import (
	"errors"
	"fmt"
	"sync"

	"github.com/2389/sitewalk/internal/querycache"
)

var ErrUnknownKind = errors.New("unknown equipment kind")

type sheetKey struct {
	user      string
	projectID int64
	slug      string
}

type Workspace struct {
	mu          sync.RWMutex
	registry    *Registry
	deps        Deps
	sheets      map[sheetKey]sheetHandle
	unsubscribe func()
}

func NewWorkspace(registry *Registry, deps Deps) *Workspace {
	w := &Workspace{
		registry: registry,
		deps:     deps,
		sheets:   make(map[sheetKey]sheetHandle),
	}
	w.unsubscribe = deps.Cache.Subscribe(w.invalidated)
	return w
}

// Sheet returns the user's sheet for a project and kind, creating it on
// first use. Rows load lazily on the first operation.
func (w *Workspace) Sheet(user string, projectID int64, slug string) (Sheet, error) {
	kind, ok := w.registry.Get(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, slug)
	}
	key := sheetKey{user: user, projectID: projectID, slug: slug}

	w.mu.RLock()
	s, ok := w.sheets[key]
	w.mu.RUnlock()
	if ok {
		return s, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sheets[key]; ok {
		return s, nil
	}
	s, err := kind.open(kind, w.deps, user, projectID)
	if err != nil {
		return nil, err
	}
	w.sheets[key] = s
	return s, nil
}

// Drop forgets every sheet of a project, e.g. after the project is deleted.
func (w *Workspace) Drop(projectID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k := range w.sheets {
		if k.projectID == projectID {
			delete(w.sheets, k)
		}
	}
}

// Len is the number of live sheets.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.sheets)
}

func (w *Workspace) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
}

// invalidated runs on the invalidating goroutine, which may hold a sheet
// lock, so it only flips the stale flags.
func (w *Workspace) invalidated(key string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.sheets {
		if querycache.Covers(key, s.listKey()) {
			s.markStale()
		}
	}
}
