// ABOUTME: Stress tests for sheets shared by many users under concurrent edits.
// ABOUTME: Checks edits persist, invalidations never deadlock, and the workspace stays consistent.

package equipment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sitewalk/internal/querycache"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

type countingRecorder struct{ n atomic.Int64 }

func (c *countingRecorder) RecordEdit(string, string, int64) { c.n.Add(1) }

func newFileFixture(t *testing.T, rec EditRecorder) (*store.Store, *querycache.Cache, *Workspace, int64) {
	t.Helper()
	st, err := store.New(t.TempDir() + "/concurrent.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := &store.Project{Name: "Harbor Point Tower"}
	require.NoError(t, st.CreateProject(context.Background(), p))

	cache := querycache.New()
	ws := NewWorkspace(DefaultRegistry(), Deps{Store: st, Cache: cache, Recorder: rec, Logger: zerolog.Nop()})
	t.Cleanup(ws.Close)
	return st, cache, ws, p.ID
}

// TestConcurrentEditsAcrossUsers has each user rename their own door while
// sharing one project, so every edit invalidates every other user's sheet.
func TestConcurrentEditsAcrossUsers(t *testing.T) {
	rec := &countingRecorder{}
	st, _, ws, pid := newFileFixture(t, rec)
	ctx := context.Background()

	const users = 8
	const rounds = 10
	doors := make([]store.AccessPoint, users)
	for i := range doors {
		doors[i] = store.AccessPoint{ProjectID: pid, Location: fmt.Sprintf("Door %d", i)}
		require.NoError(t, st.CreateAccessPoint(ctx, &doors[i]))
	}

	var wg sync.WaitGroup
	var errorCount atomic.Int32
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := ws.Sheet(fmt.Sprintf("user-%d", i), pid, "access-points")
			if err != nil {
				errorCount.Add(1)
				return
			}
			row := key(doors[i].ID)
			for j := 0; j < rounds; j++ {
				if err := s.Begin(ctx, row, "location"); err != nil {
					t.Logf("begin: %v", err)
					errorCount.Add(1)
					continue
				}
				if err := s.Input(ctx, row, "location", fmt.Sprintf("Door %d rev %d", i, j)); err != nil {
					errorCount.Add(1)
					continue
				}
				if err := s.Commit(ctx, row, "location", table.Confirm); err != nil {
					errorCount.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, errorCount.Load())
	assert.Equal(t, int64(users*rounds), rec.n.Load())

	got, err := st.ListAccessPoints(ctx, pid)
	require.NoError(t, err)
	for i, d := range doors {
		for _, g := range got {
			if g.ID == d.ID {
				assert.Equal(t, fmt.Sprintf("Door %d rev %d", i, rounds-1), g.Location)
			}
		}
	}

	// Every sheet converges on the stored rows after the storm.
	for i := 0; i < users; i++ {
		s, err := ws.Sheet(fmt.Sprintf("user-%d", i), pid, "access-points")
		require.NoError(t, err)
		snap, err := s.Snapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, snap.Rows, users)
		assert.Equal(t, fmt.Sprintf("Door 0 rev %d", rounds-1), cellOf(t, snap, key(doors[0].ID), "location").Display)
	}
}

// TestDeadlockPrevention hammers invalidations, sheet creation and drops at
// the same time as edits. It fails by timing out.
func TestDeadlockPrevention(t *testing.T) {
	st, cache, ws, pid := newFileFixture(t, nil)
	ctx := context.Background()

	cam := store.Camera{ProjectID: pid, Location: "Main Lobby"}
	require.NoError(t, st.CreateCamera(ctx, &cam))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(3)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					cache.Invalidate(ProjectKey(pid))
				}
			}()
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					s, err := ws.Sheet(fmt.Sprintf("user-%d", i), pid, "cameras")
					if err != nil {
						continue
					}
					_ = s.Begin(ctx, key(cam.ID), "notes")
					_ = s.Input(ctx, key(cam.ID), "notes", fmt.Sprintf("pass %d", j))
					_ = s.Commit(ctx, key(cam.ID), "notes", table.Blur)
					_, _ = s.Snapshot(ctx)
				}
			}(i)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					ws.Drop(pid)
					_ = ws.Len()
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("deadlock: sheets did not finish under concurrent invalidation")
	}

	got, err := st.GetCamera(ctx, cam.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Notes, "pass ")
}

// TestBoundedCacheFetches checks that a burst of sheets opening the same
// schedule shares one store query per invalidation.
func TestBoundedCacheFetches(t *testing.T) {
	st, cache, _, pid := newFileFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, st.CreateIntercom(ctx, &store.Intercom{ProjectID: pid, Location: "Main Lobby Entry"}))

	var fetches atomic.Int32
	release := make(chan struct{})
	listKey := Intercoms().ListKey(pid)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := querycache.Query(ctx, cache, listKey, func(ctx context.Context) ([]store.Intercom, error) {
				fetches.Add(1)
				<-release
				return st.ListIntercoms(ctx, pid)
			})
			assert.NoError(t, err)
			assert.Len(t, rows, 1)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}
