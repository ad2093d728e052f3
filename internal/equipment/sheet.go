// ABOUTME: Sheet binds an editable table to the store and query cache for one engineer, project and kind.
// ABOUTME: Rows are addressed by key; commits persist through the store and invalidate the cached collection.

package equipment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/querycache"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

// ErrRowNotFound is returned when a row key is not in the current view.
var ErrRowNotFound = errors.New("row not found")

// EditRecorder receives one event per persisted cell edit.
type EditRecorder interface {
	RecordEdit(kind, column string, projectID int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordEdit(string, string, int64) {}

// Deps are the collaborators every sheet shares.
type Deps struct {
	Store    *store.Store
	Cache    *querycache.Cache
	Recorder EditRecorder
	Logger   zerolog.Logger
}

// ColumnView is a column header as rendered.
type ColumnView struct {
	ID        string
	Header    string
	ClassName string
	Editor    table.Editor
	Sortable  bool
	Sort      table.SortDirection
}

// CellView is one rendered cell. Action cells carry Action text and no
// editor state.
type CellView struct {
	ColumnID   string
	Editor     table.Editor
	Mode       table.Mode
	Display    string
	Input      string
	Error      string
	Affordance bool
	Options    []table.Option
	Action     string
	IsAction   bool
}

type RowView struct {
	Index int
	Key   string
	Cells []CellView
}

// Snapshot is the render model of a sheet.
type Snapshot struct {
	Kind      *Kind
	ProjectID int64
	Term      string
	Sort      table.SortState
	Columns   []ColumnView
	Rows      []RowView
	// Notices are failed updates since the last snapshot.
	Notices []string
}

// Sheet is the editable schedule of one kind within a project.
//
// Sheet methods are safe for concurrent use.
type Sheet interface {
	Kind() *Kind
	ProjectID() int64

	Load(ctx context.Context) error
	Sort(ctx context.Context, columnID string) error
	Search(ctx context.Context, term string) error

	Begin(ctx context.Context, rowKey, columnID string) error
	Input(ctx context.Context, rowKey, columnID, raw string) error
	Commit(ctx context.Context, rowKey, columnID string, trigger table.Trigger) error
	Choose(ctx context.Context, rowKey, columnID, value string) error
	Cancel(ctx context.Context, rowKey, columnID string) error

	AddRow(ctx context.Context) (string, error)
	DeleteRow(ctx context.Context, rowKey string) error

	Snapshot(ctx context.Context) (*Snapshot, error)
}

// sheetHandle is a Sheet the workspace can mark stale.
type sheetHandle interface {
	Sheet
	markStale()
	listKey() string
}

type sheet[T any] struct {
	mu        sync.Mutex
	kind      *Kind
	m         model[T]
	deps      Deps
	user      string
	projectID int64
	tbl       *table.Table[T]

	loaded bool
	stale  atomic.Bool
	// opCtx is the context of the operation in progress, for the table's
	// update callback.
	opCtx   context.Context
	notices []string
}

func newSheet[T any](k *Kind, m model[T], deps Deps, user string, projectID int64) (*sheet[T], error) {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	s := &sheet[T]{
		kind:      k,
		m:         m,
		deps:      deps,
		user:      user,
		projectID: projectID,
		opCtx:     context.Background(),
	}
	tbl, err := table.New(table.Config[T]{
		Columns:      m.columns(),
		Key:          m.key,
		SearchColumn: m.search,
		OnUpdate:     s.persist,
		OnError:      s.notify,
	})
	if err != nil {
		return nil, fmt.Errorf("%s sheet: %w", m.slug, err)
	}
	s.tbl = tbl
	return s, nil
}

func (s *sheet[T]) Kind() *Kind      { return s.kind }
func (s *sheet[T]) ProjectID() int64 { return s.projectID }
func (s *sheet[T]) listKey() string  { return s.kind.ListKey(s.projectID) }
func (s *sheet[T]) markStale()       { s.stale.Store(true) }

// Load fetches rows through the cache and hands them to the table.
func (s *sheet[T]) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx)
}

func (s *sheet[T]) reload(ctx context.Context) error {
	s.stale.Store(false)
	rows, err := querycache.Query(ctx, s.deps.Cache, s.listKey(), func(ctx context.Context) ([]T, error) {
		return s.m.list(s.deps.Store, ctx, s.projectID)
	})
	if err != nil {
		s.stale.Store(true)
		return fmt.Errorf("loading %s: %w", s.m.slug, err)
	}
	s.tbl.SetRows(rows)
	s.loaded = true
	return nil
}

// do runs fn under the sheet lock after bringing the rows up to date.
func (s *sheet[T]) do(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded || s.stale.Load() {
		if err := s.reload(ctx); err != nil {
			return err
		}
	}
	s.opCtx = ctx
	defer func() { s.opCtx = context.Background() }()
	return fn()
}

func (s *sheet[T]) Sort(ctx context.Context, columnID string) error {
	return s.do(ctx, func() error { return s.tbl.Sort(columnID) })
}

func (s *sheet[T]) Search(ctx context.Context, term string) error {
	return s.do(ctx, func() error { return s.tbl.Search(term) })
}

func (s *sheet[T]) cell(rowKey, columnID string) (*table.Cell, error) {
	idx, ok := s.tbl.IndexOf(rowKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRowNotFound, rowKey)
	}
	return s.tbl.Cell(idx, columnID)
}

func (s *sheet[T]) Begin(ctx context.Context, rowKey, columnID string) error {
	return s.do(ctx, func() error {
		c, err := s.cell(rowKey, columnID)
		if err != nil {
			return err
		}
		if !c.Begin() {
			return fmt.Errorf("%w: %q", table.ErrNotEditable, columnID)
		}
		return nil
	})
}

func (s *sheet[T]) Input(ctx context.Context, rowKey, columnID, raw string) error {
	return s.do(ctx, func() error {
		c, err := s.cell(rowKey, columnID)
		if err != nil {
			return err
		}
		return c.Input(raw)
	})
}

// Commit ends the edit. A failed store update is not returned; it rolls the
// cell back and appears in the next snapshot's notices.
func (s *sheet[T]) Commit(ctx context.Context, rowKey, columnID string, trigger table.Trigger) error {
	return s.do(ctx, func() error {
		c, err := s.cell(rowKey, columnID)
		if err != nil {
			return err
		}
		return c.Commit(trigger)
	})
}

func (s *sheet[T]) Choose(ctx context.Context, rowKey, columnID, value string) error {
	return s.do(ctx, func() error {
		c, err := s.cell(rowKey, columnID)
		if err != nil {
			return err
		}
		if c.Mode() != table.Editing {
			c.Begin()
		}
		return c.Choose(value)
	})
}

func (s *sheet[T]) Cancel(ctx context.Context, rowKey, columnID string) error {
	return s.do(ctx, func() error {
		c, err := s.cell(rowKey, columnID)
		if err != nil {
			return err
		}
		c.Cancel()
		return nil
	})
}

// AddRow inserts an empty entity and returns its row key.
func (s *sheet[T]) AddRow(ctx context.Context) (string, error) {
	var key string
	err := s.do(ctx, func() error {
		var entity T
		s.m.place(&entity, s.projectID)
		if err := s.m.create(s.deps.Store, ctx, &entity); err != nil {
			return err
		}
		key = s.m.key(entity)
		s.deps.Cache.Invalidate(s.listKey())
		return nil
	})
	return key, err
}

func (s *sheet[T]) DeleteRow(ctx context.Context, rowKey string) error {
	return s.do(ctx, func() error {
		if _, ok := s.tbl.IndexOf(rowKey); !ok {
			return fmt.Errorf("%w: %s", ErrRowNotFound, rowKey)
		}
		id, err := strconv.ParseInt(rowKey, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrRowNotFound, rowKey)
		}
		if err := s.m.remove(s.deps.Store, ctx, id); err != nil {
			return err
		}
		s.deps.Cache.Invalidate(s.listKey())
		return nil
	})
}

// persist is the table's update callback. It runs under the sheet lock.
func (s *sheet[T]) persist(rowIndex int, columnID string, v table.Value) error {
	row, ok := s.tbl.RowAt(rowIndex)
	if !ok {
		return fmt.Errorf("%w: %d", table.ErrInvalidRow, rowIndex)
	}
	id := s.m.id(row.Data)
	if _, err := s.m.update(s.deps.Store, s.opCtx, id, map[string]any{columnID: v.Any()}); err != nil {
		return err
	}

	s.deps.Logger.Debug().
		Str("kind", s.m.slug).
		Int64("project_id", s.projectID).
		Int64("id", id).
		Str("column", columnID).
		Str("user", s.user).
		Msg("cell updated")
	s.deps.Recorder.RecordEdit(s.m.slug, columnID, s.projectID)
	s.deps.Cache.Invalidate(s.listKey())
	return nil
}

func (s *sheet[T]) notify(err error) {
	s.deps.Logger.Warn().Err(err).Str("kind", s.m.slug).Int64("project_id", s.projectID).Msg("cell update failed")
	s.notices = append(s.notices, err.Error())
}

// Snapshot renders the current view. Pending notices are drained.
func (s *sheet[T]) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := s.do(ctx, func() error {
		snap = &Snapshot{
			Kind:      s.kind,
			ProjectID: s.projectID,
			Term:      s.tbl.Term(),
			Sort:      s.tbl.SortState(),
			Notices:   s.notices,
		}
		s.notices = nil

		cols := s.tbl.Columns()
		for _, col := range cols {
			snap.Columns = append(snap.Columns, ColumnView{
				ID:        col.ID(),
				Header:    col.Header(),
				ClassName: col.ClassName(),
				Editor:    table.EditorOf[T](col),
				Sortable:  table.Sortable[T](col),
				Sort:      s.tbl.SortDirectionOf(col.ID()),
			})
		}

		for _, row := range s.tbl.View() {
			rv := RowView{Index: row.Index, Key: row.Key, Cells: make([]CellView, 0, len(cols))}
			for _, col := range cols {
				if action, ok := col.(*table.ActionColumn[T]); ok {
					rv.Cells = append(rv.Cells, CellView{ColumnID: col.ID(), IsAction: true, Action: action.Render(row)})
					continue
				}
				c, err := s.tbl.Cell(row.Index, col.ID())
				if err != nil {
					return err
				}
				rv.Cells = append(rv.Cells, CellView{
					ColumnID:   col.ID(),
					Editor:     c.Editor(),
					Mode:       c.Mode(),
					Display:    c.Display(),
					Input:      c.InputText(),
					Error:      c.ValidationError(),
					Affordance: c.ShowEditAffordance(),
					Options:    c.Options(),
				})
			}
			snap.Rows = append(snap.Rows, rv)
		}
		return nil
	})
	return snap, err
}
