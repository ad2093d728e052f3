// ABOUTME: Equipment kind descriptors binding a column model to its store collection.
// ABOUTME: One generic model per entity type, exposed through the non-generic Kind.

package equipment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/2389/sitewalk/internal/querycache"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

// ColumnInfo describes one column of a kind's schedule.
type ColumnInfo struct {
	ID       string         `json:"id"`
	Header   string         `json:"header"`
	Editor   string         `json:"editor"`
	Sortable bool           `json:"sortable"`
	Options  []table.Option `json:"options,omitempty"`
}

// Schedule is a kind's rows rendered through its column model, ready for
// printing.
type Schedule struct {
	Kind    *Kind
	Headers []string
	Rows    [][]string
}

// Kind is one equipment collection of a project.
type Kind struct {
	Slug     string
	Title    string
	Singular string
	// Table is the store table, as reported by Store.EquipmentCounts.
	Table string

	columns  func() []ColumnInfo
	list     func(ctx context.Context, st *store.Store, projectID int64) (any, error)
	get      func(ctx context.Context, st *store.Store, id int64) (any, int64, error)
	create   func(ctx context.Context, st *store.Store, projectID int64, body []byte) (any, error)
	update   func(ctx context.Context, st *store.Store, id int64, fields map[string]any) (any, int64, error)
	remove   func(ctx context.Context, st *store.Store, id int64) (int64, error)
	schedule func(ctx context.Context, st *store.Store, projectID int64) (*Schedule, error)
	open     func(k *Kind, deps Deps, user string, projectID int64) (sheetHandle, error)
}

func (k *Kind) Columns() []ColumnInfo { return k.columns() }

func (k *Kind) List(ctx context.Context, st *store.Store, projectID int64) (any, error) {
	return k.list(ctx, st, projectID)
}

// Get returns the entity and the project it belongs to.
func (k *Kind) Get(ctx context.Context, st *store.Store, id int64) (any, int64, error) {
	return k.get(ctx, st, id)
}

// Create decodes a JSON entity and inserts it into projectID. Unknown JSON
// fields are rejected.
func (k *Kind) Create(ctx context.Context, st *store.Store, projectID int64, body []byte) (any, error) {
	return k.create(ctx, st, projectID, body)
}

// Update applies a partial update and returns the entity and its project.
func (k *Kind) Update(ctx context.Context, st *store.Store, id int64, fields map[string]any) (any, int64, error) {
	return k.update(ctx, st, id, fields)
}

// Delete removes an entity and returns the project it belonged to.
func (k *Kind) Delete(ctx context.Context, st *store.Store, id int64) (int64, error) {
	return k.remove(ctx, st, id)
}

func (k *Kind) Schedule(ctx context.Context, st *store.Store, projectID int64) (*Schedule, error) {
	sched, err := k.schedule(ctx, st, projectID)
	if err != nil {
		return nil, err
	}
	sched.Kind = k
	return sched, nil
}

// ListKey is the cache key of a project's collection of this kind.
func (k *Kind) ListKey(projectID int64) string {
	return querycache.Key(ProjectKey(projectID), k.Slug)
}

// ProjectKey is the cache key of a project and everything beneath it.
func ProjectKey(projectID int64) string {
	return querycache.Key("projects", strconv.FormatInt(projectID, 10))
}

// model is the typed description a Kind is generated from.
type model[T any] struct {
	slug     string
	title    string
	singular string
	table    string
	search   string
	columns  func() []table.Column[T]

	id      func(T) int64
	project func(T) int64
	// place sets the owning project on a new entity.
	place func(*T, int64)

	// Store accessors, as method expressions.
	list   func(st *store.Store, ctx context.Context, projectID int64) ([]T, error)
	get    func(st *store.Store, ctx context.Context, id int64) (*T, error)
	create func(st *store.Store, ctx context.Context, entity *T) error
	update func(st *store.Store, ctx context.Context, id int64, fields map[string]any) (*T, error)
	remove func(st *store.Store, ctx context.Context, id int64) error
}

func (m model[T]) key(row T) string { return strconv.FormatInt(m.id(row), 10) }

func define[T any](m model[T]) *Kind {
	return &Kind{
		Slug:     m.slug,
		Title:    m.title,
		Singular: m.singular,
		Table:    m.table,
		columns:  m.columnInfo,
		list: func(ctx context.Context, st *store.Store, projectID int64) (any, error) {
			return m.list(st, ctx, projectID)
		},
		get: func(ctx context.Context, st *store.Store, id int64) (any, int64, error) {
			e, err := m.get(st, ctx, id)
			if err != nil {
				return nil, 0, err
			}
			return e, m.project(*e), nil
		},
		create: m.decodeAndCreate,
		update: func(ctx context.Context, st *store.Store, id int64, fields map[string]any) (any, int64, error) {
			if err := m.checkFields(fields); err != nil {
				return nil, 0, err
			}
			e, err := m.update(st, ctx, id, fields)
			if err != nil {
				return nil, 0, err
			}
			return e, m.project(*e), nil
		},
		remove: func(ctx context.Context, st *store.Store, id int64) (int64, error) {
			e, err := m.get(st, ctx, id)
			if err != nil {
				return 0, err
			}
			if err := m.remove(st, ctx, id); err != nil {
				return 0, err
			}
			return m.project(*e), nil
		},
		schedule: m.buildSchedule,
		open: func(k *Kind, deps Deps, user string, projectID int64) (sheetHandle, error) {
			s, err := newSheet(k, m, deps, user, projectID)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

func (m model[T]) columnInfo() []ColumnInfo {
	cols := m.columns()
	infos := make([]ColumnInfo, 0, len(cols))
	for _, col := range cols {
		info := ColumnInfo{
			ID:       col.ID(),
			Header:   col.Header(),
			Editor:   table.EditorOf[T](col).String(),
			Sortable: table.Sortable[T](col),
		}
		if sel, ok := col.(*table.SelectColumn[T]); ok {
			info.Options = sel.Options()
		}
		infos = append(infos, info)
	}
	return infos
}

func (m model[T]) decodeAndCreate(ctx context.Context, st *store.Store, projectID int64, body []byte) (any, error) {
	var entity T
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&entity); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidField, err)
		}
	}
	if err := m.checkEntity(entity); err != nil {
		return nil, err
	}
	m.place(&entity, projectID)
	if err := m.create(st, ctx, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// buildSchedule renders every row through a throwaway table so exports show
// exactly what the editable schedule displays.
func (m model[T]) buildSchedule(ctx context.Context, st *store.Store, projectID int64) (*Schedule, error) {
	rows, err := m.list(st, ctx, projectID)
	if err != nil {
		return nil, err
	}

	tbl, err := table.New(table.Config[T]{
		Columns:  m.columns(),
		Key:      m.key,
		OnUpdate: func(int, string, table.Value) error { return nil },
	})
	if err != nil {
		return nil, fmt.Errorf("building %s schedule: %w", m.slug, err)
	}
	tbl.SetRows(rows)

	cols := tbl.Columns()
	sched := &Schedule{Headers: make([]string, len(cols))}
	for i, col := range cols {
		sched.Headers[i] = col.Header()
	}
	for _, row := range tbl.View() {
		line := make([]string, len(cols))
		for i, col := range cols {
			if action, ok := col.(*table.ActionColumn[T]); ok {
				line[i] = action.Render(row)
				continue
			}
			cell, err := tbl.Cell(row.Index, col.ID())
			if err != nil {
				return nil, err
			}
			line[i] = cell.Display()
		}
		sched.Rows = append(sched.Rows, line)
	}
	return sched, nil
}

func (m model[T]) selects() []*table.SelectColumn[T] {
	var out []*table.SelectColumn[T]
	for _, col := range m.columns() {
		if sel, ok := col.(*table.SelectColumn[T]); ok {
			out = append(out, sel)
		}
	}
	return out
}

// checkFields rejects select fields of a partial update that are not one of
// the column's options. Non-string values are left to the store's type check.
func (m model[T]) checkFields(fields map[string]any) error {
	for _, sel := range m.selects() {
		v, ok := fields[sel.ID()].(string)
		if ok && !sel.Accepts(v) {
			return fmt.Errorf("%w: %s: %q is not an option", store.ErrInvalidField, sel.ID(), v)
		}
	}
	return nil
}

func (m model[T]) checkEntity(entity T) error {
	for _, sel := range m.selects() {
		if v := sel.Choice(entity); !sel.Accepts(v) {
			return fmt.Errorf("%w: %s: %q is not an option", store.ErrInvalidField, sel.ID(), v)
		}
	}
	return nil
}
