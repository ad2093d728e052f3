// ABOUTME: Data table composing rows and columns into editable cells.
// ABOUTME: Owns the row view (search then sort), single-column sorting, and commit routing.

package table

import (
	"fmt"
	"slices"
	"strings"
)

// UpdateFunc persists a committed edit. rowIndex is the row's position in
// the view the table most recently produced; resolve it with RowAt.
type UpdateFunc func(rowIndex int, columnID string, v Value) error

// Config configures a Table.
type Config[T any] struct {
	Columns []Column[T]

	// Key returns a stable identity for a row (usually its primary key).
	Key func(T) string

	// SearchColumn is the column Search matches against. Optional.
	SearchColumn string

	OnUpdate UpdateFunc

	// OnError receives failed updates after their optimistic value has been
	// rolled back. Optional.
	OnError func(error)
}

// Row is one entity in the current view.
type Row[T any] struct {
	Index int
	Key   string
	Data  T
}

// SortDirection is the tri-state sort of a column.
type SortDirection int

const (
	SortNone SortDirection = iota
	SortAscending
	SortDescending
)

func (d SortDirection) String() string {
	switch d {
	case SortAscending:
		return "ascending"
	case SortDescending:
		return "descending"
	default:
		return "none"
	}
}

// SortState is the active sort. ColumnID is empty when unsorted.
type SortState struct {
	ColumnID  string
	Direction SortDirection
}

type cellKey struct {
	row    string
	column string
}

// Table is an editable view over a row collection.
//
// A Table is not safe for concurrent use; callers serialize access.
type Table[T any] struct {
	columns      []Column[T]
	byID         map[string]Column[T]
	key          func(T) string
	searchColumn string
	onUpdate     UpdateFunc
	onError      func(error)

	rows    []T
	view    []Row[T]
	sort    SortState
	term    string
	cells   map[cellKey]*Cell
	overlay map[cellKey]Value
}

// New validates the configuration and returns an empty table.
func New[T any](cfg Config[T]) (*Table[T], error) {
	if cfg.Key == nil {
		return nil, ErrNoKeyFunc
	}
	if cfg.OnUpdate == nil {
		return nil, ErrNoUpdateFunc
	}

	byID := make(map[string]Column[T], len(cfg.Columns))
	for i, col := range cfg.Columns {
		if col == nil {
			return nil, fmt.Errorf("%w: position %d", ErrNilColumn, i)
		}
		id := col.ID()
		if id == "" {
			return nil, fmt.Errorf("%w: position %d", ErrEmptyColumnID, i)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, id)
		}
		byID[id] = col
	}

	if cfg.SearchColumn != "" {
		col, ok := byID[cfg.SearchColumn]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSearchColumn, cfg.SearchColumn)
		}
		if _, ok := col.(valueColumn[T]); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSearchColumn, cfg.SearchColumn)
		}
	}

	return &Table[T]{
		columns:      append([]Column[T](nil), cfg.Columns...),
		byID:         byID,
		key:          cfg.Key,
		searchColumn: cfg.SearchColumn,
		onUpdate:     cfg.OnUpdate,
		onError:      cfg.OnError,
		cells:        make(map[cellKey]*Cell),
		overlay:      make(map[cellKey]Value),
	}, nil
}

// Columns returns the column definitions in display order.
func (t *Table[T]) Columns() []Column[T] { return append([]Column[T](nil), t.columns...) }

// Column looks up a column by id.
func (t *Table[T]) Column(id string) (Column[T], bool) {
	col, ok := t.byID[id]
	return col, ok
}

// SetRows replaces the row collection with authoritative data. Optimistic
// values are dropped and every live cell is refreshed.
func (t *Table[T]) SetRows(rows []T) {
	t.rows = append([]T(nil), rows...)
	clear(t.overlay)
	t.rebuild()
}

// Rows returns the full, unfiltered row collection.
func (t *Table[T]) Rows() []T { return append([]T(nil), t.rows...) }

// View returns the current filtered and sorted rows.
func (t *Table[T]) View() []Row[T] { return append([]Row[T](nil), t.view...) }

// Len is the number of rows in the current view.
func (t *Table[T]) Len() int { return len(t.view) }

// RowAt resolves an index against the current view.
func (t *Table[T]) RowAt(index int) (Row[T], bool) {
	if index < 0 || index >= len(t.view) {
		return Row[T]{}, false
	}
	return t.view[index], true
}

// IndexOf returns the view position of the row with the given key.
func (t *Table[T]) IndexOf(key string) (int, bool) {
	for _, r := range t.view {
		if r.Key == key {
			return r.Index, true
		}
	}
	return -1, false
}

// SortState returns the active sort.
func (t *Table[T]) SortState() SortState { return t.sort }

// SortDirectionOf returns the sort indicator for one column.
func (t *Table[T]) SortDirectionOf(columnID string) SortDirection {
	if t.sort.ColumnID != columnID {
		return SortNone
	}
	return t.sort.Direction
}

// Sort cycles a column through ascending, descending and unsorted. Sorting a
// different column resets the previous one.
func (t *Table[T]) Sort(columnID string) error {
	col, ok := t.byID[columnID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, columnID)
	}
	if !Sortable[T](col) {
		return fmt.Errorf("%w: %q", ErrNotSortable, columnID)
	}

	switch {
	case t.sort.ColumnID != columnID:
		t.sort = SortState{ColumnID: columnID, Direction: SortAscending}
	case t.sort.Direction == SortAscending:
		t.sort.Direction = SortDescending
	default:
		t.sort = SortState{}
	}
	t.rebuild()
	return nil
}

// Term returns the active search term.
func (t *Table[T]) Term() string { return t.term }

// Search filters the view to rows whose search column contains every word of
// term, ignoring case. An empty term matches every row.
func (t *Table[T]) Search(term string) error {
	if term != "" && t.searchColumn == "" {
		return ErrNoSearchColumn
	}
	t.term = term
	t.rebuild()
	return nil
}

// Cell returns the controller for a value column of a row in the current view.
func (t *Table[T]) Cell(rowIndex int, columnID string) (*Cell, error) {
	row, ok := t.RowAt(rowIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRow, rowIndex)
	}
	col, ok := t.byID[columnID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, columnID)
	}
	vc, ok := col.(valueColumn[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotEditable, columnID)
	}

	k := cellKey{row: row.Key, column: columnID}
	if c, ok := t.cells[k]; ok {
		return c, nil
	}
	c := newCell(vc.cellSpec(), rowIndex, t.valueOf(row, vc), nil)
	c.onCommit = t.commitHandler(k, vc, c)
	t.cells[k] = c
	return c, nil
}

// Value returns the value a row displays for a column, including any
// optimistic update not yet confirmed by SetRows.
func (t *Table[T]) Value(row Row[T], columnID string) (Value, error) {
	col, ok := t.byID[columnID]
	if !ok {
		return Null(), fmt.Errorf("%w: %q", ErrColumnNotFound, columnID)
	}
	vc, ok := col.(valueColumn[T])
	if !ok {
		return Null(), fmt.Errorf("%w: %q", ErrNotEditable, columnID)
	}
	return t.valueOf(row, vc), nil
}

func (t *Table[T]) valueOf(row Row[T], col valueColumn[T]) Value {
	if v, ok := t.overlay[cellKey{row: row.Key, column: col.ID()}]; ok {
		return v
	}
	return col.value(row.Data)
}

// commitHandler applies the committed value optimistically, then routes it
// to OnUpdate. A failed update rolls the value back and goes to OnError.
func (t *Table[T]) commitHandler(k cellKey, col valueColumn[T], c *Cell) commitFunc {
	return func(rowIndex int, columnID string, v Value) {
		t.overlay[k] = v
		c.Refresh(v, rowIndex)

		if err := t.onUpdate(rowIndex, columnID, v); err != nil {
			delete(t.overlay, k)
			if row, ok := t.rowByKey(k.row); ok {
				c.Refresh(col.value(row.Data), c.RowIndex())
			}
			if t.onError != nil {
				t.onError(fmt.Errorf("update %s of row %d: %w", columnID, rowIndex, err))
			}
		}
	}
}

func (t *Table[T]) rowByKey(key string) (Row[T], bool) {
	for _, r := range t.view {
		if r.Key == key {
			return r, true
		}
	}
	for _, data := range t.rows {
		if t.key(data) == key {
			return Row[T]{Index: -1, Key: key, Data: data}, true
		}
	}
	return Row[T]{}, false
}

// rebuild recomputes the view and re-delivers values and positions to every
// live cell. Cells of rows that no longer exist are dropped.
func (t *Table[T]) rebuild() {
	view := make([]Row[T], 0, len(t.rows))
	for _, data := range t.rows {
		row := Row[T]{Key: t.key(data), Data: data}
		if t.matches(row) {
			view = append(view, row)
		}
	}

	if t.sort.ColumnID != "" && t.sort.Direction != SortNone {
		cmp := t.comparator(t.byID[t.sort.ColumnID])
		if t.sort.Direction == SortDescending {
			asc := cmp
			cmp = func(a, b Row[T]) int { return asc(b, a) }
		}
		slices.SortStableFunc(view, cmp)
	}

	positions := make(map[string]int, len(view))
	for i := range view {
		view[i].Index = i
		positions[view[i].Key] = i
	}
	t.view = view

	present := make(map[string]T, len(t.rows))
	for _, data := range t.rows {
		present[t.key(data)] = data
	}
	for k, c := range t.cells {
		data, ok := present[k.row]
		if !ok {
			delete(t.cells, k)
			continue
		}
		vc := t.byID[k.column].(valueColumn[T])
		idx, visible := positions[k.row]
		if !visible {
			idx = -1
		}
		c.Refresh(t.valueOf(Row[T]{Key: k.row, Data: data}, vc), idx)
		// A row outside the view has no index to commit against.
		if !visible {
			c.Cancel()
		}
	}
}

func (t *Table[T]) matches(row Row[T]) bool {
	if t.term == "" || t.searchColumn == "" {
		return true
	}
	vc := t.byID[t.searchColumn].(valueColumn[T])
	v := t.valueOf(row, vc)
	return containsTerms(v.String(), t.term) || containsTerms(vc.format(v), t.term)
}

// containsTerms reports whether every whitespace-separated word of term is a
// case-insensitive substring of s.
func containsTerms(s, term string) bool {
	haystack := strings.ToLower(s)
	for _, word := range strings.Fields(strings.ToLower(term)) {
		if !strings.Contains(haystack, word) {
			return false
		}
	}
	return true
}

func (t *Table[T]) comparator(col Column[T]) func(a, b Row[T]) int {
	switch c := col.(type) {
	case *ActionColumn[T]:
		return func(a, b Row[T]) int { return c.comparator(a.Data, b.Data) }
	case valueColumn[T]:
		return func(a, b Row[T]) int {
			return compareValues(t.valueOf(a, c), t.valueOf(b, c))
		}
	default:
		panic(fmt.Sprintf("table: unknown column variant %T", c))
	}
}
