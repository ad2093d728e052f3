// ABOUTME: Tests for columns, cells and the data table.
// ABOUTME: Covers sort, search, view indexing, refresh while editing and rollback.

package table

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type door struct {
	ID       int
	Location string
	Floor    int
	Lock     string
}

type updateCall struct {
	row    int
	column string
	value  Value
}

type recorder struct {
	calls []updateCall
	err   error
	errs  []error
}

func (r *recorder) update(row int, column string, v Value) error {
	r.calls = append(r.calls, updateCall{row, column, v})
	return r.err
}

func (r *recorder) onError(err error) { r.errs = append(r.errs, err) }

var lockOptions = []Option{
	{Label: "Maglock", Value: "maglock"},
	{Label: "Electric Strike", Value: "strike"},
}

func doorColumns() []Column[door] {
	return []Column[door]{
		NewReadOnly("id", "ID", func(d door) Value { return Int(int64(d.ID)) }),
		NewText("location", "Location", func(d door) string { return d.Location }),
		NewNumber("floor", "Floor", func(d door) int { return d.Floor }),
		NewSelect("lock", "Lock", func(d door) string { return d.Lock }, lockOptions),
		NewAction("actions", "", func(r Row[door]) string { return "delete " + strconv.Itoa(r.Data.ID) }),
	}
}

func newDoorTable(t *testing.T, rec *recorder, rows ...door) *Table[door] {
	t.Helper()
	tbl, err := New(Config[door]{
		Columns:      doorColumns(),
		Key:          func(d door) string { return strconv.Itoa(d.ID) },
		SearchColumn: "location",
		OnUpdate:     rec.update,
		OnError:      rec.onError,
	})
	require.NoError(t, err)
	tbl.SetRows(rows)
	return tbl
}

func sampleDoors() []door {
	return []door{
		{ID: 1, Location: "Lobby", Floor: 1, Lock: "maglock"},
		{ID: 2, Location: "Roof", Floor: 12, Lock: "strike"},
	}
}

func TestNew_RejectsDuplicateColumnIDs(t *testing.T) {
	_, err := New(Config[door]{
		Columns: []Column[door]{
			NewText("location", "Location", func(d door) string { return d.Location }),
			NewText("location", "Where", func(d door) string { return d.Location }),
		},
		Key:      func(d door) string { return strconv.Itoa(d.ID) },
		OnUpdate: func(int, string, Value) error { return nil },
	})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	key := func(d door) string { return strconv.Itoa(d.ID) }
	noop := func(int, string, Value) error { return nil }

	tests := []struct {
		name string
		cfg  Config[door]
		want error
	}{
		{"missing key", Config[door]{OnUpdate: noop}, ErrNoKeyFunc},
		{"missing update", Config[door]{Key: key}, ErrNoUpdateFunc},
		{"empty id", Config[door]{Key: key, OnUpdate: noop, Columns: []Column[door]{
			NewText("", "Location", func(d door) string { return d.Location }),
		}}, ErrEmptyColumnID},
		{"nil column", Config[door]{Key: key, OnUpdate: noop, Columns: []Column[door]{nil}}, ErrNilColumn},
		{"unknown search column", Config[door]{Key: key, OnUpdate: noop, Columns: doorColumns(), SearchColumn: "nope"}, ErrUnknownSearchColumn},
		{"action search column", Config[door]{Key: key, OnUpdate: noop, Columns: doorColumns(), SearchColumn: "actions"}, ErrUnknownSearchColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEditAndCommit_RoutesChangedValue(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "location")
	require.NoError(t, err)
	require.True(t, cell.Begin())
	require.NoError(t, cell.Input("Main Lobby"))
	require.NoError(t, cell.Commit(Confirm))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, updateCall{0, "location", String("Main Lobby")}, rec.calls[0])
	assert.Equal(t, Display, cell.Mode())
	assert.Equal(t, "Main Lobby", cell.Display(), "optimistic value shows before refetch")

	rows := sampleDoors()
	rows[0].Location = "Main Lobby"
	tbl.SetRows(rows)

	cell, err = tbl.Cell(0, "location")
	require.NoError(t, err)
	assert.Equal(t, "Main Lobby", cell.Display())
	assert.Len(t, rec.calls, 1)
}

func TestCommit_UnchangedValueSkipsUpdate(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(1, "location")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Commit(Blur))

	cell.Begin()
	require.NoError(t, cell.Input("Roof"))
	require.NoError(t, cell.Commit(Confirm))

	assert.Empty(t, rec.calls)
}

func TestCancel_RestoresCommittedValue(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "location")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input("Somewhere else"))
	cell.Cancel()

	assert.Equal(t, Display, cell.Mode())
	assert.Equal(t, "Lobby", cell.Display())
	assert.Equal(t, "Lobby", cell.InputText())
	assert.Empty(t, rec.calls)
}

func TestReadOnlyCell_NeverEdits(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "id")
	require.NoError(t, err)
	assert.False(t, cell.Begin())
	assert.Equal(t, Display, cell.Mode())
	assert.False(t, cell.ShowEditAffordance())
	assert.ErrorIs(t, cell.Input("9"), ErrNotEditing)
}

func TestActionColumn_HasNoCell(t *testing.T) {
	tbl := newDoorTable(t, &recorder{}, sampleDoors()...)

	_, err := tbl.Cell(0, "actions")
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestNumberCell_RejectsInvalidDraft(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "floor")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input("ground"))

	err = cell.Commit(Blur)
	assert.ErrorIs(t, err, ErrInvalidDraft)
	assert.Equal(t, Editing, cell.Mode())
	assert.NotEmpty(t, cell.ValidationError())
	assert.Empty(t, rec.calls)

	require.NoError(t, cell.Input(" 3 "))
	require.NoError(t, cell.Commit(Confirm))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, Number(3), rec.calls[0].value)
}

func TestNumberCell_RejectsNonFiniteAndFractionalIntegers(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "floor")
	require.NoError(t, err)
	cell.Begin()
	for _, raw := range []string{"NaN", "Inf", "-Inf", "2.5", "1e19"} {
		require.NoError(t, cell.Input(raw))
		err := cell.Commit(Confirm)
		assert.ErrorIs(t, err, ErrInvalidDraft, "draft %q", raw)
		assert.Equal(t, Editing, cell.Mode(), "draft %q", raw)
		assert.NotEmpty(t, cell.ValidationError(), "draft %q", raw)
	}
	assert.Empty(t, rec.calls)

	require.NoError(t, cell.Input("2.0"))
	require.NoError(t, cell.Commit(Confirm))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, Number(2), rec.calls[0].value)
}

func TestNumberCell_FloatAccessorAcceptsFractions(t *testing.T) {
	type cam struct {
		ID  string
		Res float64
	}
	var got []Value
	tbl, err := New(Config[cam]{
		Columns:  []Column[cam]{NewNumber("res", "MP", func(c cam) float64 { return c.Res })},
		Key:      func(c cam) string { return c.ID },
		OnUpdate: func(_ int, _ string, v Value) error { got = append(got, v); return nil },
	})
	require.NoError(t, err)
	tbl.SetRows([]cam{{ID: "a", Res: 4}})

	cell, err := tbl.Cell(0, "res")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input("Inf"))
	assert.ErrorIs(t, cell.Commit(Blur), ErrInvalidDraft)
	require.NoError(t, cell.Input("2.5"))
	require.NoError(t, cell.Commit(Blur))
	assert.Equal(t, []Value{Number(2.5)}, got)
}

func TestOptionalNumber_EmptyCommitsNull(t *testing.T) {
	type cam struct {
		ID  string
		Res *float64
	}
	res := 4.0
	var got []Value
	tbl, err := New(Config[cam]{
		Columns:  []Column[cam]{NewOptionalNumber("res", "MP", func(c cam) *float64 { return c.Res })},
		Key:      func(c cam) string { return c.ID },
		OnUpdate: func(_ int, _ string, v Value) error { got = append(got, v); return nil },
	})
	require.NoError(t, err)
	tbl.SetRows([]cam{{ID: "a", Res: &res}, {ID: "b"}})

	empty, err := tbl.Cell(1, "res")
	require.NoError(t, err)
	assert.Equal(t, "", empty.Display())

	cell, err := tbl.Cell(0, "res")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input(""))
	require.NoError(t, cell.Commit(Blur))
	assert.Equal(t, []Value{Null()}, got)
}

func TestSelectCell_CommitsOnChoice(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "lock")
	require.NoError(t, err)
	assert.Equal(t, "Maglock", cell.Display())

	assert.ErrorIs(t, cell.Choose("strike"), ErrNotEditing)

	cell.Begin()
	assert.ErrorIs(t, cell.Input("strike"), ErrWrongEditor)
	assert.ErrorIs(t, cell.Choose("padlock"), ErrUnknownOption)
	assert.Equal(t, Editing, cell.Mode())

	require.NoError(t, cell.Choose("strike"))
	assert.Equal(t, Display, cell.Mode())
	require.Len(t, rec.calls, 1)
	assert.Equal(t, updateCall{0, "lock", String("strike")}, rec.calls[0])
	assert.Equal(t, "Electric Strike", cell.Display())
}

func TestSelectCell_CloseWithoutChoiceIsNoop(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, door{ID: 5, Location: "Dock", Lock: ""})

	cell, err := tbl.Cell(0, "lock")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Commit(SelectClose))
	assert.Equal(t, Display, cell.Mode())
	assert.Empty(t, rec.calls)
}

func TestFailedUpdate_RollsBack(t *testing.T) {
	rec := &recorder{err: errors.New("store offline")}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(1, "location")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input("Penthouse"))
	require.NoError(t, cell.Commit(Confirm))

	assert.Equal(t, Display, cell.Mode())
	assert.Equal(t, "Roof", cell.Display())
	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0].Error(), "store offline")
}

func TestSort_TriStateAndSingleColumn(t *testing.T) {
	tbl := newDoorTable(t, &recorder{},
		door{ID: 1, Location: "b", Floor: 2},
		door{ID: 2, Location: "a", Floor: 10},
		door{ID: 3, Location: "c", Floor: 1},
	)

	ids := func() string {
		var parts []string
		for _, r := range tbl.View() {
			parts = append(parts, strconv.Itoa(r.Data.ID))
		}
		return strings.Join(parts, ",")
	}

	require.NoError(t, tbl.Sort("location"))
	assert.Equal(t, SortAscending, tbl.SortDirectionOf("location"))
	assert.Equal(t, "2,1,3", ids())

	require.NoError(t, tbl.Sort("location"))
	assert.Equal(t, SortDescending, tbl.SortDirectionOf("location"))
	assert.Equal(t, "3,1,2", ids())

	require.NoError(t, tbl.Sort("location"))
	assert.Equal(t, SortNone, tbl.SortDirectionOf("location"))
	assert.Equal(t, "1,2,3", ids())

	require.NoError(t, tbl.Sort("location"))
	require.NoError(t, tbl.Sort("floor"))
	assert.Equal(t, SortNone, tbl.SortDirectionOf("location"))
	assert.Equal(t, SortState{ColumnID: "floor", Direction: SortAscending}, tbl.SortState())
	assert.Equal(t, "3,1,2", ids(), "numeric, not lexical, order")
}

func TestSort_CaseSensitiveAndStable(t *testing.T) {
	tbl := newDoorTable(t, &recorder{},
		door{ID: 1, Location: "lobby"},
		door{ID: 2, Location: "Lobby"},
		door{ID: 3, Location: "Lobby"},
	)
	require.NoError(t, tbl.Sort("location"))
	view := tbl.View()
	assert.Equal(t, []int{2, 3, 1}, []int{view[0].Data.ID, view[1].Data.ID, view[2].Data.ID})
}

func TestSort_ActionColumn(t *testing.T) {
	tbl := newDoorTable(t, &recorder{}, sampleDoors()...)
	assert.ErrorIs(t, tbl.Sort("actions"), ErrNotSortable)
	assert.ErrorIs(t, tbl.Sort("missing"), ErrColumnNotFound)

	withCmp, err := New(Config[door]{
		Columns: []Column[door]{
			NewAction("actions", "", func(Row[door]) string { return "" },
				WithComparator(func(a, b door) int { return b.ID - a.ID })),
		},
		Key:      func(d door) string { return strconv.Itoa(d.ID) },
		OnUpdate: func(int, string, Value) error { return nil },
	})
	require.NoError(t, err)
	withCmp.SetRows(sampleDoors())
	require.NoError(t, withCmp.Sort("actions"))
	assert.Equal(t, 2, withCmp.View()[0].Data.ID)

	assert.Panics(t, func() {
		NewAction("actions", "", func(Row[door]) string { return "" },
			WithComparator(func(a, b string) int { return strings.Compare(a, b) }))
	})
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	tbl := newDoorTable(t, &recorder{},
		door{ID: 1, Location: "Conference Room 1"},
		door{ID: 2, Location: "Lobby"},
	)

	require.NoError(t, tbl.Search("conf room"))
	require.Len(t, tbl.View(), 1)
	assert.Equal(t, 1, tbl.View()[0].Data.ID)

	require.NoError(t, tbl.Search("LOBBY"))
	require.Len(t, tbl.View(), 1)
	assert.Equal(t, 2, tbl.View()[0].Data.ID)

	require.NoError(t, tbl.Search("room lobby"))
	assert.Empty(t, tbl.View())

	require.NoError(t, tbl.Search("zzz"))
	assert.Empty(t, tbl.View())

	require.NoError(t, tbl.Search(""))
	assert.Len(t, tbl.View(), 2)
}

func TestSearch_MatchesFormattedValue(t *testing.T) {
	rec := &recorder{}
	tbl, err := New(Config[door]{
		Columns:      doorColumns(),
		Key:          func(d door) string { return strconv.Itoa(d.ID) },
		SearchColumn: "lock",
		OnUpdate:     rec.update,
	})
	require.NoError(t, err)
	tbl.SetRows(sampleDoors())

	require.NoError(t, tbl.Search("electric"))
	require.Len(t, tbl.View(), 1)
	assert.Equal(t, 2, tbl.View()[0].Data.ID)
}

func TestFilteredView_ResolvesCurrentRow(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	require.NoError(t, tbl.Search("Roof"))
	require.Len(t, tbl.View(), 1)

	cell, err := tbl.Cell(0, "location")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input("Roof Hatch"))
	require.NoError(t, cell.Commit(Blur))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, 0, rec.calls[0].row)
	row, ok := tbl.RowAt(rec.calls[0].row)
	require.True(t, ok)
	assert.Equal(t, 2, row.Data.ID)
}

func TestCellIndex_FollowsSort(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "location")
	require.NoError(t, err)
	require.NoError(t, tbl.Sort("location"))
	require.NoError(t, tbl.Sort("location"))

	assert.Equal(t, 1, cell.RowIndex(), "Lobby moves to the bottom in descending order")

	cell.Begin()
	require.NoError(t, cell.Input("Atrium"))
	require.NoError(t, cell.Commit(Confirm))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, 1, rec.calls[0].row)
	row, _ := tbl.RowAt(1)
	assert.Equal(t, 1, row.Data.ID)
}

func TestIndexOf(t *testing.T) {
	tbl := newDoorTable(t, &recorder{}, sampleDoors()...)

	idx, ok := tbl.IndexOf("2")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	require.NoError(t, tbl.Sort("floor"))
	require.NoError(t, tbl.Sort("floor"))
	idx, _ = tbl.IndexOf("2")
	assert.Equal(t, 0, idx)

	require.NoError(t, tbl.Search("lobby"))
	_, ok = tbl.IndexOf("2")
	assert.False(t, ok, "filtered rows have no position")
}

func TestRefreshWhileEditing_KeepsDraft(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(0, "location")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input("Main Lobby"))

	rows := sampleDoors()
	rows[0].Location = "Front Lobby"
	tbl.SetRows(rows)

	assert.Equal(t, Editing, cell.Mode())
	assert.Equal(t, "Main Lobby", cell.InputText())
	assert.Equal(t, "Lobby", cell.Display())

	cell.Cancel()
	assert.Equal(t, "Front Lobby", cell.Display(), "held-back refresh applies once editing ends")
	assert.Empty(t, rec.calls)
}

func TestSearch_HidingEditingRowCancelsEdit(t *testing.T) {
	rec := &recorder{}
	tbl := newDoorTable(t, rec, sampleDoors()...)

	cell, err := tbl.Cell(1, "location")
	require.NoError(t, err)
	cell.Begin()
	require.NoError(t, cell.Input("Roof Hatch"))

	rows := sampleDoors()
	rows[1].Location = "Roof Deck"
	tbl.SetRows(rows)
	require.Equal(t, Editing, cell.Mode())

	require.NoError(t, tbl.Search("lobby"))
	assert.Equal(t, Display, cell.Mode())
	assert.Equal(t, -1, cell.RowIndex())
	assert.Equal(t, "Roof Deck", cell.Display(), "held-back refresh applies when the edit is dropped")
	assert.Empty(t, rec.calls)

	require.NoError(t, tbl.Search(""))
	again, err := tbl.Cell(1, "location")
	require.NoError(t, err)
	assert.True(t, again.Begin())
}

func TestCells_DroppedWhenRowDisappears(t *testing.T) {
	tbl := newDoorTable(t, &recorder{}, sampleDoors()...)
	first, err := tbl.Cell(1, "location")
	require.NoError(t, err)

	tbl.SetRows(sampleDoors()[:1])
	_, err = tbl.Cell(1, "location")
	assert.ErrorIs(t, err, ErrInvalidRow)

	tbl.SetRows(sampleDoors())
	again, err := tbl.Cell(1, "location")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}

func TestFormatterAndAffordance(t *testing.T) {
	tbl, err := New(Config[door]{
		Columns: []Column[door]{
			NewNumber("floor", "Floor", func(d door) int { return d.Floor },
				WithFormatter(func(v Value) string { return "Level " + v.String() }),
				WithHideEditIcon()),
		},
		Key:      func(d door) string { return strconv.Itoa(d.ID) },
		OnUpdate: func(int, string, Value) error { return nil },
	})
	require.NoError(t, err)
	tbl.SetRows(sampleDoors())

	cell, err := tbl.Cell(1, "floor")
	require.NoError(t, err)
	assert.Equal(t, "Level 12", cell.Display())
	assert.False(t, cell.ShowEditAffordance())
	assert.True(t, cell.Begin(), "hiding the icon does not disable editing")
	assert.Equal(t, "12", cell.InputText())
}

func TestValue_EqualityAndOrdering(t *testing.T) {
	assert.True(t, String("a") == String("a"))
	assert.False(t, String("1") == Number(1))
	assert.True(t, Null() == Value{})
	assert.Equal(t, -1, compareValues(Null(), String("")))
	assert.Equal(t, 1, compareValues(Number(10), Number(9)))
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "2.5", Number(2.5).String())

	v, err := FromAny(int64(7))
	require.NoError(t, err)
	assert.Equal(t, Number(7), v)
	_, err = FromAny([]string{"x"})
	assert.Error(t, err)
}

func TestParseTrigger(t *testing.T) {
	assert.Equal(t, Confirm, ParseTrigger("Enter"))
	assert.Equal(t, SelectClose, ParseTrigger("change"))
	assert.Equal(t, Blur, ParseTrigger(""))
}
