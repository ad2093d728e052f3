// ABOUTME: Editable cell controller: the display/editing state machine of one cell.
// ABOUTME: Stages drafts, validates them per editor, and reports changed commits.

package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode is the state of a cell.
type Mode int

const (
	Display Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "display"
}

// Trigger is what ended an edit.
type Trigger int

const (
	// Blur is loss of focus.
	Blur Trigger = iota
	// Confirm is the explicit confirm key.
	Confirm
	// SelectClose is a select editor closing.
	SelectClose
)

func (t Trigger) String() string {
	switch t {
	case Blur:
		return "blur"
	case Confirm:
		return "confirm"
	case SelectClose:
		return "select-close"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseTrigger maps a UI event name to a Trigger. Unknown names are Blur.
func ParseTrigger(name string) Trigger {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "confirm", "enter":
		return Confirm
	case "select", "select-close", "change":
		return SelectClose
	default:
		return Blur
	}
}

// cellSpec is the per-column configuration a cell is built from.
type cellSpec struct {
	columnID     string
	editor       Editor
	options      []Option
	nullable     bool
	integer      bool
	formatter    func(Value) string
	hideEditIcon bool
}

// commitFunc receives a changed value when a cell commits.
type commitFunc func(rowIndex int, columnID string, v Value)

// Cell is the edit session of one (row, column) pair. Each cell owns its
// draft and mode; the committed value is written only through Refresh.
//
// A Cell is not safe for concurrent use.
type Cell struct {
	spec cellSpec

	rowIndex  int
	committed Value
	pending   *Value

	mode   Mode
	draft  Value
	raw    string
	errMsg string

	onCommit commitFunc
}

func newCell(spec cellSpec, rowIndex int, committed Value, onCommit commitFunc) *Cell {
	return &Cell{
		spec:      spec,
		rowIndex:  rowIndex,
		committed: committed,
		onCommit:  onCommit,
	}
}

func (c *Cell) ColumnID() string { return c.spec.columnID }
func (c *Cell) RowIndex() int    { return c.rowIndex }
func (c *Cell) Mode() Mode       { return c.mode }
func (c *Cell) Editor() Editor   { return c.spec.editor }
func (c *Cell) Committed() Value { return c.committed }

// ReadOnly reports whether the cell can never enter editing mode.
func (c *Cell) ReadOnly() bool { return c.spec.editor == EditorNone }

// Options returns the select choices, or nil for other editors.
func (c *Cell) Options() []Option { return append([]Option(nil), c.spec.options...) }

// Draft returns the staged value while editing.
func (c *Cell) Draft() (Value, bool) {
	if c.mode != Editing {
		return Null(), false
	}
	return c.draft, true
}

// InputText is the text an input editor shows: the raw draft while editing,
// otherwise the raw committed value.
func (c *Cell) InputText() string {
	if c.mode == Editing {
		return c.raw
	}
	return c.committed.String()
}

// ValidationError is the message of the last rejected commit, cleared when
// the cell leaves editing mode or the draft changes.
func (c *Cell) ValidationError() string { return c.errMsg }

// Display renders the committed value for display mode.
func (c *Cell) Display() string {
	if c.committed.IsNull() {
		return ""
	}
	if c.spec.formatter != nil {
		return c.spec.formatter(c.committed)
	}
	return c.committed.String()
}

// ShowEditAffordance reports whether display mode shows an edit icon.
func (c *Cell) ShowEditAffordance() bool {
	return c.mode == Display && !c.ReadOnly() && !c.spec.hideEditIcon
}

// Begin enters editing mode, seeding the draft from the committed value.
// It returns false and changes nothing for read-only cells.
func (c *Cell) Begin() bool {
	if c.ReadOnly() {
		return false
	}
	if c.mode == Editing {
		return true
	}
	c.mode = Editing
	c.draft = c.committed
	c.raw = c.committed.String()
	c.errMsg = ""
	return true
}

// Input stages raw text for text and number editors.
func (c *Cell) Input(raw string) error {
	if c.mode != Editing {
		return ErrNotEditing
	}
	if c.spec.editor == EditorSelect {
		return fmt.Errorf("%w: select cells take Choose", ErrWrongEditor)
	}
	c.raw = raw
	c.errMsg = ""
	return nil
}

// Choose stages one of the select options and commits immediately.
func (c *Cell) Choose(value string) error {
	if c.mode != Editing {
		return ErrNotEditing
	}
	if c.spec.editor != EditorSelect {
		return fmt.Errorf("%w: only select cells take Choose", ErrWrongEditor)
	}
	if !c.hasOption(value) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, value)
	}
	c.draft = String(value)
	c.raw = value
	return c.Commit(SelectClose)
}

// Commit validates the draft and returns to display mode. The commit callback
// runs once, after the transition, only when the draft differs from the
// committed value. An invalid draft keeps the cell in editing mode.
// Committing a cell that is not editing is a no-op.
func (c *Cell) Commit(trigger Trigger) error {
	if c.mode != Editing {
		return nil
	}

	draft, err := c.parseDraft()
	if err != nil {
		c.errMsg = err.Error()
		return fmt.Errorf("%w: %s: %v", ErrInvalidDraft, c.spec.columnID, err)
	}

	changed := draft != c.committed
	rowIndex := c.rowIndex
	c.leaveEditing()

	if changed && c.onCommit != nil {
		c.onCommit(rowIndex, c.spec.columnID, draft)
	}
	return nil
}

// Cancel discards the draft without reporting anything.
func (c *Cell) Cancel() {
	if c.mode != Editing {
		return
	}
	c.leaveEditing()
}

// Refresh delivers the upstream value and current row position. While the
// cell is editing, the value is held back until the edit ends so an in-flight
// draft is never overwritten.
func (c *Cell) Refresh(committed Value, rowIndex int) {
	c.rowIndex = rowIndex
	if c.mode == Editing {
		v := committed
		c.pending = &v
		return
	}
	c.committed = committed
}

func (c *Cell) leaveEditing() {
	c.mode = Display
	c.draft = Null()
	c.raw = ""
	c.errMsg = ""
	if c.pending != nil {
		c.committed = *c.pending
		c.pending = nil
	}
}

func (c *Cell) parseDraft() (Value, error) {
	switch c.spec.editor {
	case EditorText:
		return String(c.raw), nil
	case EditorNumber:
		s := strings.TrimSpace(c.raw)
		if s == "" {
			if c.spec.nullable {
				return Null(), nil
			}
			return Null(), fmt.Errorf("a number is required")
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Null(), fmt.Errorf("%q is not a number", s)
		}
		if c.spec.integer {
			if n != math.Trunc(n) {
				return Null(), fmt.Errorf("%q is not a whole number", s)
			}
			if n < math.MinInt64 || n >= math.MaxInt64 {
				return Null(), fmt.Errorf("%q is out of range", s)
			}
		}
		return Number(n), nil
	case EditorSelect:
		if c.draft != c.committed && !c.hasOption(c.draft.String()) {
			return Null(), fmt.Errorf("%q is not an option", c.draft.String())
		}
		return c.draft, nil
	default:
		return Null(), fmt.Errorf("column is read-only")
	}
}

func (c *Cell) hasOption(value string) bool {
	for _, opt := range c.spec.options {
		if opt.Value == value {
			return true
		}
	}
	return false
}
