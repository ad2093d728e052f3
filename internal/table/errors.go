// ABOUTME: Sentinel errors for table construction, sorting and editing.

package table

import "errors"

// Configuration errors abort table construction.
var (
	ErrEmptyColumnID       = errors.New("column id is empty")
	ErrDuplicateColumn     = errors.New("duplicate column id")
	ErrNilColumn           = errors.New("column is nil")
	ErrNoKeyFunc           = errors.New("row key function is required")
	ErrNoUpdateFunc        = errors.New("update callback is required")
	ErrUnknownSearchColumn = errors.New("search column is not a value column of this table")
)

// Operation errors.
var (
	ErrColumnNotFound = errors.New("column not found")
	ErrInvalidRow     = errors.New("invalid row index")
	ErrNotSortable    = errors.New("column is not sortable")
	ErrNotEditable    = errors.New("column has no editable cell")
	ErrNoSearchColumn = errors.New("table has no search column")
)

// Cell errors.
var (
	ErrInvalidDraft  = errors.New("invalid draft value")
	ErrNotEditing    = errors.New("cell is not in editing mode")
	ErrWrongEditor   = errors.New("operation does not apply to this editor")
	ErrUnknownOption = errors.New("value is not one of the column options")
)
