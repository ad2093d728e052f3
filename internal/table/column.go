// ABOUTME: Declarative column model for editable tables.
// ABOUTME: Columns are a closed set of variants built from typed accessors.

package table

import "fmt"

// Editor is the widget a column edits with.
type Editor int

const (
	// EditorNone marks columns that never enter editing mode.
	EditorNone Editor = iota
	EditorText
	EditorNumber
	EditorSelect
)

func (e Editor) String() string {
	switch e {
	case EditorNone:
		return "none"
	case EditorText:
		return "text"
	case EditorNumber:
		return "number"
	case EditorSelect:
		return "select"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// Option is one choice of a select column.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Column describes one displayed attribute of T.
//
// The set of implementations is closed: TextColumn, NumberColumn,
// SelectColumn, ReadOnlyColumn and ActionColumn.
type Column[T any] interface {
	ID() string
	Header() string
	ClassName() string
	sealed()
}

// valueColumn is implemented by every column that reads a value from T.
type valueColumn[T any] interface {
	Column[T]
	value(T) Value
	format(Value) string
	cellSpec() cellSpec
}

type base struct {
	id        string
	header    string
	className string
}

func (b base) ID() string        { return b.id }
func (b base) Header() string    { return b.header }
func (b base) ClassName() string { return b.className }
func (base) sealed()             {}

type settings struct {
	formatter    func(Value) string
	hideEditIcon bool
	className    string
	comparator   any
}

// ColumnOption customises a column at construction.
type ColumnOption func(*settings)

// WithFormatter sets the display formatter. It is applied only when the cell
// is not being edited.
func WithFormatter(f func(Value) string) ColumnOption {
	return func(s *settings) { s.formatter = f }
}

// WithHideEditIcon hides the edit affordance without disabling editing.
func WithHideEditIcon() ColumnOption {
	return func(s *settings) { s.hideEditIcon = true }
}

// WithClassName attaches a layout hint for renderers.
func WithClassName(name string) ColumnOption {
	return func(s *settings) { s.className = name }
}

// WithComparator makes an action column sortable. It has no effect on
// accessor columns, which always sort by value. NewAction panics when T does
// not match the column's row type.
func WithComparator[T any](cmp func(a, b T) int) ColumnOption {
	return func(s *settings) { s.comparator = cmp }
}

func applyOptions(opts []ColumnOption) settings {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func formatWith(f func(Value) string, v Value) string {
	if v.IsNull() {
		return ""
	}
	if f != nil {
		return f(v)
	}
	return v.String()
}

// TextColumn edits a string field with a free-text input.
type TextColumn[T any] struct {
	base
	get          func(T) string
	formatter    func(Value) string
	hideEditIcon bool
}

// NewText builds a text column over a string accessor.
func NewText[T any](id, header string, get func(T) string, opts ...ColumnOption) *TextColumn[T] {
	s := applyOptions(opts)
	return &TextColumn[T]{
		base:         base{id: id, header: header, className: s.className},
		get:          get,
		formatter:    s.formatter,
		hideEditIcon: s.hideEditIcon,
	}
}

func (c *TextColumn[T]) value(row T) Value     { return String(c.get(row)) }
func (c *TextColumn[T]) format(v Value) string { return formatWith(c.formatter, v) }
func (c *TextColumn[T]) cellSpec() cellSpec {
	return cellSpec{columnID: c.id, editor: EditorText, formatter: c.format, hideEditIcon: c.hideEditIcon}
}

// Numeric is the set of accessor result types a NumberColumn accepts.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// NumberColumn edits a numeric field. Non-numeric input is rejected.
type NumberColumn[T any] struct {
	base
	get          func(T) Value
	nullable     bool
	integer      bool
	formatter    func(Value) string
	hideEditIcon bool
}

// isInteger reports whether N truncates fractions.
func isInteger[N Numeric]() bool {
	half := 0.5
	return N(half) == 0
}

// NewNumber builds a number column over a numeric accessor. Empty input is
// invalid.
func NewNumber[T any, N Numeric](id, header string, get func(T) N, opts ...ColumnOption) *NumberColumn[T] {
	s := applyOptions(opts)
	return &NumberColumn[T]{
		base:         base{id: id, header: header, className: s.className},
		get:          func(row T) Value { return Number(float64(get(row))) },
		integer:      isInteger[N](),
		formatter:    s.formatter,
		hideEditIcon: s.hideEditIcon,
	}
}

// NewOptionalNumber builds a number column over a nullable accessor. Empty
// input commits null.
func NewOptionalNumber[T any, N Numeric](id, header string, get func(T) *N, opts ...ColumnOption) *NumberColumn[T] {
	s := applyOptions(opts)
	return &NumberColumn[T]{
		base: base{id: id, header: header, className: s.className},
		get: func(row T) Value {
			n := get(row)
			if n == nil {
				return Null()
			}
			return Number(float64(*n))
		},
		nullable:     true,
		integer:      isInteger[N](),
		formatter:    s.formatter,
		hideEditIcon: s.hideEditIcon,
	}
}

func (c *NumberColumn[T]) value(row T) Value     { return c.get(row) }
func (c *NumberColumn[T]) format(v Value) string { return formatWith(c.formatter, v) }
func (c *NumberColumn[T]) cellSpec() cellSpec {
	return cellSpec{columnID: c.id, editor: EditorNumber, nullable: c.nullable, integer: c.integer, formatter: c.format, hideEditIcon: c.hideEditIcon}
}

// SelectColumn edits a string field constrained to a fixed option list.
type SelectColumn[T any] struct {
	base
	get          func(T) string
	options      []Option
	formatter    func(Value) string
	hideEditIcon bool
}

// NewSelect builds a select column. Without a formatter, values display as
// their option label.
func NewSelect[T any](id, header string, get func(T) string, options []Option, opts ...ColumnOption) *SelectColumn[T] {
	s := applyOptions(opts)
	c := &SelectColumn[T]{
		base:         base{id: id, header: header, className: s.className},
		get:          get,
		options:      append([]Option(nil), options...),
		formatter:    s.formatter,
		hideEditIcon: s.hideEditIcon,
	}
	if c.formatter == nil {
		c.formatter = c.label
	}
	return c
}

// Options returns the column's choices in display order.
func (c *SelectColumn[T]) Options() []Option { return append([]Option(nil), c.options...) }

// Choice returns the row's raw value for this column.
func (c *SelectColumn[T]) Choice(row T) string { return c.get(row) }

// Accepts reports whether value is one of the options. The empty value means
// unset and is always accepted.
func (c *SelectColumn[T]) Accepts(value string) bool {
	if value == "" {
		return true
	}
	for _, opt := range c.options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func (c *SelectColumn[T]) label(v Value) string {
	for _, opt := range c.options {
		if opt.Value == v.String() {
			return opt.Label
		}
	}
	return v.String()
}

func (c *SelectColumn[T]) value(row T) Value     { return String(c.get(row)) }
func (c *SelectColumn[T]) format(v Value) string { return formatWith(c.formatter, v) }
func (c *SelectColumn[T]) cellSpec() cellSpec {
	return cellSpec{columnID: c.id, editor: EditorSelect, options: c.options, formatter: c.format, hideEditIcon: c.hideEditIcon}
}

// ReadOnlyColumn displays and sorts a value but never edits it.
type ReadOnlyColumn[T any] struct {
	base
	get       func(T) Value
	formatter func(Value) string
}

func NewReadOnly[T any](id, header string, get func(T) Value, opts ...ColumnOption) *ReadOnlyColumn[T] {
	s := applyOptions(opts)
	return &ReadOnlyColumn[T]{
		base:      base{id: id, header: header, className: s.className},
		get:       get,
		formatter: s.formatter,
	}
}

func (c *ReadOnlyColumn[T]) value(row T) Value     { return c.get(row) }
func (c *ReadOnlyColumn[T]) format(v Value) string { return formatWith(c.formatter, v) }
func (c *ReadOnlyColumn[T]) cellSpec() cellSpec {
	return cellSpec{columnID: c.id, editor: EditorNone, formatter: c.format}
}

// ActionColumn is display-only (buttons, links). It has no accessor, never
// edits, and sorts only with an explicit comparator.
type ActionColumn[T any] struct {
	base
	render     func(Row[T]) string
	comparator func(a, b T) int
}

func NewAction[T any](id, header string, render func(Row[T]) string, opts ...ColumnOption) *ActionColumn[T] {
	s := applyOptions(opts)
	c := &ActionColumn[T]{
		base:   base{id: id, header: header, className: s.className},
		render: render,
	}
	if s.comparator != nil {
		cmp, ok := s.comparator.(func(a, b T) int)
		if !ok {
			panic(fmt.Sprintf("table: column %q: comparator %T does not compare %T rows", id, s.comparator, *new(T)))
		}
		c.comparator = cmp
	}
	return c
}

// Render produces the column's content for a row.
func (c *ActionColumn[T]) Render(row Row[T]) string {
	if c.render == nil {
		return ""
	}
	return c.render(row)
}

// EditorOf reports the editor widget for a column.
func EditorOf[T any](col Column[T]) Editor {
	switch c := col.(type) {
	case *TextColumn[T]:
		return EditorText
	case *NumberColumn[T]:
		return EditorNumber
	case *SelectColumn[T]:
		return EditorSelect
	case *ReadOnlyColumn[T], *ActionColumn[T]:
		return EditorNone
	default:
		panic(fmt.Sprintf("table: unknown column variant %T", c))
	}
}

// Sortable reports whether Sort accepts the column.
func Sortable[T any](col Column[T]) bool {
	switch c := col.(type) {
	case *ActionColumn[T]:
		return c.comparator != nil
	case valueColumn[T]:
		return true
	default:
		panic(fmt.Sprintf("table: unknown column variant %T", c))
	}
}
