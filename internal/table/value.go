// ABOUTME: Primitive-or-null cell values shared by columns, cells, and tables.
// ABOUTME: Provides equality, display, parsing, and ordering for sortable columns.

package table

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies which primitive a Value holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Value is a cell value. The zero Value is null.
// Values are comparable with ==, which is the equality used to decide
// whether a commit changed anything.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int is shorthand for Number(float64(n)).
func Int(n int64) Value { return Number(float64(n)) }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload; empty unless Kind is KindString.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload; zero unless Kind is KindNumber.
func (v Value) Num() float64 { return v.num }

// BoolVal returns the bool payload; false unless Kind is KindBool.
func (v Value) BoolVal() bool { return v.b }

// String renders the raw value. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Any converts the value to a plain Go value suitable for JSON or SQL
// parameters: nil, string, float64, or bool.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// FromAny converts a decoded JSON or SQL value into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case Value:
		return t, nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", x)
	}
}

// compareValues orders two values for sorting. Nulls sort before everything
// else; numbers compare numerically; strings compare byte-wise (case
// sensitive, locale naive); mixed kinds fall back to kind order.
func compareValues(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	default:
		return 0
	}
}
