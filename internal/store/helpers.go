// ABOUTME: SQL helper functions for partial updates and LIKE patterns.
// ABOUTME: Field allow-lists map API field names to columns and coerce values.

package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

type fieldKind int

const (
	textField fieldKind = iota
	intField
	realField
	nullableRealField
)

type field struct {
	column string
	kind   fieldKind
}

// fieldSet is the allow-list of updatable fields of one table, keyed by the
// name clients use (which is also the column id of the schedule tables).
type fieldSet map[string]field

// names returns the updatable field names in sorted order.
func (fs fieldSet) names() []string {
	names := make([]string, 0, len(fs))
	for name := range fs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (fs fieldSet) coerce(name string, v any) (field, any, error) {
	f, ok := fs[name]
	if !ok {
		return field{}, nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	switch f.kind {
	case textField:
		s, ok := v.(string)
		if !ok {
			return f, nil, fmt.Errorf("%w: %s must be text, got %T", ErrInvalidField, name, v)
		}
		return f, s, nil
	case intField:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) {
			return f, nil, fmt.Errorf("%w: %s must be a whole number", ErrInvalidField, name)
		}
		// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return f, nil, fmt.Errorf("%w: %s is out of range", ErrInvalidField, name)
		}
		return f, int64(n), nil
	case realField, nullableRealField:
		if v == nil {
			if f.kind == nullableRealField {
				return f, nil, nil
			}
			return f, nil, fmt.Errorf("%w: %s is required", ErrInvalidField, name)
		}
		n, ok := toFloat(v)
		if !ok {
			return f, nil, fmt.Errorf("%w: %s must be a number", ErrInvalidField, name)
		}
		return f, n, nil
	default:
		return f, nil, fmt.Errorf("%w: %s", ErrInvalidField, name)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), !math.IsNaN(float64(n)) && !math.IsInf(float64(n), 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// updateRow applies a partial update to one row. Every field is validated
// before anything is written.
func (s *Store) updateRow(ctx context.Context, table string, fs fieldSet, id int64, fields map[string]any) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		f, v, err := fs.coerce(name, fields[name])
		if err != nil {
			return err
		}
		sets = append(sets, f.column+" = ?")
		args = append(args, v)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

func (s *Store) deleteRow(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

// escapeSQLLike escapes SQL LIKE pattern special characters.
// The backslash must be escaped first to avoid double-escaping.
func escapeSQLLike(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "\\", "\\\\")
	pattern = strings.ReplaceAll(pattern, "%", "\\%")
	pattern = strings.ReplaceAll(pattern, "_", "\\_")
	return pattern
}
