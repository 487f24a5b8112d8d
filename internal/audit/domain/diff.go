package domain

import (
	"fmt"
	"reflect"
	"time"
)

// Diff compares the scalar fields present in both snapshots and returns the
// ones whose values differ. A key missing from either side is skipped, so an
// absent field never reads as a change to or from null.
func Diff(before, after Snapshot) Changes {
	changes := Changes{}
	for field, oldRaw := range before {
		newRaw, ok := after[field]
		if !ok {
			continue
		}
		oldVal, oldScalar := normalize(oldRaw)
		newVal, newScalar := normalize(newRaw)
		if !oldScalar || !newScalar {
			continue
		}
		if !equal(oldVal, newVal) {
			changes[field] = Change{Old: oldVal, New: newVal}
		}
	}
	return changes
}

// normalize dereferences pointers and folds numeric kinds into int64 or
// float64. Stringers (snowflake ids, enums) compare by their string form.
func normalize(v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return nil, true
		}
		return t.UTC(), true
	case string, bool:
		return t, true
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, true
		}
		return t.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, true
		}
		return normalize(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	}
	return nil, false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
		return false
	}
	return a == b
}
