// Package setutil provides canonical key encoding and deduplication helpers for
// foreign-key values gathered from loaded records.
package setutil

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// IsNull reports whether a key value should be treated as SQL NULL.
// nil, nil pointers and driver.Valuer values that report nil are null.
func IsNull(value interface{}) bool {
	if value == nil {
		return true
	}
	if valuer, ok := value.(driver.Valuer); ok {
		v, err := valuer.Value()
		return err == nil && v == nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// Unwrap returns the underlying value for driver.Valuer and pointer keys.
func Unwrap(value interface{}) interface{} {
	if IsNull(value) {
		return nil
	}
	if valuer, ok := value.(driver.Valuer); ok {
		if v, err := valuer.Value(); err == nil {
			return v
		}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		return Unwrap(rv.Elem().Interface())
	}
	return value
}

// CanonicalKey encodes a key value so that equal identifiers compare equal
// regardless of the Go type the driver or decoder produced.
// int64(7), float64(7), json.Number("7") and []byte("7") all encode to "7".
// Strings are not tagged, so the string "7" also equals int64(7): identifiers
// arriving as query parameters or JSON text match their numeric column values.
// nil encodes to "" and callers must check IsNull before comparing keys.
func CanonicalKey(value interface{}) string {
	switch v := Unwrap(value).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// DistinctKeys returns the non-null values in first-seen order with duplicates
// (by canonical key) removed.
func DistinctKeys(values []interface{}) []interface{} {
	seen := make(map[string]struct{}, len(values))
	out := make([]interface{}, 0, len(values))

	for _, raw := range values {
		if IsNull(raw) {
			continue
		}
		value := Unwrap(raw)
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		key := CanonicalKey(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}

	return out
}

// Chunk splits values into slices of at most max elements. A non-positive max
// returns a single chunk.
func Chunk(values []interface{}, max int) [][]interface{} {
	if len(values) == 0 {
		return nil
	}
	if max <= 0 || len(values) <= max {
		return [][]interface{}{values}
	}
	chunks := make([][]interface{}, 0, (len(values)+max-1)/max)
	for start := 0; start < len(values); start += max {
		end := start + max
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
