package setutil

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"int64", int64(7), "7"},
		{"int", 7, "7"},
		{"float64 whole", float64(7), "7"},
		{"json number", json.Number("7"), "7"},
		{"bytes", []byte("7"), "7"},
		{"string", "abc", "abc"},
		{"null int valid", sql.NullInt64{Int64: 7, Valid: true}, "7"},
		{"pointer", ptr(int64(9)), "9"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalKey(tt.value))
		})
	}
}

func TestCanonicalKey_StringMatchesNumber(t *testing.T) {
	assert.Equal(t, CanonicalKey(int64(1)), CanonicalKey("1"))
	assert.Equal(t, CanonicalKey(float64(1)), CanonicalKey([]byte("1")))
	assert.NotEqual(t, CanonicalKey(int64(1)), CanonicalKey("01"))
	// nil and the empty string collide, so null checks come first.
	assert.Equal(t, CanonicalKey(nil), CanonicalKey(""))
	assert.True(t, IsNull(nil))
	assert.False(t, IsNull(""))
}

func TestIsNull(t *testing.T) {
	var nilPtr *int64
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(nilPtr))
	assert.True(t, IsNull(sql.NullInt64{}))
	assert.False(t, IsNull(sql.NullInt64{Int64: 1, Valid: true}))
	assert.False(t, IsNull(int64(0)))
	assert.False(t, IsNull(""))
}

func TestDistinctKeys(t *testing.T) {
	values := []interface{}{int64(1), int64(2), nil, int64(1), float64(2), []byte("3")}
	assert.Equal(t, []interface{}{int64(1), int64(2), "3"}, DistinctKeys(values))
}

func TestDistinctKeys_Empty(t *testing.T) {
	assert.Empty(t, DistinctKeys(nil))
	assert.Empty(t, DistinctKeys([]interface{}{nil, nil}))
}

func TestChunk(t *testing.T) {
	values := []interface{}{1, 2, 3, 4, 5}

	assert.Nil(t, Chunk(nil, 2))
	assert.Equal(t, [][]interface{}{values}, Chunk(values, 0))
	assert.Equal(t, [][]interface{}{{1, 2}, {3, 4}, {5}}, Chunk(values, 2))
}

func ptr[T any](v T) *T {
	return &v
}
