package assoc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type special struct {
	ID int64
}

type fetchRecorder struct {
	mu    sync.Mutex
	calls [][]any
	fn    func(keys []any) ([]any, error)
}

func (f *fetchRecorder) fetch(_ context.Context, keys []any) ([]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]any(nil), keys...))
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(keys)
	}
	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, special{ID: key.(int64)})
	}
	return out, nil
}

func (f *fetchRecorder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRecordType(t *testing.T, recorder *fetchRecorder, opts ...Option) (*Registry, *Type) {
	t.Helper()

	typ := NewType("test_record", "id", "name", "special_id")
	if recorder != nil {
		typ.SetBatchFetch("special", recorder.fetch)
	}
	registry := NewRegistry()
	_, err := registry.Declare(typ, "special", "special_id", Field("id"), opts...)
	require.NoError(t, err)
	return registry, typ
}

func newRows(typ RecordType, specialIDs ...any) []Record {
	records := make([]Record, 0, len(specialIDs))
	for i, sid := range specialIDs {
		records = append(records, NewRow(typ, map[string]any{
			"id":         int64(i + 1),
			"name":       "name",
			"special_id": sid,
		}))
	}
	return records
}

func included(t *testing.T, rec Record, name string) any {
	t.Helper()
	obj, ok := rec.Included(name)
	require.True(t, ok, "association %s was not resolved", name)
	return obj
}

type countingObserver struct {
	mu      sync.Mutex
	fetches int
	keys    int
	missing int
	records int
}

func (o *countingObserver) BatchFetched(_ context.Context, _, _ string, keys, _ int, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches++
	o.keys += keys
}

func (o *countingObserver) RecordsResolved(_ context.Context, _, _ string, records int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records += records
}

func (o *countingObserver) Missing(_ context.Context, _, _ string, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.missing++
}
