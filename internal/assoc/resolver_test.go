package assoc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestResolver_SingleRecord(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)
	records := newRows(typ, int64(1))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	assert.Equal(t, special{ID: 1}, included(t, records[0], "special"))
	assert.True(t, resolver.Loaded())
}

func TestResolver_DeduplicatesKeys(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)
	records := newRows(typ, int64(1), int64(2), int64(1))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	require.Equal(t, 1, recorder.callCount())
	assert.ElementsMatch(t, []any{int64(1), int64(2)}, recorder.calls[0])
	assert.Equal(t, special{ID: 1}, included(t, records[0], "special"))
	assert.Equal(t, special{ID: 2}, included(t, records[1], "special"))
	assert.Equal(t, special{ID: 1}, included(t, records[2], "special"))
}

func TestResolver_ManyRecordsSingleFetch(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)

	ids := make([]any, 0, 100)
	for i := 0; i < 100; i++ {
		ids = append(ids, int64(i%4+1))
	}
	records := newRows(typ, ids...)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	require.Equal(t, 1, recorder.callCount())
	assert.Len(t, recorder.calls[0], 4)
}

func TestResolver_Idempotent(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)
	records := newRows(typ, int64(1), int64(2))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	assert.Equal(t, 1, recorder.callCount())
}

func TestResolver_InvalidateTriggersFreshFetch(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), newRows(typ, int64(1), int64(2))))

	resolver.Invalidate()
	assert.False(t, resolver.Loaded())

	subset := newRows(typ, int64(1))
	require.NoError(t, resolver.OnMaterialize(context.Background(), subset))

	require.Equal(t, 2, recorder.callCount())
	assert.Equal(t, []any{int64(1)}, recorder.calls[1])
	assert.Equal(t, special{ID: 1}, included(t, subset[0], "special"))
}

func TestResolver_EmptyRecordsNeverFetch(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, _ := newTestRecordType(t, recorder)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), nil))

	assert.Equal(t, 0, recorder.callCount())
}

func TestResolver_NothingRequestedIsNoop(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)

	resolver := NewResolver(registry)
	require.NoError(t, resolver.OnMaterialize(context.Background(), newRows(typ, int64(1))))

	assert.Equal(t, 0, recorder.callCount())
	assert.False(t, resolver.Loaded())
}

func TestResolver_NullForeignKeysSkipped(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)
	records := newRows(typ, nil, int64(2))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	require.Equal(t, 1, recorder.callCount())
	assert.Equal(t, []any{int64(2)}, recorder.calls[0])
	assert.Nil(t, included(t, records[0], "special"))
	assert.Equal(t, special{ID: 2}, included(t, records[1], "special"))
}

func TestResolver_AllNullKeysSkipFetch(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), newRows(typ, nil, nil)))

	assert.Equal(t, 0, recorder.callCount())
	assert.True(t, resolver.Loaded())
}

func TestResolver_MissingFetchMethod(t *testing.T) {
	registry, typ := newTestRecordType(t, nil)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	err = resolver.OnMaterialize(context.Background(), newRows(typ, int64(1)))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "must define a batch fetch method for special")
	assert.False(t, resolver.Loaded())
}

func TestResolver_UndeclaredAssociation(t *testing.T) {
	recorder := &fetchRecorder{}
	typ := NewType("base_record", "id", "special_id")
	typ.SetBatchFetch("special", recorder.fetch)

	resolver, err := NewResolver(NewRegistry()).Request("special")
	require.NoError(t, err)
	err = resolver.OnMaterialize(context.Background(), newRows(typ, int64(1)))

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 0, recorder.callCount())
}

func TestResolver_ObjectWithoutSelector(t *testing.T) {
	recorder := &fetchRecorder{}
	typ := NewType("invalid_obj_id", "id", "special_id")
	typ.SetBatchFetch("special", recorder.fetch)
	registry := NewRegistry()
	_, err := registry.Declare(typ, "special", "special_id", Field("fake_id"))
	require.NoError(t, err)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	err = resolver.OnMaterialize(context.Background(), newRows(typ, int64(1)))

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "fake_id")
}

func TestResolver_MissingMatchRaises(t *testing.T) {
	recorder := &fetchRecorder{fn: func([]any) ([]any, error) {
		return []any{special{ID: 1}, special{ID: 2}}, nil
	}}
	registry, typ := newTestRecordType(t, recorder)
	records := newRows(typ, int64(1), int64(3))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	err = resolver.OnMaterialize(context.Background(), records)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
	assert.False(t, resolver.Loaded())

	_, resolved := records[0].Included("special")
	assert.False(t, resolved, "no slot is written for an association that failed")
}

func TestResolver_MissingMatchAllowed(t *testing.T) {
	recorder := &fetchRecorder{fn: func([]any) ([]any, error) {
		return []any{special{ID: 1}}, nil
	}}
	registry, typ := newTestRecordType(t, recorder, RaiseOnMissing(false))
	records := newRows(typ, int64(1), int64(3))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	assert.Equal(t, special{ID: 1}, included(t, records[0], "special"))
	assert.Nil(t, included(t, records[1], "special"))
	assert.True(t, resolver.Loaded())
}

func TestResolver_DuplicateFetchedKeysLastWins(t *testing.T) {
	first := map[string]any{"id": int64(1), "v": "first"}
	second := map[string]any{"id": int64(1), "v": "second"}
	recorder := &fetchRecorder{fn: func([]any) ([]any, error) {
		return []any{first, second}, nil
	}}
	typ := NewType("dup", "special_id")
	typ.SetBatchFetch("special", recorder.fetch)
	registry := NewRegistry()
	_, err := registry.Declare(typ, "special", "special_id", Field("id"))
	require.NoError(t, err)
	records := newRows(typ, int64(1))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	assert.Equal(t, second, included(t, records[0], "special"))
}

func TestResolver_FetchErrorPropagates(t *testing.T) {
	boom := errors.New("upstream unavailable")
	recorder := &fetchRecorder{fn: func([]any) ([]any, error) { return nil, boom }}
	registry, typ := newTestRecordType(t, recorder)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)

	err = resolver.OnMaterialize(context.Background(), newRows(typ, int64(1)))
	assert.ErrorIs(t, err, boom)
	assert.False(t, resolver.Loaded())

	// A retry runs the whole resolution again.
	recorder.fn = nil
	require.NoError(t, resolver.OnMaterialize(context.Background(), newRows(typ, int64(1))))
	assert.Equal(t, 2, recorder.callCount())
	assert.True(t, resolver.Loaded())
}

func TestResolver_KeysMatchAcrossNumericTypes(t *testing.T) {
	recorder := &fetchRecorder{fn: func(keys []any) ([]any, error) {
		return []any{map[string]any{"id": float64(7)}}, nil
	}}
	registry, typ := newTestRecordType(t, recorder)
	records := newRows(typ, int64(7))

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))

	assert.Equal(t, map[string]any{"id": float64(7)}, included(t, records[0], "special"))
}

func TestResolver_MultipleAssociations(t *testing.T) {
	specials := &fetchRecorder{}
	owners := &fetchRecorder{fn: func(keys []any) ([]any, error) {
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, map[string]any{"login": k})
		}
		return out, nil
	}}
	typ := NewType("post", "id", "special_id", "owner_login")
	typ.SetBatchFetch("special", specials.fetch)
	typ.SetBatchFetch("owner", owners.fetch)
	registry := NewRegistry()
	_, err := registry.Declare(typ, "special", "special_id", Field("id"))
	require.NoError(t, err)
	_, err = registry.Declare(typ, "owner", "owner_login", Field("login"))
	require.NoError(t, err)

	records := []Record{
		NewRow(typ, map[string]any{"id": int64(1), "special_id": int64(5), "owner_login": "ada"}),
		NewRow(typ, map[string]any{"id": int64(2), "special_id": int64(5), "owner_login": "bob"}),
	}

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	resolver, err = resolver.Request("owner", "special")
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "special"}, resolver.Requested())

	require.NoError(t, resolver.OnMaterialize(context.Background(), records))
	assert.Equal(t, 1, specials.callCount())
	assert.Equal(t, 1, owners.callCount())
	assert.Equal(t, map[string]any{"login": "bob"}, included(t, records[1], "owner"))
}

func TestResolver_RequestValidation(t *testing.T) {
	base := NewResolver(NewRegistry())

	_, err := base.Request()
	assert.ErrorIs(t, err, ErrArgument)

	_, err = base.Request("special", " ")
	assert.ErrorIs(t, err, ErrArgument)
}

func TestResolver_RequestIsPure(t *testing.T) {
	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)

	base := NewResolver(registry)
	view, err := base.Request("special")
	require.NoError(t, err)
	require.NoError(t, view.OnMaterialize(context.Background(), newRows(typ, int64(1))))

	assert.Empty(t, base.Requested())
	assert.False(t, base.Loaded())

	derived := view.Clone()
	assert.Equal(t, []string{"special"}, derived.Requested())
	assert.False(t, derived.Loaded())
}

func TestResolver_ReportsToObserver(t *testing.T) {
	recorder := &fetchRecorder{fn: func([]any) ([]any, error) {
		return []any{special{ID: 1}}, nil
	}}
	registry, typ := newTestRecordType(t, recorder, RaiseOnMissing(false))
	obs := &countingObserver{}

	resolver, err := NewResolver(registry, WithObserver(obs)).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), newRows(typ, int64(1), int64(1), int64(2))))

	assert.Equal(t, 1, obs.fetches)
	assert.Equal(t, 2, obs.keys)
	assert.Equal(t, 1, obs.missing)
	assert.Equal(t, 3, obs.records)
}

func TestResolver_EmitsSpan(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})

	recorder := &fetchRecorder{}
	registry, typ := newTestRecordType(t, recorder)
	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), newRows(typ, int64(1))))

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "assoc.resolve", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "special", attrs["assoc.name"])
	assert.Equal(t, "success", attrs["assoc.outcome"])
	assert.Equal(t, "1", attrs["assoc.keys"])
}

func TestResolver_NilFetchedKeyNeverMatches(t *testing.T) {
	ghost := map[string]any{"id": nil, "v": "ghost"}
	recorder := &fetchRecorder{fn: func([]any) ([]any, error) {
		return []any{ghost}, nil
	}}
	registry, typ := newTestRecordType(t, recorder)
	records := newRows(typ, "")

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)
	err = resolver.OnMaterialize(context.Background(), records)
	assert.ErrorIs(t, err, ErrNotFound)

	lenient, lenientType := newTestRecordType(t, recorder, RaiseOnMissing(false))
	records = newRows(lenientType, "")
	resolver, err = NewResolver(lenient).Request("special")
	require.NoError(t, err)
	require.NoError(t, resolver.OnMaterialize(context.Background(), records))
	assert.Nil(t, included(t, records[0], "special"))
}

func TestResolver_NilPointerFetchedObject(t *testing.T) {
	recorder := &fetchRecorder{fn: func([]any) ([]any, error) {
		return []any{(*special)(nil)}, nil
	}}
	registry, typ := newTestRecordType(t, recorder)

	resolver, err := NewResolver(registry).Request("special")
	require.NoError(t, err)

	var materializeErr error
	require.NotPanics(t, func() {
		materializeErr = resolver.OnMaterialize(context.Background(), newRows(typ, int64(1)))
	})
	assert.ErrorIs(t, materializeErr, ErrConfiguration)
}

func TestResolver_EarlierAssociationsKeptOnNotFound(t *testing.T) {
	alphas := &fetchRecorder{fn: func(keys []any) ([]any, error) {
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, map[string]any{"id": k})
		}
		return out, nil
	}}
	betas := &fetchRecorder{fn: func([]any) ([]any, error) { return nil, nil }}
	typ := NewType("pair", "id", "a_id", "b_id")
	typ.SetBatchFetch("a", alphas.fetch)
	typ.SetBatchFetch("b", betas.fetch)
	registry := NewRegistry()
	_, err := registry.Declare(typ, "a", "a_id", Field("id"))
	require.NoError(t, err)
	_, err = registry.Declare(typ, "b", "b_id", Field("id"))
	require.NoError(t, err)

	records := []Record{NewRow(typ, map[string]any{"id": int64(1), "a_id": int64(10), "b_id": int64(20)})}

	resolver, err := NewResolver(registry).Request("a", "b")
	require.NoError(t, err)
	err = resolver.OnMaterialize(context.Background(), records)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, resolver.Loaded())
	assert.Equal(t, map[string]any{"id": int64(10)}, included(t, records[0], "a"))
	_, resolved := records[0].Included("b")
	assert.False(t, resolved)
}
