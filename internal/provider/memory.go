package provider

import (
	"context"
	"sync"

	"virtualassoc/internal/assoc"
	"virtualassoc/internal/setutil"
)

// Memory serves objects held in process, indexed by a key selector.
type Memory struct {
	mu       sync.RWMutex
	selector assoc.KeySelector
	objects  []any
}

// NewMemory creates a source over objs. Objects without a key are kept but
// never returned.
func NewMemory(selector assoc.KeySelector, objs ...any) *Memory {
	return &Memory{
		selector: selector,
		objects:  append([]any(nil), objs...),
	}
}

// Add appends objects to the source.
func (m *Memory) Add(objs ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = append(m.objects, objs...)
}

// Fetch returns every object whose key equals one of keys, in storage order.
func (m *Memory) Fetch(ctx context.Context, keys []any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if setutil.IsNull(key) {
			continue
		}
		wanted[setutil.CanonicalKey(key)] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]any, 0, len(wanted))
	for _, obj := range m.objects {
		key, ok := m.selector.Key(obj)
		if !ok || setutil.IsNull(key) {
			continue
		}
		if _, hit := wanted[setutil.CanonicalKey(key)]; hit {
			out = append(out, obj)
		}
	}
	return out, nil
}
