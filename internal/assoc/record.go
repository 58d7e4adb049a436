package assoc

import (
	"context"
	"sync"
)

// FetchFunc resolves a list of distinct keys to external objects in one call.
// Objects may be returned in any order; keys with no object are simply absent.
type FetchFunc func(ctx context.Context, keys []any) ([]any, error)

// RecordType is the capability a host record type exposes to the registry
// and the resolver.
type RecordType interface {
	// Name identifies the type. Registry entries are keyed by it.
	Name() string
	// HasAttribute reports whether attr is a gettable and settable attribute.
	HasAttribute(attr string) bool
	// BatchFetch returns the bulk fetch method for an association.
	BatchFetch(association string) (FetchFunc, bool)
}

// Record is a loaded entity whose association slots the resolver writes.
type Record interface {
	RecordType() RecordType
	// Attr returns the attribute value; nil means NULL or unset.
	Attr(name string) any
	SetAttr(name string, value any)
	// Included returns the resolved object for an association. ok is false
	// when the association has never been resolved on this record.
	Included(association string) (obj any, ok bool)
	SetIncluded(association string, obj any)
}

// Type is a RecordType backed by an ordered attribute list.
type Type struct {
	name       string
	attributes []string
	attrIndex  map[string]struct{}

	mu       sync.RWMutex
	fetchers map[string]FetchFunc
}

// NewType creates a record type with the given attributes.
func NewType(name string, attributes ...string) *Type {
	t := &Type{
		name:      name,
		attrIndex: make(map[string]struct{}, len(attributes)),
		fetchers:  make(map[string]FetchFunc),
	}
	for _, attr := range attributes {
		if _, ok := t.attrIndex[attr]; ok {
			continue
		}
		t.attrIndex[attr] = struct{}{}
		t.attributes = append(t.attributes, attr)
	}
	return t
}

func (t *Type) Name() string {
	return t.name
}

func (t *Type) HasAttribute(attr string) bool {
	_, ok := t.attrIndex[attr]
	return ok
}

// Attributes returns the attributes in declaration order.
func (t *Type) Attributes() []string {
	return append([]string(nil), t.attributes...)
}

// SetBatchFetch defines the bulk fetch method for an association.
func (t *Type) SetBatchFetch(association string, fn FetchFunc) *Type {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fn == nil {
		delete(t.fetchers, association)
		return t
	}
	t.fetchers[association] = fn
	return t
}

func (t *Type) BatchFetch(association string) (FetchFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fn, ok := t.fetchers[association]
	return fn, ok
}

// Row is a map-backed Record.
type Row struct {
	typ      RecordType
	attrs    map[string]any
	included map[string]any
}

// NewRow creates a record of typ holding a copy of attrs.
func NewRow(typ RecordType, attrs map[string]any) *Row {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &Row{typ: typ, attrs: copied}
}

func (r *Row) RecordType() RecordType {
	return r.typ
}

func (r *Row) Attr(name string) any {
	return r.attrs[name]
}

func (r *Row) SetAttr(name string, value any) {
	r.attrs[name] = value
}

func (r *Row) Included(association string) (any, bool) {
	obj, ok := r.included[association]
	return obj, ok
}

func (r *Row) SetIncluded(association string, obj any) {
	if r.included == nil {
		r.included = make(map[string]any)
	}
	r.included[association] = obj
}

// Values returns the attributes merged with every resolved association.
// Associations shadow attributes of the same name.
func (r *Row) Values() map[string]any {
	out := make(map[string]any, len(r.attrs)+len(r.included))
	for k, v := range r.attrs {
		out[k] = v
	}
	for k, v := range r.included {
		out[k] = v
	}
	return out
}
