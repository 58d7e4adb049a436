package assoc

import (
	"sort"
	"strings"
	"sync"
)

// Options holds per-association policy.
type Options struct {
	// RaiseOnMissing fails resolution when a non-null foreign key has no
	// fetched object. Defaults to true.
	RaiseOnMissing bool
}

// Option configures a declaration.
type Option func(*Options)

// RaiseOnMissing sets whether unmatched foreign keys fail resolution.
func RaiseOnMissing(raise bool) Option {
	return func(o *Options) {
		o.RaiseOnMissing = raise
	}
}

// Descriptor is an immutable association declaration.
type Descriptor struct {
	Type       string
	Name       string
	ForeignKey string
	Selector   KeySelector
	Options    Options
}

type registryKey struct {
	typeName    string
	association string
}

// Registry stores association descriptors keyed by (record type, name).
// Entries are written once at declaration and only read afterwards.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[registryKey]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[registryKey]Descriptor),
	}
}

// Declare registers association name on typ. foreignKey must be an attribute
// of typ; selector extracts the matching key from fetched objects.
func (r *Registry) Declare(typ RecordType, name, foreignKey string, selector KeySelector, opts ...Option) (Descriptor, error) {
	if typ == nil {
		return Descriptor{}, newError(KindDeclaration, "", name, "record type is required to declare %q", name)
	}
	typeName := typ.Name()
	name = strings.TrimSpace(name)
	if name == "" {
		return Descriptor{}, newError(KindDeclaration, typeName, "", "%s: association name is required", typeName)
	}
	if foreignKey == "" || !typ.HasAttribute(foreignKey) {
		return Descriptor{}, newError(KindDeclaration, typeName, name, "%s must have a %s attribute", typeName, foreignKey)
	}
	if selector == nil || selector.Name() == "" {
		return Descriptor{}, newError(KindDeclaration, typeName, name, "%s.%s: key selector is required", typeName, name)
	}

	options := Options{RaiseOnMissing: true}
	for _, opt := range opts {
		opt(&options)
	}

	desc := Descriptor{
		Type:       typeName,
		Name:       name,
		ForeignKey: foreignKey,
		Selector:   selector,
		Options:    options,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{typeName: typeName, association: name}
	if _, exists := r.descriptors[key]; exists {
		return Descriptor{}, newError(KindDeclaration, typeName, name, "%s already declares association %s", typeName, name)
	}
	r.descriptors[key] = desc
	return desc, nil
}

// Lookup returns the descriptor for an association of typ.
func (r *Registry) Lookup(typ RecordType, name string) (Descriptor, bool) {
	if typ == nil {
		return Descriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[registryKey{typeName: typ.Name(), association: name}]
	return desc, ok
}

// Descriptors returns every association declared on typ, sorted by name.
func (r *Registry) Descriptors(typ RecordType) []Descriptor {
	if typ == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for key, desc := range r.descriptors {
		if key.typeName == typ.Name() {
			out = append(out, desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
