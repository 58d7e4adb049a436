package assoc

import (
	"context"
	"fmt"

	"virtualassoc/internal/setutil"
)

// Assign is the association setter: it copies obj's key into rec's foreign
// key and caches obj as the resolved value. A nil obj clears both.
func (r *Registry) Assign(rec Record, name string, obj any) error {
	desc, err := r.descriptorFor(rec, name)
	if err != nil {
		return err
	}
	if obj == nil {
		rec.SetAttr(desc.ForeignKey, nil)
		rec.SetIncluded(name, nil)
		return nil
	}
	key, ok := desc.Selector.Key(obj)
	if !ok {
		return newError(KindConfiguration, desc.Type, name,
			"%T does not have a(n) %s key", obj, desc.Selector.Name())
	}
	rec.SetAttr(desc.ForeignKey, key)
	rec.SetIncluded(name, obj)
	return nil
}

// Get is the association getter. It returns nil for a null foreign key, the
// cached object when its key still equals the foreign key, and otherwise
// fetches the single key with the type's batch fetch method and caches the
// result on rec.
func (r *Registry) Get(ctx context.Context, rec Record, name string) (any, error) {
	desc, err := r.descriptorFor(rec, name)
	if err != nil {
		return nil, err
	}

	fk := rec.Attr(desc.ForeignKey)
	if setutil.IsNull(fk) {
		return nil, nil
	}
	want := setutil.CanonicalKey(fk)

	if cached, ok := rec.Included(name); ok && cached != nil {
		if key, ok := desc.Selector.Key(cached); ok && !setutil.IsNull(key) && setutil.CanonicalKey(key) == want {
			return cached, nil
		}
	}

	return r.find(ctx, rec, desc, fk, want)
}

// find resolves a single record's association outside of batch loading.
func (r *Registry) find(ctx context.Context, rec Record, desc Descriptor, fk any, want string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	typ := rec.RecordType()
	fetch, ok := typ.BatchFetch(desc.Name)
	if !ok || fetch == nil {
		return nil, newError(KindConfiguration, desc.Type, desc.Name,
			"%s must define a batch fetch method for %s", desc.Type, desc.Name)
	}

	objects, err := fetch(ctx, []any{setutil.Unwrap(fk)})
	if err != nil {
		return nil, fmt.Errorf("fetch %s.%s: %w", desc.Type, desc.Name, err)
	}

	var found any
	for _, obj := range objects {
		key, ok := desc.Selector.Key(obj)
		if !ok {
			return nil, newError(KindConfiguration, desc.Type, desc.Name,
				"%T was returned by the batch fetch for %s, but it does not have a(n) %s key",
				obj, desc.Name, desc.Selector.Name())
		}
		if !setutil.IsNull(key) && setutil.CanonicalKey(key) == want {
			found = obj
		}
	}

	if found == nil && desc.Options.RaiseOnMissing {
		return nil, newError(KindNotFound, desc.Type, desc.Name,
			"could not find an object to include with a %s of %v", desc.ForeignKey, setutil.Unwrap(fk))
	}
	rec.SetIncluded(desc.Name, found)
	return found, nil
}

func (r *Registry) descriptorFor(rec Record, name string) (Descriptor, error) {
	if rec == nil {
		return Descriptor{}, newError(KindArgument, "", name, "record is required")
	}
	typ := rec.RecordType()
	desc, ok := r.Lookup(typ, name)
	if !ok {
		typeName := "record type"
		if typ != nil {
			typeName = typ.Name()
		}
		return Descriptor{}, newError(KindConfiguration, typeName, name,
			"%s does not declare association %s", typeName, name)
	}
	return desc, nil
}
