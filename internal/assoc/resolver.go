package assoc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"virtualassoc/internal/logging"
	"virtualassoc/internal/setutil"

	"go.opentelemetry.io/otel/attribute"
)

// Resolver is the batch resolver of one query view. It is not safe for
// concurrent use; a view is driven from one flow of control at a time.
type Resolver struct {
	registry  *Registry
	observer  Observer
	requested []string
	loaded    bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithObserver reports resolution measurements to o.
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewResolver creates a resolver with no requested associations.
func NewResolver(registry *Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: registry,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request returns a new resolver whose requested set is the union of r's and
// names. r is left unchanged.
func (r *Resolver) Request(names ...string) (*Resolver, error) {
	if len(names) == 0 {
		return nil, newError(KindArgument, "", "", "include requires at least one association name")
	}

	set := make(map[string]struct{}, len(r.requested)+len(names))
	for _, name := range r.requested {
		set[name] = struct{}{}
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, newError(KindArgument, "", "", "association name must not be empty")
		}
		set[name] = struct{}{}
	}

	requested := make([]string, 0, len(set))
	for name := range set {
		requested = append(requested, name)
	}
	sort.Strings(requested)

	next := r.Clone()
	next.requested = requested
	return next, nil
}

// Clone returns an unloaded resolver with the same requested associations,
// for a view derived from r's view.
func (r *Resolver) Clone() *Resolver {
	return &Resolver{
		registry:  r.registry,
		observer:  r.observer,
		requested: append([]string(nil), r.requested...),
	}
}

// Requested returns the requested association names, sorted.
func (r *Resolver) Requested() []string {
	return append([]string(nil), r.requested...)
}

// Loaded reports whether the current record set has been resolved.
func (r *Resolver) Loaded() bool {
	return r.loaded
}

// Invalidate marks the record set as discarded. The next OnMaterialize
// resolves again.
func (r *Resolver) Invalidate() {
	r.loaded = false
}

// OnMaterialize resolves every requested association over records. It is a
// no-op when records is empty, nothing was requested, or the set is already
// loaded. On error the resolver stays unloaded so a retry starts over.
func (r *Resolver) OnMaterialize(ctx context.Context, records []Record) error {
	if r.loaded || len(records) == 0 || len(r.requested) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	typ := records[0].RecordType()
	for _, name := range r.requested {
		if err := r.resolve(ctx, typ, name, records); err != nil {
			return err
		}
	}

	r.loaded = true
	return nil
}

func (r *Resolver) resolve(ctx context.Context, typ RecordType, name string, records []Record) (err error) {
	typeName := ""
	if typ != nil {
		typeName = typ.Name()
	}

	ctx, span := startResolveSpan(ctx, "assoc.resolve",
		attribute.String("assoc.type", typeName),
		attribute.String("assoc.name", name),
		attribute.Int("assoc.records", len(records)),
	)
	defer func() { finishResolveSpan(span, err) }()

	desc, fetch, err := r.lookup(typ, name)
	if err != nil {
		return err
	}

	values := make([]any, 0, len(records))
	for _, rec := range records {
		values = append(values, rec.Attr(desc.ForeignKey))
	}
	keys := setutil.DistinctKeys(values)
	span.SetAttributes(attribute.Int("assoc.keys", len(keys)))

	logger := logging.FromContext(ctx)
	var objects []any
	if len(keys) > 0 {
		start := time.Now()
		objects, err = fetch(ctx, keys)
		r.observer.BatchFetched(ctx, typeName, name, len(keys), len(objects), time.Since(start), err)
		if err != nil {
			return fmt.Errorf("batch fetch %s.%s: %w", typeName, name, err)
		}
	}

	index, err := indexObjects(ctx, desc, objects)
	if err != nil {
		return err
	}

	matches := make([]any, len(records))
	var missing int
	for i, rec := range records {
		fk := rec.Attr(desc.ForeignKey)
		if setutil.IsNull(fk) {
			continue
		}
		obj, ok := index[setutil.CanonicalKey(fk)]
		if ok {
			matches[i] = obj
			continue
		}
		r.observer.Missing(ctx, typeName, name, desc.Options.RaiseOnMissing)
		if desc.Options.RaiseOnMissing {
			return newError(KindNotFound, typeName, name,
				"could not find an object to include with a %s of %v", desc.ForeignKey, setutil.Unwrap(fk))
		}
		missing++
	}

	for i, rec := range records {
		rec.SetIncluded(name, matches[i])
	}

	r.observer.RecordsResolved(ctx, typeName, name, len(records))
	logger.Debug("association resolved",
		slog.String("type", typeName),
		slog.String("association", name),
		slog.Int("records", len(records)),
		slog.Int("keys", len(keys)),
		slog.Int("objects", len(objects)),
		slog.Int("missing", missing),
	)
	return nil
}

func (r *Resolver) lookup(typ RecordType, name string) (Descriptor, FetchFunc, error) {
	typeName := "record type"
	if typ != nil {
		typeName = typ.Name()
	}
	var (
		desc  Descriptor
		found bool
	)
	if r.registry != nil {
		desc, found = r.registry.Lookup(typ, name)
	}
	var fetch FetchFunc
	if found {
		fetch, found = typ.BatchFetch(name)
	}
	if !found || fetch == nil {
		return Descriptor{}, nil, newError(KindConfiguration, typeName, name,
			"%s must define a batch fetch method for %s", typeName, name)
	}
	return desc, fetch, nil
}

// indexObjects maps canonical keys to fetched objects. On duplicate keys the
// later object wins.
func indexObjects(ctx context.Context, desc Descriptor, objects []any) (map[string]any, error) {
	index := make(map[string]any, len(objects))
	for _, obj := range objects {
		key, ok := desc.Selector.Key(obj)
		if !ok {
			return nil, newError(KindConfiguration, desc.Type, desc.Name,
				"%T was returned by the batch fetch for %s, but it does not have a(n) %s key",
				obj, desc.Name, desc.Selector.Name())
		}
		// A null key never equals a non-null foreign key.
		if setutil.IsNull(key) {
			continue
		}
		canonical := setutil.CanonicalKey(key)
		if _, dup := index[canonical]; dup {
			logging.FromContext(ctx).Warn("duplicate key in batch fetch result; keeping the later object",
				slog.String("type", desc.Type),
				slog.String("association", desc.Name),
				slog.String("key", canonical),
			)
		}
		index[canonical] = obj
	}
	return index, nil
}
