// Package catalog turns record configuration into declared record types,
// bound association sources, and query views.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"

	"virtualassoc/internal/assoc"
	"virtualassoc/internal/config"
	"virtualassoc/internal/dbexec"
	"virtualassoc/internal/naming"
	"virtualassoc/internal/provider"
	"virtualassoc/internal/relation"
)

// Entry is one configured record type.
type Entry struct {
	Type  *assoc.Type
	Table string
}

// Catalog holds every configured record type and the registry their
// associations are declared in.
type Catalog struct {
	registry  *assoc.Registry
	exec      dbexec.QueryExecutor
	entries   map[string]Entry
	observer  assoc.Observer
	namer     *naming.Namer
	logger    *slog.Logger
	overrides map[string]assoc.FetchFunc
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithObserver reports resolution activity of every relation to o.
func WithObserver(o assoc.Observer) Option {
	return func(c *Catalog) { c.observer = o }
}

// WithNamer sets the namer used for default table and key names.
func WithNamer(n *naming.Namer) Option {
	return func(c *Catalog) { c.namer = n }
}

// WithLogger sets the logger used while building.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// WithFetcher binds fn to an association in place of its configured source.
func WithFetcher(recordName, association string, fn assoc.FetchFunc) Option {
	return func(c *Catalog) { c.overrides[overrideKey(recordName, association)] = fn }
}

func overrideKey(recordName, association string) string {
	return recordName + "." + association
}

// Build declares every configured record type and association. exec runs
// both record queries and sql association sources.
func Build(records []config.RecordConfig, exec dbexec.QueryExecutor, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		registry:  assoc.NewRegistry(),
		exec:      exec,
		entries:   make(map[string]Entry, len(records)),
		overrides: make(map[string]assoc.FetchFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.namer == nil {
		c.namer = naming.Default()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	for _, rec := range records {
		if _, exists := c.entries[rec.Name]; exists {
			return nil, fmt.Errorf("record %q is configured more than once", rec.Name)
		}
		entry, err := c.buildRecord(rec)
		if err != nil {
			return nil, err
		}
		c.entries[rec.Name] = entry
	}
	return c, nil
}

func (c *Catalog) buildRecord(rec config.RecordConfig) (Entry, error) {
	typ := assoc.NewType(rec.Name, rec.Attributes...)
	table := rec.Table
	if table == "" {
		table = c.namer.TableName(rec.Name)
	}

	for _, ac := range rec.Associations {
		foreignKey := ac.ForeignKey
		if foreignKey == "" {
			foreignKey = c.namer.ForeignKeyName(ac.Name)
		}
		key := ac.Key
		if key == "" {
			key = "id"
		}
		var opts []assoc.Option
		if ac.RaiseOnMissing != nil {
			opts = append(opts, assoc.RaiseOnMissing(*ac.RaiseOnMissing))
		}

		if _, err := c.registry.Declare(typ, ac.Name, foreignKey, assoc.Field(key), opts...); err != nil {
			return Entry{}, err
		}

		fetch, err := c.fetcherFor(rec.Name, ac, key)
		if err != nil {
			return Entry{}, err
		}
		typ.SetBatchFetch(ac.Name, fetch)

		c.logger.Debug("declared association",
			slog.String("type", rec.Name),
			slog.String("association", ac.Name),
			slog.String("foreign_key", foreignKey),
			slog.String("source", ac.Source.Kind),
		)
	}
	return Entry{Type: typ, Table: table}, nil
}

func (c *Catalog) fetcherFor(recordName string, ac config.AssociationConfig, key string) (assoc.FetchFunc, error) {
	if fn, ok := c.overrides[overrideKey(recordName, ac.Name)]; ok {
		return fn, nil
	}

	switch ac.Source.Kind {
	case "sql":
		table := ac.Source.Table
		if table == "" {
			table = c.namer.SourceTableName(ac.Name)
		}
		keyColumn := ac.Source.KeyColumn
		if keyColumn == "" {
			keyColumn = key
		}
		source := &provider.SQLSource{
			Exec:            c.exec,
			Table:           table,
			KeyColumn:       keyColumn,
			Columns:         ac.Source.Columns,
			MaxKeysPerQuery: ac.Source.MaxKeysPerQuery,
		}
		return source.Fetch, nil
	case "http":
		return provider.NewHTTPSource(ac.Source.URL, ac.Source.KeysParam, ac.Source.Timeout).Fetch, nil
	default:
		return nil, fmt.Errorf("%s.%s: unsupported source kind %q", recordName, ac.Name, ac.Source.Kind)
	}
}

// Registry returns the registry associations are declared in.
func (c *Catalog) Registry() *assoc.Registry {
	return c.registry
}

// Lookup returns the named record type.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	entry, ok := c.entries[name]
	return entry, ok
}

// Names returns the configured record type names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relation returns a fresh query view over the named record type.
func (c *Catalog) Relation(name string) (*relation.Relation, bool) {
	entry, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	var opts []assoc.ResolverOption
	if c.observer != nil {
		opts = append(opts, assoc.WithObserver(c.observer))
	}
	return relation.New(c.exec, entry.Type, entry.Table, c.registry, opts...), true
}
