// Package relation is the SQL-backed query view that hosts batch association
// resolution. A Relation loads rows with squirrel-built SELECTs, hands the
// materialized records to its assoc.Resolver, and invalidates the resolver
// whenever its record set is discarded.
package relation

import (
	"context"
	"fmt"

	"virtualassoc/internal/assoc"
	"virtualassoc/internal/dbexec"
	"virtualassoc/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// Relation is one query view over a table. Builder methods return new views;
// a view is used from one flow of control at a time.
type Relation struct {
	exec    dbexec.QueryExecutor
	typ     *assoc.Type
	table   string
	where   []sq.Sqlizer
	orderBy []string
	limit   uint64

	includes *assoc.Resolver

	records []assoc.Record
	loaded  bool
}

// New creates a view over every row of table.
func New(exec dbexec.QueryExecutor, typ *assoc.Type, table string, registry *assoc.Registry, opts ...assoc.ResolverOption) *Relation {
	return &Relation{
		exec:     exec,
		typ:      typ,
		table:    table,
		includes: assoc.NewResolver(registry, opts...),
	}
}

// spawn copies the query definition into a new, unloaded view.
func (r *Relation) spawn() *Relation {
	return &Relation{
		exec:     r.exec,
		typ:      r.typ,
		table:    r.table,
		where:    append([]sq.Sqlizer(nil), r.where...),
		orderBy:  append([]string(nil), r.orderBy...),
		limit:    r.limit,
		includes: r.includes.Clone(),
	}
}

// Where returns a view further filtered by pred.
func (r *Relation) Where(pred sq.Sqlizer) *Relation {
	next := r.spawn()
	next.where = append(next.where, pred)
	return next
}

// OrderBy returns a view ordered by the given attributes. A leading "-"
// sorts descending.
func (r *Relation) OrderBy(terms ...string) *Relation {
	next := r.spawn()
	next.orderBy = append(next.orderBy, terms...)
	return next
}

// Limit returns a view returning at most n rows. Zero removes the limit.
func (r *Relation) Limit(n uint64) *Relation {
	next := r.spawn()
	next.limit = n
	return next
}

// Includes returns a view that resolves the named associations on load.
func (r *Relation) Includes(names ...string) (*Relation, error) {
	includes, err := r.includes.Request(names...)
	if err != nil {
		return nil, err
	}
	next := r.spawn()
	next.includes = includes
	return next, nil
}

// IncludeValues returns the associations this view resolves.
func (r *Relation) IncludeValues() []string {
	return r.includes.Requested()
}

// Type returns the record type of the view.
func (r *Relation) Type() *assoc.Type {
	return r.typ
}

// ToSQL renders the SELECT for this view.
func (r *Relation) ToSQL() (string, []any, error) {
	builder := sq.Select(sqlutil.QuoteIdentifiers(r.typ.Attributes())...).
		From(sqlutil.QuoteIdentifier(r.table))
	for _, pred := range r.where {
		builder = builder.Where(pred)
	}
	for _, term := range r.orderBy {
		builder = builder.OrderBy(sqlutil.OrderTerm(term))
	}
	if r.limit > 0 {
		builder = builder.Limit(r.limit)
	}
	return builder.PlaceholderFormat(sq.Question).ToSql()
}

// Load materializes the view. Rows are fetched once; association
// resolution runs after each fetch and is retried by a later Load if it
// failed.
func (r *Relation) Load(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !r.loaded {
		records, err := r.fetch(ctx)
		if err != nil {
			return err
		}
		r.records = records
		r.loaded = true
	}
	return r.includes.OnMaterialize(ctx, r.records)
}

// Reset discards the loaded records.
func (r *Relation) Reset() {
	r.records = nil
	r.loaded = false
	r.includes.Invalidate()
}

// Reload discards the loaded records and loads again.
func (r *Relation) Reload(ctx context.Context) error {
	r.Reset()
	return r.Load(ctx)
}

// Records loads the view if needed and returns its records.
func (r *Relation) Records(ctx context.Context) ([]assoc.Record, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	return r.records, nil
}

// First returns the first record of the view, or nil when it is empty.
func (r *Relation) First(ctx context.Context) (assoc.Record, error) {
	records, err := r.Records(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Loaded reports whether rows have been fetched for this view.
func (r *Relation) Loaded() bool {
	return r.loaded
}

// IncludesLoaded reports whether associations were resolved for the current rows.
func (r *Relation) IncludesLoaded() bool {
	return r.includes.Loaded()
}

func (r *Relation) fetch(ctx context.Context) ([]assoc.Record, error) {
	query, args, err := r.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", r.typ.Name(), err)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.typ.Name(), err)
	}
	maps, err := dbexec.ScanMaps(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", r.typ.Name(), err)
	}

	records := make([]assoc.Record, 0, len(maps))
	for _, m := range maps {
		records = append(records, assoc.NewRow(r.typ, m))
	}
	return records, nil
}
