package provider

import (
	"context"
	"fmt"

	"virtualassoc/internal/dbexec"
	"virtualassoc/internal/setutil"
	"virtualassoc/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// DefaultMaxKeysPerQuery bounds the IN list of a single source query.
const DefaultMaxKeysPerQuery = 1000

// SQLSource loads rows from a table by key column. Rows are returned as
// map[string]any keyed by column name.
type SQLSource struct {
	Exec            dbexec.QueryExecutor
	Table           string
	KeyColumn       string
	Columns         []string
	MaxKeysPerQuery int
}

// Fetch queries the table for keys. Keys are split into chunks of at most
// MaxKeysPerQuery and each chunk is one query.
func (s *SQLSource) Fetch(ctx context.Context, keys []any) ([]any, error) {
	if s.Exec == nil {
		return nil, fmt.Errorf("sql source %s: no executor", s.Table)
	}
	distinct := setutil.DistinctKeys(keys)
	if len(distinct) == 0 {
		return nil, nil
	}

	max := s.MaxKeysPerQuery
	if max <= 0 {
		max = DefaultMaxKeysPerQuery
	}

	var out []any
	for _, chunk := range setutil.Chunk(distinct, max) {
		query, args, err := s.query(chunk)
		if err != nil {
			return nil, fmt.Errorf("build %s query: %w", s.Table, err)
		}
		rows, err := s.Exec.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.Table, err)
		}
		maps, err := dbexec.ScanMaps(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.Table, err)
		}
		for _, m := range maps {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *SQLSource) query(keys []any) (string, []any, error) {
	columns := []string{"*"}
	if len(s.Columns) > 0 {
		columns = sqlutil.QuoteIdentifiers(s.Columns)
	}
	return sq.Select(columns...).
		From(sqlutil.QuoteIdentifier(s.Table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(s.keyColumn()): keys}).
		OrderBy(sqlutil.OrderTerm(s.keyColumn())).
		PlaceholderFormat(sq.Question).
		ToSql()
}

func (s *SQLSource) keyColumn() string {
	if s.KeyColumn == "" {
		return "id"
	}
	return s.KeyColumn
}
