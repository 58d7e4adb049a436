package catalog

import (
	"context"
	"regexp"
	"testing"

	"virtualassoc/internal/assoc"
	"virtualassoc/internal/config"
	"virtualassoc/internal/dbexec"
	"virtualassoc/internal/provider"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderRecords() []config.RecordConfig {
	return []config.RecordConfig{
		{
			Name:       "order",
			Attributes: []string{"id", "number", "customer_id"},
			Associations: []config.AssociationConfig{
				{Name: "customer", Source: config.SourceConfig{Kind: "sql", Columns: []string{"id", "name"}}},
			},
		},
		{Name: "customer", Attributes: []string{"id", "name"}},
	}
}

func newExec(t *testing.T) (dbexec.QueryExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return dbexec.NewStandardExecutor(db), mock
}

func TestBuild_Defaults(t *testing.T) {
	exec, _ := newExec(t)
	cat, err := Build(orderRecords(), exec)
	require.NoError(t, err)

	assert.Equal(t, []string{"customer", "order"}, cat.Names())

	entry, ok := cat.Lookup("order")
	require.True(t, ok)
	assert.Equal(t, "orders", entry.Table)

	desc, ok := cat.Registry().Lookup(entry.Type, "customer")
	require.True(t, ok)
	assert.Equal(t, "customer_id", desc.ForeignKey)
	assert.Equal(t, "id", desc.Selector.Name())
	assert.True(t, desc.Options.RaiseOnMissing)

	_, ok = entry.Type.BatchFetch("customer")
	assert.True(t, ok)
}

func TestBuild_RelationResolvesFromSQLSource(t *testing.T) {
	exec, mock := newExec(t)
	cat, err := Build(orderRecords(), exec)
	require.NoError(t, err)

	mock.ExpectQuery("^" + regexp.QuoteMeta("SELECT `id`, `number`, `customer_id` FROM `orders`") + "$").
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "customer_id"}).
			AddRow(int64(1), "A-1", int64(10)).
			AddRow(int64(2), "A-2", int64(10)).
			AddRow(int64(3), "A-3", int64(11)))
	mock.ExpectQuery("^" + regexp.QuoteMeta("SELECT `id`, `name` FROM `customers` WHERE `id` IN (?,?) ORDER BY `id` ASC") + "$").
		WithArgs(int64(10), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(10), "ada").
			AddRow(int64(11), "grace"))

	rel, ok := cat.Relation("order")
	require.True(t, ok)
	rel, err = rel.Includes("customer")
	require.NoError(t, err)

	records, err := rel.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	customer, ok := records[2].Included("customer")
	require.True(t, ok)
	assert.Equal(t, "grace", customer.(map[string]any)["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_ExplicitNames(t *testing.T) {
	exec, _ := newExec(t)
	raise := false
	records := []config.RecordConfig{{
		Name:       "shipment",
		Table:      "shipping_log",
		Attributes: []string{"id", "carrier_code"},
		Associations: []config.AssociationConfig{{
			Name:           "carrier",
			ForeignKey:     "carrier_code",
			Key:            "code",
			RaiseOnMissing: &raise,
			Source:         config.SourceConfig{Kind: "http", URL: "http://carriers.invalid/lookup"},
		}},
	}}

	cat, err := Build(records, exec)
	require.NoError(t, err)

	entry, _ := cat.Lookup("shipment")
	assert.Equal(t, "shipping_log", entry.Table)
	desc, ok := cat.Registry().Lookup(entry.Type, "carrier")
	require.True(t, ok)
	assert.Equal(t, "carrier_code", desc.ForeignKey)
	assert.Equal(t, "code", desc.Selector.Name())
	assert.False(t, desc.Options.RaiseOnMissing)
}

func TestBuild_WithFetcherOverride(t *testing.T) {
	exec, mock := newExec(t)
	mem := provider.NewMemory(assoc.Field("id"), map[string]any{"id": int64(10), "name": "memory"})

	cat, err := Build(orderRecords(), exec, WithFetcher("order", "customer", mem.Fetch))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM `orders`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "customer_id"}).AddRow(int64(1), "A-1", int64(10)))

	rel, _ := cat.Relation("order")
	rel, err = rel.Includes("customer")
	require.NoError(t, err)
	first, err := rel.First(context.Background())
	require.NoError(t, err)

	customer, _ := first.Included("customer")
	assert.Equal(t, "memory", customer.(map[string]any)["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_Errors(t *testing.T) {
	exec, _ := newExec(t)

	t.Run("missing foreign key attribute", func(t *testing.T) {
		records := []config.RecordConfig{{
			Name:       "order",
			Attributes: []string{"id"},
			Associations: []config.AssociationConfig{
				{Name: "customer", Source: config.SourceConfig{Kind: "sql"}},
			},
		}}
		_, err := Build(records, exec)
		require.Error(t, err)
		assert.ErrorIs(t, err, assoc.ErrDeclaration)
		assert.Contains(t, err.Error(), "order must have a customer_id attribute")
	})

	t.Run("unsupported source", func(t *testing.T) {
		records := orderRecords()
		records[0].Associations[0].Source.Kind = "ftp"
		_, err := Build(records, exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported source kind "ftp"`)
	})

	t.Run("duplicate record", func(t *testing.T) {
		records := append(orderRecords(), config.RecordConfig{Name: "order", Attributes: []string{"id"}})
		_, err := Build(records, exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configured more than once")
	})
}

func TestCatalog_RelationUnknown(t *testing.T) {
	exec, _ := newExec(t)
	cat, err := Build(nil, exec)
	require.NoError(t, err)

	_, ok := cat.Relation("missing")
	assert.False(t, ok)
	assert.Empty(t, cat.Names())
}
