package mysql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/typefmt"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

type fakeCall struct {
	query string
	args  []any
}

// fakeQuerier answers queries by matching a distinctive substring of the SQL.
// Values are strings, as the text protocol returns them.
type fakeQuerier struct {
	responses map[string][]datasource.Row
	calls     []fakeCall
}

func (f *fakeQuerier) Query(ctx context.Context, query string, args ...any) ([]datasource.Row, error) {
	f.calls = append(f.calls, fakeCall{query: query, args: args})
	for key, rows := range f.responses {
		if strings.Contains(query, key) {
			return rows, nil
		}
	}
	return nil, nil
}

func TestCatalogReader_ListTables(t *testing.T) {
	q := &fakeQuerier{responses: map[string][]datasource.Row{
		"FROM information_schema.TABLES": {
			{"schema_name": "shop", "object_name": "orders", "created": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "modified": nil},
		},
	}}
	r := NewCatalogReader(q, zaptest.NewLogger(t))

	tables, err := r.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Ref.Name)
	assert.NotNil(t, tables[0].Created)
	assert.Nil(t, tables[0].Modified)
	assert.Contains(t, q.calls[0].query, "TABLE_SCHEMA = DATABASE()")
}

func TestCatalogReader_ListColumns(t *testing.T) {
	q := &fakeQuerier{responses: map[string][]datasource.Row{
		"FROM information_schema.COLUMNS c": {
			{"column_name": "id", "ordinal_position": "1", "type_name": "int", "full_type": "int unsigned", "numeric_precision": "10", "numeric_scale": "0", "is_nullable": "NO", "is_primary_key": "1", "is_foreign_key": "0"},
			{"column_name": "total", "ordinal_position": "2", "type_name": "decimal", "full_type": "decimal(10,2)", "numeric_precision": "10", "numeric_scale": "2", "is_nullable": "NO", "is_primary_key": "0", "is_foreign_key": "0"},
			{"column_name": "customer_id", "ordinal_position": "3", "type_name": "bigint", "full_type": "bigint", "is_nullable": "YES", "is_primary_key": "0", "is_foreign_key": "1"},
			{"column_name": "status", "ordinal_position": "4", "type_name": "enum", "full_type": "enum('new','paid')", "max_length": "4", "is_nullable": "NO", "is_primary_key": "0", "is_foreign_key": "0"},
		},
	}}
	r := NewCatalogReader(q, nil)

	cols, err := r.ListColumns(context.Background(), datasource.ObjectRef{Schema: "shop", Name: "orders"})
	require.NoError(t, err)
	require.Len(t, cols, 4)

	assert.Equal(t, 1, cols[0].OrdinalPosition)
	assert.True(t, cols[0].IsPrimaryKey)
	assert.False(t, cols[0].IsNullable)
	assert.Equal(t, "int unsigned", typefmt.Format(models.DialectMySQL, cols[0].Type))
	assert.Equal(t, "decimal(10,2)", typefmt.Format(models.DialectMySQL, cols[1].Type))
	assert.True(t, cols[2].IsForeignKey)
	assert.True(t, cols[2].IsNullable)
	assert.Equal(t, "enum('new','paid')", typefmt.Format(models.DialectMySQL, cols[3].Type))

	assert.Equal(t, []any{"orders"}, q.calls[0].args)
}

func TestCatalogReader_ListIndexesAndForeignKeys(t *testing.T) {
	q := &fakeQuerier{responses: map[string][]datasource.Row{
		"FROM information_schema.STATISTICS": {
			{"index_name": "PRIMARY", "index_type": "BTREE", "is_primary": "1", "is_unique": "1", "column_names": "id"},
			{"index_name": "idx_customer_status", "index_type": "BTREE", "is_primary": "0", "is_unique": "0", "column_names": "customer_id,status"},
		},
		"JOIN information_schema.REFERENTIAL_CONSTRAINTS rc": {
			{"constraint_name": "fk_orders_customer", "column_name": "customer_id", "referenced_schema": "shop", "referenced_table": "customers", "referenced_column": "id", "delete_rule": "CASCADE", "update_rule": "NO ACTION"},
		},
	}}
	r := NewCatalogReader(q, nil)
	ref := datasource.ObjectRef{Schema: "shop", Name: "orders"}

	idx, err := r.ListIndexes(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.True(t, idx[0].IsPrimary)
	assert.Equal(t, []string{"customer_id", "status"}, idx[1].Columns)
	assert.False(t, idx[1].IsUnique)

	fks, err := r.ListForeignKeys(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, models.RuleCascade, fks[0].DeleteRule)
	assert.Equal(t, models.RuleNoAction, fks[0].UpdateRule)
}

func TestCatalogReader_Routines(t *testing.T) {
	q := &fakeQuerier{responses: map[string][]datasource.Row{
		"FROM information_schema.ROUTINES": {
			{"schema_name": "shop", "object_name": "order_total", "definition": "BEGIN RETURN 1; END", "return_type_name": "decimal", "return_full_type": "decimal(12,2)", "return_numeric_precision": "12", "return_numeric_scale": "2"},
		},
		"FROM information_schema.PARAMETERS": {
			{"parameter_name": "p_order", "ordinal_position": "1", "parameter_mode": "IN", "type_name": "int", "full_type": "int"},
			{"parameter_name": "p_out", "ordinal_position": "2", "parameter_mode": "OUT", "type_name": "varchar", "full_type": "varchar(20)", "max_length": "20"},
		},
	}}
	r := NewCatalogReader(q, nil)

	fns, err := r.ListFunctions(context.Background())
	require.NoError(t, err)
	require.Len(t, fns, 1)
	require.NotNil(t, fns[0].ReturnType)
	assert.Equal(t, "decimal(12,2)", typefmt.Format(models.DialectMySQL, *fns[0].ReturnType))
	assert.Equal(t, []any{"FUNCTION"}, q.calls[0].args)

	params, err := r.ListProcedureParameters(context.Background(), datasource.ObjectRef{Schema: "shop", Name: "close_order"})
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, models.DirectionIn, params[0].Direction)
	assert.Equal(t, models.DirectionOut, params[1].Direction)
	assert.Equal(t, "varchar(20)", typefmt.Format(models.DialectMySQL, params[1].Type))
	assert.Equal(t, []any{"close_order", "PROCEDURE"}, q.calls[1].args)
}

func TestCatalogReader_ListTriggers(t *testing.T) {
	q := &fakeQuerier{responses: map[string][]datasource.Row{
		"FROM information_schema.TRIGGERS": {
			{"schema_name": "shop", "trigger_name": "orders_bi", "table_schema": "shop", "table_name": "orders", "action_timing": "BEFORE", "event": "INSERT", "definition": "SET NEW.created_at = NOW()"},
		},
	}}
	r := NewCatalogReader(q, nil)

	triggers, err := r.ListTriggers(context.Background())
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "BEFORE", triggers[0].TriggerType)
	assert.Equal(t, []string{"INSERT"}, triggers[0].Events)
	assert.True(t, triggers[0].IsEnabled)
	assert.Equal(t, "orders", triggers[0].TableName)
}

func TestFromMapAndDSN(t *testing.T) {
	cfg, err := FromMap(map[string]any{"host": "localhost", "user": "app", "password": "p@ss:word", "database": "shop", "port": float64(3307)})
	require.NoError(t, err)
	assert.Equal(t, 3307, cfg.Port)

	dsn := buildDSN(cfg)
	assert.Contains(t, dsn, "app:p@ss:word@tcp(")
	assert.Contains(t, dsn, "/shop?")
	assert.Contains(t, dsn, "parseTime=true")

	_, err = FromMap(map[string]any{"host": "h", "user": "u"})
	assert.ErrorContains(t, err, "database is required")
}

func TestFromMap_DSN(t *testing.T) {
	cfg, err := FromMap(map[string]any{"dsn": "app:secret@tcp(db.internal:3307)/shop?tls=skip-verify&timeout=5s"})
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "shop", cfg.Database)
	assert.Equal(t, "skip-verify", cfg.TLS)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	_, err = FromMap(map[string]any{"dsn": "app:secret@tcp(db:3306)/"})
	assert.ErrorContains(t, err, "database is required")

	_, err = FromMap(map[string]any{"dsn": "app@unix(/tmp/mysql.sock)/shop"})
	assert.ErrorContains(t, err, "unsupported mysql network")
}
