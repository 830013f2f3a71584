//go:build integration

package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/repositories"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/testhelpers"
)

func TestExtractionService_Integration_OrdersFixture(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	engineDB := testhelpers.GetEngineDB(t)
	ctx := engineDB.ScopedContext(t)
	logger := zaptest.NewLogger(t)

	databaseRepo := repositories.NewDatabaseRepository()
	schemaRepo := repositories.NewSchemaRepository()

	db, err := NewDatabaseService(databaseRepo, logger).EnsureDatabase(ctx, "orders-it-"+uuid.NewString(), models.DialectPostgres)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = engineDB.DB.Pool.Exec(context.Background(), "DELETE FROM engine_schema_audit_log WHERE database_id = $1", db.ID)
		_, _ = engineDB.DB.Pool.Exec(context.Background(), "DELETE FROM engine_databases WHERE id = $1", db.ID)
	})

	svc := NewExtractionService(databaseRepo, schemaRepo, datasource.NewReaderFactory(logger), nil, logger)
	conn := datasource.Connection{
		Dialect: models.DialectPostgres,
		Querier: datasource.NewPostgresPoolWrapper(testDB.Pool),
	}

	result, err := svc.ReflectAndPersist(ctx, conn, db.ID)
	require.NoError(t, err)
	require.True(t, result.OK(), "categories: %+v", result.Categories)

	assert.Equal(t, 3, result.Category(models.ObjectTypeTable).Succeeded)
	assert.Equal(t, 1, result.Category(models.ObjectTypeView).Succeeded)
	assert.Equal(t, 2, result.Category(models.ObjectTypeTrigger).Succeeded)

	orders, err := schemaRepo.GetObjectByName(ctx, db.ID, models.ObjectTypeTable, "orders")
	require.NoError(t, err)
	types := make(map[string]string)
	roles := make(map[string]string)
	for _, c := range orders.Columns {
		types[c.ColumnName] = c.DataType
		roles[c.ColumnName] = c.KeyRole
	}
	assert.Equal(t, "serial", types["id"])
	assert.Equal(t, "numeric(10,2)", types["total"])
	assert.Equal(t, "character(1)", types["status"])
	assert.Equal(t, "text[]", types["tags"])
	assert.Equal(t, models.KeyRolePrimary, roles["id"])
	assert.Equal(t, models.KeyRoleForeign, roles["customer_id"])

	require.Len(t, orders.Relations, 1)
	assert.Equal(t, "customers", orders.Relations[0].ReferencedTable)
	assert.Equal(t, models.RuleCascade, orders.Relations[0].DeleteRule)

	_, err = schemaRepo.GetObjectByName(ctx, db.ID, models.ObjectTypeTable, "sales.regions")
	assert.NoError(t, err, "non-default schema objects are qualified")

	for _, name := range []string{"orders.touch", "customers.touch"} {
		_, err := schemaRepo.GetObjectByName(ctx, db.ID, models.ObjectTypeTrigger, name)
		assert.NoError(t, err, name)
	}

	proc, err := schemaRepo.GetObjectByName(ctx, db.ID, models.ObjectTypeProcedure, "close_order")
	require.NoError(t, err)
	require.Len(t, proc.Parameters, 2)
	assert.Equal(t, models.DirectionIn, proc.Parameters[0].Direction)
	assert.Equal(t, models.DirectionInOut, proc.Parameters[1].Direction)

	// A second run updates in place.
	again, err := svc.ReflectAndPersist(ctx, conn, db.ID)
	require.NoError(t, err)
	assert.True(t, again.OK())
	reread, err := schemaRepo.GetObjectByName(ctx, db.ID, models.ObjectTypeTable, "orders")
	require.NoError(t, err)
	assert.Equal(t, orders.ID, reread.ID)
	assert.Len(t, reread.Columns, len(orders.Columns))
}
