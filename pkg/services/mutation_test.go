package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/metrics"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

func strPtr(s string) *string {
	return &s
}

type mutationFixture struct {
	databaseID uuid.UUID
	object     *models.SchemaObject
	schema     *memSchemaRepository
	overlays   *mockOverlayRepository
	audit      *mockAuditRepository
	metrics    *metrics.Recorder
	service    MutationService
}

func newMutationFixture(t *testing.T) *mutationFixture {
	t.Helper()
	ctx := context.Background()

	databaseID := uuid.New()
	schema := newMemSchemaRepository()
	obj := &models.SchemaObject{
		DatabaseID:  databaseID,
		ObjectType:  models.ObjectTypeTable,
		Name:        "orders",
		Description: nil,
	}
	require.NoError(t, schema.UpsertObject(ctx, obj))
	require.NoError(t, schema.ReplaceChildren(ctx, obj.ID, &models.SchemaChildren{
		Columns: []models.SchemaColumn{
			{ColumnName: "status", OrdinalPosition: 1, DataType: "char(1)", KeyRole: models.KeyRoleNone, PermittedValues: strPtr("O,C")},
			{ColumnName: "total", OrdinalPosition: 2, DataType: "decimal(10,2)", KeyRole: models.KeyRoleNone},
			{ColumnName: "is_param", OrdinalPosition: 3, DataType: "bit", KeyRole: models.KeyRoleNone},
		},
	}))

	overlays := &mockOverlayRepository{}
	audit := &mockAuditRepository{}
	recorder := metrics.NewRecorder(prometheus.NewRegistry())

	return &mutationFixture{
		databaseID: databaseID,
		object:     obj,
		schema:     schema,
		overlays:   overlays,
		audit:      audit,
		metrics:    recorder,
		service:    NewMutationService(schema, overlays, audit, recorder, zaptest.NewLogger(t)),
	}
}

func (f *mutationFixture) change(fieldID string, oldValue, newValue *string) FieldChange {
	return FieldChange{
		DatabaseID: f.databaseID,
		ObjectID:   f.object.ID,
		FieldID:    fieldID,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
}

func TestApplyFieldChange_WritesOnlyOnChange(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	change := f.change("description", nil, strPtr("Customer orders"))
	change.ActorID = &actor
	require.NoError(t, f.service.ApplyFieldChange(ctx, change))
	require.Len(t, f.overlays.applied, 1)

	applied := f.overlays.applied[0]
	assert.Equal(t, models.ObjectField(models.AttrDescription), applied.field)
	assert.Equal(t, "Customer orders", *applied.value)
	assert.Equal(t, models.AuditActionCreate, applied.entry.Action)
	assert.Equal(t, "description", applied.entry.FieldID)
	assert.Equal(t, &actor, applied.entry.ActorID)
	assert.Nil(t, applied.entry.OldValue)

	// Same value again: nothing is written.
	require.NoError(t, f.service.ApplyFieldChange(ctx, f.change("description", strPtr("Customer orders"), strPtr("Customer orders"))))
	assert.Len(t, f.overlays.applied, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		f.metrics.OverlayChanges.WithLabelValues("object", models.AuditActionCreate)))
}

func TestApplyFieldChange_Actions(t *testing.T) {
	tests := []struct {
		name     string
		oldValue *string
		newValue *string
		action   string
	}{
		{name: "null to value", oldValue: nil, newValue: strPtr("a"), action: models.AuditActionCreate},
		{name: "value to value", oldValue: strPtr("a"), newValue: strPtr("b"), action: models.AuditActionUpdate},
		{name: "value to null", oldValue: strPtr("a"), newValue: nil, action: models.AuditActionDelete},
		{name: "null to empty string", oldValue: nil, newValue: strPtr(""), action: models.AuditActionCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMutationFixture(t)

			require.NoError(t, f.service.ApplyFieldChange(context.Background(), f.change("total_release_tag", tt.oldValue, tt.newValue)))
			require.Len(t, f.overlays.applied, 1)
			entry := f.overlays.applied[0].entry
			assert.Equal(t, tt.action, entry.Action)
			assert.Equal(t, tt.oldValue, entry.OldValue)
			assert.Equal(t, tt.newValue, entry.NewValue)
			assert.Equal(t, models.ColumnField("total", models.AttrReleaseTag), f.overlays.applied[0].field)
		})
	}
}

func TestApplyFieldChange_NullEqualsNull(t *testing.T) {
	f := newMutationFixture(t)

	require.NoError(t, f.service.ApplyFieldChange(context.Background(), f.change("language", nil, nil)))
	assert.Empty(t, f.overlays.applied)
}

func TestApplyFieldChange_PersistFailure(t *testing.T) {
	f := newMutationFixture(t)
	f.overlays.applyErr = errors.New("could not serialize access")

	err := f.service.ApplyFieldChange(context.Background(), f.change("description", nil, strPtr("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not serialize access")
	assert.Empty(t, f.overlays.applied)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OverlayErrors.WithLabelValues("object")))
}

func TestApplyFieldChange_MissingTarget(t *testing.T) {
	f := newMutationFixture(t)
	f.overlays.applyErr = apperrors.ErrNotFound

	err := f.service.ApplyFieldChange(context.Background(), f.change("ghost_description", nil, strPtr("x")))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApplyFieldChange_UnknownObject(t *testing.T) {
	f := newMutationFixture(t)
	change := f.change("description", nil, strPtr("x"))
	change.ObjectID = uuid.New()

	err := f.service.ApplyFieldChange(context.Background(), change)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.overlays.applied)
}

func TestApplyFieldChange_ResolvesFieldByObjectType(t *testing.T) {
	f := newMutationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.ApplyFieldChange(ctx, f.change("is_param_description", nil, strPtr("Set by the importer"))))
	require.Len(t, f.overlays.applied, 1)
	assert.Equal(t, models.ColumnField("is_param", models.AttrDescription), f.overlays.applied[0].field)

	fn := &models.SchemaObject{DatabaseID: f.databaseID, ObjectType: models.ObjectTypeFunction, Name: "order_total"}
	require.NoError(t, f.schema.UpsertObject(ctx, fn))
	change := f.change("p_order_param_description", nil, strPtr("Order id"))
	change.ObjectID = fn.ID
	require.NoError(t, f.service.ApplyFieldChange(ctx, change))
	require.Len(t, f.overlays.applied, 2)
	assert.Equal(t, models.ParameterField("p_order"), f.overlays.applied[1].field)

	// Column fields do not exist on functions.
	change = f.change("total_description", nil, strPtr("x"))
	change.ObjectID = fn.ID
	assert.ErrorIs(t, f.service.ApplyFieldChange(ctx, change), apperrors.ErrUnknownField)
}

func TestApplyFieldChange_UnknownField(t *testing.T) {
	f := newMutationFixture(t)

	err := f.service.ApplyFieldChange(context.Background(), f.change("color", nil, strPtr("red")))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownField)
	assert.Empty(t, f.overlays.applied)
}

func TestEditObject_AppliesOnlyChangedFields(t *testing.T) {
	f := newMutationFixture(t)

	changed, err := f.service.EditObject(context.Background(), nil, f.databaseID, f.object.ID, ObjectEdit{
		Fields: map[string]*string{
			"description":             strPtr("Customer orders"),
			"status_permitted_values": strPtr("O,C"), // unchanged
			"total_description":       strPtr("Order total incl. tax"),
			"language":                nil, // already null
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	require.Len(t, f.overlays.applied, 2)
	// Fields are applied in sorted order.
	assert.Equal(t, "description", f.overlays.applied[0].entry.FieldID)
	assert.Equal(t, "total_description", f.overlays.applied[1].entry.FieldID)
	for _, a := range f.overlays.applied {
		assert.Equal(t, models.AuditActionCreate, a.entry.Action)
		assert.Equal(t, f.databaseID, a.entry.DatabaseID)
		assert.Nil(t, a.entry.ActorID)
	}
}

func TestEditObject_ColumnNamedLikeParameter(t *testing.T) {
	f := newMutationFixture(t)

	changed, err := f.service.EditObject(context.Background(), nil, f.databaseID, f.object.ID, ObjectEdit{
		Fields: map[string]*string{"is_param_description": strPtr("Marks parameter rows")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	require.Len(t, f.overlays.applied, 1)
	applied := f.overlays.applied[0]
	assert.Equal(t, models.ColumnField("is_param", models.AttrDescription), applied.field)
	assert.Equal(t, "is_param_description", applied.entry.FieldID)
	assert.Nil(t, applied.entry.OldValue)
}

func TestEditObject_ClearsField(t *testing.T) {
	f := newMutationFixture(t)

	changed, err := f.service.EditObject(context.Background(), nil, f.databaseID, f.object.ID, ObjectEdit{
		Fields: map[string]*string{"status_permitted_values": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	entry := f.overlays.applied[0].entry
	assert.Equal(t, models.AuditActionDelete, entry.Action)
	assert.Equal(t, "O,C", *entry.OldValue)
	assert.Nil(t, entry.NewValue)
}

func TestEditObject_UnknownColumn(t *testing.T) {
	f := newMutationFixture(t)

	changed, err := f.service.EditObject(context.Background(), nil, f.databaseID, f.object.ID, ObjectEdit{
		Fields: map[string]*string{"ghost_description": strPtr("x")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Zero(t, changed)
	assert.Empty(t, f.overlays.applied)
}

func TestEditObject_WrongDatabase(t *testing.T) {
	f := newMutationFixture(t)

	_, err := f.service.EditObject(context.Background(), nil, uuid.New(), f.object.ID, ObjectEdit{
		Fields: map[string]*string{"description": strPtr("x")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEditObject_StopsAtFirstFailure(t *testing.T) {
	f := newMutationFixture(t)
	f.overlays.applyErr = errors.New("deadlock detected")

	changed, err := f.service.EditObject(context.Background(), nil, f.databaseID, f.object.ID, ObjectEdit{
		Fields: map[string]*string{
			"description": strPtr("a"),
			"language":    strPtr("en"),
		},
	})
	require.Error(t, err)
	assert.Zero(t, changed)
}

func TestListAuditLog(t *testing.T) {
	f := newMutationFixture(t)
	now := time.Now()
	f.audit.entries = []*models.AuditLogEntry{
		{ID: uuid.New(), ObjectID: f.object.ID, FieldID: "status_permitted_values", Action: models.AuditActionUpdate, CreatedAt: now},
		{ID: uuid.New(), ObjectID: f.object.ID, FieldID: "status_description", Action: models.AuditActionCreate, CreatedAt: now.Add(-time.Minute)},
	}

	entries, err := f.service.ListAuditLog(context.Background(), f.object.ID, "status_", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "status_", f.audit.gotPrefix)
	assert.Equal(t, 10, f.audit.gotLimit)
}
