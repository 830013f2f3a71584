package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayField_FieldIDRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		objectType ObjectType
		field      OverlayField
		fieldID    string
	}{
		{"object description", ObjectTypeTable, ObjectField(AttrDescription), "description"},
		{"object language", ObjectTypeTrigger, ObjectField(AttrLanguage), "language"},
		{"column description", ObjectTypeTable, ColumnField("customer_name", AttrDescription), "customer_name_description"},
		{"column permitted values", ObjectTypeTable, ColumnField("status", AttrPermittedValues), "status_permitted_values"},
		{"column release tag", ObjectTypeView, ColumnField("total", AttrReleaseTag), "total_release_tag"},
		{"parameter description", ObjectTypeProcedure, ParameterField("p_order_id"), "p_order_id_param_description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fieldID, tt.field.FieldID())

			parsed, err := ParseFieldID(tt.objectType, tt.fieldID)
			require.NoError(t, err)
			assert.Equal(t, tt.field, parsed)
		})
	}
}

func TestParseFieldID_ObjectTypeDecidesScope(t *testing.T) {
	column := ColumnField("is_param", AttrDescription)

	parsed, err := ParseFieldID(ObjectTypeTable, column.FieldID())
	require.NoError(t, err)
	assert.Equal(t, column, parsed)

	parsed, err = ParseFieldID(ObjectTypeFunction, column.FieldID())
	require.NoError(t, err)
	assert.Equal(t, ParameterField("is"), parsed)

	_, err = ParseFieldID(ObjectTypeFunction, "total_description")
	assert.Error(t, err, "functions have no columns")

	_, err = ParseFieldID(ObjectTypeTrigger, "total_description")
	assert.Error(t, err, "triggers have object fields only")
}

func TestParseFieldID_Invalid(t *testing.T) {
	for _, id := range []string{"", "_description", "something_else", "name"} {
		_, err := ParseFieldID(ObjectTypeTable, id)
		assert.Error(t, err, "field id %q", id)
	}

	_, err := ParseFieldID(ObjectType("sequence"), "x_description")
	assert.ErrorContains(t, err, "unknown object type")
}

func TestAuditActionFor(t *testing.T) {
	v := "x"
	w := "y"
	assert.Equal(t, AuditActionCreate, AuditActionFor(nil, &v))
	assert.Equal(t, AuditActionDelete, AuditActionFor(&v, nil))
	assert.Equal(t, AuditActionUpdate, AuditActionFor(&v, &w))
}
