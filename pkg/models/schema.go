package models

import (
	"time"

	"github.com/google/uuid"
)

// ObjectType is the variant tag of a SchemaObject.
type ObjectType string

const (
	ObjectTypeTable     ObjectType = "table"
	ObjectTypeView      ObjectType = "view"
	ObjectTypeFunction  ObjectType = "function"
	ObjectTypeProcedure ObjectType = "procedure"
	ObjectTypeTrigger   ObjectType = "trigger"
)

// ExtractionOrder is the fixed order in which categories are reflected.
var ExtractionOrder = []ObjectType{
	ObjectTypeTable,
	ObjectTypeView,
	ObjectTypeFunction,
	ObjectTypeProcedure,
	ObjectTypeTrigger,
}

// IsValidObjectType checks if the given type is valid.
func IsValidObjectType(t ObjectType) bool {
	for _, v := range ExtractionOrder {
		if v == t {
			return true
		}
	}
	return false
}

// Database is a connected data source whose catalog is documented.
// Stored in engine_databases table.
type Database struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Dialect   Dialect   `json:"dialect" yaml:"dialect"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// SchemaObject is the shared record for every reflected object.
// Variant-specific fields are only populated for the matching ObjectType.
type SchemaObject struct {
	ID         uuid.UUID  `json:"id" yaml:"id"`
	DatabaseID uuid.UUID  `json:"database_id" yaml:"database_id"`
	ObjectType ObjectType `json:"object_type" yaml:"object_type"`
	Name       string     `json:"name" yaml:"name"`
	SchemaName string     `json:"schema_name,omitempty" yaml:"schema_name,omitempty"`

	// Overlay fields, written only through audited edits.
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	Language    *string `json:"language,omitempty" yaml:"language,omitempty"`

	// View, function, procedure and trigger.
	Definition *string `json:"definition,omitempty" yaml:"definition,omitempty"`

	// Function and procedure.
	ReturnType     *string    `json:"return_type,omitempty" yaml:"return_type,omitempty"` // functions only
	ObjectCreated  *time.Time `json:"object_created,omitempty" yaml:"object_created,omitempty"`
	ObjectModified *time.Time `json:"object_modified,omitempty" yaml:"object_modified,omitempty"`

	// Trigger.
	TableName   *string `json:"table_name,omitempty" yaml:"table_name,omitempty"`
	TriggerType *string `json:"trigger_type,omitempty" yaml:"trigger_type,omitempty"` // BEFORE, AFTER, INSTEAD OF
	Events      *string `json:"events,omitempty" yaml:"events,omitempty"`             // comma-joined, e.g. "INSERT,UPDATE"
	IsEnabled   *bool   `json:"is_enabled,omitempty" yaml:"is_enabled,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	Columns    []SchemaColumn    `json:"columns,omitempty" yaml:"columns,omitempty"`       // tables and views
	Indexes    []SchemaIndex     `json:"indexes,omitempty" yaml:"indexes,omitempty"`       // tables
	Relations  []SchemaRelation  `json:"relations,omitempty" yaml:"relations,omitempty"`   // tables
	Parameters []SchemaParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"` // functions and procedures
}

// Key roles for columns.
const (
	KeyRoleNone    = "none"
	KeyRolePrimary = "primary"
	KeyRoleForeign = "foreign"
)

// SchemaColumn is a column of a table or view.
type SchemaColumn struct {
	ID              uuid.UUID `json:"id" yaml:"id"`
	ObjectID        uuid.UUID `json:"object_id" yaml:"object_id"`
	OrdinalPosition int       `json:"ordinal_position" yaml:"ordinal_position"`
	ColumnName      string    `json:"column_name" yaml:"column_name"`
	DataType        string    `json:"data_type" yaml:"data_type"`
	IsNullable      bool      `json:"is_nullable" yaml:"is_nullable"`
	KeyRole         string    `json:"key_role" yaml:"key_role"`

	Description     *string `json:"description,omitempty" yaml:"description,omitempty"`
	PermittedValues *string `json:"permitted_values,omitempty" yaml:"permitted_values,omitempty"`
	ReleaseTag      *string `json:"release_tag,omitempty" yaml:"release_tag,omitempty"`
}

// SchemaIndex is an index on a table.
type SchemaIndex struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	ObjectID  uuid.UUID `json:"object_id" yaml:"object_id"`
	IndexName string    `json:"index_name" yaml:"index_name"`
	IndexType string    `json:"index_type" yaml:"index_type"`
	Columns   string    `json:"columns" yaml:"columns"` // ordered, comma-joined
	IsPrimary bool      `json:"is_primary" yaml:"is_primary"`
	IsUnique  bool      `json:"is_unique" yaml:"is_unique"`
}

// Referential actions.
const (
	RuleCascade    = "CASCADE"
	RuleSetNull    = "SET NULL"
	RuleSetDefault = "SET DEFAULT"
	RuleRestrict   = "RESTRICT"
	RuleNoAction   = "NO ACTION"
)

// SchemaRelation is a foreign key column pairing owned by a table.
type SchemaRelation struct {
	ID               uuid.UUID `json:"id" yaml:"id"`
	ObjectID         uuid.UUID `json:"object_id" yaml:"object_id"`
	ConstraintName   string    `json:"constraint_name" yaml:"constraint_name"`
	ColumnName       string    `json:"column_name" yaml:"column_name"`
	ReferencedTable  string    `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumn string    `json:"referenced_column" yaml:"referenced_column"`
	DeleteRule       string    `json:"delete_rule" yaml:"delete_rule"`
	UpdateRule       string    `json:"update_rule" yaml:"update_rule"`
}

// Parameter directions.
const (
	DirectionIn    = "IN"
	DirectionOut   = "OUT"
	DirectionInOut = "INOUT"
)

// SchemaParameter is a parameter of a function or procedure.
type SchemaParameter struct {
	ID              uuid.UUID `json:"id" yaml:"id"`
	ObjectID        uuid.UUID `json:"object_id" yaml:"object_id"`
	OrdinalPosition int       `json:"ordinal_position" yaml:"ordinal_position"`
	ParameterName   string    `json:"parameter_name" yaml:"parameter_name"`
	DataType        string    `json:"data_type" yaml:"data_type"`
	Direction       string    `json:"direction" yaml:"direction"`
	DefaultValue    *string   `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Description     *string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// SchemaChildren is the complete child collection written for one object.
type SchemaChildren struct {
	Columns    []SchemaColumn
	Indexes    []SchemaIndex
	Relations  []SchemaRelation
	Parameters []SchemaParameter
}
