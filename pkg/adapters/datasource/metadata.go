package datasource

import (
	"time"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/typefmt"
)

// ObjectRef identifies a catalog object for child lookups.
// ID carries the engine's internal object id where one exists (object_id, oid).
type ObjectRef struct {
	Schema string
	Name   string
	ID     int64
}

// ObjectDescriptor is a raw table, view, function or procedure as read from the catalog.
type ObjectDescriptor struct {
	Ref        ObjectRef
	Definition *string
	ReturnType *typefmt.TypeMeta // functions only
	Created    *time.Time
	Modified   *time.Time
}

// ColumnDescriptor is a raw column with unformatted type metadata.
type ColumnDescriptor struct {
	Name            string
	OrdinalPosition int
	Type            typefmt.TypeMeta
	IsNullable      bool
	IsPrimaryKey    bool
	IsForeignKey    bool
}

// IndexDescriptor is a raw index.
type IndexDescriptor struct {
	Name      string
	IndexType string
	Columns   []string
	IsPrimary bool
	IsUnique  bool
}

// ForeignKeyDescriptor is one column pairing of a foreign key constraint.
// DeleteRule and UpdateRule are already normalized to the closed vocabulary.
type ForeignKeyDescriptor struct {
	ConstraintName   string
	ColumnName       string
	ReferencedSchema string
	ReferencedTable  string
	ReferencedColumn string
	DeleteRule       string
	UpdateRule       string
}

// ParameterDescriptor is a raw routine parameter.
type ParameterDescriptor struct {
	Name            string
	OrdinalPosition int
	Type            typefmt.TypeMeta
	Direction       string
	DefaultValue    *string
}

// TriggerDescriptor is a raw trigger.
type TriggerDescriptor struct {
	Ref         ObjectRef
	TableSchema string
	TableName   string
	TriggerType string // BEFORE, AFTER, INSTEAD OF
	Events      []string
	IsEnabled   bool
	Definition  *string
}
