package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/typefmt"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// The functions below turn raw catalog descriptors into the canonical model.
// They are pure and never touch the store.

func normalizeObject(dialect models.Dialect, databaseID uuid.UUID, objectType models.ObjectType, d datasource.ObjectDescriptor) *models.SchemaObject {
	obj := &models.SchemaObject{
		DatabaseID: databaseID,
		ObjectType: objectType,
		Name:       dialect.QualifiedName(d.Ref.Schema, d.Ref.Name),
		SchemaName: d.Ref.Schema,
	}
	if objectType != models.ObjectTypeTable {
		obj.Definition = d.Definition
	}
	if objectType == models.ObjectTypeFunction || objectType == models.ObjectTypeProcedure {
		obj.ObjectCreated = d.Created
		obj.ObjectModified = d.Modified
	}
	if objectType == models.ObjectTypeFunction && d.ReturnType != nil {
		rt := typefmt.Format(dialect, *d.ReturnType)
		obj.ReturnType = &rt
	}
	return obj
}

// normalizeColumns maps column descriptors. View columns never carry key roles.
// A column that is both primary and foreign key reports primary.
func normalizeColumns(dialect models.Dialect, cols []datasource.ColumnDescriptor, isView bool) []models.SchemaColumn {
	out := make([]models.SchemaColumn, 0, len(cols))
	for _, c := range cols {
		role := models.KeyRoleNone
		switch {
		case isView:
		case c.IsPrimaryKey:
			role = models.KeyRolePrimary
		case c.IsForeignKey:
			role = models.KeyRoleForeign
		}
		out = append(out, models.SchemaColumn{
			OrdinalPosition: c.OrdinalPosition,
			ColumnName:      c.Name,
			DataType:        typefmt.Format(dialect, c.Type),
			IsNullable:      c.IsNullable,
			KeyRole:         role,
		})
	}
	return out
}

func normalizeIndexes(indexes []datasource.IndexDescriptor) []models.SchemaIndex {
	out := make([]models.SchemaIndex, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, models.SchemaIndex{
			IndexName: idx.Name,
			IndexType: strings.ToLower(idx.IndexType),
			Columns:   strings.Join(idx.Columns, ","),
			IsPrimary: idx.IsPrimary,
			IsUnique:  idx.IsUnique || idx.IsPrimary,
		})
	}
	return out
}

func normalizeRelations(dialect models.Dialect, fks []datasource.ForeignKeyDescriptor) []models.SchemaRelation {
	out := make([]models.SchemaRelation, 0, len(fks))
	for _, fk := range fks {
		out = append(out, models.SchemaRelation{
			ConstraintName:   fk.ConstraintName,
			ColumnName:       fk.ColumnName,
			ReferencedTable:  dialect.QualifiedName(fk.ReferencedSchema, fk.ReferencedTable),
			ReferencedColumn: fk.ReferencedColumn,
			DeleteRule:       datasource.NormalizeReferenceAction(fk.DeleteRule),
			UpdateRule:       datasource.NormalizeReferenceAction(fk.UpdateRule),
		})
	}
	return out
}

func normalizeParameters(dialect models.Dialect, params []datasource.ParameterDescriptor) []models.SchemaParameter {
	out := make([]models.SchemaParameter, 0, len(params))
	for _, p := range params {
		direction := strings.ToUpper(strings.TrimSpace(p.Direction))
		switch direction {
		case models.DirectionIn, models.DirectionOut, models.DirectionInOut:
		case "IN OUT":
			direction = models.DirectionInOut
		default:
			direction = models.DirectionIn
		}
		out = append(out, models.SchemaParameter{
			OrdinalPosition: p.OrdinalPosition,
			ParameterName:   p.Name,
			DataType:        typefmt.Format(dialect, p.Type),
			Direction:       direction,
			DefaultValue:    p.DefaultValue,
		})
	}
	return out
}

// normalizeTriggers maps trigger descriptors. Trigger names are only unique per
// table on PostgreSQL, so a name that appears more than once in the listing is
// stored as "<table>.<trigger>" to keep the (database, type, name) key unique.
func normalizeTriggers(dialect models.Dialect, databaseID uuid.UUID, triggers []datasource.TriggerDescriptor) []*models.SchemaObject {
	seen := make(map[string]int, len(triggers))
	for _, t := range triggers {
		seen[dialect.QualifiedName(t.Ref.Schema, t.Ref.Name)]++
	}

	out := make([]*models.SchemaObject, 0, len(triggers))
	for _, t := range triggers {
		name := dialect.QualifiedName(t.Ref.Schema, t.Ref.Name)
		table := dialect.QualifiedName(t.TableSchema, t.TableName)
		if seen[name] > 1 {
			name = table + "." + t.Ref.Name
		}

		triggerType := strings.ToUpper(strings.TrimSpace(t.TriggerType))
		events := strings.Join(t.Events, ",")
		enabled := t.IsEnabled

		out = append(out, &models.SchemaObject{
			DatabaseID:  databaseID,
			ObjectType:  models.ObjectTypeTrigger,
			Name:        name,
			SchemaName:  t.Ref.Schema,
			Definition:  t.Definition,
			TableName:   &table,
			TriggerType: &triggerType,
			Events:      &events,
			IsEnabled:   &enabled,
		})
	}
	return out
}
