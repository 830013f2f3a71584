package mssql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/logging"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// CatalogReader implements datasource.CatalogReader over the sys.* catalog views.
// Shipped objects are excluded with is_ms_shipped = 0.
type CatalogReader struct {
	q      datasource.Querier
	logger *zap.Logger
}

// NewCatalogReader creates a SQL Server catalog reader.
// If logger is nil, a no-op logger is used.
func NewCatalogReader(q datasource.Querier, logger *zap.Logger) *CatalogReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogReader{q: q, logger: logger.Named("mssql")}
}

var _ datasource.CatalogReader = (*CatalogReader)(nil)

// runQuery issues one catalog query and logs it at debug level.
func (r *CatalogReader) runQuery(ctx context.Context, query string, args ...any) ([]datasource.Row, error) {
	start := time.Now()
	rows, err := r.q.Query(ctx, query, args...)
	r.logger.Debug("Catalog query",
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return rows, err
}

// ListTables returns all user tables.
func (r *CatalogReader) ListTables(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    t.object_id AS object_id,
	    SCHEMA_NAME(t.schema_id) AS schema_name,
	    t.name AS object_name,
	    t.create_date AS created,
	    t.modify_date AS modified
	FROM sys.tables t
	WHERE t.is_ms_shipped = 0
	ORDER BY schema_name, object_name
	`
	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return objectDescriptors(rows), nil
}

// ListColumns returns the columns of a table with key roles.
func (r *CatalogReader) ListColumns(ctx context.Context, table datasource.ObjectRef) ([]datasource.ColumnDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    c.column_id AS ordinal_position,
	    tp.name AS type_name,
	    c.max_length AS max_length,
	    c.precision AS numeric_precision,
	    c.scale AS numeric_scale,
	    c.is_nullable AS is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
	    CASE WHEN fk.parent_column_id IS NOT NULL THEN 1 ELSE 0 END AS is_foreign_key
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN (
	    SELECT DISTINCT parent_object_id, parent_column_id
	    FROM sys.foreign_key_columns
	) fk ON c.object_id = fk.parent_object_id AND c.column_id = fk.parent_column_id
	WHERE c.object_id = ` + objectIDFilter + `
	ORDER BY c.column_id
	`
	rows, err := r.runQuery(ctx, query, refArgs(table)...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	return columnDescriptors(rows), nil
}

// ListIndexes returns the indexes of a table; included columns are omitted.
func (r *CatalogReader) ListIndexes(ctx context.Context, table datasource.ObjectRef) ([]datasource.IndexDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    i.name AS index_name,
	    i.type_desc AS index_type,
	    i.is_primary_key AS is_primary,
	    i.is_unique AS is_unique,
	    STRING_AGG(c.name, ',') WITHIN GROUP (ORDER BY ic.key_ordinal) AS column_names
	FROM sys.indexes i
	INNER JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
	INNER JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
	WHERE i.object_id = ` + objectIDFilter + `
	  AND i.name IS NOT NULL
	  AND i.is_hypothetical = 0
	  AND ic.is_included_column = 0
	GROUP BY i.name, i.type_desc, i.is_primary_key, i.is_unique
	ORDER BY i.name
	`
	rows, err := r.runQuery(ctx, query, refArgs(table)...)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}

	indexes := make([]datasource.IndexDescriptor, 0, len(rows))
	for _, row := range rows {
		indexes = append(indexes, datasource.IndexDescriptor{
			Name:      row.String("index_name"),
			IndexType: row.String("index_type"),
			Columns:   datasource.SplitList(row.String("column_names")),
			IsPrimary: row.Bool("is_primary"),
			IsUnique:  row.Bool("is_unique"),
		})
	}
	return indexes, nil
}

// ListForeignKeys returns the foreign keys owned by a table.
// Referential actions come from *_referential_action_desc (e.g. SET_NULL).
func (r *CatalogReader) ListForeignKeys(ctx context.Context, table datasource.ObjectRef) ([]datasource.ForeignKeyDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    fk.name AS constraint_name,
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS column_name,
	    SCHEMA_NAME(rt.schema_id) AS referenced_schema,
	    rt.name AS referenced_table,
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS referenced_column,
	    fk.delete_referential_action_desc AS delete_rule,
	    fk.update_referential_action_desc AS update_rule
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
	WHERE fk.parent_object_id = ` + objectIDFilter + `
	ORDER BY fk.name, fkc.constraint_column_id
	`
	rows, err := r.runQuery(ctx, query, refArgs(table)...)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}

	fks := make([]datasource.ForeignKeyDescriptor, 0, len(rows))
	for _, row := range rows {
		fks = append(fks, datasource.ForeignKeyDescriptor{
			ConstraintName:   row.String("constraint_name"),
			ColumnName:       row.String("column_name"),
			ReferencedSchema: row.String("referenced_schema"),
			ReferencedTable:  row.String("referenced_table"),
			ReferencedColumn: row.String("referenced_column"),
			DeleteRule:       datasource.NormalizeReferenceAction(row.String("delete_rule")),
			UpdateRule:       datasource.NormalizeReferenceAction(row.String("update_rule")),
		})
	}
	return fks, nil
}

// ListViews returns all user views with their definitions.
func (r *CatalogReader) ListViews(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    v.object_id AS object_id,
	    SCHEMA_NAME(v.schema_id) AS schema_name,
	    v.name AS object_name,
	    OBJECT_DEFINITION(v.object_id) AS definition,
	    v.create_date AS created,
	    v.modify_date AS modified
	FROM sys.views v
	WHERE v.is_ms_shipped = 0
	ORDER BY schema_name, object_name
	`
	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	return objectDescriptors(rows), nil
}

// ListViewColumns returns the columns of a view. Views carry no key roles.
func (r *CatalogReader) ListViewColumns(ctx context.Context, view datasource.ObjectRef) ([]datasource.ColumnDescriptor, error) {
	cols, err := r.ListColumns(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("view columns: %w", err)
	}
	for i := range cols {
		cols[i].IsPrimaryKey = false
		cols[i].IsForeignKey = false
	}
	return cols, nil
}

// ListFunctions returns scalar and table-valued functions.
// The scalar return type is stored as parameter_id 0.
func (r *CatalogReader) ListFunctions(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    o.object_id AS object_id,
	    SCHEMA_NAME(o.schema_id) AS schema_name,
	    o.name AS object_name,
	    OBJECT_DEFINITION(o.object_id) AS definition,
	    o.create_date AS created,
	    o.modify_date AS modified,
	    CASE WHEN o.type IN ('IF', 'TF', 'FT') THEN 'table' ELSE rt.name END AS return_type_name,
	    rp.max_length AS return_max_length,
	    rp.precision AS return_numeric_precision,
	    rp.scale AS return_numeric_scale
	FROM sys.objects o
	LEFT JOIN sys.parameters rp ON rp.object_id = o.object_id AND rp.parameter_id = 0
	LEFT JOIN sys.types rt ON rt.user_type_id = rp.user_type_id
	WHERE o.type IN ('FN', 'IF', 'TF', 'FS', 'FT')
	  AND o.is_ms_shipped = 0
	ORDER BY schema_name, object_name
	`
	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}

	objects := objectDescriptors(rows)
	for i, row := range rows {
		if meta := row.TypeMeta("return_"); meta.Name != "" {
			objects[i].ReturnType = &meta
		}
	}
	return objects, nil
}

// ListFunctionParameters returns the input parameters of a function.
func (r *CatalogReader) ListFunctionParameters(ctx context.Context, fn datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return r.listParameters(ctx, fn)
}

// ListProcedures returns all user stored procedures.
func (r *CatalogReader) ListProcedures(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    p.object_id AS object_id,
	    SCHEMA_NAME(p.schema_id) AS schema_name,
	    p.name AS object_name,
	    OBJECT_DEFINITION(p.object_id) AS definition,
	    p.create_date AS created,
	    p.modify_date AS modified
	FROM sys.procedures p
	WHERE p.is_ms_shipped = 0
	ORDER BY schema_name, object_name
	`
	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query procedures: %w", err)
	}
	return objectDescriptors(rows), nil
}

// ListProcedureParameters returns the parameters of a procedure.
func (r *CatalogReader) ListProcedureParameters(ctx context.Context, proc datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return r.listParameters(ctx, proc)
}

func (r *CatalogReader) listParameters(ctx context.Context, ref datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    p.name AS parameter_name,
	    p.parameter_id AS ordinal_position,
	    tp.name AS type_name,
	    p.max_length AS max_length,
	    p.precision AS numeric_precision,
	    p.scale AS numeric_scale,
	    p.is_output AS is_output,
	    CASE WHEN p.has_default_value = 1 THEN CONVERT(nvarchar(4000), p.default_value) END AS default_value
	FROM sys.parameters p
	INNER JOIN sys.types tp ON p.user_type_id = tp.user_type_id
	WHERE p.object_id = ` + objectIDFilter + `
	  AND p.parameter_id > 0
	ORDER BY p.parameter_id
	`
	rows, err := r.runQuery(ctx, query, refArgs(ref)...)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}

	params := make([]datasource.ParameterDescriptor, 0, len(rows))
	for _, row := range rows {
		direction := models.DirectionIn
		if row.Bool("is_output") {
			direction = models.DirectionOut
		}
		params = append(params, datasource.ParameterDescriptor{
			Name:            row.String("parameter_name"),
			OrdinalPosition: int(row.Int64("ordinal_position")),
			Type:            row.TypeMeta(""),
			Direction:       direction,
			DefaultValue:    row.NullString("default_value"),
		})
	}
	return params, nil
}

// ListTriggers returns DML triggers on user tables and views.
func (r *CatalogReader) ListTriggers(ctx context.Context) ([]datasource.TriggerDescriptor, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    tr.object_id AS object_id,
	    tr.name AS trigger_name,
	    SCHEMA_NAME(o.schema_id) AS table_schema,
	    o.name AS table_name,
	    tr.is_instead_of_trigger AS is_instead_of,
	    tr.is_disabled AS is_disabled,
	    OBJECT_DEFINITION(tr.object_id) AS definition,
	    (SELECT STRING_AGG(te.type_desc, ',') FROM sys.trigger_events te WHERE te.object_id = tr.object_id) AS events
	FROM sys.triggers tr
	INNER JOIN sys.objects o ON tr.parent_id = o.object_id
	WHERE tr.is_ms_shipped = 0
	  AND tr.parent_class = 1
	ORDER BY table_schema, table_name, trigger_name
	`
	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}

	triggers := make([]datasource.TriggerDescriptor, 0, len(rows))
	for _, row := range rows {
		triggerType := "AFTER"
		if row.Bool("is_instead_of") {
			triggerType = "INSTEAD OF"
		}
		schema := row.String("table_schema")
		triggers = append(triggers, datasource.TriggerDescriptor{
			Ref: datasource.ObjectRef{
				Schema: schema,
				Name:   row.String("trigger_name"),
				ID:     row.Int64("object_id"),
			},
			TableSchema: schema,
			TableName:   row.String("table_name"),
			TriggerType: triggerType,
			Events:      triggerEvents(row.String("events")),
			IsEnabled:   !row.Bool("is_disabled"),
			Definition:  row.NullString("definition"),
		})
	}
	return triggers, nil
}

func objectDescriptors(rows []datasource.Row) []datasource.ObjectDescriptor {
	objects := make([]datasource.ObjectDescriptor, 0, len(rows))
	for _, row := range rows {
		objects = append(objects, datasource.ObjectDescriptor{
			Ref: datasource.ObjectRef{
				Schema: row.String("schema_name"),
				Name:   row.String("object_name"),
				ID:     row.Int64("object_id"),
			},
			Definition: row.NullString("definition"),
			Created:    row.Time("created"),
			Modified:   row.Time("modified"),
		})
	}
	return objects
}

func columnDescriptors(rows []datasource.Row) []datasource.ColumnDescriptor {
	cols := make([]datasource.ColumnDescriptor, 0, len(rows))
	for _, row := range rows {
		cols = append(cols, datasource.ColumnDescriptor{
			Name:            row.String("column_name"),
			OrdinalPosition: int(row.Int64("ordinal_position")),
			Type:            row.TypeMeta(""),
			IsNullable:      row.Bool("is_nullable"),
			IsPrimaryKey:    row.Bool("is_primary_key"),
			IsForeignKey:    row.Bool("is_foreign_key"),
		})
	}
	return cols
}
