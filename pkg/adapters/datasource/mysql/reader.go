package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/logging"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// CatalogReader implements datasource.CatalogReader over information_schema.
// Every query is scoped to DATABASE(), which excludes mysql, sys and
// performance_schema objects.
type CatalogReader struct {
	q      datasource.Querier
	logger *zap.Logger
}

// NewCatalogReader creates a MySQL catalog reader.
// If logger is nil, a no-op logger is used.
func NewCatalogReader(q datasource.Querier, logger *zap.Logger) *CatalogReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogReader{q: q, logger: logger.Named("mysql")}
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

// ListTables returns base tables of the current database.
func (r *CatalogReader) ListTables(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SELECT
	    TABLE_SCHEMA AS schema_name,
	    TABLE_NAME AS object_name,
	    CREATE_TIME AS created,
	    UPDATE_TIME AS modified
	FROM information_schema.TABLES
	WHERE TABLE_SCHEMA = DATABASE()
	  AND TABLE_TYPE = 'BASE TABLE'
	ORDER BY TABLE_NAME`

	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return objectDescriptors(rows), nil
}

// ListColumns returns the columns of a table. COLUMN_TYPE is kept as the full
// type so unsigned, enum and set definitions survive formatting.
func (r *CatalogReader) ListColumns(ctx context.Context, table datasource.ObjectRef) ([]datasource.ColumnDescriptor, error) {
	query := `
	SELECT
	    c.COLUMN_NAME AS column_name,
	    c.ORDINAL_POSITION AS ordinal_position,
	    c.DATA_TYPE AS type_name,
	    c.COLUMN_TYPE AS full_type,
	    c.CHARACTER_MAXIMUM_LENGTH AS max_length,
	    c.NUMERIC_PRECISION AS numeric_precision,
	    c.NUMERIC_SCALE AS numeric_scale,
	    c.IS_NULLABLE AS is_nullable,
	    c.COLUMN_KEY = 'PRI' AS is_primary_key,
	    EXISTS (
	        SELECT 1 FROM information_schema.KEY_COLUMN_USAGE k
	        WHERE k.TABLE_SCHEMA = c.TABLE_SCHEMA
	          AND k.TABLE_NAME = c.TABLE_NAME
	          AND k.COLUMN_NAME = c.COLUMN_NAME
	          AND k.REFERENCED_TABLE_NAME IS NOT NULL
	    ) AS is_foreign_key
	FROM information_schema.COLUMNS c
	WHERE c.TABLE_SCHEMA = DATABASE()
	  AND c.TABLE_NAME = ?
	ORDER BY c.ORDINAL_POSITION`

	rows, err := r.runQuery(ctx, query, table.Name)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

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
	return cols, nil
}

// ListIndexes returns the indexes of a table. Functional key parts have a
// NULL COLUMN_NAME and are skipped by GROUP_CONCAT.
func (r *CatalogReader) ListIndexes(ctx context.Context, table datasource.ObjectRef) ([]datasource.IndexDescriptor, error) {
	query := `
	SELECT
	    INDEX_NAME AS index_name,
	    INDEX_TYPE AS index_type,
	    INDEX_NAME = 'PRIMARY' AS is_primary,
	    MAX(NON_UNIQUE) = 0 AS is_unique,
	    GROUP_CONCAT(COLUMN_NAME ORDER BY SEQ_IN_INDEX SEPARATOR ',') AS column_names
	FROM information_schema.STATISTICS
	WHERE TABLE_SCHEMA = DATABASE()
	  AND TABLE_NAME = ?
	GROUP BY INDEX_NAME, INDEX_TYPE
	ORDER BY INDEX_NAME`

	rows, err := r.runQuery(ctx, query, table.Name)
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

// ListForeignKeys returns the foreign keys owned by a table with rules from
// REFERENTIAL_CONSTRAINTS.
func (r *CatalogReader) ListForeignKeys(ctx context.Context, table datasource.ObjectRef) ([]datasource.ForeignKeyDescriptor, error) {
	query := `
	SELECT
	    k.CONSTRAINT_NAME AS constraint_name,
	    k.COLUMN_NAME AS column_name,
	    k.REFERENCED_TABLE_SCHEMA AS referenced_schema,
	    k.REFERENCED_TABLE_NAME AS referenced_table,
	    k.REFERENCED_COLUMN_NAME AS referenced_column,
	    rc.DELETE_RULE AS delete_rule,
	    rc.UPDATE_RULE AS update_rule
	FROM information_schema.KEY_COLUMN_USAGE k
	JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
	    ON rc.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA
	   AND rc.CONSTRAINT_NAME = k.CONSTRAINT_NAME
	   AND rc.TABLE_NAME = k.TABLE_NAME
	WHERE k.TABLE_SCHEMA = DATABASE()
	  AND k.TABLE_NAME = ?
	  AND k.REFERENCED_TABLE_NAME IS NOT NULL
	ORDER BY k.CONSTRAINT_NAME, k.ORDINAL_POSITION`

	rows, err := r.runQuery(ctx, query, table.Name)
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

// ListViews returns views of the current database.
func (r *CatalogReader) ListViews(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SELECT
	    TABLE_SCHEMA AS schema_name,
	    TABLE_NAME AS object_name,
	    VIEW_DEFINITION AS definition
	FROM information_schema.VIEWS
	WHERE TABLE_SCHEMA = DATABASE()
	ORDER BY TABLE_NAME`

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

// ListFunctions returns stored functions with their return types.
func (r *CatalogReader) ListFunctions(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	rows, err := r.listRoutines(ctx, "FUNCTION")
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

// ListProcedures returns stored procedures.
func (r *CatalogReader) ListProcedures(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	rows, err := r.listRoutines(ctx, "PROCEDURE")
	if err != nil {
		return nil, fmt.Errorf("query procedures: %w", err)
	}
	return objectDescriptors(rows), nil
}

func (r *CatalogReader) listRoutines(ctx context.Context, routineType string) ([]datasource.Row, error) {
	query := `
	SELECT
	    ROUTINE_SCHEMA AS schema_name,
	    ROUTINE_NAME AS object_name,
	    ROUTINE_DEFINITION AS definition,
	    CREATED AS created,
	    LAST_ALTERED AS modified,
	    DATA_TYPE AS return_type_name,
	    DTD_IDENTIFIER AS return_full_type,
	    CHARACTER_MAXIMUM_LENGTH AS return_max_length,
	    NUMERIC_PRECISION AS return_numeric_precision,
	    NUMERIC_SCALE AS return_numeric_scale
	FROM information_schema.ROUTINES
	WHERE ROUTINE_SCHEMA = DATABASE()
	  AND ROUTINE_TYPE = ?
	ORDER BY ROUTINE_NAME`

	return r.runQuery(ctx, query, routineType)
}

// ListFunctionParameters returns the parameters of a function. Ordinal 0 is
// the return value and is excluded.
func (r *CatalogReader) ListFunctionParameters(ctx context.Context, fn datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return r.listParameters(ctx, fn, "FUNCTION")
}

// ListProcedureParameters returns the parameters of a procedure.
func (r *CatalogReader) ListProcedureParameters(ctx context.Context, proc datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return r.listParameters(ctx, proc, "PROCEDURE")
}

func (r *CatalogReader) listParameters(ctx context.Context, ref datasource.ObjectRef, routineType string) ([]datasource.ParameterDescriptor, error) {
	query := `
	SELECT
	    PARAMETER_NAME AS parameter_name,
	    ORDINAL_POSITION AS ordinal_position,
	    PARAMETER_MODE AS parameter_mode,
	    DATA_TYPE AS type_name,
	    DTD_IDENTIFIER AS full_type,
	    CHARACTER_MAXIMUM_LENGTH AS max_length,
	    NUMERIC_PRECISION AS numeric_precision,
	    NUMERIC_SCALE AS numeric_scale
	FROM information_schema.PARAMETERS
	WHERE SPECIFIC_SCHEMA = DATABASE()
	  AND SPECIFIC_NAME = ?
	  AND ROUTINE_TYPE = ?
	  AND ORDINAL_POSITION > 0
	ORDER BY ORDINAL_POSITION`

	rows, err := r.runQuery(ctx, query, ref.Name, routineType)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}

	params := make([]datasource.ParameterDescriptor, 0, len(rows))
	for _, row := range rows {
		direction := models.DirectionIn
		switch strings.ToUpper(row.String("parameter_mode")) {
		case "OUT":
			direction = models.DirectionOut
		case "INOUT":
			direction = models.DirectionInOut
		}
		params = append(params, datasource.ParameterDescriptor{
			Name:            row.String("parameter_name"),
			OrdinalPosition: int(row.Int64("ordinal_position")),
			Type:            row.TypeMeta(""),
			Direction:       direction,
		})
	}
	return params, nil
}

// ListTriggers returns triggers of the current database. MySQL triggers fire
// on exactly one event and cannot be disabled.
func (r *CatalogReader) ListTriggers(ctx context.Context) ([]datasource.TriggerDescriptor, error) {
	query := `
	SELECT
	    TRIGGER_SCHEMA AS schema_name,
	    TRIGGER_NAME AS trigger_name,
	    EVENT_OBJECT_SCHEMA AS table_schema,
	    EVENT_OBJECT_TABLE AS table_name,
	    ACTION_TIMING AS action_timing,
	    EVENT_MANIPULATION AS event,
	    ACTION_STATEMENT AS definition
	FROM information_schema.TRIGGERS
	WHERE TRIGGER_SCHEMA = DATABASE()
	ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME`

	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}

	triggers := make([]datasource.TriggerDescriptor, 0, len(rows))
	for _, row := range rows {
		triggers = append(triggers, datasource.TriggerDescriptor{
			Ref: datasource.ObjectRef{
				Schema: row.String("schema_name"),
				Name:   row.String("trigger_name"),
			},
			TableSchema: row.String("table_schema"),
			TableName:   row.String("table_name"),
			TriggerType: strings.ToUpper(row.String("action_timing")),
			Events:      datasource.SplitList(strings.ToUpper(row.String("event"))),
			IsEnabled:   true,
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
			},
			Definition: row.NullString("definition"),
			Created:    row.Time("created"),
			Modified:   row.Time("modified"),
		})
	}
	return objects
}
