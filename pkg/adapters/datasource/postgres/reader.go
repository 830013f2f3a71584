package postgres

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

// userObjectFilter excludes system schemas and objects owned by extensions.
// Expects pg_namespace aliased n; %s is the object's oid expression.
const userObjectFilter = `n.nspname NOT IN ('pg_catalog', 'information_schema')
	  AND n.nspname NOT LIKE 'pg\_toast%%'
	  AND n.nspname NOT LIKE 'pg\_temp\_%%'
	  AND NOT EXISTS (SELECT 1 FROM pg_depend dep WHERE dep.objid = %s AND dep.deptype = 'e')`

// relationFilter resolves a table or view by oid, falling back to schema and name.
const relationFilter = `COALESCE(NULLIF($1::bigint, 0)::oid, to_regclass(quote_ident($2) || '.' || quote_ident($3))::oid)`

// routineFilter resolves a function or procedure by oid, falling back to schema and name.
const routineFilter = `COALESCE(NULLIF($1::bigint, 0)::oid, (
	    SELECT rp.oid FROM pg_proc rp
	    JOIN pg_namespace rn ON rn.oid = rp.pronamespace
	    WHERE rn.nspname = $2 AND rp.proname = $3
	    ORDER BY rp.oid
	    LIMIT 1))`

// Trigger tgtype bits.
const (
	tgTypeBefore   = 1 << 1
	tgTypeInsert   = 1 << 2
	tgTypeDelete   = 1 << 3
	tgTypeUpdate   = 1 << 4
	tgTypeTruncate = 1 << 5
	tgTypeInstead  = 1 << 6
)

// CatalogReader implements datasource.CatalogReader over pg_catalog.
type CatalogReader struct {
	q      datasource.Querier
	logger *zap.Logger
}

// NewCatalogReader creates a PostgreSQL catalog reader.
// If logger is nil, a no-op logger is used.
func NewCatalogReader(q datasource.Querier, logger *zap.Logger) *CatalogReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogReader{q: q, logger: logger.Named("postgres")}
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

func refArgs(ref datasource.ObjectRef) []any {
	return []any{ref.ID, ref.Schema, ref.Name}
}

// ListTables returns ordinary and partitioned tables; partitions are skipped.
func (r *CatalogReader) ListTables(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SELECT
	    c.oid::bigint AS object_id,
	    n.nspname AS schema_name,
	    c.relname AS object_name
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relkind IN ('r', 'p')
	  AND NOT c.relispartition
	  AND ` + fmt.Sprintf(userObjectFilter, "c.oid") + `
	ORDER BY n.nspname, c.relname`

	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return objectDescriptors(rows), nil
}

// ListColumns returns the columns of a table with key roles.
// Integer columns defaulting to nextval() are reported as serial types.
func (r *CatalogReader) ListColumns(ctx context.Context, table datasource.ObjectRef) ([]datasource.ColumnDescriptor, error) {
	query := `
	SELECT
	    a.attname AS column_name,
	    a.attnum::bigint AS ordinal_position,
	    t.typname AS type_name,
	    format_type(a.atttypid, a.atttypmod) AS full_type,
	    CASE
	        WHEN t.typname IN ('varchar', 'bpchar') AND a.atttypmod > 4 THEN (a.atttypmod - 4)::bigint
	        WHEN t.typname IN ('bit', 'varbit') AND a.atttypmod > 0 THEN a.atttypmod::bigint
	    END AS max_length,
	    CASE WHEN t.typname = 'numeric' AND a.atttypmod > 4 THEN (((a.atttypmod - 4) >> 16) & 65535)::bigint END AS numeric_precision,
	    CASE WHEN t.typname = 'numeric' AND a.atttypmod > 4 THEN ((a.atttypmod - 4) & 65535)::bigint END AS numeric_scale,
	    NOT a.attnotnull AS is_nullable,
	    pg_get_expr(d.adbin, d.adrelid) AS column_default,
	    EXISTS (
	        SELECT 1 FROM pg_constraint pk
	        WHERE pk.conrelid = a.attrelid AND pk.contype = 'p' AND a.attnum = ANY(pk.conkey)
	    ) AS is_primary_key,
	    EXISTS (
	        SELECT 1 FROM pg_constraint fk
	        WHERE fk.conrelid = a.attrelid AND fk.contype = 'f' AND a.attnum = ANY(fk.conkey)
	    ) AS is_foreign_key
	FROM pg_attribute a
	JOIN pg_type t ON t.oid = a.atttypid
	LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
	WHERE a.attrelid = ` + relationFilter + `
	  AND a.attnum > 0
	  AND NOT a.attisdropped
	ORDER BY a.attnum`

	rows, err := r.runQuery(ctx, query, refArgs(table)...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	cols := make([]datasource.ColumnDescriptor, 0, len(rows))
	for _, row := range rows {
		meta := row.TypeMeta("")
		if def := row.String("column_default"); strings.HasPrefix(def, "nextval(") {
			if serial, ok := serialTypes[meta.Name]; ok {
				meta.Name = serial
			}
		}
		cols = append(cols, datasource.ColumnDescriptor{
			Name:            row.String("column_name"),
			OrdinalPosition: int(row.Int64("ordinal_position")),
			Type:            meta,
			IsNullable:      row.Bool("is_nullable"),
			IsPrimaryKey:    row.Bool("is_primary_key"),
			IsForeignKey:    row.Bool("is_foreign_key"),
		})
	}
	return cols, nil
}

var serialTypes = map[string]string{
	"int2": "smallserial",
	"int4": "serial",
	"int8": "bigserial",
}

// ListIndexes returns the indexes of a table with key columns in index order.
// Expression columns are rendered by pg_get_indexdef.
func (r *CatalogReader) ListIndexes(ctx context.Context, table datasource.ObjectRef) ([]datasource.IndexDescriptor, error) {
	query := `
	SELECT
	    ic.relname AS index_name,
	    am.amname AS index_type,
	    i.indisprimary AS is_primary,
	    i.indisunique AS is_unique,
	    array_to_string(ARRAY(
	        SELECT pg_get_indexdef(i.indexrelid, k + 1, true)
	        FROM generate_subscripts(i.indkey, 1) AS k
	        WHERE k < i.indnkeyatts
	        ORDER BY k
	    ), ',') AS column_names
	FROM pg_index i
	JOIN pg_class ic ON ic.oid = i.indexrelid
	JOIN pg_am am ON am.oid = ic.relam
	WHERE i.indrelid = ` + relationFilter + `
	ORDER BY ic.relname`

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

// ListForeignKeys returns foreign keys owned by a table, one row per column pair.
// pg_get_constraintdef yields free text; rules are parsed from its ON DELETE /
// ON UPDATE clauses.
func (r *CatalogReader) ListForeignKeys(ctx context.Context, table datasource.ObjectRef) ([]datasource.ForeignKeyDescriptor, error) {
	query := `
	SELECT
	    con.conname AS constraint_name,
	    a.attname AS column_name,
	    fn.nspname AS referenced_schema,
	    fc.relname AS referenced_table,
	    fa.attname AS referenced_column,
	    pg_get_constraintdef(con.oid) AS definition
	FROM pg_constraint con
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, fattnum, pos)
	JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
	JOIN pg_class fc ON fc.oid = con.confrelid
	JOIN pg_namespace fn ON fn.oid = fc.relnamespace
	JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
	WHERE con.contype = 'f'
	  AND con.conrelid = ` + relationFilter + `
	ORDER BY con.conname, k.pos`

	rows, err := r.runQuery(ctx, query, refArgs(table)...)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}

	fks := make([]datasource.ForeignKeyDescriptor, 0, len(rows))
	for _, row := range rows {
		deleteRule, updateRule := datasource.ParseReferenceActions(row.String("definition"))
		fks = append(fks, datasource.ForeignKeyDescriptor{
			ConstraintName:   row.String("constraint_name"),
			ColumnName:       row.String("column_name"),
			ReferencedSchema: row.String("referenced_schema"),
			ReferencedTable:  row.String("referenced_table"),
			ReferencedColumn: row.String("referenced_column"),
			DeleteRule:       deleteRule,
			UpdateRule:       updateRule,
		})
	}
	return fks, nil
}

// ListViews returns views and materialized views.
func (r *CatalogReader) ListViews(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	query := `
	SELECT
	    c.oid::bigint AS object_id,
	    n.nspname AS schema_name,
	    c.relname AS object_name,
	    pg_get_viewdef(c.oid, true) AS definition
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relkind IN ('v', 'm')
	  AND ` + fmt.Sprintf(userObjectFilter, "c.oid") + `
	ORDER BY n.nspname, c.relname`

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

// ListFunctions returns plain functions (prokind 'f'); aggregates and window
// functions are skipped.
func (r *CatalogReader) ListFunctions(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	rows, err := r.listRoutines(ctx, "f")
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}

	objects := objectDescriptors(rows)
	for i, row := range rows {
		if meta := row.TypeMeta("return_"); meta.Name != "" || meta.Full != "" {
			objects[i].ReturnType = &meta
		}
	}
	return objects, nil
}

// ListProcedures returns procedures (prokind 'p', PostgreSQL 11+).
func (r *CatalogReader) ListProcedures(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	rows, err := r.listRoutines(ctx, "p")
	if err != nil {
		return nil, fmt.Errorf("query procedures: %w", err)
	}
	return objectDescriptors(rows), nil
}

// listRoutines lists pg_proc entries of one kind. Overloaded names are
// disambiguated with their identity arguments.
func (r *CatalogReader) listRoutines(ctx context.Context, kind string) ([]datasource.Row, error) {
	query := `
	SELECT
	    p.oid::bigint AS object_id,
	    n.nspname AS schema_name,
	    CASE
	        WHEN count(*) OVER (PARTITION BY n.nspname, p.proname) > 1
	        THEN p.proname || '(' || pg_get_function_identity_arguments(p.oid) || ')'
	        ELSE p.proname
	    END AS object_name,
	    pg_get_functiondef(p.oid) AS definition,
	    t.typname AS return_type_name,
	    format_type(p.prorettype, NULL) AS return_full_type
	FROM pg_proc p
	JOIN pg_namespace n ON n.oid = p.pronamespace
	JOIN pg_type t ON t.oid = p.prorettype
	WHERE p.prokind = $1
	  AND ` + fmt.Sprintf(userObjectFilter, "p.oid") + `
	ORDER BY n.nspname, p.proname, p.oid`

	return r.runQuery(ctx, query, kind)
}

// ListFunctionParameters returns the parameters of a function.
func (r *CatalogReader) ListFunctionParameters(ctx context.Context, fn datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return r.listParameters(ctx, fn)
}

// ListProcedureParameters returns the parameters of a procedure.
func (r *CatalogReader) ListProcedureParameters(ctx context.Context, proc datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return r.listParameters(ctx, proc)
}

// listParameters reads information_schema.parameters, whose specific_name is
// "<proname>_<oid>".
func (r *CatalogReader) listParameters(ctx context.Context, ref datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	query := `
	SELECT
	    COALESCE(NULLIF(pr.parameter_name, ''), '$' || pr.ordinal_position) AS parameter_name,
	    pr.ordinal_position::bigint AS ordinal_position,
	    pr.udt_name AS type_name,
	    pr.parameter_mode AS parameter_mode,
	    pr.parameter_default AS default_value
	FROM information_schema.parameters pr
	JOIN pg_proc p ON pr.specific_name = p.proname || '_' || p.oid
	JOIN pg_namespace n ON n.oid = p.pronamespace AND n.nspname = pr.specific_schema
	WHERE p.oid = ` + routineFilter + `
	ORDER BY pr.ordinal_position`

	rows, err := r.runQuery(ctx, query, refArgs(ref)...)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}

	params := make([]datasource.ParameterDescriptor, 0, len(rows))
	for _, row := range rows {
		params = append(params, datasource.ParameterDescriptor{
			Name:            row.String("parameter_name"),
			OrdinalPosition: int(row.Int64("ordinal_position")),
			Type:            row.TypeMeta(""),
			Direction:       parameterDirection(row.String("parameter_mode")),
			DefaultValue:    row.NullString("default_value"),
		})
	}
	return params, nil
}

func parameterDirection(mode string) string {
	switch strings.ToUpper(mode) {
	case "OUT":
		return models.DirectionOut
	case "INOUT":
		return models.DirectionInOut
	}
	// IN and VARIADIC
	return models.DirectionIn
}

// ListTriggers returns user triggers; constraint and other internal triggers
// are skipped.
func (r *CatalogReader) ListTriggers(ctx context.Context) ([]datasource.TriggerDescriptor, error) {
	query := `
	SELECT
	    t.oid::bigint AS object_id,
	    t.tgname AS trigger_name,
	    n.nspname AS table_schema,
	    c.relname AS table_name,
	    t.tgtype::bigint AS tgtype,
	    t.tgenabled::text AS enabled_state,
	    pg_get_triggerdef(t.oid, true) AS definition
	FROM pg_trigger t
	JOIN pg_class c ON c.oid = t.tgrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE NOT t.tgisinternal
	  AND ` + fmt.Sprintf(userObjectFilter, "c.oid") + `
	ORDER BY n.nspname, c.relname, t.tgname`

	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}

	triggers := make([]datasource.TriggerDescriptor, 0, len(rows))
	for _, row := range rows {
		tgtype := row.Int64("tgtype")
		schema := row.String("table_schema")
		triggers = append(triggers, datasource.TriggerDescriptor{
			Ref: datasource.ObjectRef{
				Schema: schema,
				Name:   row.String("trigger_name"),
				ID:     row.Int64("object_id"),
			},
			TableSchema: schema,
			TableName:   row.String("table_name"),
			TriggerType: triggerTiming(tgtype),
			Events:      triggerEvents(tgtype),
			IsEnabled:   row.String("enabled_state") != "D",
			Definition:  row.NullString("definition"),
		})
	}
	return triggers, nil
}

func triggerTiming(tgtype int64) string {
	switch {
	case tgtype&tgTypeInstead != 0:
		return "INSTEAD OF"
	case tgtype&tgTypeBefore != 0:
		return "BEFORE"
	}
	return "AFTER"
}

func triggerEvents(tgtype int64) []string {
	var events []string
	if tgtype&tgTypeInsert != 0 {
		events = append(events, "INSERT")
	}
	if tgtype&tgTypeUpdate != 0 {
		events = append(events, "UPDATE")
	}
	if tgtype&tgTypeDelete != 0 {
		events = append(events, "DELETE")
	}
	if tgtype&tgTypeTruncate != 0 {
		events = append(events, "TRUNCATE")
	}
	return events
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
		})
	}
	return objects
}
