package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/database"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// SchemaRepository provides data access for the reflected schema model.
// Extraction is the only writer of non-overlay fields.
type SchemaRepository interface {
	// UpsertObject inserts or updates an object by (database_id, object_type, name).
	// Overlay fields are never overwritten; the stored values are loaded into obj.
	UpsertObject(ctx context.Context, obj *models.SchemaObject) error

	// ReplaceChildren swaps the full child collection of an object in one transaction.
	// Column and parameter overlays are carried over by name from the previous set.
	ReplaceChildren(ctx context.Context, objectID uuid.UUID, children *models.SchemaChildren) error

	// GetObject returns an object with all of its children.
	GetObject(ctx context.Context, objectID uuid.UUID) (*models.SchemaObject, error)

	// GetObjectByName returns an object with all of its children by natural key.
	GetObjectByName(ctx context.Context, databaseID uuid.UUID, objectType models.ObjectType, name string) (*models.SchemaObject, error)

	// ListObjects returns objects of a database without children.
	// An empty objectType lists every category.
	ListObjects(ctx context.Context, databaseID uuid.UUID, objectType models.ObjectType) ([]*models.SchemaObject, error)
}

type schemaRepository struct{}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository() SchemaRepository {
	return &schemaRepository{}
}

var _ SchemaRepository = (*schemaRepository)(nil)

const objectColumns = `
	id, database_id, object_type, name, schema_name, description, language,
	definition, return_type, object_created, object_modified,
	table_name, trigger_type, events, is_enabled, created_at, updated_at`

// ============================================================================
// Object Methods
// ============================================================================

func (r *schemaRepository) UpsertObject(ctx context.Context, obj *models.SchemaObject) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no store scope in context")
	}

	now := time.Now()
	obj.UpdatedAt = now
	if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
		obj.CreatedAt = now
	}

	query := `
		INSERT INTO engine_schema_objects (
			id, database_id, object_type, name, schema_name,
			definition, return_type, object_created, object_modified,
			table_name, trigger_type, events, is_enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (database_id, object_type, name)
		DO UPDATE SET
			schema_name = EXCLUDED.schema_name,
			definition = EXCLUDED.definition,
			return_type = EXCLUDED.return_type,
			object_created = EXCLUDED.object_created,
			object_modified = EXCLUDED.object_modified,
			table_name = EXCLUDED.table_name,
			trigger_type = EXCLUDED.trigger_type,
			events = EXCLUDED.events,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, description, language`

	err := scope.Conn.QueryRow(ctx, query,
		obj.ID, obj.DatabaseID, string(obj.ObjectType), obj.Name, nullIfEmpty(obj.SchemaName),
		obj.Definition, obj.ReturnType, obj.ObjectCreated, obj.ObjectModified,
		obj.TableName, obj.TriggerType, obj.Events, obj.IsEnabled, obj.CreatedAt, obj.UpdatedAt,
	).Scan(&obj.ID, &obj.CreatedAt, &obj.Description, &obj.Language)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("database %s: %w", obj.DatabaseID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to upsert %s %q: %w", obj.ObjectType, obj.Name, err)
	}

	return nil
}

func (r *schemaRepository) GetObject(ctx context.Context, objectID uuid.UUID) (*models.SchemaObject, error) {
	return r.getObject(ctx, "id = $1", objectID)
}

func (r *schemaRepository) GetObjectByName(ctx context.Context, databaseID uuid.UUID, objectType models.ObjectType, name string) (*models.SchemaObject, error) {
	return r.getObject(ctx, "database_id = $1 AND object_type = $2 AND name = $3", databaseID, string(objectType), name)
}

func (r *schemaRepository) getObject(ctx context.Context, where string, args ...any) (*models.SchemaObject, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no store scope in context")
	}

	query := `SELECT ` + objectColumns + ` FROM engine_schema_objects WHERE ` + where
	obj, err := scanSchemaObject(scope.Conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("schema object: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get schema object: %w", err)
	}

	children, err := loadChildren(ctx, scope.Conn, obj.ID)
	if err != nil {
		return nil, err
	}
	obj.Columns = children.Columns
	obj.Indexes = children.Indexes
	obj.Relations = children.Relations
	obj.Parameters = children.Parameters

	return obj, nil
}

func (r *schemaRepository) ListObjects(ctx context.Context, databaseID uuid.UUID, objectType models.ObjectType) ([]*models.SchemaObject, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no store scope in context")
	}

	query := `
		SELECT ` + objectColumns + `
		FROM engine_schema_objects
		WHERE database_id = $1
		  AND ($2 = '' OR object_type = $2)
		ORDER BY object_type, name`

	rows, err := scope.Conn.Query(ctx, query, databaseID, string(objectType))
	if err != nil {
		return nil, fmt.Errorf("failed to list schema objects: %w", err)
	}
	defer rows.Close()

	var objects []*models.SchemaObject
	for rows.Next() {
		obj, err := scanSchemaObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema object: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema objects: %w", err)
	}
	return objects, nil
}

// ============================================================================
// Child Methods
// ============================================================================

func (r *schemaRepository) ReplaceChildren(ctx context.Context, objectID uuid.UUID, children *models.SchemaChildren) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no store scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	colOverlays, paramOverlays, err := snapshotOverlays(ctx, tx, objectID)
	if err != nil {
		return err
	}
	carryColumnOverlays(children.Columns, colOverlays)
	carryParameterOverlays(children.Parameters, paramOverlays)

	for _, table := range []string{
		"engine_schema_columns",
		"engine_schema_indexes",
		"engine_schema_relations",
		"engine_schema_parameters",
	} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE object_id = $1", objectID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	batch := &pgx.Batch{}
	for i := range children.Columns {
		c := &children.Columns[i]
		c.ID, c.ObjectID = uuid.New(), objectID
		batch.Queue(`
			INSERT INTO engine_schema_columns (
				id, object_id, ordinal_position, column_name, data_type, is_nullable, key_role,
				description, permitted_values, release_tag
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID, c.ObjectID, c.OrdinalPosition, c.ColumnName, c.DataType, c.IsNullable, keyRoleOrNone(c.KeyRole),
			c.Description, c.PermittedValues, c.ReleaseTag)
	}
	for i := range children.Indexes {
		idx := &children.Indexes[i]
		idx.ID, idx.ObjectID = uuid.New(), objectID
		batch.Queue(`
			INSERT INTO engine_schema_indexes (id, object_id, index_name, index_type, columns, is_primary, is_unique)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			idx.ID, idx.ObjectID, idx.IndexName, nullIfEmpty(idx.IndexType), idx.Columns, idx.IsPrimary, idx.IsUnique)
	}
	for i := range children.Relations {
		rel := &children.Relations[i]
		rel.ID, rel.ObjectID = uuid.New(), objectID
		batch.Queue(`
			INSERT INTO engine_schema_relations (
				id, object_id, constraint_name, column_name, referenced_table, referenced_column, delete_rule, update_rule
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rel.ID, rel.ObjectID, rel.ConstraintName, rel.ColumnName, rel.ReferencedTable, rel.ReferencedColumn,
			rel.DeleteRule, rel.UpdateRule)
	}
	for i := range children.Parameters {
		p := &children.Parameters[i]
		p.ID, p.ObjectID = uuid.New(), objectID
		batch.Queue(`
			INSERT INTO engine_schema_parameters (
				id, object_id, ordinal_position, parameter_name, data_type, direction, default_value, description
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.ObjectID, p.OrdinalPosition, p.ParameterName, p.DataType, p.Direction, p.DefaultValue, p.Description)
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert children: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to insert children: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querier is satisfied by *pgxpool.Conn and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func snapshotOverlays(ctx context.Context, q querier, objectID uuid.UUID) (map[string]columnOverlay, map[string]*string, error) {
	colOverlays := make(map[string]columnOverlay)
	rows, err := q.Query(ctx, `
		SELECT column_name, description, permitted_values, release_tag
		FROM engine_schema_columns
		WHERE object_id = $1
		  AND (description IS NOT NULL OR permitted_values IS NOT NULL OR release_tag IS NOT NULL)`, objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot column overlays: %w", err)
	}
	for rows.Next() {
		var name string
		var o columnOverlay
		if err := rows.Scan(&name, &o.Description, &o.PermittedValues, &o.ReleaseTag); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan column overlay: %w", err)
		}
		colOverlays[name] = o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating column overlays: %w", err)
	}

	paramOverlays := make(map[string]*string)
	rows, err = q.Query(ctx, `
		SELECT parameter_name, description
		FROM engine_schema_parameters
		WHERE object_id = $1 AND description IS NOT NULL`, objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot parameter overlays: %w", err)
	}
	for rows.Next() {
		var name string
		var desc *string
		if err := rows.Scan(&name, &desc); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan parameter overlay: %w", err)
		}
		paramOverlays[name] = desc
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating parameter overlays: %w", err)
	}

	return colOverlays, paramOverlays, nil
}

func loadChildren(ctx context.Context, q querier, objectID uuid.UUID) (*models.SchemaChildren, error) {
	var children models.SchemaChildren

	rows, err := q.Query(ctx, `
		SELECT id, object_id, ordinal_position, column_name, data_type, is_nullable, key_role,
		       description, permitted_values, release_tag
		FROM engine_schema_columns
		WHERE object_id = $1
		ORDER BY ordinal_position`, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	children.Columns, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SchemaColumn, error) {
		var c models.SchemaColumn
		err := row.Scan(&c.ID, &c.ObjectID, &c.OrdinalPosition, &c.ColumnName, &c.DataType, &c.IsNullable, &c.KeyRole,
			&c.Description, &c.PermittedValues, &c.ReleaseTag)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan columns: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, object_id, index_name, COALESCE(index_type, ''), columns, is_primary, is_unique
		FROM engine_schema_indexes
		WHERE object_id = $1
		ORDER BY index_name`, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	children.Indexes, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SchemaIndex, error) {
		var idx models.SchemaIndex
		err := row.Scan(&idx.ID, &idx.ObjectID, &idx.IndexName, &idx.IndexType, &idx.Columns, &idx.IsPrimary, &idx.IsUnique)
		return idx, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan indexes: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, object_id, constraint_name, column_name, referenced_table, referenced_column, delete_rule, update_rule
		FROM engine_schema_relations
		WHERE object_id = $1
		ORDER BY constraint_name, column_name`, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	children.Relations, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SchemaRelation, error) {
		var rel models.SchemaRelation
		err := row.Scan(&rel.ID, &rel.ObjectID, &rel.ConstraintName, &rel.ColumnName, &rel.ReferencedTable,
			&rel.ReferencedColumn, &rel.DeleteRule, &rel.UpdateRule)
		return rel, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan relations: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, object_id, ordinal_position, parameter_name, data_type, direction, default_value, description
		FROM engine_schema_parameters
		WHERE object_id = $1
		ORDER BY ordinal_position`, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	children.Parameters, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SchemaParameter, error) {
		var p models.SchemaParameter
		err := row.Scan(&p.ID, &p.ObjectID, &p.OrdinalPosition, &p.ParameterName, &p.DataType, &p.Direction,
			&p.DefaultValue, &p.Description)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan parameters: %w", err)
	}

	return &children, nil
}

func scanSchemaObject(row pgx.Row) (*models.SchemaObject, error) {
	var obj models.SchemaObject
	var objectType string
	var schemaName *string
	err := row.Scan(
		&obj.ID, &obj.DatabaseID, &objectType, &obj.Name, &schemaName, &obj.Description, &obj.Language,
		&obj.Definition, &obj.ReturnType, &obj.ObjectCreated, &obj.ObjectModified,
		&obj.TableName, &obj.TriggerType, &obj.Events, &obj.IsEnabled, &obj.CreatedAt, &obj.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	obj.ObjectType = models.ObjectType(objectType)
	if schemaName != nil {
		obj.SchemaName = *schemaName
	}
	return &obj, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func keyRoleOrNone(role string) string {
	if role == "" {
		return models.KeyRoleNone
	}
	return role
}
