package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/database"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// AuditRepository reads the overlay audit log. Entries are written only by
// OverlayRepository.ApplyOverlay, in the same transaction as the overlay.
type AuditRepository interface {
	// ListByObject returns entries for an object whose field id starts with
	// fieldPrefix, newest first. An empty prefix matches every field and a
	// non-positive limit returns all entries.
	ListByObject(ctx context.Context, objectID uuid.UUID, fieldPrefix string, limit int) ([]*models.AuditLogEntry, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) ListByObject(ctx context.Context, objectID uuid.UUID, fieldPrefix string, limit int) ([]*models.AuditLogEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no store scope in context")
	}

	query := `
		SELECT id, actor_id, database_id, object_id, field_id, action, old_value, new_value, created_at
		FROM engine_schema_audit_log
		WHERE object_id = $1
		  AND starts_with(field_id, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($3::int, 0)`

	if limit < 0 {
		limit = 0
	}

	rows, err := scope.Conn.Query(ctx, query, objectID, fieldPrefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, nil
}

// execer is satisfied by pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAuditEntry(ctx context.Context, db execer, entry *models.AuditLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO engine_schema_audit_log (
			id, actor_id, database_id, object_id, field_id, action, old_value, new_value, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.Exec(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.DatabaseID,
		entry.ObjectID,
		entry.FieldID,
		entry.Action,
		entry.OldValue,
		entry.NewValue,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return nil
}

func scanAuditLogEntry(row pgx.Row) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry

	err := row.Scan(
		&entry.ID,
		&entry.ActorID,
		&entry.DatabaseID,
		&entry.ObjectID,
		&entry.FieldID,
		&entry.Action,
		&entry.OldValue,
		&entry.NewValue,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	return &entry, nil
}
