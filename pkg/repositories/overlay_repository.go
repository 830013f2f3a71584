package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/database"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// OverlayRepository writes user-authored overlay values.
// Edits are the only writer of overlay fields.
type OverlayRepository interface {
	// ApplyOverlay sets one overlay value and records entry in the same
	// transaction: either both persist or neither does. Returns
	// apperrors.ErrNotFound when the object, column or parameter does not exist.
	ApplyOverlay(ctx context.Context, objectID uuid.UUID, field models.OverlayField, value *string, entry *models.AuditLogEntry) error
}

type overlayRepository struct{}

// NewOverlayRepository creates a new OverlayRepository.
func NewOverlayRepository() OverlayRepository {
	return &overlayRepository{}
}

var _ OverlayRepository = (*overlayRepository)(nil)

func (r *overlayRepository) ApplyOverlay(ctx context.Context, objectID uuid.UUID, field models.OverlayField, value *string, entry *models.AuditLogEntry) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no store scope in context")
	}

	query, args, err := overlayUpdate(objectID, field, value)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", field.FieldID(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s on object %s: %w", field.FieldID(), objectID, apperrors.ErrNotFound)
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// overlayUpdate maps a field onto its UPDATE statement. Column names come
// from a fixed set, never from the field id text.
func overlayUpdate(objectID uuid.UUID, field models.OverlayField, value *string) (string, []any, error) {
	switch field.Scope {
	case models.OverlayScopeObject:
		switch field.Attribute {
		case models.AttrDescription, models.AttrLanguage:
			return `UPDATE engine_schema_objects SET ` + field.Attribute + ` = $2, updated_at = now() WHERE id = $1`,
				[]any{objectID, value}, nil
		}
	case models.OverlayScopeColumn:
		switch field.Attribute {
		case models.AttrDescription, models.AttrPermittedValues, models.AttrReleaseTag:
			return `UPDATE engine_schema_columns SET ` + field.Attribute + ` = $3 WHERE object_id = $1 AND column_name = $2`,
				[]any{objectID, field.ChildName, value}, nil
		}
	case models.OverlayScopeParameter:
		if field.Attribute == models.AttrDescription {
			return `UPDATE engine_schema_parameters SET description = $3 WHERE object_id = $1 AND parameter_name = $2`,
				[]any{objectID, field.ChildName, value}, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownField, field.FieldID())
}
