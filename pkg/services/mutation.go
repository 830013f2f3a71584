package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/metrics"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/repositories"
)

// FieldChange is one requested overlay edit. OldValue is the value the editor
// saw; nil means the field was empty.
type FieldChange struct {
	ActorID    *uuid.UUID
	DatabaseID uuid.UUID
	ObjectID   uuid.UUID
	FieldID    string
	OldValue   *string
	NewValue   *string
}

// ObjectEdit is a multi-field edit of one object keyed by field id
// ("description", "status_permitted_values", ...). A nil value clears the field.
type ObjectEdit struct {
	Fields map[string]*string
}

// MutationService guards every overlay edit with a before/after comparison
// and an append-only audit entry.
type MutationService interface {
	// ApplyFieldChange persists NewValue and one audit entry in a single
	// transaction when it differs from OldValue. Equal values write nothing.
	// The field id is resolved against the stored object's type.
	ApplyFieldChange(ctx context.Context, change FieldChange) error

	// EditObject compares each field against the currently stored value and
	// applies the ones that differ, one transaction per field. Returns the
	// number of fields changed before the first failure.
	EditObject(ctx context.Context, actorID *uuid.UUID, databaseID, objectID uuid.UUID, edit ObjectEdit) (int, error)

	// ListAuditLog returns entries for an object filtered by field-id prefix, newest first.
	ListAuditLog(ctx context.Context, objectID uuid.UUID, fieldPrefix string, limit int) ([]*models.AuditLogEntry, error)
}

type mutationService struct {
	schemaRepo  repositories.SchemaRepository
	overlayRepo repositories.OverlayRepository
	auditRepo   repositories.AuditRepository
	metrics     *metrics.Recorder
	logger      *zap.Logger
}

// NewMutationService creates a new mutation service with dependencies.
func NewMutationService(
	schemaRepo repositories.SchemaRepository,
	overlayRepo repositories.OverlayRepository,
	auditRepo repositories.AuditRepository,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) MutationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mutationService{
		schemaRepo:  schemaRepo,
		overlayRepo: overlayRepo,
		auditRepo:   auditRepo,
		metrics:     recorder,
		logger:      logger.Named("mutation"),
	}
}

var _ MutationService = (*mutationService)(nil)

func (s *mutationService) ApplyFieldChange(ctx context.Context, change FieldChange) error {
	obj, err := s.loadObject(ctx, change.DatabaseID, change.ObjectID)
	if err != nil {
		return err
	}
	field, err := models.ParseFieldID(obj.ObjectType, change.FieldID)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnknownField, err)
	}
	return s.applyChange(ctx, change, field)
}

// applyChange writes one already-resolved field change and its audit entry.
func (s *mutationService) applyChange(ctx context.Context, change FieldChange, field models.OverlayField) error {
	if equalValues(change.OldValue, change.NewValue) {
		return nil
	}

	entry := &models.AuditLogEntry{
		ActorID:    change.ActorID,
		DatabaseID: change.DatabaseID,
		ObjectID:   change.ObjectID,
		FieldID:    change.FieldID,
		Action:     models.AuditActionFor(change.OldValue, change.NewValue),
		OldValue:   change.OldValue,
		NewValue:   change.NewValue,
	}

	if err := s.overlayRepo.ApplyOverlay(ctx, change.ObjectID, field, change.NewValue, entry); err != nil {
		s.metrics.OverlayFailed(string(field.Scope))
		return fmt.Errorf("failed to apply %s: %w", change.FieldID, err)
	}

	s.metrics.OverlayChanged(string(field.Scope), entry.Action)
	s.logger.Info("Overlay field changed",
		zap.String("object_id", change.ObjectID.String()),
		zap.String("field_id", change.FieldID),
		zap.String("action", entry.Action))
	return nil
}

func (s *mutationService) loadObject(ctx context.Context, databaseID, objectID uuid.UUID) (*models.SchemaObject, error) {
	obj, err := s.schemaRepo.GetObject(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load object: %w", err)
	}
	if obj.DatabaseID != databaseID {
		return nil, fmt.Errorf("object %s in database %s: %w", objectID, databaseID, apperrors.ErrNotFound)
	}
	return obj, nil
}

func (s *mutationService) EditObject(ctx context.Context, actorID *uuid.UUID, databaseID, objectID uuid.UUID, edit ObjectEdit) (int, error) {
	if len(edit.Fields) == 0 {
		return 0, nil
	}

	obj, err := s.loadObject(ctx, databaseID, objectID)
	if err != nil {
		return 0, err
	}

	fieldIDs := make([]string, 0, len(edit.Fields))
	for id := range edit.Fields {
		fieldIDs = append(fieldIDs, id)
	}
	sort.Strings(fieldIDs)

	changed := 0
	for _, id := range fieldIDs {
		field, err := models.ParseFieldID(obj.ObjectType, id)
		if err != nil {
			return changed, fmt.Errorf("%w: %v", apperrors.ErrUnknownField, err)
		}
		current, err := storedValue(obj, field)
		if err != nil {
			return changed, err
		}

		newValue := edit.Fields[id]
		if equalValues(current, newValue) {
			continue
		}

		err = s.applyChange(ctx, FieldChange{
			ActorID:    actorID,
			DatabaseID: databaseID,
			ObjectID:   objectID,
			FieldID:    id,
			OldValue:   current,
			NewValue:   newValue,
		}, field)
		if err != nil {
			return changed, err
		}
		changed++
	}

	return changed, nil
}

func (s *mutationService) ListAuditLog(ctx context.Context, objectID uuid.UUID, fieldPrefix string, limit int) ([]*models.AuditLogEntry, error) {
	entries, err := s.auditRepo.ListByObject(ctx, objectID, fieldPrefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return entries, nil
}

// storedValue reads the current overlay value addressed by field from a loaded object.
func storedValue(obj *models.SchemaObject, field models.OverlayField) (*string, error) {
	switch field.Scope {
	case models.OverlayScopeObject:
		switch field.Attribute {
		case models.AttrDescription:
			return obj.Description, nil
		case models.AttrLanguage:
			return obj.Language, nil
		}
	case models.OverlayScopeColumn:
		for _, c := range obj.Columns {
			if c.ColumnName != field.ChildName {
				continue
			}
			switch field.Attribute {
			case models.AttrDescription:
				return c.Description, nil
			case models.AttrPermittedValues:
				return c.PermittedValues, nil
			case models.AttrReleaseTag:
				return c.ReleaseTag, nil
			}
		}
		return nil, fmt.Errorf("column %q of %s: %w", field.ChildName, obj.Name, apperrors.ErrNotFound)
	case models.OverlayScopeParameter:
		for _, p := range obj.Parameters {
			if p.ParameterName == field.ChildName {
				return p.Description, nil
			}
		}
		return nil, fmt.Errorf("parameter %q of %s: %w", field.ChildName, obj.Name, apperrors.ErrNotFound)
	}
	return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownField, field.FieldID())
}

// equalValues compares strictly: nil equals only nil, and "" is a value.
func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
