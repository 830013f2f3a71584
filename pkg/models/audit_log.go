package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of change recorded for an overlay field.
const (
	AuditActionCreate = "create" // null -> value
	AuditActionUpdate = "update"
	AuditActionDelete = "delete" // value -> null
)

// AuditLogEntry is an immutable record of one overlay field change.
// Stored in engine_schema_audit_log table.
type AuditLogEntry struct {
	ID         uuid.UUID  `json:"id" yaml:"id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty" yaml:"actor_id,omitempty"` // may be null for system operations
	DatabaseID uuid.UUID  `json:"database_id" yaml:"database_id"`
	ObjectID   uuid.UUID  `json:"object_id" yaml:"object_id"`
	FieldID    string     `json:"field_id" yaml:"field_id"` // e.g. "description", "customer_name_permitted_values"
	Action     string     `json:"action" yaml:"action"`
	OldValue   *string    `json:"old_value,omitempty" yaml:"old_value,omitempty"`
	NewValue   *string    `json:"new_value,omitempty" yaml:"new_value,omitempty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
}

// AuditActionFor classifies a change between two values.
func AuditActionFor(oldValue, newValue *string) string {
	switch {
	case oldValue == nil:
		return AuditActionCreate
	case newValue == nil:
		return AuditActionDelete
	default:
		return AuditActionUpdate
	}
}
