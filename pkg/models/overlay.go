package models

import (
	"fmt"
	"strings"
)

// OverlayScope identifies which record an overlay field lives on.
type OverlayScope string

const (
	OverlayScopeObject    OverlayScope = "object"
	OverlayScopeColumn    OverlayScope = "column"
	OverlayScopeParameter OverlayScope = "parameter"
)

// Overlay attributes.
const (
	AttrDescription     = "description"
	AttrLanguage        = "language"
	AttrPermittedValues = "permitted_values"
	AttrReleaseTag      = "release_tag"
)

const paramDescriptionSuffix = "_param_description"

// OverlayField addresses one user-editable value.
// ChildName is the column or parameter name; empty for object-level fields.
type OverlayField struct {
	Scope     OverlayScope
	ChildName string
	Attribute string
}

// ObjectField addresses an overlay attribute on the object itself.
func ObjectField(attr string) OverlayField {
	return OverlayField{Scope: OverlayScopeObject, Attribute: attr}
}

// ColumnField addresses an overlay attribute on a named column.
func ColumnField(column, attr string) OverlayField {
	return OverlayField{Scope: OverlayScopeColumn, ChildName: column, Attribute: attr}
}

// ParameterField addresses the description of a named parameter.
func ParameterField(param string) OverlayField {
	return OverlayField{Scope: OverlayScopeParameter, ChildName: param, Attribute: AttrDescription}
}

// FieldID renders the identifier stored in the audit log.
func (f OverlayField) FieldID() string {
	switch f.Scope {
	case OverlayScopeColumn:
		return f.ChildName + "_" + f.Attribute
	case OverlayScopeParameter:
		return f.ChildName + paramDescriptionSuffix
	default:
		return f.Attribute
	}
}

// ParseFieldID resolves an audit field identifier back into an OverlayField
// for an object of type t. Column fields exist only on tables and views and
// parameter fields only on functions and procedures, so "is_param_description"
// on a table addresses the column "is_param".
func ParseFieldID(t ObjectType, fieldID string) (OverlayField, error) {
	switch fieldID {
	case AttrDescription, AttrLanguage:
		return ObjectField(fieldID), nil
	case "":
		return OverlayField{}, fmt.Errorf("empty field id")
	}

	switch t {
	case ObjectTypeTable, ObjectTypeView:
		for _, attr := range []string{AttrPermittedValues, AttrReleaseTag, AttrDescription} {
			if name, ok := strings.CutSuffix(fieldID, "_"+attr); ok && name != "" {
				return ColumnField(name, attr), nil
			}
		}
	case ObjectTypeFunction, ObjectTypeProcedure:
		if name, ok := strings.CutSuffix(fieldID, paramDescriptionSuffix); ok && name != "" {
			return ParameterField(name), nil
		}
	case ObjectTypeTrigger:
	default:
		return OverlayField{}, fmt.Errorf("unknown object type %q", t)
	}
	return OverlayField{}, fmt.Errorf("unrecognized field id %q for %s", fieldID, t)
}
