package repositories

import "github.com/ekaya-inc/ekaya-schemadoc/pkg/models"

// columnOverlay is the user-authored part of a column row.
type columnOverlay struct {
	Description     *string
	PermittedValues *string
	ReleaseTag      *string
}

// carryColumnOverlays copies saved overlays onto fresh columns with the same name.
// Columns that disappeared from the source lose their overlays with them.
func carryColumnOverlays(fresh []models.SchemaColumn, saved map[string]columnOverlay) {
	for i := range fresh {
		o, ok := saved[fresh[i].ColumnName]
		if !ok {
			continue
		}
		if fresh[i].Description == nil {
			fresh[i].Description = o.Description
		}
		if fresh[i].PermittedValues == nil {
			fresh[i].PermittedValues = o.PermittedValues
		}
		if fresh[i].ReleaseTag == nil {
			fresh[i].ReleaseTag = o.ReleaseTag
		}
	}
}

// carryParameterOverlays copies saved descriptions onto fresh parameters with the same name.
func carryParameterOverlays(fresh []models.SchemaParameter, saved map[string]*string) {
	for i := range fresh {
		if fresh[i].Description != nil {
			continue
		}
		if desc, ok := saved[fresh[i].ParameterName]; ok {
			fresh[i].Description = desc
		}
	}
}
