package mssql

import (
	"database/sql"
	"strings"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
)

// objectIDFilter resolves a reference by object_id when known, otherwise by
// QUOTENAME'd schema and name so identifiers with brackets or dots stay safe.
const objectIDFilter = `COALESCE(NULLIF(@object_id, 0), OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@name)))`

// refArgs binds the named parameters used by objectIDFilter.
func refArgs(ref datasource.ObjectRef) []any {
	return []any{
		sql.Named("object_id", ref.ID),
		sql.Named("schema", ref.Schema),
		sql.Named("name", ref.Name),
	}
}

// triggerEvents maps sys.trigger_events type_desc values (INSERT, UPDATE,
// DELETE) to an ordered, de-duplicated list.
func triggerEvents(aggregated string) []string {
	seen := make(map[string]bool)
	var events []string
	for _, e := range datasource.SplitList(aggregated) {
		e = strings.ToUpper(e)
		if !seen[e] {
			seen[e] = true
			events = append(events, e)
		}
	}
	return events
}
