// Package migrations holds the SchemaStore DDL, embedded so the binary can
// migrate a store without shipping the SQL files alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
