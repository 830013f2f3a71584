package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// Connection is a live, already-authenticated handle plus the dialect tag of
// the database behind it. Provisioning and closing it is the caller's job.
type Connection struct {
	Dialect models.Dialect
	Querier Querier
}

// ConnectionCloser is a Querier that owns its pool and must be closed when done.
type ConnectionCloser interface {
	Querier

	// Ping verifies the database is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases the underlying pool.
	Close() error
}

// CatalogReader issues catalog queries for one dialect.
// Each listing call is independent; a failure in one leaves the others usable.
type CatalogReader interface {
	// ListTables returns all user tables (excludes system/shipped objects).
	ListTables(ctx context.Context) ([]ObjectDescriptor, error)

	// ListColumns returns the ordered columns of a table.
	ListColumns(ctx context.Context, table ObjectRef) ([]ColumnDescriptor, error)

	// ListIndexes returns the indexes of a table with their ordered column lists.
	ListIndexes(ctx context.Context, table ObjectRef) ([]IndexDescriptor, error)

	// ListForeignKeys returns the foreign key column pairings owned by a table.
	ListForeignKeys(ctx context.Context, table ObjectRef) ([]ForeignKeyDescriptor, error)

	// ListViews returns all user views with their definitions.
	ListViews(ctx context.Context) ([]ObjectDescriptor, error)

	// ListViewColumns returns the ordered columns of a view.
	ListViewColumns(ctx context.Context, view ObjectRef) ([]ColumnDescriptor, error)

	// ListFunctions returns all user functions with definitions and return types.
	ListFunctions(ctx context.Context) ([]ObjectDescriptor, error)

	// ListFunctionParameters returns the ordered parameters of a function.
	ListFunctionParameters(ctx context.Context, fn ObjectRef) ([]ParameterDescriptor, error)

	// ListProcedures returns all user stored procedures.
	ListProcedures(ctx context.Context) ([]ObjectDescriptor, error)

	// ListProcedureParameters returns the ordered parameters of a procedure.
	ListProcedureParameters(ctx context.Context, proc ObjectRef) ([]ParameterDescriptor, error)

	// ListTriggers returns all user triggers.
	ListTriggers(ctx context.Context) ([]TriggerDescriptor, error)
}
