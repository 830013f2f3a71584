package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the "execute query, get rows" capability the catalog readers run on.
// The engine never manages connection lifecycle through it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// PostgresPoolWrapper wraps *pgxpool.Pool to implement Querier.
type PostgresPoolWrapper struct {
	pool *pgxpool.Pool
}

// NewPostgresPoolWrapper creates a new PostgreSQL pool wrapper.
func NewPostgresPoolWrapper(pool *pgxpool.Pool) *PostgresPoolWrapper {
	return &PostgresPoolWrapper{pool: pool}
}

var _ Querier = (*PostgresPoolWrapper)(nil)

// Query runs the statement and collects every row into a Row map.
func (w *PostgresPoolWrapper) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := w.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var result []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[strings.ToLower(fd.Name)] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// Ping verifies the PostgreSQL connection is alive.
func (w *PostgresPoolWrapper) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// Close closes all connections in the PostgreSQL pool.
func (w *PostgresPoolWrapper) Close() error {
	w.pool.Close()
	return nil
}

// SQLDBWrapper wraps *sql.DB (SQL Server and MySQL drivers) to implement Querier.
type SQLDBWrapper struct {
	db *sql.DB
}

// NewSQLDBWrapper creates a new database/sql wrapper.
func NewSQLDBWrapper(db *sql.DB) *SQLDBWrapper {
	return &SQLDBWrapper{db: db}
}

var _ Querier = (*SQLDBWrapper)(nil)

// Query runs the statement and collects every row into a Row map.
func (w *SQLDBWrapper) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			// Drivers reuse byte buffers between rows.
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[strings.ToLower(col)] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// Ping verifies the connection is alive.
func (w *SQLDBWrapper) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Close closes all connections in the pool.
func (w *SQLDBWrapper) Close() error {
	return w.db.Close()
}
