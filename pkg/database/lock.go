package database

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
)

// TryExtractionLock takes a session-level advisory lock keyed by database id so
// two extractions of the same database cannot interleave. The lock is bound to
// the scope's connection; the returned unlock must run before the scope closes.
// Returns apperrors.ErrExtractionRunning when another session holds it.
func TryExtractionLock(ctx context.Context, databaseID string) (func(), error) {
	scope, ok := GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no store scope in context")
	}

	var acquired bool
	if err := scope.Conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", databaseID).Scan(&acquired); err != nil {
		return nil, fmt.Errorf("acquire extraction lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrExtractionRunning, databaseID)
	}

	return func() {
		_, _ = scope.Conn.Exec(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", databaseID)
	}, nil
}
