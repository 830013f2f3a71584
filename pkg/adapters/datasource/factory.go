package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// ReaderFactory creates catalog readers for connections.
type ReaderFactory interface {
	// NewCatalogReader returns the reader for the connection's dialect.
	NewCatalogReader(conn Connection) (CatalogReader, error)
}

type registryFactory struct {
	logger *zap.Logger
}

// NewReaderFactory returns a factory that uses the global registry.
func NewReaderFactory(logger *zap.Logger) ReaderFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{logger: logger}
}

var _ ReaderFactory = (*registryFactory)(nil)

func (f *registryFactory) NewCatalogReader(conn Connection) (CatalogReader, error) {
	if conn.Querier == nil {
		return nil, fmt.Errorf("connection has no query handle")
	}
	factory := GetReaderFactory(conn.Dialect)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDialect, conn.Dialect)
	}
	return factory(conn.Querier, f.logger.With(zap.String("dialect", conn.Dialect.String()))), nil
}

// Open creates an owned pool for the dialect using its registered connector.
func Open(ctx context.Context, dialect models.Dialect, config map[string]any) (ConnectionCloser, error) {
	factory := GetConnectorFactory(dialect)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDialect, dialect)
	}
	return factory(ctx, config)
}
