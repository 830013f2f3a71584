package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Dialect:     models.DialectPostgres,
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+",
		},
		ReaderFactory: func(q datasource.Querier, logger *zap.Logger) datasource.CatalogReader {
			return NewCatalogReader(q, logger)
		},
		ConnectorFactory: func(ctx context.Context, config map[string]any) (datasource.ConnectionCloser, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return Open(ctx, cfg)
		},
	})
}
