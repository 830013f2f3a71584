package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

const testDialect models.Dialect = "testdb"

type stubQuerier struct{}

func (stubQuerier) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return nil, nil
}

type stubReader struct {
	CatalogReader
	q Querier
}

func registerTestDialect(t *testing.T) {
	t.Helper()
	Register(DialectRegistration{
		Info: DialectInfo{Dialect: testDialect, DisplayName: "Test DB"},
		ReaderFactory: func(q Querier, logger *zap.Logger) CatalogReader {
			return &stubReader{q: q}
		},
		ConnectorFactory: func(ctx context.Context, config map[string]any) (ConnectionCloser, error) {
			return nil, errors.New("connect refused")
		},
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, testDialect)
		registryMu.Unlock()
	})
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registerTestDialect(t)

	assert.True(t, IsRegistered(testDialect))
	assert.False(t, IsRegistered("oracle"))
	assert.NotNil(t, GetReaderFactory(testDialect))
	assert.Nil(t, GetReaderFactory("oracle"))

	found := false
	dialects := RegisteredDialects()
	for i, info := range dialects {
		if i > 0 {
			assert.Less(t, dialects[i-1].Dialect, info.Dialect)
		}
		if info.Dialect == testDialect {
			found = true
			assert.Equal(t, "Test DB", info.DisplayName)
		}
	}
	assert.True(t, found)
}

func TestReaderFactory_NewCatalogReader(t *testing.T) {
	registerTestDialect(t)
	factory := NewReaderFactory(zaptest.NewLogger(t))

	reader, err := factory.NewCatalogReader(Connection{Dialect: testDialect, Querier: stubQuerier{}})
	require.NoError(t, err)
	stub, ok := reader.(*stubReader)
	require.True(t, ok)
	assert.Equal(t, stubQuerier{}, stub.q)

	_, err = factory.NewCatalogReader(Connection{Dialect: "oracle", Querier: stubQuerier{}})
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedDialect))

	_, err = factory.NewCatalogReader(Connection{Dialect: testDialect})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	registerTestDialect(t)

	_, err := Open(context.Background(), testDialect, nil)
	assert.EqualError(t, err, "connect refused")

	_, err = Open(context.Background(), "oracle", nil)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedDialect))
}
