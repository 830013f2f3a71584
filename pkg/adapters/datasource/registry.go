package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// DialectInfo describes a registered dialect.
type DialectInfo struct {
	Dialect     models.Dialect `json:"dialect" yaml:"dialect"`
	DisplayName string         `json:"display_name" yaml:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string         `json:"description" yaml:"description"`
}

// DialectRegistration contains info + factories for one dialect.
type DialectRegistration struct {
	Info DialectInfo
	// ReaderFactory builds a catalog reader over an existing query handle.
	ReaderFactory func(q Querier, logger *zap.Logger) CatalogReader
	// ConnectorFactory opens an owned pool from a generic config map.
	// Used by the CLI; callers embedding the engine supply their own Querier.
	ConnectorFactory func(ctx context.Context, config map[string]any) (ConnectionCloser, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.Dialect]DialectRegistration)
)

// Register is called by each dialect package's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DialectRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Dialect] = reg
}

// RegisteredDialects returns info for all registered dialects, sorted by tag.
func RegisteredDialects() []DialectInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DialectInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Dialect < result[j].Dialect })
	return result
}

// GetReaderFactory returns the reader factory for a dialect.
// Returns nil if the dialect is not registered.
func GetReaderFactory(dialect models.Dialect) func(q Querier, logger *zap.Logger) CatalogReader {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dialect]; ok {
		return reg.ReaderFactory
	}
	return nil
}

// GetConnectorFactory returns the connector factory for a dialect.
// Returns nil if the dialect is not registered.
func GetConnectorFactory(dialect models.Dialect) func(ctx context.Context, config map[string]any) (ConnectionCloser, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dialect]; ok {
		return reg.ConnectorFactory
	}
	return nil
}

// IsRegistered checks if a dialect is available.
func IsRegistered(dialect models.Dialect) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dialect]
	return ok
}
