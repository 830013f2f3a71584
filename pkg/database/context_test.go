package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetScope_Missing(t *testing.T) {
	_, ok := GetScope(context.Background())
	assert.False(t, ok)

	_, ok = GetScope(SetScope(context.Background(), &Scope{}))
	assert.False(t, ok, "a scope without a connection is not usable")

	_, ok = GetScope(SetScope(context.Background(), nil))
	assert.False(t, ok)
}

func TestScope_CloseWithoutConn(t *testing.T) {
	s := &Scope{}
	assert.NotPanics(t, s.Close)
}

func TestTryExtractionLock_NoScope(t *testing.T) {
	_, err := TryExtractionLock(context.Background(), "db-1")
	assert.ErrorContains(t, err, "no store scope")
}
