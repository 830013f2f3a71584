package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"sqlserver", DialectSQLServer},
		{"MSSQL", DialectSQLServer},
		{" mysql ", DialectMySQL},
		{"mariadb", DialectMySQL},
		{"postgresql", DialectPostgres},
		{"pg", DialectPostgres},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDialect("oracle")
	assert.ErrorContains(t, err, `unknown dialect "oracle"`)
	assert.ErrorContains(t, err, "supported: sqlserver, mysql, postgres")
}

func TestDialect_QualifiedName(t *testing.T) {
	assert.Equal(t, "orders", DialectSQLServer.QualifiedName("dbo", "orders"))
	assert.Equal(t, "sales.orders", DialectSQLServer.QualifiedName("sales", "orders"))
	assert.Equal(t, "orders", DialectPostgres.QualifiedName("public", "orders"))
	assert.Equal(t, "audit.orders", DialectPostgres.QualifiedName("audit", "orders"))
	assert.Equal(t, "orders", DialectMySQL.QualifiedName("shop", "orders"))
	assert.Equal(t, "orders", DialectPostgres.QualifiedName("", "orders"))
}
