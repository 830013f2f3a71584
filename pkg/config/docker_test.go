package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host        string
		inContainer bool
		want        string
	}{
		{"localhost", false, "localhost"},
		{"127.0.0.1", false, "127.0.0.1"},
		{"localhost", true, DockerHostAlias},
		{"127.0.0.1", true, DockerHostAlias},
		{"::1", true, DockerHostAlias},
		{"mydb.example.com", true, "mydb.example.com"},
		{"192.168.1.100", true, "192.168.1.100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveHost(tt.host, tt.inContainer), "host=%s inContainer=%v", tt.host, tt.inContainer)
	}
}

func TestDetectContainer(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, ".dockerenv")

	assert.False(t, detectContainer([]string{marker}))

	assert.NoError(t, os.WriteFile(marker, nil, 0o600))
	assert.True(t, detectContainer([]string{filepath.Join(dir, "missing"), marker}))
}
