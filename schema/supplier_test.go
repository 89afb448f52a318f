package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSupplier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "er.md")
	require.NoError(t, os.WriteFile(path, []byte("bots(id, name, active)"), 0644))

	s, err := NewFileSupplier(path)
	require.NoError(t, err)
	assert.Equal(t, "bots(id, name, active)", s.SchemaText())

	require.NoError(t, os.WriteFile(path, []byte("bots(id, name, active, owner_id)"), 0644))
	require.NoError(t, s.Reload())
	assert.Equal(t, "bots(id, name, active, owner_id)", s.SchemaText())
}

func TestNewFileSupplier_MissingFile(t *testing.T) {
	_, err := NewFileSupplier(filepath.Join(t.TempDir(), "absent.md"))
	assert.Error(t, err)
}
