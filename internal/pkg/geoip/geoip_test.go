package geoip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenIsOptional(t *testing.T) {
	assert.Nil(t, Open(""))
	assert.Nil(t, Open(filepath.Join(t.TempDir(), "missing.mmdb")))

	corrupt := filepath.Join(t.TempDir(), "corrupt.mmdb")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a maxmind database"), 0o644))
	assert.Nil(t, Open(corrupt))
}
