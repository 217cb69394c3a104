package creds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	return l.Sugar()
}

func TestMaterialize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")

	m := &Materializer{Log: testLogger(t), Path: path, Value: "secret123"}
	require.NoError(t, m.Materialize())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret123", string(b))
}

func TestMaterializeOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	log := testLogger(t)

	m := &Materializer{Log: log, Path: path, Value: "first-and-much-longer-value"}
	require.NoError(t, m.Materialize())

	m = &Materializer{Log: log, Path: path, Value: "second"}
	require.NoError(t, m.Materialize())
	require.NoError(t, m.Materialize())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
}

func TestMaterializeMissingValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")

	m := &Materializer{Log: testLogger(t), Path: path}
	require.NoError(t, m.Materialize())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
