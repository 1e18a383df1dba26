package collection_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelinelabs/tideline/pkg/collection"
	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/errors"
)

func TestCreateAndReopen(t *testing.T) {
	root := filepath.Join(t.TempDir(), "leg-01")
	cfg := config.Config{"site": config.String("north reef")}

	w, err := collection.Create(root, cfg)
	require.NoError(t, err)
	assert.Equal(t, "leg-01", w.Name())
	assert.FileExists(t, w.ConfigPath())

	reopened, err := collection.NewWrapper(root)
	require.NoError(t, err)
	loaded, err := reopened.LoadConfig()
	require.NoError(t, err)
	assert.True(t, loaded["site"].Equal(config.String("north reef")))
}

func TestCreateRefusesExisting(t *testing.T) {
	root := filepath.Join(t.TempDir(), "leg-01")
	require.NoError(t, os.MkdirAll(root, 0755))

	_, err := collection.Create(root, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyExists))
}

func TestNewWrapperRejectsMissingConfig(t *testing.T) {
	root := filepath.Join(t.TempDir(), "leg-01")
	require.NoError(t, os.MkdirAll(root, 0755))

	_, err := collection.NewWrapper(root)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidStructure))
}

func TestPipelineDataDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "leg-01")
	w, err := collection.Create(root, nil)
	require.NoError(t, err)

	dir, err := w.PipelineDataDir("benthic")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "benthic"), dir)
	assert.DirExists(t, dir)

	// Idempotent on repeat use.
	again, err := w.PipelineDataDir("benthic")
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}
