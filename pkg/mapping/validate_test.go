package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	return path
}

func TestValidateOK(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.jpg")
	b := writeSource(t, dir, "b.jpg")

	m := DatasetMapping{
		"p1": {{Source: a, Destination: "img/a.jpg"}},
		"p2": {{Source: b, Destination: "img/b.jpg"}},
	}
	assert.NoError(t, Validate(m))
}

func TestValidateMissingSource(t *testing.T) {
	m := DatasetMapping{
		"p1": {{Source: filepath.Join(t.TempDir(), "ghost.jpg"), Destination: "img/a.jpg"}},
	}

	err := Validate(m)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidMapping))
	assert.Contains(t, err.Error(), "source does not exist")
	assert.Contains(t, err.Error(), "ghost.jpg")
}

func TestValidateDuplicateSourceResolution(t *testing.T) {
	dir := t.TempDir()
	real := writeSource(t, dir, "real.jpg")
	link := filepath.Join(dir, "alias.jpg")
	require.NoError(t, os.Symlink(real, link))

	m := DatasetMapping{
		"p1": {
			{Source: real, Destination: "img/a.jpg"},
			{Source: link, Destination: "img/b.jpg"},
		},
	}

	err := Validate(m)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidMapping))
	assert.Contains(t, err.Error(), "duplicate source resolution")
}

func TestValidateDuplicateSourceAcrossPipelines(t *testing.T) {
	dir := t.TempDir()
	shared := writeSource(t, dir, "shared.jpg")

	m := DatasetMapping{
		"p1": {{Source: shared, Destination: "img/a.jpg"}},
		"p2": {{Source: shared, Destination: "img/b.jpg"}},
	}

	err := Validate(m)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidMapping))
}

func TestValidateAbsoluteDestination(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.jpg")

	m := DatasetMapping{
		"p1": {{Source: src, Destination: filepath.Join(dir, "out.jpg")}},
	}

	err := Validate(m)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidMapping))
	assert.Contains(t, err.Error(), "destination must be relative")
}

func TestValidateDestinationCollision(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.jpg")
	b := writeSource(t, dir, "b.jpg")

	m := DatasetMapping{
		"p1": {{Source: a, Destination: "img/a.jpg"}},
		"p2": {{Source: b, Destination: "img/a.jpg"}},
	}

	err := Validate(m)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidMapping))
	assert.Contains(t, err.Error(), "destination collision")
}

func TestValidateCollisionAfterCleaning(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.jpg")
	b := writeSource(t, dir, "b.jpg")

	// Different spellings of the same destination.
	m := DatasetMapping{
		"p1": {
			{Source: a, Destination: "img/a.jpg"},
			{Source: b, Destination: "img/./a.jpg"},
		},
	}

	err := Validate(m)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidMapping))
}

func TestValidateEmptyMapping(t *testing.T) {
	assert.NoError(t, Validate(DatasetMapping{}))
}

func TestEntriesSortedByPipeline(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.jpg")
	b := writeSource(t, dir, "b.jpg")

	m := DatasetMapping{
		"zeta":  {{Source: a, Destination: "za.jpg"}},
		"alpha": {{Source: b, Destination: "ab.jpg"}},
	}

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "ab.jpg", entries[0].Destination)
	assert.Equal(t, "za.jpg", entries[1].Destination)
	assert.Equal(t, []string{"alpha", "zeta"}, m.Pipelines())
	assert.Equal(t, 2, m.Count())
}
