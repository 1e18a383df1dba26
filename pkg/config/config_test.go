package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "pipeline.yml")

	cfg := Config{
		"camera":     String("axio-observer"),
		"frame_rate": Int(25),
		"exposure":   Float(0.04),
		"debayer":    Bool(true),
	}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadRejectsNesting(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("outer:\n  inner: 1\n"), 0644))

	_, err := Load(path)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigValid))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
}

func TestFromAnyRejectsNonScalar(t *testing.T) {
	_, err := FromAny([]interface{}{"a", "b"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigValid))

	_, err = FromAny(map[string]interface{}{"k": "v"})
	assert.Error(t, err)
}

func TestValueParse(t *testing.T) {
	tests := []struct {
		name string
		def  Value
		raw  string
		want Value
	}{
		{"string", String(""), "hello", String("hello")},
		{"int", Int(0), "42", Int(42)},
		{"float", Float(0), "2.5", Float(2.5)},
		{"bool", Bool(false), "true", Bool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.def.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueParseInvalid(t *testing.T) {
	_, err := Int(0).Parse("not-a-number")
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigValid))
}

func TestSchemaResolveDefaults(t *testing.T) {
	schema := Schema{
		"voyage": String("unknown"),
		"depth":  Float(0),
	}

	resolved, err := schema.Resolve(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Config{"voyage": String("unknown"), "depth": Float(0)}, resolved)
}

func TestSchemaResolveKnownWins(t *testing.T) {
	schema := Schema{
		"voyage": String("unknown"),
		"depth":  Float(0),
	}
	known := Config{"voyage": String("IN2024_V01")}

	calls := 0
	resolved, err := schema.Resolve(known, func(field string, def Value) (Value, error) {
		calls++
		assert.Equal(t, "depth", field)
		return Float(4200), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, String("IN2024_V01"), resolved["voyage"])
	assert.Equal(t, Float(4200), resolved["depth"])
}

func TestSchemaMissing(t *testing.T) {
	schema := Schema{"a": Int(1), "b": Int(2)}
	missing := schema.Missing(Config{"a": Int(9)})
	assert.Equal(t, Schema{"b": Int(2)}, missing)
}

func TestMerge(t *testing.T) {
	base := Config{"a": Int(1), "b": Int(2)}
	merged := base.Merge(Config{"b": Int(3), "c": Int(4)})
	assert.Equal(t, Config{"a": Int(1), "b": Int(3), "c": Int(4)}, merged)
	// Merge must not mutate the receiver.
	assert.Equal(t, Int(2), base["b"])
}

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "1.0", settings.DatasetVersion)
	assert.Contains(t, settings.VideoExtensions, ".mp4")
	assert.Greater(t, settings.EffectiveWorkers(), 0)
}

func TestLoadSettingsFromFile(t *testing.T) {
	tempDir := t.TempDir()
	content := "workers = 3\ndataset_version = \"2.1\"\n\n[contact]\nname = \"A. Biologist\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "tideline.toml"), []byte(content), 0644))

	settings, err := LoadSettings(tempDir)
	require.NoError(t, err)
	assert.Equal(t, 3, settings.Workers)
	assert.Equal(t, 3, settings.EffectiveWorkers())
	assert.Equal(t, "2.1", settings.DatasetVersion)
	assert.Equal(t, "A. Biologist", settings.Contact.Name)
}
