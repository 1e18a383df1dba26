package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// Settings holds application-level configuration, loaded from tideline.toml
// at the project root. Per-pipeline and per-collection configuration is
// separate (see Config).
type Settings struct {
	// Workers bounds the hashing and file-materialization pools.
	// Zero means one worker per CPU.
	Workers int `koanf:"workers"`

	// DatasetVersion is recorded in every packaged dataset's metadata.
	DatasetVersion string `koanf:"dataset_version"`

	Contact struct {
		Name  string `koanf:"name"`
		Email string `koanf:"email"`
	} `koanf:"contact"`

	// VideoExtensions lists the file extensions treated as moving imagery
	// during metadata composition.
	VideoExtensions []string `koanf:"video_extensions"`
}

// EffectiveWorkers resolves the configured worker count against the host.
func (s Settings) EffectiveWorkers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"workers":          0,
		"dataset_version":  "1.0",
		"contact.name":     "",
		"contact.email":    "",
		"video_extensions": []string{".mp4", ".mov", ".avi", ".mkv", ".webm"},
	}
}

// LoadSettings loads application settings, overlaying tideline.toml from the
// given directory (if present) on top of built-in defaults.
func LoadSettings(dir string) (Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfigLoad, "failed to load default settings")
	}

	for _, filename := range []string{".tideline.toml", "tideline.toml"} {
		path := filepath.Join(dir, filename)
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return Settings{}, errors.Wrapf(err, errors.ErrConfigParse, "failed to load settings from %s", path)
			}
			break
		}
	}

	var settings Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &settings,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &settings, unmarshalConf); err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfigParse, "failed to decode settings")
	}

	return settings, nil
}
