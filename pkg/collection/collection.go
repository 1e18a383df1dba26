// Package collection wraps a collection directory: a named acquisition of
// source data, holding one data directory per pipeline plus the collection's
// configuration. Collections are immutable apart from their configuration.
package collection

import (
	"os"
	"path/filepath"

	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/errors"
)

const configFileName = "collection.yml"

// Wrapper owns a collection directory.
type Wrapper struct {
	rootDir string
}

// NewWrapper wraps an existing collection directory, checking its layout.
func NewWrapper(rootDir string) (*Wrapper, error) {
	w := &Wrapper{rootDir: rootDir}
	if err := w.checkStructure(); err != nil {
		return nil, err
	}
	return w, nil
}

// Create scaffolds a new collection directory with the given configuration.
func Create(rootDir string, cfg config.Config) (*Wrapper, error) {
	if _, err := os.Stat(rootDir); err == nil {
		return nil, errors.Newf(errors.ErrAlreadyExists, "collection directory %q already exists", rootDir)
	}

	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create collection directory %s", rootDir)
	}
	if cfg == nil {
		cfg = config.Config{}
	}
	if err := config.Save(filepath.Join(rootDir, configFileName), cfg); err != nil {
		return nil, err
	}

	return NewWrapper(rootDir)
}

// Name is the collection's name, taken from its directory.
func (w *Wrapper) Name() string {
	return filepath.Base(w.rootDir)
}

// RootDir returns the collection's root directory.
func (w *Wrapper) RootDir() string { return w.rootDir }

// ConfigPath returns the path of the collection configuration.
func (w *Wrapper) ConfigPath() string {
	return filepath.Join(w.rootDir, configFileName)
}

// PipelineDataDir returns the data directory a pipeline reads and writes
// inside this collection, creating it on first use.
func (w *Wrapper) PipelineDataDir(pipelineName string) (string, error) {
	dir := filepath.Join(w.rootDir, pipelineName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "failed to create data directory %s", dir)
	}
	return dir, nil
}

// LoadConfig reads the collection configuration.
func (w *Wrapper) LoadConfig() (config.Config, error) {
	return config.Load(w.ConfigPath())
}

// SaveConfig writes the collection configuration.
func (w *Wrapper) SaveConfig(cfg config.Config) error {
	if cfg == nil {
		return nil
	}
	return config.Save(w.ConfigPath(), cfg)
}

func (w *Wrapper) checkStructure() error {
	info, err := os.Stat(w.rootDir)
	if err != nil || !info.IsDir() {
		return errors.Newf(errors.ErrInvalidStructure,
			"%q does not exist or is not a directory", w.rootDir)
	}
	info, err = os.Stat(w.ConfigPath())
	if err != nil || info.IsDir() {
		return errors.Newf(errors.ErrInvalidStructure,
			"%q does not exist or is not a file", w.ConfigPath())
	}
	return nil
}
