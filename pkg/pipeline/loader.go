package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/errors"
)

// descriptorSuffix is the fixed naming convention for plugin descriptors:
// a repository must contain exactly one file matching it.
const descriptorSuffix = ".pipeline.toml"

// Descriptor is the content of a plugin's *.pipeline.toml file.
type Descriptor struct {
	// Implementation is the registry key of the pipeline factory.
	Implementation string `toml:"implementation"`

	// Name optionally overrides the display name.
	Name string `toml:"name"`

	// Defaults optionally names a YAML file of configuration defaults,
	// resolved against the loader's search roots.
	Defaults string `toml:"defaults"`
}

// Loader discovers a plugin descriptor inside a repository directory and
// instantiates the implementation it names. The search-root stack is shared
// mutable state, so the load window is a critical section: roots pushed for
// one load are popped before the next may start, on every exit path.
type Loader struct {
	mu          sync.Mutex
	searchRoots []string
}

// NewLoader creates a loader with an optional set of base search roots used
// when resolving descriptor-referenced files.
func NewLoader(searchRoots ...string) *Loader {
	return &Loader{searchRoots: searchRoots}
}

// FindDescriptor locates the single plugin descriptor in a repository.
// Zero matches fail with PLUGIN_NOT_FOUND, more than one with
// PLUGIN_AMBIGUOUS.
func (l *Loader) FindDescriptor(repoDir string) (string, error) {
	var matches []string
	err := filepath.WalkDir(repoDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), descriptorSuffix) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to scan plugin repository %s", repoDir)
	}

	switch len(matches) {
	case 0:
		return "", errors.Newf(errors.ErrPluginNotFound,
			"no pipeline descriptor found in %q", repoDir).
			WithDetail("repo", repoDir)
	case 1:
		return matches[0], nil
	default:
		return "", errors.Newf(errors.ErrPluginAmbiguous,
			"multiple pipeline descriptors found in %q: %v", repoDir, matches).
			WithDetail("repo", repoDir)
	}
}

// Load discovers the plugin in repoDir, instantiates its registered
// implementation with (repoDir, cfg, dryRun) and attaches the given log
// sink before returning.
func (l *Loader) Load(repoDir string, cfg config.Config, dryRun bool, logger zerolog.Logger) (Pipeline, error) {
	descriptorPath, err := l.FindDescriptor(repoDir)
	if err != nil {
		return nil, err
	}

	// Extending and restoring the search-root stack brackets the whole
	// load window; loads are serialized so one plugin's roots can never
	// leak into another's resolution.
	l.mu.Lock()
	l.searchRoots = append(l.searchRoots, repoDir)
	defer func() {
		l.searchRoots = l.searchRoots[:len(l.searchRoots)-1]
		l.mu.Unlock()
	}()

	descriptor, err := parseDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}

	factory, err := factories.Get(descriptor.Implementation)
	if err != nil {
		return nil, errors.Newf(errors.ErrImplementationMissing,
			"descriptor %q names implementation %q, which is not registered",
			descriptorPath, descriptor.Implementation).
			WithDetail("implementation", descriptor.Implementation)
	}

	if descriptor.Defaults != "" {
		defaultsPath, err := l.resolve(descriptor.Defaults)
		if err != nil {
			return nil, err
		}
		defaults, err := config.Load(defaultsPath)
		if err != nil {
			return nil, err
		}
		cfg = defaults.Merge(cfg)
	}

	instance, err := factory(repoDir, cfg, dryRun)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrImplementationMissing,
			"failed to instantiate implementation %q", descriptor.Implementation)
	}

	instance.SetLogger(logger)
	return instance, nil
}

// resolve finds a relative path against the search-root stack, innermost
// root first. Callers must hold the load lock.
func (l *Loader) resolve(rel string) (string, error) {
	for i := len(l.searchRoots) - 1; i >= 0; i-- {
		candidate := filepath.Join(l.searchRoots[i], rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Newf(errors.ErrFileNotFound,
		"%q not found in any plugin search root", rel)
}

func parseDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read descriptor %s", path)
	}

	var descriptor Descriptor
	if err := toml.Unmarshal(data, &descriptor); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse descriptor %s", path)
	}

	if descriptor.Implementation == "" {
		return nil, errors.Newf(errors.ErrImplementationMissing,
			"descriptor %q does not name an implementation", path)
	}

	return &descriptor, nil
}
