package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/logging"
	"github.com/tidelinelabs/tideline/pkg/worker"
)

// Engine builds and verifies manifests over directory trees, hashing across
// a bounded worker pool.
type Engine struct {
	workers int
	logger  zerolog.Logger
}

// NewEngine creates an engine with the given pool size. Non-positive counts
// fall back to one worker per CPU.
func NewEngine(workers int) *Engine {
	return &Engine{
		workers: workers,
		logger:  logging.GetLogger("manifest"),
	}
}

// Build enumerates every path under root and produces a manifest. Entries in
// exclude (relative, POSIX-style) are skipped. Digests already present in
// known are reused instead of re-hashing; per-path hash failures are logged
// and excluded, matching the continue-on-error batch policy.
func (e *Engine) Build(root string, exclude []string, known map[string]string) (*Manifest, error) {
	relPaths, err := e.enumerate(root, exclude)
	if err != nil {
		return nil, err
	}

	m := New()
	var mu sync.Mutex

	_, summary := worker.Run(relPaths, e.workers, func(relPath string) error {
		digest, err := e.hashEntry(root, relPath, known)
		if err != nil {
			return err
		}
		mu.Lock()
		m.Hashes[relPath] = digest
		mu.Unlock()
		return nil
	})

	e.logger.Debug().
		Str("root", root).
		Int("entries", len(m.Hashes)).
		Int("failed", summary.Failed).
		Msg("Built manifest")

	return m, nil
}

// Verify rebuilds a manifest for root and compares it against expected by
// key set and digest equality. A mismatch is an integrity failure naming the
// root that is inconsistent with its recorded manifest.
func (e *Engine) Verify(root string, expected *Manifest, exclude []string) error {
	actual, err := e.Build(root, exclude, nil)
	if err != nil {
		return err
	}

	if !expected.Equal(actual) {
		return errors.Newf(errors.ErrManifest,
			"directory %q is inconsistent with its manifest", root).
			WithDetail("expected_entries", len(expected.Hashes)).
			WithDetail("actual_entries", len(actual.Hashes))
	}

	e.logger.Debug().Str("root", root).Msg("Manifest verified")
	return nil
}

// Update recomputes digests only for the changed relative paths, merging
// into a copy of the existing manifest. Paths that no longer exist on disk
// lose their entries. An incremental alternative to a full rebuild.
func (e *Engine) Update(existing *Manifest, changed []string, root string, exclude []string) (*Manifest, error) {
	excluded := toSet(exclude)

	updated := New()
	for path, digest := range existing.Hashes {
		updated.Hashes[path] = digest
	}

	var mu sync.Mutex
	_, _ = worker.Run(changed, e.workers, func(relPath string) error {
		if _, skip := excluded[relPath]; skip {
			return nil
		}

		absPath := filepath.Join(root, filepath.FromSlash(relPath))
		if _, err := os.Lstat(absPath); os.IsNotExist(err) {
			mu.Lock()
			delete(updated.Hashes, relPath)
			mu.Unlock()
			return nil
		}

		digest, err := e.hashEntry(root, relPath, nil)
		if err != nil {
			return err
		}
		mu.Lock()
		updated.Hashes[relPath] = digest
		mu.Unlock()
		return nil
	})

	return updated, nil
}

// enumerate walks the tree and returns sorted relative paths, minus the
// exclusion set and the root itself.
func (e *Engine) enumerate(root string, exclude []string) ([]string, error) {
	excluded := toSet(exclude)

	var relPaths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath := filepath.ToSlash(rel)

		if _, skip := excluded[relPath]; skip {
			return nil
		}
		relPaths = append(relPaths, relPath)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to enumerate %s", root)
	}

	sort.Strings(relPaths)
	return relPaths, nil
}

func (e *Engine) hashEntry(root, relPath string, known map[string]string) (string, error) {
	if known != nil {
		if digest, ok := known[relPath]; ok && digest != "" {
			return digest, nil
		}
	}

	absPath := filepath.Join(root, filepath.FromSlash(relPath))
	info, err := os.Lstat(absPath)
	if err != nil {
		return "", err
	}

	if info.Mode().IsRegular() {
		return HashFile(absPath)
	}
	return HashPath(relPath), nil
}

func toSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		set[filepath.ToSlash(path)] = struct{}{}
	}
	return set
}
