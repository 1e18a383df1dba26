// Package manifest computes and verifies content-addressed manifests over
// dataset directory trees. A manifest maps POSIX-style relative paths to
// SHA-256 hex digests: file entries hash the file contents, directory entries
// hash the relative path string itself. Any divergence between a live tree
// and its recorded manifest is an integrity failure, not a normal mutation.
package manifest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// hashChunkSize bounds the read buffer so large imagery files are never
// loaded whole into memory.
const hashChunkSize = 4096

// Manifest maps relative paths to hex digests.
type Manifest struct {
	Hashes map[string]string
}

// New creates an empty manifest.
func New() *Manifest {
	return &Manifest{Hashes: make(map[string]string)}
}

// Paths returns the manifest's paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Hashes))
	for path := range m.Hashes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Equal reports whether two manifests cover the same key set with equal
// digests, independent of iteration order.
func (m *Manifest) Equal(other *Manifest) bool {
	if other == nil || len(m.Hashes) != len(other.Hashes) {
		return false
	}
	for path, digest := range m.Hashes {
		if other.Hashes[path] != digest {
			return false
		}
	}
	return true
}

// Save writes the manifest as one "path:hexdigest" line per entry, sorted by
// path. Paths containing ':' cannot be represented in this format and are
// rejected rather than written out in a form Load would mis-split.
func (m *Manifest) Save(path string) error {
	var sb strings.Builder
	for _, relPath := range m.Paths() {
		if strings.Contains(relPath, ":") {
			return errors.Newf(errors.ErrInvalidInput,
				"path %q contains ':' and cannot be recorded in a manifest", relPath)
		}
		sb.WriteString(relPath)
		sb.WriteByte(':')
		sb.WriteString(m.Hashes[relPath])
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write manifest %s", path)
	}
	return nil
}

// Load reads a manifest previously written by Save.
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileNotFound, "failed to open manifest %s", path)
	}
	defer func() {
		_ = file.Close()
	}()

	m := New()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			return nil, errors.Newf(errors.ErrManifest, "malformed manifest line %q in %s", line, path)
		}
		m.Hashes[line[:idx]] = line[idx+1:]
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read manifest %s", path)
	}

	return m, nil
}

// HashFile computes the SHA-256 hex digest of a file's contents, streamed in
// fixed-size chunks.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashPath computes the SHA-256 hex digest of a POSIX-style relative path
// string. Used for directory entries, whose identity is their location.
func HashPath(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:])
}

func (m *Manifest) String() string {
	return fmt.Sprintf("manifest(%d entries)", len(m.Hashes))
}
