// Package mapping models the file mapping a pipeline proposes for its output
// artifacts and validates it before any file is materialized.
package mapping

import (
	"path"
	"sort"

	"github.com/tidelinelabs/tideline/pkg/metadata"
)

// Entry describes one output artifact a pipeline proposes: where it comes
// from, where it lands relative to the pipeline's data directory, and the
// metadata records that travel with it. Entries exist only transiently
// during a single compose-then-package operation.
type Entry struct {
	// Source is the staged file to materialize. It must exist and resolve
	// to a unique filesystem object within the batch.
	Source string

	// Destination is the artifact's path relative to the pipeline's data
	// directory. Must be relative.
	Destination string

	// Headers carries the per-item metadata records, possibly one per
	// timeline interval for moving imagery.
	Headers []*metadata.Header

	// Ancillary holds free-form extra data a pipeline wants recorded
	// alongside the artifact.
	Ancillary map[string]interface{}
}

// DatasetMapping maps pipeline names to their proposed entries.
type DatasetMapping map[string][]Entry

// Entries returns all entries across pipelines, in sorted pipeline order.
func (m DatasetMapping) Entries() []Entry {
	var all []Entry
	for _, name := range m.Pipelines() {
		all = append(all, m[name]...)
	}
	return all
}

// Pipelines returns the mapping's pipeline names in sorted order.
func (m DatasetMapping) Pipelines() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of entries across pipelines.
func (m DatasetMapping) Count() int {
	count := 0
	for _, entries := range m {
		count += len(entries)
	}
	return count
}

// cleanDestination normalizes a destination to its POSIX form for collision
// comparison.
func cleanDestination(dst string) string {
	return path.Clean(dst)
}
