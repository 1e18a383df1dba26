// Package dataset owns the packaged output of a project: an immutable
// directory of per-pipeline artifact trees with a composed metadata
// document, a summary report and a content manifest. A dataset is written
// once by Populate and only re-read or re-verified afterwards.
package dataset

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/logging"
	"github.com/tidelinelabs/tideline/pkg/manifest"
	"github.com/tidelinelabs/tideline/pkg/mapping"
	"github.com/tidelinelabs/tideline/pkg/metadata"
	"github.com/tidelinelabs/tideline/pkg/summary"
	"github.com/tidelinelabs/tideline/pkg/worker"
)

const (
	dataDirName      = "data"
	logsDirName      = "logs"
	metadataFileName = "metadata.yml"
	summaryFileName  = "summary.txt"
	manifestFileName = "manifest.txt"
	logFileName      = "dataset.log"
)

// Operation selects how source files are materialized into the dataset.
type Operation string

const (
	// OpCopy duplicates the source file. The default.
	OpCopy Operation = "copy"

	// OpMove renames the source into the dataset, falling back to
	// copy-then-remove across filesystems.
	OpMove Operation = "move"

	// OpLink hard-links the source, falling back to copy when the
	// dataset lives on a different filesystem.
	OpLink Operation = "link"
)

// Options carries the knobs a dataset build needs beyond the mapping itself.
type Options struct {
	// Version is recorded in the metadata document.
	Version string

	// Contact is recorded in the metadata document.
	Contact metadata.Contact

	// Workers bounds the materialization and hashing pools. Non-positive
	// falls back to one worker per CPU.
	Workers int

	// VideoExtensions overrides the video classification. Nil keeps the
	// defaults.
	VideoExtensions []string

	// DryRun logs the would-be work without touching the filesystem.
	DryRun bool
}

// Wrapper owns a dataset directory.
type Wrapper struct {
	rootDir  string
	opts     Options
	engine   *manifest.Engine
	composer *metadata.Composer
	sink     *logging.FileSink
	logger   zerolog.Logger
}

// NewWrapper wraps an existing dataset directory, checking its layout.
// A dry-run wrapper is virtual: there is nothing on disk to check or to
// log into, so the structure check and log sink are skipped.
func NewWrapper(rootDir string, opts Options) (*Wrapper, error) {
	w := &Wrapper{
		rootDir:  rootDir,
		opts:     opts,
		engine:   manifest.NewEngine(opts.Workers),
		composer: metadata.NewComposer(opts.VideoExtensions),
		logger:   logging.GetLogger("dataset"),
	}

	if opts.DryRun {
		return w, nil
	}

	if err := w.checkStructure(); err != nil {
		return nil, err
	}

	sink, err := logging.NewFileSink(w.LogPath(), w.Name())
	if err != nil {
		return nil, err
	}
	w.sink = sink
	w.logger = sink.Logger

	return w, nil
}

// Create scaffolds a new dataset directory. It refuses to reuse an existing
// path: datasets are written exactly once.
func Create(rootDir string, opts Options) (*Wrapper, error) {
	if _, err := os.Stat(rootDir); err == nil {
		return nil, errors.Newf(errors.ErrAlreadyExists, "dataset directory %q already exists", rootDir)
	}

	if opts.DryRun {
		return NewWrapper(rootDir, opts)
	}

	for _, dir := range []string{
		filepath.Join(rootDir, dataDirName),
		filepath.Join(rootDir, logsDirName, "pipelines"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create dataset directory %s", dir)
		}
	}

	return NewWrapper(rootDir, opts)
}

// Close releases the dataset's log sink.
func (w *Wrapper) Close() error {
	if w.sink == nil {
		return nil
	}
	return w.sink.Close()
}

// Name is the dataset's name, taken from its directory.
func (w *Wrapper) Name() string {
	return filepath.Base(w.rootDir)
}

// RootDir returns the dataset's root directory.
func (w *Wrapper) RootDir() string { return w.rootDir }

// DataDir returns the artifact tree root.
func (w *Wrapper) DataDir() string {
	return filepath.Join(w.rootDir, dataDirName)
}

// MetadataPath returns the composed metadata document path.
func (w *Wrapper) MetadataPath() string {
	return filepath.Join(w.rootDir, metadataFileName)
}

// SummaryPath returns the summary report path.
func (w *Wrapper) SummaryPath() string {
	return filepath.Join(w.rootDir, summaryFileName)
}

// ManifestPath returns the manifest file path.
func (w *Wrapper) ManifestPath() string {
	return filepath.Join(w.rootDir, manifestFileName)
}

// PipelineLogsDir returns the directory dataset builds copy pipeline logs
// into.
func (w *Wrapper) PipelineLogsDir() string {
	return filepath.Join(w.rootDir, logsDirName, "pipelines")
}

// LogPath returns the dataset's own log file path.
func (w *Wrapper) LogPath() string {
	return filepath.Join(w.rootDir, logsDirName, logFileName)
}

func (w *Wrapper) checkStructure() error {
	for _, dir := range []string{w.rootDir, w.DataDir(), filepath.Join(w.rootDir, logsDirName)} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return errors.Newf(errors.ErrInvalidStructure,
				"%q does not exist or is not a directory", dir)
		}
	}
	return nil
}

// manifestExcludes lists the paths the manifest can never cover: the
// manifest itself and the dataset log, which is still being written while
// the manifest is built.
func (w *Wrapper) manifestExcludes() []string {
	return []string{
		manifestFileName,
		logsDirName + "/" + logFileName,
	}
}

// ArtifactPath returns where a pipeline's proposed destination lands inside
// the dataset.
func (w *Wrapper) ArtifactPath(pipelineName, destination string) string {
	return filepath.Join(w.DataDir(), pipelineName, filepath.FromSlash(destination))
}

// Populate writes the dataset from a validated mapping: materialize the
// artifacts, inject content hashes into their metadata, compose and save the
// metadata document, render the summary, then build and save the manifest.
// The manifest comes last so it describes the finished tree.
func (w *Wrapper) Populate(m mapping.DatasetMapping, op Operation) error {
	if err := mapping.Validate(m); err != nil {
		return err
	}

	if w.opts.DryRun {
		w.logger.Info().
			Int("files", m.Count()).
			Str("operation", string(op)).
			Msg("Dry run, skipping dataset population")
		return nil
	}

	w.logger.Info().
		Int("files", m.Count()).
		Str("operation", string(op)).
		Msg("Populating dataset")

	if err := w.materialize(m, op); err != nil {
		return err
	}

	known, err := w.injectHashes(m)
	if err != nil {
		return err
	}

	items := w.collectItems(m)
	composed, err := w.composer.Compose(items)
	if err != nil {
		return err
	}

	doc := w.composer.NewDocument(w.Name(), w.opts.Version, w.opts.Contact, composed)
	if err := doc.Save(w.MetadataPath()); err != nil {
		return err
	}

	if err := w.writeSummary(doc); err != nil {
		return err
	}

	built, err := w.engine.Build(w.rootDir, w.manifestExcludes(), known)
	if err != nil {
		return err
	}
	if err := built.Save(w.ManifestPath()); err != nil {
		return err
	}

	w.logger.Info().Int("entries", len(built.Hashes)).Msg("Dataset populated")
	return nil
}

// Validate re-verifies the dataset against its saved manifest.
func (w *Wrapper) Validate() error {
	saved, err := manifest.Load(w.ManifestPath())
	if err != nil {
		return err
	}
	return w.engine.Verify(w.rootDir, saved, w.manifestExcludes())
}

// materialJob pairs one mapping entry with its resolved target path.
type materialJob struct {
	src string
	dst string
}

func (w *Wrapper) materialize(m mapping.DatasetMapping, op Operation) error {
	var jobs []materialJob
	for _, name := range m.Pipelines() {
		for _, entry := range m[name] {
			jobs = append(jobs, materialJob{
				src: entry.Source,
				dst: w.ArtifactPath(name, entry.Destination),
			})
		}
	}

	results, stats := worker.Run(jobs, w.opts.Workers, func(job materialJob) error {
		if err := os.MkdirAll(filepath.Dir(job.dst), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "failed to create artifact directory for %s", job.dst)
		}
		return materializeFile(job.src, job.dst, op)
	})

	if stats.Failed > 0 {
		failures := worker.Failures(results)
		return errors.Wrapf(failures[0].Err, errors.ErrFileWrite,
			"failed to materialize %d of %d files", stats.Failed, len(jobs))
	}
	return nil
}

// injectHashes computes each artifact's content digest, records it in the
// artifact's metadata headers and returns the digests keyed by
// manifest-relative path so the manifest build can reuse them.
func (w *Wrapper) injectHashes(m mapping.DatasetMapping) (map[string]string, error) {
	type hashJob struct {
		relPath string
		absPath string
		headers []*metadata.Header
	}

	var jobs []hashJob
	for _, name := range m.Pipelines() {
		for _, entry := range m[name] {
			jobs = append(jobs, hashJob{
				relPath: dataDirName + "/" + name + "/" + entry.Destination,
				absPath: w.ArtifactPath(name, entry.Destination),
				headers: entry.Headers,
			})
		}
	}

	known := make(map[string]string, len(jobs))
	var mu sync.Mutex

	results, stats := worker.Run(jobs, w.opts.Workers, func(job hashJob) error {
		digest, err := manifest.HashFile(job.absPath)
		if err != nil {
			return err
		}
		for _, h := range job.headers {
			h.HashSHA256 = &digest
		}
		mu.Lock()
		known[job.relPath] = digest
		mu.Unlock()
		return nil
	})

	if stats.Failed > 0 {
		failures := worker.Failures(results)
		return nil, errors.Wrapf(failures[0].Err, errors.ErrFileAccess,
			"failed to hash %d of %d artifacts", stats.Failed, len(jobs))
	}
	return known, nil
}

// collectItems keys every entry's headers by its manifest-relative data
// path, the granularity the metadata document records items at.
func (w *Wrapper) collectItems(m mapping.DatasetMapping) map[string][]*metadata.Header {
	items := make(map[string][]*metadata.Header)
	for _, name := range m.Pipelines() {
		for _, entry := range m[name] {
			if len(entry.Headers) == 0 {
				continue
			}
			relPath := dataDirName + "/" + name + "/" + entry.Destination
			items[relPath] = entry.Headers
		}
	}
	return items
}

func (w *Wrapper) writeSummary(doc *metadata.Document) error {
	s, err := summary.Scan(w.DataDir(), w.composer)
	if err != nil {
		return err
	}
	s.FromDocument(doc)
	return s.Save(w.SummaryPath())
}

// materializeFile applies one operation, falling back to a plain copy where
// the faster path cannot work across filesystems.
func materializeFile(src, dst string, op Operation) error {
	switch op {
	case OpMove:
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
		if err := copyFile(src, dst); err != nil {
			return err
		}
		return os.Remove(src)
	case OpLink:
		if err := os.Link(src, dst); err == nil {
			return nil
		}
		return copyFile(src, dst)
	default:
		return copyFile(src, dst)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to open source %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "failed to create artifact %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write artifact %s", dst)
	}
	return out.Close()
}
