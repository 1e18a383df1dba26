// Package project orchestrates the full dataset lifecycle: it owns the
// project directory, the registered pipelines and collections inside it, and
// drives import, process, compose and packaging across them.
package project

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tidelinelabs/tideline/pkg/collection"
	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/dataset"
	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/logging"
	"github.com/tidelinelabs/tideline/pkg/mapping"
	"github.com/tidelinelabs/tideline/pkg/metadata"
	"github.com/tidelinelabs/tideline/pkg/pipeline"
)

const (
	pipelinesDirName   = "pipelines"
	collectionsDirName = "collections"
	datasetsDirName    = "datasets"
	logFileName        = "project.log"
)

// Project owns a project directory and the wrappers for everything inside
// it. Wrappers are cached; a name maps to the same handle for the lifetime
// of the Project.
type Project struct {
	rootDir  string
	settings config.Settings
	loader   *pipeline.Loader
	dryRun   bool
	sink     *logging.FileSink
	logger   zerolog.Logger

	mu          sync.Mutex
	pipelines   map[string]*pipeline.Handle
	collections map[string]*collection.Wrapper
}

// NewProject wraps an existing project directory, checking its layout and
// loading its settings.
func NewProject(rootDir string, dryRun bool) (*Project, error) {
	p := &Project{
		rootDir:     rootDir,
		loader:      pipeline.NewLoader(),
		dryRun:      dryRun,
		logger:      logging.GetLogger("project"),
		pipelines:   make(map[string]*pipeline.Handle),
		collections: make(map[string]*collection.Wrapper),
	}

	if err := p.checkStructure(); err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(rootDir)
	if err != nil {
		return nil, err
	}
	p.settings = settings

	sink, err := logging.NewFileSink(filepath.Join(rootDir, logFileName), p.Name())
	if err != nil {
		return nil, err
	}
	p.sink = sink
	p.logger = sink.Logger

	return p, nil
}

// Create scaffolds a new project directory and wraps it.
func Create(rootDir string, dryRun bool) (*Project, error) {
	if err := ValidateName(filepath.Base(rootDir)); err != nil {
		return nil, err
	}
	if _, err := os.Stat(rootDir); err == nil {
		return nil, errors.Newf(errors.ErrAlreadyExists, "project directory %q already exists", rootDir)
	}

	for _, dir := range []string{
		filepath.Join(rootDir, pipelinesDirName),
		filepath.Join(rootDir, collectionsDirName),
		filepath.Join(rootDir, datasetsDirName),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create project directory %s", dir)
		}
	}

	return NewProject(rootDir, dryRun)
}

// Close releases the project's log sink and every cached pipeline handle.
func (p *Project) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, h := range p.pipelines {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.sink != nil {
		if err := p.sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Name is the project's name, taken from its directory.
func (p *Project) Name() string {
	return filepath.Base(p.rootDir)
}

// RootDir returns the project's root directory.
func (p *Project) RootDir() string { return p.rootDir }

// Settings returns the loaded application settings.
func (p *Project) Settings() config.Settings { return p.settings }

// Loader returns the project's pipeline loader.
func (p *Project) Loader() *pipeline.Loader { return p.loader }

// PipelinesDir returns the directory holding registered pipelines.
func (p *Project) PipelinesDir() string {
	return filepath.Join(p.rootDir, pipelinesDirName)
}

// CollectionsDir returns the directory holding collections.
func (p *Project) CollectionsDir() string {
	return filepath.Join(p.rootDir, collectionsDirName)
}

// DatasetsDir returns the directory holding packaged datasets.
func (p *Project) DatasetsDir() string {
	return filepath.Join(p.rootDir, datasetsDirName)
}

// DatasetDir returns where a named dataset lives.
func (p *Project) DatasetDir(name string) string {
	return filepath.Join(p.DatasetsDir(), name)
}

func (p *Project) checkStructure() error {
	for _, dir := range []string{
		p.rootDir,
		p.PipelinesDir(),
		p.CollectionsDir(),
		p.DatasetsDir(),
	} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return errors.Newf(errors.ErrInvalidStructure,
				"%q does not exist or is not a directory", dir)
		}
	}
	return nil
}

// CreatePipeline registers a new pipeline directory under the project.
func (p *Project) CreatePipeline(name string) (*pipeline.Handle, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	h, err := pipeline.Create(filepath.Join(p.PipelinesDir(), name), p.loader, p.dryRun)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.pipelines[name] = h
	p.mu.Unlock()

	p.logger.Info().Str("pipeline", name).Msg("Created pipeline")
	return h, nil
}

// Pipeline returns the handle for a registered pipeline.
func (p *Project) Pipeline(name string) (*pipeline.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.pipelines[name]; ok {
		return h, nil
	}

	h, err := pipeline.NewHandle(filepath.Join(p.PipelinesDir(), name), p.loader, p.dryRun)
	if err != nil {
		return nil, err
	}
	p.pipelines[name] = h
	return h, nil
}

// PipelineNames lists the registered pipelines in sorted order.
func (p *Project) PipelineNames() ([]string, error) {
	return subdirNames(p.PipelinesDir())
}

// CreateCollection registers a new collection under the project. The
// configuration is resolved against every pipeline's collection schema so
// pipelines find the fields they declared.
func (p *Project) CreateCollection(name string, cfg config.Config, resolve config.Resolver) (*collection.Wrapper, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	resolved, err := p.resolveCollectionConfig(cfg, resolve)
	if err != nil {
		return nil, err
	}

	w, err := collection.Create(filepath.Join(p.CollectionsDir(), name), resolved)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.collections[name] = w
	p.mu.Unlock()

	p.logger.Info().Str("collection", name).Msg("Created collection")
	return w, nil
}

// Collection returns the wrapper for a collection.
func (p *Project) Collection(name string) (*collection.Wrapper, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.collections[name]; ok {
		return w, nil
	}

	w, err := collection.NewWrapper(filepath.Join(p.CollectionsDir(), name))
	if err != nil {
		return nil, err
	}
	p.collections[name] = w
	return w, nil
}

// CollectionNames lists the collections in sorted order.
func (p *Project) CollectionNames() ([]string, error) {
	return subdirNames(p.CollectionsDir())
}

// resolveCollectionConfig folds every pipeline's collection schema over the
// known configuration, filling the rest through the resolver or defaults.
func (p *Project) resolveCollectionConfig(known config.Config, resolve config.Resolver) (config.Config, error) {
	names, err := p.PipelineNames()
	if err != nil {
		return nil, err
	}

	result := config.Config{}.Merge(known)
	for _, name := range names {
		h, err := p.Pipeline(name)
		if err != nil {
			return nil, err
		}
		instance, err := h.GetInstance(true)
		if err != nil {
			return nil, err
		}
		if instance == nil {
			continue
		}
		resolved, err := instance.CollectionConfigSchema().Resolve(result, resolve)
		if err != nil {
			return nil, err
		}
		result = result.Merge(resolved)
	}
	return result, nil
}

// RunImport runs every pipeline's import operation against one collection.
// Per-pipeline failures are logged and do not stop the remaining pipelines.
func (p *Project) RunImport(ctx context.Context, collectionName string, sources []string, extra map[string]string) error {
	coll, err := p.Collection(collectionName)
	if err != nil {
		return err
	}
	collCfg, err := coll.LoadConfig()
	if err != nil {
		return err
	}

	names, err := p.PipelineNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		instance, dataDir, err := p.instanceAndDataDir(name, coll)
		if err != nil {
			return err
		}
		if instance == nil {
			continue
		}

		done := logging.LogOperationStart(p.logger.With().
			Str("pipeline", name).Str("collection", collectionName).Logger(), "import")
		err = instance.RunImport(ctx, dataDir, sources, collCfg, extra)
		done()
		if err != nil {
			p.logger.Warn().Err(err).
				Str("pipeline", name).
				Str("collection", collectionName).
				Msg("Import failed, continuing with remaining pipelines")
		}
	}
	return nil
}

// RunProcess runs process over the pipeline x collection cross product.
// Empty name lists mean "all". Per-pair failures are logged; the remaining
// pairs still run.
func (p *Project) RunProcess(ctx context.Context, collectionNames, pipelineNames []string, extra map[string]string) error {
	var err error
	if len(collectionNames) == 0 {
		if collectionNames, err = p.CollectionNames(); err != nil {
			return err
		}
	}
	if len(pipelineNames) == 0 {
		if pipelineNames, err = p.PipelineNames(); err != nil {
			return err
		}
	}

	for _, collName := range collectionNames {
		coll, err := p.Collection(collName)
		if err != nil {
			return err
		}
		collCfg, err := coll.LoadConfig()
		if err != nil {
			return err
		}

		for _, pipeName := range pipelineNames {
			instance, dataDir, err := p.instanceAndDataDir(pipeName, coll)
			if err != nil {
				return err
			}
			if instance == nil {
				continue
			}

			done := logging.LogOperationStart(p.logger.With().
				Str("pipeline", pipeName).Str("collection", collName).Logger(), "process")
			err = instance.RunProcess(ctx, dataDir, collCfg, extra)
			done()
			if err != nil {
				p.logger.Warn().Err(err).
					Str("pipeline", pipeName).
					Str("collection", collName).
					Msg("Process failed, continuing with remaining pairs")
			}
		}
	}
	return nil
}

// Compose asks every pipeline for its dataset contribution across the named
// collections and merges the results into one mapping keyed by pipeline
// name. A pipeline failure aborts with COMPOSITION naming the pipeline; it
// is not retried. Composition for an already-packaged dataset name is
// refused up front.
func (p *Project) Compose(ctx context.Context, datasetName string, collectionNames []string, extra map[string]string) (mapping.DatasetMapping, error) {
	if err := ValidateName(datasetName); err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.DatasetDir(datasetName)); err == nil {
		return nil, errors.Newf(errors.ErrAlreadyExists, "dataset %q already exists", datasetName)
	}

	if len(collectionNames) == 0 {
		var err error
		if collectionNames, err = p.CollectionNames(); err != nil {
			return nil, err
		}
	}

	colls := make([]*collection.Wrapper, 0, len(collectionNames))
	collCfgs := make([]config.Config, 0, len(collectionNames))
	for _, collName := range collectionNames {
		coll, err := p.Collection(collName)
		if err != nil {
			return nil, err
		}
		cfg, err := coll.LoadConfig()
		if err != nil {
			return nil, err
		}
		colls = append(colls, coll)
		collCfgs = append(collCfgs, cfg)
	}

	names, err := p.PipelineNames()
	if err != nil {
		return nil, err
	}

	merged := make(mapping.DatasetMapping)
	for _, name := range names {
		h, err := p.Pipeline(name)
		if err != nil {
			return nil, err
		}
		instance, err := h.GetInstance(true)
		if err != nil {
			return nil, err
		}
		if instance == nil {
			continue
		}

		dataDirs := make([]string, 0, len(colls))
		for _, coll := range colls {
			dataDir, err := coll.PipelineDataDir(name)
			if err != nil {
				return nil, err
			}
			dataDirs = append(dataDirs, dataDir)
		}

		done := logging.LogOperationStart(p.logger.With().Str("pipeline", name).Logger(), "compose")
		entries, err := instance.RunCompose(ctx, dataDirs, collCfgs, extra)
		done()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrComposition,
				"pipeline %q failed to compose over collections %v", name, collectionNames).
				WithDetail("pipeline", name)
		}
		merged[name] = entries
	}

	return merged, nil
}

// CreateDataset packages a composed mapping into a new dataset: validate,
// materialize, compose metadata, summarize, build the manifest, then verify
// the finished tree.
func (p *Project) CreateDataset(name string, m mapping.DatasetMapping, op dataset.Operation) (*dataset.Wrapper, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	// Validate before scaffolding so a bad mapping leaves nothing behind.
	if err := mapping.Validate(m); err != nil {
		return nil, err
	}

	opts := dataset.Options{
		Version: p.settings.DatasetVersion,
		Contact: metadata.Contact{
			Name:  p.settings.Contact.Name,
			Email: p.settings.Contact.Email,
		},
		Workers:         p.settings.Workers,
		VideoExtensions: p.settings.VideoExtensions,
		DryRun:          p.dryRun,
	}

	w, err := dataset.Create(p.DatasetDir(name), opts)
	if err != nil {
		return nil, err
	}

	if !p.dryRun {
		if err := p.archivePipelineLogs(w, m.Pipelines()); err != nil {
			return nil, err
		}
	}

	if err := w.Populate(m, op); err != nil {
		return nil, err
	}

	if p.dryRun {
		return w, nil
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}

	p.logger.Info().Str("dataset", name).Int("files", m.Count()).Msg("Packaged dataset")
	return w, nil
}

// archivePipelineLogs snapshots each contributing pipeline's log into the
// dataset before the manifest is built, so the manifest covers them.
func (p *Project) archivePipelineLogs(w *dataset.Wrapper, pipelineNames []string) error {
	for _, name := range pipelineNames {
		h, err := p.Pipeline(name)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(h.LogPath())
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to read pipeline log %s", h.LogPath())
		}
		target := filepath.Join(w.PipelineLogsDir(), name+".log")
		if err := os.WriteFile(target, data, 0644); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to archive pipeline log %s", target)
		}
	}
	return nil
}

func (p *Project) instanceAndDataDir(pipelineName string, coll *collection.Wrapper) (pipeline.Pipeline, string, error) {
	h, err := p.Pipeline(pipelineName)
	if err != nil {
		return nil, "", err
	}
	instance, err := h.GetInstance(true)
	if err != nil {
		return nil, "", err
	}
	if instance == nil {
		p.logger.Warn().Str("pipeline", pipelineName).Msg("Pipeline has no implementation, skipping")
		return nil, "", nil
	}
	dataDir, err := coll.PipelineDataDir(pipelineName)
	if err != nil {
		return nil, "", err
	}
	return instance, dataDir, nil
}

func subdirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
