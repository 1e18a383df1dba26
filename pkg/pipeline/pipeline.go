// Package pipeline defines the plugin contract for user-supplied processing
// pipelines and owns their discovery, instantiation and lifecycle.
//
// A pipeline implementation registers a Factory under a stable key at init
// time. A plugin repository names that key in a single *.pipeline.toml
// descriptor; the loader discovers the descriptor, looks the key up in the
// registry and instantiates the implementation with its repository directory
// and configuration.
package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/mapping"
)

// Pipeline is the capability set every processing pipeline implements.
type Pipeline interface {
	// PipelineConfigSchema declares the pipeline-wide configuration
	// fields. Static across collections.
	PipelineConfigSchema() config.Schema

	// CollectionConfigSchema declares the per-collection configuration
	// fields.
	CollectionConfigSchema() config.Schema

	// RunImport ingests raw source paths into the pipeline's data
	// directory for one collection.
	RunImport(ctx context.Context, dataDir string, sources []string, collectionCfg config.Config, extra map[string]string) error

	// RunProcess transforms previously imported data in place.
	RunProcess(ctx context.Context, dataDir string, collectionCfg config.Config, extra map[string]string) error

	// RunCompose proposes the pipeline's contribution to a dataset: one
	// entry per output artifact, drawn from the given collection data
	// directories.
	RunCompose(ctx context.Context, dataDirs []string, collectionCfgs []config.Config, extra map[string]string) ([]mapping.Entry, error)

	// SetLogger attaches a scoped log sink. Called once by the loader
	// before the instance is handed out.
	SetLogger(logger zerolog.Logger)
}

// Factory instantiates a pipeline implementation rooted at a plugin
// repository directory.
type Factory func(repoDir string, cfg config.Config, dryRun bool) (Pipeline, error)

// Base carries the common state a pipeline implementation needs. Intended
// for embedding; it supplies SetLogger and accessors so implementations only
// write the schema and run methods.
type Base struct {
	repoDir string
	cfg     config.Config
	dryRun  bool
	logger  zerolog.Logger
}

// NewBase builds the embeddable base state.
func NewBase(repoDir string, cfg config.Config, dryRun bool) Base {
	return Base{repoDir: repoDir, cfg: cfg, dryRun: dryRun}
}

// RepoDir returns the plugin repository directory.
func (b *Base) RepoDir() string { return b.repoDir }

// Config returns the pipeline configuration.
func (b *Base) Config() config.Config { return b.cfg }

// DryRun reports whether the pipeline should avoid side effects.
func (b *Base) DryRun() bool { return b.dryRun }

// Logger returns the attached log sink.
func (b *Base) Logger() zerolog.Logger { return b.logger }

// SetLogger attaches a scoped log sink.
func (b *Base) SetLogger(logger zerolog.Logger) { b.logger = logger }
