package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/installer"
	"github.com/tidelinelabs/tideline/pkg/logging"
)

const (
	repoDirName      = "repo"
	configFileName   = "pipeline.yml"
	requirementsName = "requirements.txt"
)

// Handle owns a registered pipeline's directory: configuration persistence,
// dependency installation, logging attachment and lazy instantiation.
//
// Layout: root/repo/ (the plugin repository), root/pipeline.yml (persisted
// configuration), root/<name>.log (the pipeline's log sink).
type Handle struct {
	rootDir  string
	dryRun   bool
	loader   *Loader
	instance Pipeline
	sink     *logging.FileSink
	logger   zerolog.Logger
}

// NewHandle wraps an existing pipeline directory. The layout is checked
// eagerly; a malformed directory fails with INVALID_STRUCTURE.
func NewHandle(rootDir string, loader *Loader, dryRun bool) (*Handle, error) {
	h := &Handle{
		rootDir: rootDir,
		dryRun:  dryRun,
		loader:  loader,
		logger:  logging.GetLogger("pipeline"),
	}

	if err := h.checkStructure(); err != nil {
		return nil, err
	}

	sink, err := logging.NewFileSink(h.LogPath(), h.Name())
	if err != nil {
		return nil, err
	}
	h.sink = sink
	h.logger = sink.Logger

	return h, nil
}

// Create scaffolds a new pipeline directory with an empty repository and
// configuration, then wraps it.
func Create(rootDir string, loader *Loader, dryRun bool) (*Handle, error) {
	if _, err := os.Stat(rootDir); err == nil {
		return nil, errors.Newf(errors.ErrAlreadyExists, "pipeline directory %q already exists", rootDir)
	}

	if err := os.MkdirAll(filepath.Join(rootDir, repoDirName), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create pipeline directory %s", rootDir)
	}
	if err := config.Save(filepath.Join(rootDir, configFileName), config.Config{}); err != nil {
		return nil, err
	}

	return NewHandle(rootDir, loader, dryRun)
}

// Close releases the pipeline's log sink.
func (h *Handle) Close() error {
	if h.sink == nil {
		return nil
	}
	return h.sink.Close()
}

// Name is the pipeline's name, taken from its directory.
func (h *Handle) Name() string {
	return filepath.Base(h.rootDir)
}

// RootDir returns the pipeline's root directory.
func (h *Handle) RootDir() string { return h.rootDir }

// RepoDir returns the plugin repository directory.
func (h *Handle) RepoDir() string {
	return filepath.Join(h.rootDir, repoDirName)
}

// ConfigPath returns the path of the persisted configuration.
func (h *Handle) ConfigPath() string {
	return filepath.Join(h.rootDir, configFileName)
}

// RequirementsPath returns the path of the plugin's dependency manifest.
func (h *Handle) RequirementsPath() string {
	return filepath.Join(h.RepoDir(), requirementsName)
}

// LogPath returns the pipeline's log file path.
func (h *Handle) LogPath() string {
	return filepath.Join(h.rootDir, h.Name()+".log")
}

// Logger returns the pipeline-scoped logger.
func (h *Handle) Logger() zerolog.Logger { return h.logger }

func (h *Handle) checkStructure() error {
	checkDir := func(path string) error {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return errors.Newf(errors.ErrInvalidStructure,
				"%q does not exist or is not a directory", path)
		}
		return nil
	}

	if err := checkDir(h.rootDir); err != nil {
		return err
	}
	if err := checkDir(h.RepoDir()); err != nil {
		return err
	}
	info, err := os.Stat(h.ConfigPath())
	if err != nil || info.IsDir() {
		return errors.Newf(errors.ErrInvalidStructure,
			"%q does not exist or is not a file", h.ConfigPath())
	}
	return nil
}

// LoadConfig reads the pipeline's persisted configuration.
func (h *Handle) LoadConfig() (config.Config, error) {
	return config.Load(h.ConfigPath())
}

// SaveConfig writes the pipeline's persisted configuration. A nil config is
// a no-op.
func (h *Handle) SaveConfig(cfg config.Config) error {
	if cfg == nil {
		return nil
	}
	return config.Save(h.ConfigPath(), cfg)
}

// GetInstance returns the pipeline implementation, instantiating it through
// the loader on first use and caching it afterwards. If the repository holds
// no plugin yet and allowEmpty is true, it returns (nil, nil) so scaffolding
// workflows can register a pipeline before implementing it.
func (h *Handle) GetInstance(allowEmpty bool) (Pipeline, error) {
	if h.instance != nil {
		return h.instance, nil
	}

	cfg, err := h.LoadConfig()
	if err != nil {
		return nil, err
	}

	instance, err := h.loader.Load(h.RepoDir(), cfg, h.dryRun, h.logger)
	if err != nil {
		if allowEmpty && errors.IsErrorCode(err, errors.ErrPluginNotFound) {
			h.logger.Warn().
				Str("repo", h.RepoDir()).
				Msg("Pipeline repository has no implementation yet")
			return nil, nil
		}
		return nil, err
	}

	h.instance = instance
	return instance, nil
}

// Install installs the plugin's dependencies through the given runner. A
// missing dependency manifest or a non-zero runner exit fails with INSTALL;
// captured stdout is logged at debug level and stderr at warn level.
func (h *Handle) Install(ctx context.Context, runner installer.Runner) error {
	reqPath := h.RequirementsPath()
	if _, err := os.Stat(reqPath); err != nil {
		return errors.Newf(errors.ErrInstall,
			"dependency manifest does not exist: %q", reqPath)
	}

	h.logger.Info().Str("requirements", reqPath).Msg("Installing pipeline dependencies")

	stdout, stderr, err := runner.Run(ctx, "install", "--no-input", "-r", reqPath)
	if stdout != "" {
		h.logger.Debug().Msg(stdout)
	}
	if stderr != "" {
		h.logger.Warn().Msg(stderr)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrInstall,
			"dependency installation failed for pipeline %q", h.Name())
	}

	h.logger.Info().Msg("Pipeline dependencies installed")
	return nil
}

// PromptConfig resolves the pipeline's configuration schema against an
// already-known partial configuration: known fields pass through, the rest
// are filled by the resolver (or their defaults when resolver is nil). With
// allowEmpty and no implementation present, the known config is returned
// unchanged.
func (h *Handle) PromptConfig(known config.Config, resolve config.Resolver, allowEmpty bool) (config.Config, error) {
	instance, err := h.GetInstance(allowEmpty)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return config.Config{}.Merge(known), nil
	}

	return instance.PipelineConfigSchema().Resolve(known, resolve)
}
