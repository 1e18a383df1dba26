package project_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/dataset"
	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/manifest"
	"github.com/tidelinelabs/tideline/pkg/mapping"
	"github.com/tidelinelabs/tideline/pkg/metadata"
	"github.com/tidelinelabs/tideline/pkg/pipeline"
	"github.com/tidelinelabs/tideline/pkg/project"
)

// passthroughPipeline copies imported sources into its data directory and
// composes one entry per imported file under its own destination prefix.
// Distinct prefixes keep two stubs from proposing colliding destinations.
type passthroughPipeline struct {
	pipeline.Base
	prefix     string
	composeErr error
}

func (s *passthroughPipeline) PipelineConfigSchema() config.Schema {
	return config.Schema{"voyage": config.String("unknown")}
}

func (s *passthroughPipeline) CollectionConfigSchema() config.Schema {
	return config.Schema{"site": config.String("default-site")}
}

func (s *passthroughPipeline) RunImport(_ context.Context, dataDir string, sources []string, _ config.Config, _ map[string]string) error {
	for _, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dataDir, filepath.Base(src)), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (s *passthroughPipeline) RunProcess(_ context.Context, dataDir string, _ config.Config, _ map[string]string) error {
	return os.WriteFile(filepath.Join(dataDir, "processed.marker"), []byte("done"), 0644)
}

func (s *passthroughPipeline) RunCompose(_ context.Context, dataDirs []string, _ []config.Config, _ map[string]string) ([]mapping.Entry, error) {
	if s.composeErr != nil {
		return nil, s.composeErr
	}

	var entries []mapping.Entry
	for _, dir := range dataDirs {
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || f.Name() == "processed.marker" {
				continue
			}
			entries = append(entries, mapping.Entry{
				Source:      filepath.Join(dir, f.Name()),
				Destination: s.prefix + "/" + f.Name(),
				Headers:     []*metadata.Header{{Creators: []string{"Jo Bloggs"}}},
			})
		}
	}
	return entries, nil
}

func register(t *testing.T, key, prefix string, composeErr error) {
	t.Helper()
	require.NoError(t, pipeline.RegisterFactory(key, func(repoDir string, cfg config.Config, dryRun bool) (pipeline.Pipeline, error) {
		return &passthroughPipeline{
			Base:       pipeline.NewBase(repoDir, cfg, dryRun),
			prefix:     prefix,
			composeErr: composeErr,
		}, nil
	}))
	t.Cleanup(func() { _ = pipeline.UnregisterFactory(key) })
}

// newProject scaffolds a project with the named pipelines, each backed by
// its own registered stub implementation.
func newProject(t *testing.T, pipelineNames ...string) *project.Project {
	t.Helper()
	p, err := project.Create(filepath.Join(t.TempDir(), "voyage"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	for _, name := range pipelineNames {
		key := "test-impl-" + name
		register(t, key, name, nil)
		h, err := p.CreatePipeline(name)
		require.NoError(t, err)
		descriptor := "implementation = \"" + key + "\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(h.RepoDir(), name+".pipeline.toml"), []byte(descriptor), 0644))
	}
	return p
}

func TestCreateScaffoldsLayout(t *testing.T) {
	p := newProject(t)

	assert.DirExists(t, p.PipelinesDir())
	assert.DirExists(t, p.CollectionsDir())
	assert.DirExists(t, p.DatasetsDir())
}

func TestCreateRejectsBadName(t *testing.T) {
	_, err := project.Create(filepath.Join(t.TempDir(), "bad name!"), false)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestNewProjectRejectsMalformedLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "broken")
	require.NoError(t, os.MkdirAll(root, 0755))

	_, err := project.NewProject(root, false)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidStructure))
}

func TestCreateCollectionResolvesPipelineSchemas(t *testing.T) {
	p := newProject(t, "p1")

	coll, err := p.CreateCollection("leg-01", config.Config{}, nil)
	require.NoError(t, err)

	cfg, err := coll.LoadConfig()
	require.NoError(t, err)
	// The stub's collection schema default was filled in.
	assert.True(t, cfg["site"].Equal(config.String("default-site")))
}

func TestRunImportAcrossPipelines(t *testing.T) {
	p := newProject(t, "p1", "p2")
	coll, err := p.CreateCollection("leg-01", nil, nil)
	require.NoError(t, err)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "a.jpg")
	require.NoError(t, os.WriteFile(src, []byte("image a"), 0644))

	require.NoError(t, p.RunImport(context.Background(), "leg-01", []string{src}, nil))

	for _, name := range []string{"p1", "p2"} {
		dataDir, err := coll.PipelineDataDir(name)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dataDir, "a.jpg"))
	}
}

func TestRunProcessCrossProduct(t *testing.T) {
	p := newProject(t, "p1", "p2")
	_, err := p.CreateCollection("leg-01", nil, nil)
	require.NoError(t, err)
	_, err = p.CreateCollection("leg-02", nil, nil)
	require.NoError(t, err)

	require.NoError(t, p.RunProcess(context.Background(), nil, nil, nil))

	for _, collName := range []string{"leg-01", "leg-02"} {
		coll, err := p.Collection(collName)
		require.NoError(t, err)
		for _, pipeName := range []string{"p1", "p2"} {
			dataDir, err := coll.PipelineDataDir(pipeName)
			require.NoError(t, err)
			assert.FileExists(t, filepath.Join(dataDir, "processed.marker"), "%s/%s", collName, pipeName)
		}
	}
}

func TestComposeMergesPerPipeline(t *testing.T) {
	p := newProject(t, "p1", "p2")
	_, err := p.CreateCollection("leg-01", nil, nil)
	require.NoError(t, err)

	srcDir := t.TempDir()
	srcA := filepath.Join(srcDir, "a.jpg")
	require.NoError(t, os.WriteFile(srcA, []byte("image a"), 0644))
	require.NoError(t, p.RunImport(context.Background(), "leg-01", []string{srcA}, nil))

	m, err := p.Compose(context.Background(), "packaged", []string{"leg-01"}, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"p1", "p2"}, m.Pipelines())
	require.Len(t, m["p1"], 1)
	assert.Equal(t, "p1/a.jpg", m["p1"][0].Destination)
}

func TestComposeFailureNamesPipeline(t *testing.T) {
	p := newProject(t, "p1")

	register(t, "failing-impl", "flooded", errors.New(errors.ErrInternal, "camera housing flooded"))
	h, err := p.CreatePipeline("flooded")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(h.RepoDir(), "flooded.pipeline.toml"),
		[]byte("implementation = \"failing-impl\"\n"), 0644))

	_, err = p.CreateCollection("leg-01", nil, nil)
	require.NoError(t, err)

	_, err = p.Compose(context.Background(), "packaged", []string{"leg-01"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrComposition))
	assert.Contains(t, err.Error(), "flooded")
}

func TestComposeRefusesExistingDataset(t *testing.T) {
	p := newProject(t, "p1")
	require.NoError(t, os.MkdirAll(p.DatasetDir("packaged"), 0755))

	_, err := p.Compose(context.Background(), "packaged", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyExists))
}

func TestCreateDatasetEndToEnd(t *testing.T) {
	p := newProject(t, "p1", "p2")
	_, err := p.CreateCollection("leg-01", nil, nil)
	require.NoError(t, err)

	srcDir := t.TempDir()
	srcA := filepath.Join(srcDir, "a.jpg")
	srcB := filepath.Join(srcDir, "b.jpg")
	require.NoError(t, os.WriteFile(srcA, []byte("image a"), 0644))
	require.NoError(t, os.WriteFile(srcB, []byte("image b"), 0644))
	require.NoError(t, p.RunImport(context.Background(), "leg-01", []string{srcA, srcB}, nil))

	m, err := p.Compose(context.Background(), "packaged", []string{"leg-01"}, nil)
	require.NoError(t, err)

	w, err := p.CreateDataset("packaged", m, dataset.OpCopy)
	require.NoError(t, err)
	defer w.Close()

	for _, name := range []string{"p1", "p2"} {
		assert.FileExists(t, w.ArtifactPath(name, name+"/a.jpg"))
		assert.FileExists(t, w.ArtifactPath(name, name+"/b.jpg"))
	}

	saved, err := manifest.Load(w.ManifestPath())
	require.NoError(t, err)
	assert.Contains(t, saved.Hashes, "data/p1/p1/a.jpg")
	assert.Contains(t, saved.Hashes, "data/p2/p2/b.jpg")

	doc, err := metadata.LoadDocument(w.MetadataPath())
	require.NoError(t, err)
	assert.Contains(t, doc.Creators, "Jo Bloggs")

	// Pipeline logs were archived into the dataset.
	assert.FileExists(t, filepath.Join(w.PipelineLogsDir(), "p1.log"))

	require.NoError(t, w.Validate())
}

func TestCreateDatasetCollisionCreatesNothing(t *testing.T) {
	p := newProject(t)

	srcDir := t.TempDir()
	srcA := filepath.Join(srcDir, "a.jpg")
	srcB := filepath.Join(srcDir, "b.jpg")
	require.NoError(t, os.WriteFile(srcA, []byte("image a"), 0644))
	require.NoError(t, os.WriteFile(srcB, []byte("image b"), 0644))

	// Two pipelines proposing the same destination from different sources.
	m := mapping.DatasetMapping{
		"p1": {{Source: srcA, Destination: "img/x.jpg"}},
		"p2": {{Source: srcB, Destination: "img/x.jpg"}},
	}

	_, err := p.CreateDataset("packaged", m, dataset.OpCopy)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidMapping))
	assert.NoDirExists(t, p.DatasetDir("packaged"))
}

func TestCreateDatasetDryRunTouchesNothing(t *testing.T) {
	p := newProject(t, "p1")

	src := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(src, []byte("image a"), 0644))
	m := mapping.DatasetMapping{
		"p1": {{Source: src, Destination: "a.jpg"}},
	}

	dry, err := project.NewProject(p.RootDir(), true)
	require.NoError(t, err)
	defer dry.Close()

	w, err := dry.CreateDataset("packaged", m, dataset.OpCopy)
	require.NoError(t, err)
	defer w.Close()
	assert.NoDirExists(t, dry.DatasetDir("packaged"))

	// A real run of the same name afterwards starts from a clean slate.
	live, err := p.CreateDataset("packaged", m, dataset.OpCopy)
	require.NoError(t, err)
	defer live.Close()
	assert.FileExists(t, live.ArtifactPath("p1", "a.jpg"))
}

func TestValidateNameTable(t *testing.T) {
	valid := []string{"voyage", "IN2018-V06", "leg_01", "a.b.c", "7seas"}
	for _, name := range valid {
		assert.NoError(t, project.ValidateName(name), name)
	}

	invalid := []string{"", ".hidden", "-dash", "has space", "sub/dir", "tab\tname"}
	for _, name := range invalid {
		assert.Error(t, project.ValidateName(name), name)
	}
}
