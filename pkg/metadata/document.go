package metadata

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// Document is the dataset-level metadata document, written as metadata.yml at
// the dataset root.
type Document struct {
	Name     string   `yaml:"name"`
	UUID     string   `yaml:"uuid"`
	Version  string   `yaml:"version,omitempty"`
	Contact  Contact  `yaml:"contact,omitempty"`
	Context  string   `yaml:"context,omitempty"`
	Licenses []string `yaml:"licenses,omitempty"`
	Creators []string `yaml:"creators,omitempty"`

	// Items maps each artifact's data-relative POSIX path to its composed
	// headers: one for stills, one per timeline interval for videos.
	Items map[string][]*Header `yaml:"items"`
}

// Contact identifies the person responsible for a packaged dataset.
type Contact struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// NewDocument assembles the dataset document from composed items, deriving
// the aggregate fields.
func (c *Composer) NewDocument(name, version string, contact Contact, items map[string][]*Header) *Document {
	contexts, licenses, creators := c.Aggregate(items)

	return &Document{
		Name:     name,
		UUID:     uuid.NewString(),
		Version:  version,
		Contact:  contact,
		Context:  joinContexts(contexts),
		Licenses: licenses,
		Creators: creators,
		Items:    items,
	}
}

// Save writes the document as YAML.
func (d *Document) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "failed to encode metadata document for %s", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write metadata document %s", path)
	}
	return nil
}

// LoadDocument reads a document previously written by Save.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileNotFound, "failed to read metadata document %s", path)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse metadata document %s", path)
	}
	return &doc, nil
}

// joinContexts renders multiple contexts as one numbered text block; a single
// context passes through unchanged.
func joinContexts(contexts []string) string {
	switch len(contexts) {
	case 0:
		return ""
	case 1:
		return contexts[0]
	}

	var sb strings.Builder
	for i, ctx := range contexts {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(ctx)))
	}
	return sb.String()
}
