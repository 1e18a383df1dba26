// Package summary derives human-readable statistics for a packaged dataset:
// file counts and sizes per artifact kind plus the aggregate provenance
// fields, rendered as a plain-text report.
package summary

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/metadata"
)

// imageExtensions classifies still imagery. Anything that is neither a
// still nor a video counts as "other" (sensor logs, calibration files).
var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".tif": {}, ".tiff": {},
	".bmp": {}, ".gif": {}, ".dng": {}, ".raw": {},
}

// ImagerySummary holds the counts and sizes of a dataset's data directory
// together with its aggregate provenance.
type ImagerySummary struct {
	DatasetName string
	Version     string
	Contact     metadata.Contact

	ImageCount int
	VideoCount int
	OtherCount int

	ImageBytes int64
	VideoBytes int64
	OtherBytes int64

	Context  string
	Licenses []string
	Creators []string
}

// Scan walks a dataset's data directory and tallies every regular file by
// kind. The composer supplies the video classification so summary and
// metadata agree on what counts as footage.
func Scan(dataDir string, composer *metadata.Composer) (*ImagerySummary, error) {
	s := &ImagerySummary{}

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case composer.IsVideo(path):
			s.VideoCount++
			s.VideoBytes += info.Size()
		default:
			if _, ok := imageExtensions[ext]; ok {
				s.ImageCount++
				s.ImageBytes += info.Size()
			} else {
				s.OtherCount++
				s.OtherBytes += info.Size()
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to scan data directory %s", dataDir)
	}

	return s, nil
}

// FromDocument fills the provenance fields from a composed metadata document.
func (s *ImagerySummary) FromDocument(doc *metadata.Document) {
	s.DatasetName = doc.Name
	s.Version = doc.Version
	s.Contact = doc.Contact
	s.Context = doc.Context
	s.Licenses = append([]string(nil), doc.Licenses...)
	s.Creators = append([]string(nil), doc.Creators...)
}

// TotalCount returns the number of files across all kinds.
func (s *ImagerySummary) TotalCount() int {
	return s.ImageCount + s.VideoCount + s.OtherCount
}

// TotalBytes returns the byte size across all kinds.
func (s *ImagerySummary) TotalBytes() int64 {
	return s.ImageBytes + s.VideoBytes + s.OtherBytes
}

// Render produces the plain-text report.
func (s *ImagerySummary) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset: %s\n", s.DatasetName)
	if s.Version != "" {
		fmt.Fprintf(&b, "Version: %s\n", s.Version)
	}
	if s.Contact.Name != "" || s.Contact.Email != "" {
		fmt.Fprintf(&b, "Contact: %s <%s>\n", s.Contact.Name, s.Contact.Email)
	}
	b.WriteString("\n")

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Kind", "Files", "Size"})
	t.AppendRows([]table.Row{
		{"Images", s.ImageCount, humanBytes(s.ImageBytes)},
		{"Videos", s.VideoCount, humanBytes(s.VideoBytes)},
		{"Other", s.OtherCount, humanBytes(s.OtherBytes)},
	})
	t.AppendFooter(table.Row{"Total", s.TotalCount(), humanBytes(s.TotalBytes())})
	b.WriteString(t.Render())
	b.WriteString("\n")

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(&b, "  - %s\n", item)
		}
	}
	if s.Context != "" {
		fmt.Fprintf(&b, "\nContext:\n  %s\n", strings.ReplaceAll(s.Context, "\n", "\n  "))
	}
	writeList("Licenses", s.Licenses)
	writeList("Creators", s.Creators)

	return b.String()
}

// Save writes the rendered report to a file.
func (s *ImagerySummary) Save(path string) error {
	if err := os.WriteFile(path, []byte(s.Render()), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write summary %s", path)
	}
	return nil
}

// humanBytes formats a byte count with a binary unit suffix.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
