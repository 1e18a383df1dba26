package metadata

import (
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/logging"
)

// defaultVideoExtensions are the file extensions treated as moving imagery.
// Container formats whose kind is genuinely ambiguous (motion photos and the
// like) are deliberately not guessed at; anything not listed here is treated
// as a still.
var defaultVideoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

// Composer merges per-item metadata headers across pipelines and collections
// into a single dataset-level document.
type Composer struct {
	videoExts map[string]struct{}
	logger    zerolog.Logger
}

// NewComposer builds a composer with the given video extension set; nil
// selects the defaults.
func NewComposer(videoExts []string) *Composer {
	if videoExts == nil {
		videoExts = defaultVideoExtensions
	}
	set := make(map[string]struct{}, len(videoExts))
	for _, ext := range videoExts {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &Composer{
		videoExts: set,
		logger:    logging.GetLogger("metadata"),
	}
}

// IsVideo reports whether a relative path carries a moving-image extension.
func (c *Composer) IsVideo(relPath string) bool {
	_, ok := c.videoExts[strings.ToLower(path.Ext(relPath))]
	return ok
}

// Compose produces the per-item entries of the dataset document from the
// headers collected per output artifact. Still images merge all records into
// one canonical header; videos legitimately carry multiple headers across
// the file's timeline, so every interval record is kept, time-ordered.
func (c *Composer) Compose(items map[string][]*Header) (map[string][]*Header, error) {
	composed := make(map[string][]*Header, len(items))

	for relPath, headers := range items {
		if len(headers) == 0 {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"item %q has no metadata records", relPath)
		}

		if c.IsVideo(relPath) {
			ordered := append([]*Header(nil), headers...)
			sort.SliceStable(ordered, func(i, j int) bool {
				ti, tj := ordered[i].CaptureTime, ordered[j].CaptureTime
				if ti == nil || tj == nil {
					return tj != nil
				}
				return ti.Before(*tj)
			})
			composed[relPath] = ordered
			continue
		}

		canonical := headers[0]
		for _, other := range headers[1:] {
			merged, err := Merge(canonical, other)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrHeaderConflict,
					"failed to merge metadata for %q", relPath)
			}
			canonical = merged
		}
		composed[relPath] = []*Header{canonical}
	}

	c.logger.Debug().Int("items", len(composed)).Msg("Composed item metadata")
	return composed, nil
}

// Aggregate derives the dataset-level fields from composed items. These are
// union/join values and are exempt from the per-field conflict rule, since a
// dataset legitimately spans multiple contexts, licenses and creators.
func (c *Composer) Aggregate(items map[string][]*Header) (contexts []string, licenses []string, creators []string) {
	contextSet := map[string]struct{}{}
	licenseSet := map[string]struct{}{}
	creatorSet := map[string]struct{}{}

	for _, headers := range items {
		for _, header := range headers {
			if header == nil {
				continue
			}
			if header.Context != nil {
				contextSet[*header.Context] = struct{}{}
			}
			if header.License != nil {
				licenseSet[*header.License] = struct{}{}
			}
			for _, creator := range header.Creators {
				creatorSet[creator] = struct{}{}
			}
		}
	}

	return sortedKeys(contextSet), sortedKeys(licenseSet), sortedKeys(creatorSet)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
