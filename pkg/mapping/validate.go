package mapping

import (
	"os"
	"path/filepath"

	"github.com/tidelinelabs/tideline/pkg/errors"
	"github.com/tidelinelabs/tideline/pkg/logging"
)

// Validate runs the four mapping checks eagerly over the full batch, in
// fixed order, before any file is copied or moved. It is a fail-fast
// validation gate: the first violated rule aborts the whole packaging
// operation with an INVALID_MAPPING error naming the offending paths.
//
// The checks, across every pipeline's entries:
//  1. every source must exist
//  2. no two sources may resolve to the same filesystem object
//  3. every destination must be a relative path
//  4. no two distinct sources may share a resolved destination
func Validate(m DatasetMapping) error {
	logger := logging.GetLogger("mapping")

	if err := verifySourcesExist(m); err != nil {
		return err
	}
	if err := verifyUniqueSourceResolutions(m); err != nil {
		return err
	}
	if err := verifyRelativeDestinations(m); err != nil {
		return err
	}
	if err := verifyNoDestinationCollisions(m); err != nil {
		return err
	}

	logger.Debug().Int("entries", m.Count()).Msg("Dataset mapping is valid")
	return nil
}

func verifySourcesExist(m DatasetMapping) error {
	for _, entry := range m.Entries() {
		if _, err := os.Stat(entry.Source); err != nil {
			return errors.Newf(errors.ErrInvalidMapping,
				"source does not exist: %q", entry.Source).
				WithDetail("source", entry.Source)
		}
	}
	return nil
}

func verifyUniqueSourceResolutions(m DatasetMapping) error {
	resolvedToSource := make(map[string]string)

	for _, entry := range m.Entries() {
		resolved, err := resolveSource(entry.Source)
		if err != nil {
			return errors.Wrapf(err, errors.ErrInvalidMapping,
				"failed to resolve source %q", entry.Source)
		}

		if other, seen := resolvedToSource[resolved]; seen {
			return errors.Newf(errors.ErrInvalidMapping,
				"duplicate source resolution: %q and %q both resolve to %q",
				entry.Source, other, resolved).
				WithDetail("resolved", resolved)
		}
		resolvedToSource[resolved] = entry.Source
	}
	return nil
}

func verifyRelativeDestinations(m DatasetMapping) error {
	for _, entry := range m.Entries() {
		if filepath.IsAbs(entry.Destination) {
			return errors.Newf(errors.ErrInvalidMapping,
				"destination must be relative: %q", entry.Destination).
				WithDetail("destination", entry.Destination)
		}
	}
	return nil
}

func verifyNoDestinationCollisions(m DatasetMapping) error {
	destinationToSource := make(map[string]string)

	for _, entry := range m.Entries() {
		dst := cleanDestination(entry.Destination)
		// Identical sources were already caught by the duplicate-source
		// check, so any repeat here is a genuine collision.
		if other, seen := destinationToSource[dst]; seen {
			return errors.Newf(errors.ErrInvalidMapping,
				"destination collision: %q is proposed by both %q and %q",
				dst, other, entry.Source).
				WithDetail("destination", dst)
		}
		destinationToSource[dst] = entry.Source
	}
	return nil
}

// resolveSource canonicalizes a source path, following symlinks, so that two
// different spellings of the same object are detected as duplicates.
func resolveSource(source string) (string, error) {
	resolved, err := filepath.EvalSymlinks(source)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}
