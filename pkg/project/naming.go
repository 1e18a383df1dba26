package project

import (
	"regexp"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// namePattern constrains project, pipeline, collection and dataset names to
// characters that are safe as directory names on every platform.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateName checks that a name is usable as a directory name: it must
// start with an alphanumeric and contain only alphanumerics, underscores,
// dots and dashes.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return errors.Newf(errors.ErrInvalidInput,
			"invalid name %q: names must start with a letter or digit and may contain only letters, digits, underscores, dots and dashes", name)
	}
	return nil
}
