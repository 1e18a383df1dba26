// Package metadata models per-item metadata headers and their composition
// into a single dataset-level document. Header merging is strict: a field
// holding different non-null values on both sides is a hard conflict, never
// silently resolved, because silent metadata corruption in a scientific
// dataset is worse than a failure.
package metadata

import (
	"time"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// Header is a typed record of optional per-item fields. Nil pointer fields
// (and a nil Creators slice) mean "not recorded".
type Header struct {
	CaptureTime *time.Time `yaml:"capture_time,omitempty"`
	Latitude    *float64   `yaml:"latitude,omitempty"`
	Longitude   *float64   `yaml:"longitude,omitempty"`
	Altitude    *float64   `yaml:"altitude,omitempty"`
	Context     *string    `yaml:"context,omitempty"`
	License     *string    `yaml:"license,omitempty"`
	Creators    []string   `yaml:"creators,omitempty"`
	HashSHA256  *string    `yaml:"hash_sha256,omitempty"`
}

// Merge combines two headers field by field. For every field the non-null
// side wins; when both sides hold non-null, unequal values the merge fails
// with a HEADER_CONFLICT naming the field. Merge is commutative for
// non-conflicting inputs.
func Merge(a, b *Header) (*Header, error) {
	if a == nil && b == nil {
		return nil, nil
	}
	if a == nil {
		cp := *b
		return &cp, nil
	}
	if b == nil {
		cp := *a
		return &cp, nil
	}

	out := &Header{}
	var err error

	if out.CaptureTime, err = mergeTime("capture_time", a.CaptureTime, b.CaptureTime); err != nil {
		return nil, err
	}
	if out.Latitude, err = mergeFloat("latitude", a.Latitude, b.Latitude); err != nil {
		return nil, err
	}
	if out.Longitude, err = mergeFloat("longitude", a.Longitude, b.Longitude); err != nil {
		return nil, err
	}
	if out.Altitude, err = mergeFloat("altitude", a.Altitude, b.Altitude); err != nil {
		return nil, err
	}
	if out.Context, err = mergeString("context", a.Context, b.Context); err != nil {
		return nil, err
	}
	if out.License, err = mergeString("license", a.License, b.License); err != nil {
		return nil, err
	}
	if out.Creators, err = mergeCreators(a.Creators, b.Creators); err != nil {
		return nil, err
	}
	if out.HashSHA256, err = mergeString("hash_sha256", a.HashSHA256, b.HashSHA256); err != nil {
		return nil, err
	}

	return out, nil
}

func conflict(field string) error {
	return errors.Newf(errors.ErrHeaderConflict,
		"conflicting header information in field %q", field).
		WithDetail("field", field)
}

func mergeString(field string, a, b *string) (*string, error) {
	switch {
	case a == nil:
		return clone(b), nil
	case b == nil:
		return clone(a), nil
	case *a == *b:
		return clone(a), nil
	}
	return nil, conflict(field)
}

func mergeFloat(field string, a, b *float64) (*float64, error) {
	switch {
	case a == nil:
		return clone(b), nil
	case b == nil:
		return clone(a), nil
	case *a == *b:
		return clone(a), nil
	}
	return nil, conflict(field)
}

func mergeTime(field string, a, b *time.Time) (*time.Time, error) {
	switch {
	case a == nil:
		return clone(b), nil
	case b == nil:
		return clone(a), nil
	case a.Equal(*b):
		return clone(a), nil
	}
	return nil, conflict(field)
}

// mergeCreators treats the creator list as one value for the conflict rule;
// set-union of creators happens at the document level, not here.
func mergeCreators(a, b []string) ([]string, error) {
	switch {
	case a == nil:
		return append([]string(nil), b...), nil
	case b == nil:
		return append([]string(nil), a...), nil
	case equalStrings(a, b):
		return append([]string(nil), a...), nil
	}
	return nil, conflict("creators")
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
