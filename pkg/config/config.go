package config

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// Config is a flat string-to-scalar configuration record, as persisted in
// pipeline.yml and collection.yml files.
type Config map[string]Value

// Load reads a YAML config file into a flat Config. Nested values fail
// with a CONFIG_INVALID error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to read config %s", path)
	}

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse config %s", path)
	}

	cfg := make(Config, len(raw))
	for key, val := range raw {
		value, err := FromAny(val)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigValid, "invalid value for %q in %s", key, path)
		}
		cfg[key] = value
	}

	return cfg, nil
}

// Save writes the config to a YAML file, keys sorted for stable output.
func Save(path string, cfg Config) error {
	raw := make(map[string]interface{}, len(cfg))
	for key, val := range cfg {
		raw[key] = val.Interface()
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigValid, "failed to encode config for %s", path)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write config %s", path)
	}
	return nil
}

// Keys returns the config keys in sorted order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a copy of c with entries from other overlaid on top.
func (c Config) Merge(other Config) Config {
	merged := make(Config, len(c)+len(other))
	for key, val := range c {
		merged[key] = val
	}
	for key, val := range other {
		merged[key] = val
	}
	return merged
}
