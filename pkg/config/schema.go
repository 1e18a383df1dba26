package config

// Schema declares the configuration fields a pipeline expects, mapping field
// names to their default values. Defaults carry the field's scalar kind.
type Schema map[string]Value

// Resolver supplies a value for a schema field that the known configuration
// does not cover. A nil result means "accept the default".
type Resolver func(field string, def Value) (Value, error)

// Resolve produces a complete configuration for the schema: fields present in
// known are taken as-is, remaining fields are filled by the resolver, or by
// their declared defaults when resolver is nil.
func (s Schema) Resolve(known Config, resolve Resolver) (Config, error) {
	result := make(Config, len(s))

	for _, field := range s.keys() {
		def := s[field]

		if known != nil {
			if val, ok := known[field]; ok {
				result[field] = val
				continue
			}
		}

		if resolve == nil {
			result[field] = def
			continue
		}

		val, err := resolve(field, def)
		if err != nil {
			return nil, err
		}
		result[field] = val
	}

	return result, nil
}

// Missing returns the schema fields not covered by known, with their
// defaults, in sorted order of insertion into the returned map.
func (s Schema) Missing(known Config) Schema {
	missing := make(Schema)
	for field, def := range s {
		if known != nil {
			if _, ok := known[field]; ok {
				continue
			}
		}
		missing[field] = def
	}
	return missing
}

func (s Schema) keys() []string {
	return Config(s).Keys()
}
