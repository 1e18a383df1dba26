package pipeline

import (
	"github.com/tidelinelabs/tideline/pkg/registry"
)

// factories is the global pipeline implementation registry, keyed by the
// stable identifier plugin descriptors reference.
var factories = registry.New[Factory]()

// RegisterFactory registers a pipeline factory under a stable key.
// Typically called from an implementation package's init().
func RegisterFactory(key string, factory Factory) error {
	return factories.Register(key, factory)
}

// MustRegisterFactory registers a factory and panics on failure; for init()
// use, where a registration error is a programming error.
func MustRegisterFactory(key string, factory Factory) {
	registry.MustRegister(factories, key, factory)
}

// UnregisterFactory removes a factory. Exists for tests.
func UnregisterFactory(key string) error {
	return factories.Remove(key)
}

// RegisteredFactories lists the registered keys in sorted order.
func RegisteredFactories() []string {
	return factories.List()
}
