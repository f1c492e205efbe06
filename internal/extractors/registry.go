// Package extractors pulls gradable string submissions out of trajectories.
// Extractors are pure functions of the trajectory: no side effects and no
// dependence on execution order, so a cached trajectory can be re-graded
// without re-executing the target. An extractor that finds no matching
// content returns "" rather than failing; grading scores the miss.
package extractors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gauntlet-eval/gauntlet/internal/models"
)

// DefaultExtractor is used when a grader doesn't name one.
const DefaultExtractor = "last_assistant"

// Config is the opaque per-grader extractor configuration from the suite
// document.
type Config map[string]any

// Extractor maps a trajectory (already scoped to the visible turns) to a
// submission string.
type Extractor func(models.Trajectory) string

// Factory validates a config and binds it into an Extractor. Config errors
// surface here, at suite-validation time, never during a run.
type Factory func(cfg Config) (Extractor, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a named extractor factory. Registering a duplicate name
// panics; names are a fixed vocabulary established at init time.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("extractors: %q registered twice", name))
	}
	registry[name] = factory
}

// Resolve binds a named extractor with its config. The empty name resolves
// to the default extractor.
func Resolve(name string, cfg Config) (Extractor, error) {
	if name == "" {
		name = DefaultExtractor
	}

	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("extractors: unknown extractor %q (known: %v)", name, Names())
	}

	ex, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("extractors: %q: %w", name, err)
	}
	return ex, nil
}

// Names returns the registered extractor names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
