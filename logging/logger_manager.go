package logging

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry tracks named loggers so their levels can be changed while the node is running.
type Registry struct {
	mu      sync.RWMutex
	loggers map[string]Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{loggers: make(map[string]Logger)}
}

// Register adds a logger under `name`, replacing any previous one.
func (lr *Registry) Register(name string, logger Logger) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.loggers[name] = logger
}

// LoggerNamed returns the logger registered under `name`.
func (lr *Registry) LoggerNamed(name string) (Logger, bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	return logger, ok
}

// UpdateLevel sets the level of the logger registered under `name`.
func (lr *Registry) UpdateLevel(name string, level Level) error {
	logger, ok := lr.LoggerNamed(name)
	if !ok {
		return errors.Errorf("logger named %s not recognized", name)
	}
	logger.SetLevel(level)
	return nil
}

// Levels returns the current level of every registered logger, keyed by name.
func (lr *Registry) Levels() map[string]Level {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	levels := make(map[string]Level, len(lr.loggers))
	for name, logger := range lr.loggers {
		levels[name] = logger.GetLevel()
	}
	return levels
}

// Names returns the sorted names of all registered loggers.
func (lr *Registry) Names() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
