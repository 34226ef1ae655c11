package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[Name]Constructor{}
)

// Register makes a constructor available under name. Runtime packages call
// it from init.
func Register(name Name, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// New builds the engine named by cfg.Name.
func New(cfg Config, logger *slog.Logger) (Engine, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Name]
	registryMu.RUnlock()
	if !ok || ctor == nil {
		return nil, &EngineError{
			Kind:    ErrInit,
			Message: fmt.Sprintf("unsupported engine: %q", cfg.Name),
		}
	}
	return ctor(cfg, logger)
}

// Registered lists the registered engine names in sorted order.
func Registered() []Name {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]Name, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
