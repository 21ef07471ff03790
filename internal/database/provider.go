package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-registry/internal/config"
)

// Opener opens a backend for the given configuration.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig, dim int) (IdentityStore, error)

var (
	backends   = make(map[string]Opener)
	backendsMu sync.RWMutex
)

// RegisterBackend registers an identity store constructor.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, opener Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = opener
}

// Backends returns the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens (creating if needed) the configured identity store.
// Signatures written to and read from it must have dim elements.
func Open(ctx context.Context, cfg *config.DatabaseConfig, dim int) (IdentityStore, error) {
	name := cfg.Backend
	if name == "" {
		name = BackendSQLite
	}

	backendsMu.RLock()
	opener, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage backend %q not registered (available: %v)", name, Backends())
	}

	return opener(ctx, cfg, dim)
}
