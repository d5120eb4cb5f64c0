package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// Opener opens a Store for the given configuration.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Store, error)

var (
	backends   = make(map[string]Opener)
	backendsMu sync.RWMutex
)

// RegisterBackend registers a storage backend for a URL scheme.
// This is called by the backend packages from init() to avoid import cycles.
func RegisterBackend(scheme string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[scheme] = open
}

// Backends returns the registered URL schemes.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	schemes := make([]string, 0, len(backends))
	for s := range backends {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Scheme extracts the URL scheme from a database URL ("postgres", "sqlite", ...).
// The "postgresql" alias maps to "postgres" and a bare "file:" DSN maps to "sqlite".
func Scheme(url string) string {
	if strings.HasPrefix(url, "file:") {
		return "sqlite"
	}
	scheme, _, found := strings.Cut(url, "://")
	if !found {
		return ""
	}
	scheme = strings.ToLower(scheme)
	if scheme == "postgresql" {
		return "postgres"
	}
	return scheme
}

// Open opens the Store for cfg.URL using the backend registered for its scheme.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	scheme := Scheme(cfg.URL)

	backendsMu.RLock()
	open, ok := backends[scheme]
	backendsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no storage backend registered for scheme %q (available: %s)",
			scheme, strings.Join(Backends(), ", "))
	}

	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", scheme, err)
	}
	return store, nil
}
