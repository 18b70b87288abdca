package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

// AdapterInfo describes a registered warehouse kind for API discovery.
type AdapterInfo struct {
	Type        string `json:"type"`         // "bigquery", "postgres", "mssql"
	DisplayName string `json:"display_name"` // "Google BigQuery"
	Description string `json:"description"`
}

// Factory opens a catalog client for one connection.
type Factory func(ctx context.Context, cfg ConnectionConfig) (CatalogClient, error)

// AdapterRegistration pairs adapter info with its factory.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(kind string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}

// Opener opens catalog clients. The default implementation uses the global registry;
// services take the interface so tests can substitute fakes.
type Opener interface {
	Open(ctx context.Context, cfg ConnectionConfig) (CatalogClient, error)
}

type registryOpener struct{}

// NewOpener returns an Opener backed by the global registry.
func NewOpener() Opener {
	return registryOpener{}
}

func (registryOpener) Open(ctx context.Context, cfg ConnectionConfig) (CatalogClient, error) {
	return Open(ctx, cfg)
}

// Open resolves the factory for cfg.Kind and opens a client.
func Open(ctx context.Context, cfg ConnectionConfig) (CatalogClient, error) {
	registryMu.RLock()
	reg, ok := registry[cfg.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, apperrors.Validation("unsupported connection type: %q (not compiled in)", cfg.Kind)
	}
	client, err := reg.Factory(ctx, cfg.withDefaults())
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", cfg.Kind, err)
	}
	return client, nil
}
