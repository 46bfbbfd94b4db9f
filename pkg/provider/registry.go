package provider

import (
	"fmt"
	"sync/atomic"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/types"
)

// Factory builds a live Adapter from a stored ProviderConfig. Registered
// once per provider name at process start; Reload re-invokes every
// registered factory against the current configuration.
type Factory func(cfg types.ProviderConfig) (Adapter, error)

// Registry resolves a provider name to a live Adapter. Rebuilds are
// swap-only: readers always see either the pre-reload or post-reload
// map, never one under construction.
type Registry struct {
	store     *storage.Storage
	factories map[string]Factory
	adapters  atomic.Pointer[map[string]Adapter]
}

// defaultProviders seeds default ProviderConfig rows for these names if
// no row yet exists for them, per the spec's reload() contract.
var defaultProviders = []string{"gemini", "openai"}

// NewRegistry creates a Registry backed by store, with no adapter
// factories. Callers register a factory per provider name with Register
// before the first Reload.
func NewRegistry(store *storage.Storage) *Registry {
	r := &Registry{
		store:     store,
		factories: make(map[string]Factory),
	}
	empty := make(map[string]Adapter)
	r.adapters.Store(&empty)
	return r
}

// Register associates name with the factory used to build its adapter
// on Reload. Must be called before the first Reload to take effect for
// that provider.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Reload reconstructs the registry from the metadata store, seeding
// default entries for any provider in defaultProviders that has no
// stored config yet. Adapters that fail to initialize are logged and
// skipped; one broken adapter never aborts the whole rebuild.
func (r *Registry) Reload() error {
	if err := r.seedDefaults(); err != nil {
		return fmt.Errorf("failed to seed default providers: %w", err)
	}

	configs, err := r.store.ListProviderConfigs()
	if err != nil {
		return fmt.Errorf("failed to list provider configs: %w", err)
	}

	built := make(map[string]Adapter, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		factory, ok := r.factories[cfg.Name]
		if !ok {
			log.Logger.Warn().Str("provider", cfg.Name).Msg("no adapter factory registered, skipping")
			continue
		}
		adapter, err := factory(*cfg)
		if err != nil {
			log.Logger.Error().Err(err).Str("provider", cfg.Name).Msg("adapter failed to initialize, skipping")
			continue
		}
		built[cfg.Name] = withRateLimit(adapter, cfg.RateLimitRPS)
	}

	r.adapters.Store(&built)
	return nil
}

func (r *Registry) seedDefaults() error {
	existing, err := r.store.ListProviderConfigs()
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, cfg := range existing {
		have[cfg.Name] = true
	}

	for _, name := range defaultProviders {
		if have[name] {
			continue
		}
		cfg := &types.ProviderConfig{
			Name:        name,
			DisplayName: name,
			Enabled:     true,
			TimeoutSec:  60,
			MaxRetries:  3,
		}
		if err := r.store.UpsertProviderConfig(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the live adapter for name, or a KindInvalidParams error
// when it is unknown or disabled.
func (r *Registry) Get(name string) (Adapter, error) {
	adapters := *r.adapters.Load()
	adapter, ok := adapters[name]
	if !ok {
		return nil, apierr.New(apierr.KindInvalidParams, fmt.Sprintf("unknown provider: %s", name))
	}
	return adapter, nil
}

// List returns a stable snapshot of registered adapter names, suitable
// for UI display.
func (r *Registry) List() []string {
	adapters := *r.adapters.Load()
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	return names
}
