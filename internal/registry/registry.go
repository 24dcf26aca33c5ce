// Package registry owns the set of Application definitions the engine
// reconciles. Definitions come from one of two stores: YAML files in a
// watched directory (the default, no cluster RBAC needed for capstan's
// own state) or Application custom resources watched through an
// informer cache. Both normalize into the same read surface and the
// same change event stream.
package registry

import (
	"context"
	"fmt"
	"sort"

	ctrl "sigs.k8s.io/controller-runtime"

	"capstan/internal/api"
	"capstan/internal/config"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// Registry fronts a Store with a stable API for the engine, server,
// and CLI. It owns the change event channel.
type Registry struct {
	store   Store
	changes chan ChangeEvent
}

// New builds a registry for the configured mode.
func New(cfg config.RegistryConfig) (*Registry, error) {
	var store Store
	switch cfg.Mode {
	case config.RegistryModeFilesystem, "":
		store = newFSStore(cfg.Dir, cfg.Debounce.Std())

	case config.RegistryModeKubernetes:
		restCfg, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("kubernetes registry mode needs cluster access: %w", err)
		}
		store = newCRDStore(restCfg, cfg.Namespace)

	default:
		return nil, fmt.Errorf("unknown registry mode %q", cfg.Mode)
	}

	return &Registry{
		store:   store,
		changes: make(chan ChangeEvent, 100),
	}, nil
}

// NewWithStore builds a registry around an existing store.
func NewWithStore(store Store) *Registry {
	return &Registry{
		store:   store,
		changes: make(chan ChangeEvent, 100),
	}
}

// Start loads definitions and begins watching for changes.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.store.Start(ctx, r.changes); err != nil {
		return fmt.Errorf("failed to start application store: %w", err)
	}
	logging.Info("Registry", "Loaded %d application definitions", len(r.store.List()))
	return nil
}

// Stop ends watching.
func (r *Registry) Stop() error {
	return r.store.Stop()
}

// List returns all Applications sorted by name.
func (r *Registry) List() []*v1alpha1.Application {
	apps := r.store.List()
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps
}

// Get returns one Application or an api.NotFoundError.
func (r *Registry) Get(name string) (*v1alpha1.Application, error) {
	app, ok := r.store.Get(name)
	if !ok {
		return nil, api.NewApplicationNotFoundError(name)
	}
	return app, nil
}

// Changes is the stream of definition changes. The channel stays open
// for the registry's lifetime; consumers select against their own
// context.
func (r *Registry) Changes() <-chan ChangeEvent {
	return r.changes
}
