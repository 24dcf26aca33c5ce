// Package observer reads the destination cluster's view of an
// Application: every live resource carrying the Application's tracking
// label, merged into an immutable point-in-time Snapshot.
//
// Two modes feed the engine. Polling builds a fresh Snapshot on demand;
// streaming keeps informers on the tracked kinds and pushes DriftEvents
// when owned resources change. A DriftEvent only schedules a
// reconciliation; state is always re-read with a fresh poll, so both
// modes share the same snapshot semantics.
package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// listConcurrency bounds the per-Observe fan-out across tracked kinds.
const listConcurrency = 4

// Snapshot is one observation of an Application's live resources. It is
// immutable after construction; holders may read it without locking.
type Snapshot struct {
	Resources  map[api.ResourceKey]*unstructured.Unstructured
	ObservedAt time.Time
}

// Observer reads owned resources from one destination cluster.
type Observer struct {
	client client.Client
	cfg    *rest.Config

	mu     sync.Mutex
	latest map[string]*Snapshot

	streamMu sync.Mutex
	cache    cache.Cache
	watched  map[schema.GroupVersionKind]bool
	events   chan DriftEvent
}

// New builds an Observer over an established cluster client. cfg is only
// needed for streaming mode and may be nil in polling-only setups.
func New(cli client.Client, cfg *rest.Config) *Observer {
	return &Observer{
		client:  cli,
		cfg:     cfg,
		latest:  make(map[string]*Snapshot),
		watched: make(map[schema.GroupVersionKind]bool),
		events:  make(chan DriftEvent, 256),
	}
}

// Observe lists every tracked kind with the Application's ownership
// selector and merges the hits into a Snapshot. Kinds the cluster does
// not serve (a CRD that is itself part of the desired set, not yet
// applied) are skipped, not failed.
func (o *Observer) Observe(ctx context.Context, app *v1alpha1.Application, gvks []schema.GroupVersionKind) (*Snapshot, error) {
	selector := labels.SelectorFromSet(labels.Set{v1alpha1.TrackingLabel: app.Name})
	snap := &Snapshot{
		Resources:  make(map[api.ResourceKey]*unstructured.Unstructured),
		ObservedAt: time.Now(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)

	for _, gvk := range gvks {
		g.Go(func() error {
			list := &unstructured.UnstructuredList{}
			list.SetGroupVersionKind(gvk.GroupVersion().WithKind(gvk.Kind + "List"))

			err := o.client.List(gctx, list, client.MatchingLabelsSelector{Selector: selector})
			if err != nil {
				if meta.IsNoMatchError(err) {
					logging.Debug("Observer", "Kind %s not served yet, skipping", gvk)
					return nil
				}
				return api.FromK8sError(fmt.Sprintf("list %s for %s", gvk.Kind, app.Name), err)
			}

			mu.Lock()
			defer mu.Unlock()
			for i := range list.Items {
				item := &list.Items[i]
				snap.Resources[api.KeyFor(item)] = item
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.latest[app.Name] = snap
	o.mu.Unlock()

	logging.Debug("Observer", "Observed %d resources for %s across %d kinds",
		len(snap.Resources), app.Name, len(gvks))
	return snap, nil
}

// Latest returns the most recent Snapshot taken for an Application, or
// nil when it has never been observed.
func (o *Observer) Latest(appName string) *Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest[appName]
}

// Forget drops the cached Snapshot for an Application that was removed.
func (o *Observer) Forget(appName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.latest, appName)
}

// IsNamespaced resolves whether a kind lives in a namespace.
func (o *Observer) IsNamespaced(gvk schema.GroupVersionKind) (bool, error) {
	mapping, err := o.client.RESTMapper().RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return false, err
	}
	return mapping.Scope.Name() == meta.RESTScopeNameNamespace, nil
}

// ApplyNamespaceDefaults fills metadata.namespace with the destination
// namespace on namespaced objects that leave it empty. Kinds the mapper
// cannot place yet (their CRD is part of the same desired set) are left
// untouched; the apply path reports a real error if one remains wrong.
func (o *Observer) ApplyNamespaceDefaults(objs []*unstructured.Unstructured, namespace string) {
	if namespace == "" {
		return
	}
	for _, obj := range objs {
		if obj.GetNamespace() != "" {
			continue
		}
		namespaced, err := o.IsNamespaced(obj.GroupVersionKind())
		if err != nil {
			logging.Debug("Observer", "Cannot determine scope of %s: %v", obj.GroupVersionKind(), err)
			continue
		}
		if namespaced {
			obj.SetNamespace(namespace)
		}
	}
}

// Client exposes the underlying cluster client for the apply path, so
// the observer and executor of one destination share a connection.
func (o *Observer) Client() client.Client {
	return o.client
}
