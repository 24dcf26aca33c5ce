package observer

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	toolscache "k8s.io/client-go/tools/cache"
	"sigs.k8s.io/controller-runtime/pkg/cache"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// DriftEvent reports that an owned resource changed out-of-band. It
// names the Application and the resource; it carries no state, because
// the engine always re-observes before acting.
type DriftEvent struct {
	Application string
	Key         api.ResourceKey
}

// Events returns the stream of drift notifications. The channel is
// never closed; it goes quiet when streaming stops.
func (o *Observer) Events() <-chan DriftEvent {
	return o.events
}

// StartStreaming brings up the informer cache. It blocks until ctx is
// done, so callers run it in a goroutine. Watches attach lazily through
// EnsureWatches as Applications declare their kinds.
func (o *Observer) StartStreaming(ctx context.Context) error {
	if o.cfg == nil {
		return fmt.Errorf("observer has no rest config, streaming unavailable")
	}

	o.streamMu.Lock()
	if o.cache != nil {
		o.streamMu.Unlock()
		return fmt.Errorf("streaming already started")
	}
	c, err := cache.New(o.cfg, cache.Options{})
	if err != nil {
		o.streamMu.Unlock()
		return fmt.Errorf("build informer cache: %w", err)
	}
	o.cache = c
	o.streamMu.Unlock()

	logging.Info("Observer", "Streaming informer cache starting")
	return c.Start(ctx)
}

// EnsureWatches attaches informers for any tracked kinds that do not
// have one yet. Safe to call on every reconciliation; established
// watches are kept.
func (o *Observer) EnsureWatches(ctx context.Context, gvks []schema.GroupVersionKind) error {
	o.streamMu.Lock()
	defer o.streamMu.Unlock()

	if o.cache == nil {
		// Streaming disabled: polling alone carries the semantics.
		return nil
	}

	for _, gvk := range gvks {
		if o.watched[gvk] {
			continue
		}
		obj := &unstructured.Unstructured{}
		obj.SetGroupVersionKind(gvk)

		informer, err := o.cache.GetInformer(ctx, obj, cache.BlockUntilSynced(false))
		if err != nil {
			return api.FromK8sError(fmt.Sprintf("watch %s", gvk.Kind), err)
		}
		if _, err := informer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
			AddFunc:    o.notify,
			UpdateFunc: func(_, newObj interface{}) { o.notify(newObj) },
			DeleteFunc: o.notify,
		}); err != nil {
			return fmt.Errorf("attach handler for %s: %w", gvk.Kind, err)
		}
		o.watched[gvk] = true
		logging.Debug("Observer", "Watching %s", gvk)
	}
	return nil
}

// notify forwards a change on an owned resource as a DriftEvent. Delivery
// is best-effort: when the buffer is full the event is dropped, which is
// safe because the periodic resync bounds staleness anyway.
func (o *Observer) notify(raw interface{}) {
	if tombstone, ok := raw.(toolscache.DeletedFinalStateUnknown); ok {
		raw = tombstone.Obj
	}
	obj, ok := raw.(*unstructured.Unstructured)
	if !ok {
		return
	}
	owner := obj.GetLabels()[v1alpha1.TrackingLabel]
	if owner == "" {
		return
	}
	select {
	case o.events <- DriftEvent{Application: owner, Key: api.KeyFor(obj)}:
	default:
		logging.Debug("Observer", "Drift event buffer full, dropping %s", api.KeyFor(obj))
	}
}
