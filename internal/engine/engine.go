// Package engine is the reconciliation loop. It owns a deduplicating
// work queue fed by five trigger sources (timer resync, source polling,
// definition changes, observed drift, manual requests), a worker pool
// running the observe-diff-execute pipeline, and the in-memory runtime
// state the operator surface reads. One Application is never reconciled
// by two workers at once; triggers arriving mid-sync coalesce into a
// single follow-up.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"capstan/internal/api"
	"capstan/internal/config"
	"capstan/internal/diff"
	"capstan/internal/events"
	"capstan/internal/executor"
	"capstan/internal/observer"
	"capstan/internal/registry"
	"capstan/internal/source"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/health"
	"capstan/pkg/logging"
)

const (
	defaultWorkers            = 4
	defaultResyncInterval     = 3 * time.Minute
	defaultSourcePollInterval = 1 * time.Minute
	defaultSyncTimeout        = 5 * time.Minute
)

// SourceReader is the slice of the manifest source layer the engine
// drives. *source.Reader implements it.
type SourceReader interface {
	Resolve(ctx context.Context, app *v1alpha1.Application) (source.Revision, error)
	ResolveRef(ctx context.Context, app *v1alpha1.Application, ref string) (source.Revision, error)
	FetchRevision(ctx context.Context, app *v1alpha1.Application, rev source.Revision) (*source.Bundle, error)
}

// clusterObserver is the observation surface of one destination.
// *observer.Observer implements it; tests substitute fakes.
type clusterObserver interface {
	Observe(ctx context.Context, app *v1alpha1.Application, gvks []schema.GroupVersionKind) (*observer.Snapshot, error)
	ApplyNamespaceDefaults(objs []*unstructured.Unstructured, namespace string)
	StartStreaming(ctx context.Context) error
	EnsureWatches(ctx context.Context, gvks []schema.GroupVersionKind) error
	Events() <-chan observer.DriftEvent
	Forget(appName string)
}

// planExecutor is the write surface of one destination. *executor.Executor
// implements it.
type planExecutor interface {
	Execute(ctx context.Context, app *v1alpha1.Application, plan *diff.Plan) ([]api.ActionResult, error)
	WaitHealthy(ctx context.Context, app *v1alpha1.Application, objs []*unstructured.Unstructured) (health.Result, error)
}

// destination bundles the observer and executor that share one cluster
// connection. Applications naming the same destination share it.
type destination struct {
	observer clusterObserver
	executor planExecutor

	streamOnce sync.Once
}

// Engine runs the reconciliation loop.
type Engine struct {
	cfg      config.CapstanConfig
	registry *registry.Registry
	source   SourceReader
	recorder events.Recorder

	queue   *delayedQueue
	tracker *statusTracker

	promReg *prometheus.Registry
	metrics *engineMetrics

	destMu sync.Mutex
	dests  map[string]*destination

	// newDestination builds the observer/executor pair for a destination.
	// Tests swap it for a fake factory.
	newDestination func(app *v1alpha1.Application) (*destination, error)

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New builds an Engine. Zero config values fall back to the documented
// defaults, so tests can construct partial configurations.
func New(cfg config.CapstanConfig, reg *registry.Registry, src SourceReader, rec events.Recorder) *Engine {
	if cfg.Engine.Workers <= 0 {
		cfg.Engine.Workers = defaultWorkers
	}
	if cfg.Engine.ResyncInterval.Std() <= 0 {
		cfg.Engine.ResyncInterval = config.Duration(defaultResyncInterval)
	}
	if cfg.Engine.SourcePollInterval.Std() <= 0 {
		cfg.Engine.SourcePollInterval = config.Duration(defaultSourcePollInterval)
	}
	if cfg.Engine.SyncTimeout.Std() <= 0 {
		cfg.Engine.SyncTimeout = config.Duration(defaultSyncTimeout)
	}

	promReg := prometheus.NewRegistry()
	e := &Engine{
		cfg:      cfg,
		registry: reg,
		source:   src,
		recorder: rec,
		queue:    newDelayedQueue(),
		tracker:  newStatusTracker(cfg.History.Limit),
		promReg:  promReg,
		metrics:  newEngineMetrics(promReg),
		dests:    make(map[string]*destination),
	}
	e.newDestination = e.buildDestination
	return e
}

// Gatherer exposes the engine's metric registry for the status server's
// scrape endpoint.
func (e *Engine) Gatherer() prometheus.Gatherer {
	return e.promReg
}

// Start seeds one reconciliation per registered Application and brings
// up the workers, the registry change consumer, and the source poll.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.ctx, e.cancelFunc = context.WithCancel(ctx)
	e.running = true
	e.mu.Unlock()

	for _, app := range e.registry.List() {
		e.tracker.upsert(app)
		e.enqueue(task{App: app.Name, Reason: api.TriggerResync})
	}
	e.refreshCensus()

	for i := 0; i < e.cfg.Engine.Workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	e.wg.Add(1)
	go e.consumeRegistryChanges()

	e.wg.Add(1)
	go e.sourcePollLoop()

	logging.Info("Engine", "Reconciliation engine started with %d workers", e.cfg.Engine.Workers)
	return nil
}

// Stop drains the engine: no new tasks are accepted, blocked workers
// wake, and the call returns once the last goroutine exits.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	logging.Info("Engine", "Stopping reconciliation engine")
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	e.queue.Shutdown()
	e.wg.Wait()
	logging.Info("Engine", "Reconciliation engine stopped")
	return nil
}

// Trigger schedules a reconciliation for one Application. Every trigger
// source funnels through here; redundant triggers collapse in the queue.
func (e *Engine) Trigger(name string, reason api.TriggerReason) {
	e.enqueue(task{App: name, Reason: reason})
}

// enqueue schedules an immediate task and reports whether the queue
// accepted it. An accepted task supersedes the key's scheduled timer:
// the cycle that runs now re-schedules the next one when it finishes.
func (e *Engine) enqueue(t task) bool {
	accepted := e.queue.Add(t)
	if accepted {
		e.queue.Cancel(t.App)
	}
	e.metrics.setQueueDepth(e.queue.Len())
	return accepted
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()

	for {
		t, ok := e.queue.Get(e.ctx)
		if !ok {
			logging.Debug("Engine", "Worker %d stopping", id)
			return
		}
		e.metrics.setQueueDepth(e.queue.Len())
		e.process(t)
		e.queue.Done(t)
	}
}

// consumeRegistryChanges applies definition changes to the tracked set
// and turns them into reconciliation triggers.
func (e *Engine) consumeRegistryChanges() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case ev := <-e.registry.Changes():
			e.handleRegistryChange(ev)
		}
	}
}

func (e *Engine) handleRegistryChange(ev registry.ChangeEvent) {
	switch ev.Operation {
	case registry.OperationDelete:
		logging.Info("Engine", "Application %s removed, scheduling teardown", ev.Name)
		e.enqueue(task{App: ev.Name, Reason: api.TriggerSpecChange, remove: true})

	case registry.OperationCreate, registry.OperationUpdate:
		app, err := e.registry.Get(ev.Name)
		if err != nil {
			// The definition vanished between the event and the lookup;
			// the delete event is right behind.
			return
		}

		specChanged := e.tracker.upsert(app)
		if ev.Operation == registry.OperationCreate {
			e.recorder.Record(app, events.ReasonApplicationRegistered, events.EventData{Name: app.Name})
			e.enqueue(task{App: app.Name, Reason: api.TriggerSpecChange})
		} else if specChanged {
			e.recorder.Record(app, events.ReasonApplicationUpdated, events.EventData{Name: app.Name})
			e.enqueue(task{App: app.Name, Reason: api.TriggerSpecChange})
		}
	}
	e.refreshCensus()
}

// sourcePollLoop re-resolves target revisions on a timer so upstream
// pushes are noticed without waiting for the full resync interval.
func (e *Engine) sourcePollLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Engine.SourcePollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.pollSources()
		}
	}
}

// pollSources triggers every automated Application whose source moved
// past the revision of its last attempt. Comparing against attempts
// rather than successes keeps an Application that fails on a revision
// from being re-triggered for that same revision every tick.
func (e *Engine) pollSources() {
	for _, st := range e.tracker.list() {
		if !st.App.IsAutomated() || st.Status.Phase == v1alpha1.PhaseSyncing {
			continue
		}
		// A target pinned to a content hash cannot move.
		if st.App.Spec.Source.RevisionPinned() {
			continue
		}

		rev, err := e.source.Resolve(e.ctx, st.App)
		if err != nil {
			logging.Debug("Engine", "Source poll for %s failed: %v", st.App.Name, err)
			continue
		}
		if rev.SHA == e.tracker.lastAttemptedRevision(st.App.Name) {
			continue
		}

		logging.Info("Engine", "Source for %s moved to %s", st.App.Name, rev.Short())
		e.enqueue(task{App: st.App.Name, Reason: api.TriggerSourceChange})
	}
}

// ensureStreaming brings up the drift stream of a destination the first
// time a self-healing Application lands on it.
func (e *Engine) ensureStreaming(d *destination) {
	d.streamOnce.Do(func() {
		e.wg.Add(2)
		go func() {
			defer e.wg.Done()
			if err := d.observer.StartStreaming(e.ctx); err != nil {
				logging.Error("Engine", err, "Drift streaming unavailable, polling carries reconciliation alone")
			}
		}()
		go e.consumeDrift(d)
	})
}

func (e *Engine) consumeDrift(d *destination) {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case ev := <-d.observer.Events():
			e.handleDrift(ev)
		}
	}
}

// handleDrift turns an observer notification into a self-heal trigger.
// Notifications for syncing Applications are the engine's own writes
// echoing back through the informers and are ignored.
func (e *Engine) handleDrift(ev observer.DriftEvent) {
	st, ok := e.tracker.get(ev.Application)
	if !ok || !st.App.SelfHealEnabled() {
		return
	}
	if st.Status.Phase == v1alpha1.PhaseSyncing {
		return
	}
	if !e.enqueue(task{App: ev.Application, Reason: api.TriggerSelfHeal}) {
		return
	}

	logging.Info("Engine", "Drift detected for %s on %s", ev.Application, ev.Key)
	e.metrics.recordDrift(ev.Application)
	e.recorder.Record(st.App, events.ReasonDriftDetected, events.EventData{
		Name:     ev.Application,
		Resource: ev.Key.String(),
	})
}

// destinationFor returns the destination an Application syncs to,
// establishing the connection on first use.
func (e *Engine) destinationFor(app *v1alpha1.Application) (*destination, error) {
	key := destinationKey(app)

	e.destMu.Lock()
	defer e.destMu.Unlock()
	if d, ok := e.dests[key]; ok {
		return d, nil
	}

	d, err := e.newDestination(app)
	if err != nil {
		return nil, err
	}
	e.dests[key] = d
	logging.Info("Engine", "Connected destination %s", key)
	return d, nil
}

// destinationKey dedupes cluster connections: Applications naming the
// same server or kubeconfig share one observer and executor.
func destinationKey(app *v1alpha1.Application) string {
	dst := app.Spec.Destination
	switch {
	case dst.Kubeconfig != "":
		return "kubeconfig:" + dst.Kubeconfig
	case dst.Server != "":
		return "server:" + dst.Server
	default:
		return "ambient"
	}
}

// buildDestination establishes the real cluster connection for an
// Application's destination. The observer and the apply path share the
// connection Connect returns.
func (e *Engine) buildDestination(app *v1alpha1.Application) (*destination, error) {
	cli, restCfg, err := observer.Connect(app.Spec.Destination, nil)
	if err != nil {
		return nil, api.NewDestinationUnreachable("connect destination", err)
	}

	obs := observer.New(cli, restCfg)
	return &destination{
		observer: obs,
		executor: executor.New(executor.NewClientWriter(obs.Client()), executor.Options{
			HealthTimeout:  e.cfg.Health.Timeout.Std(),
			HealthInterval: e.cfg.Health.PollInterval.Std(),
		}),
	}, nil
}

func (e *Engine) refreshCensus() {
	e.metrics.setPhaseCounts(e.tracker.phaseCounts())
}
