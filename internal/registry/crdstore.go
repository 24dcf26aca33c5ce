package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	toolscache "k8s.io/client-go/tools/cache"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// crdStore reads Application custom resources from the cluster capstan
// runs against, watched through a controller-runtime informer cache.
type crdStore struct {
	mu sync.RWMutex

	restConfig *rest.Config
	namespace  string
	scheme     *runtime.Scheme

	cache   cache.Cache
	changes chan<- ChangeEvent

	ctx        context.Context
	cancelFunc context.CancelFunc
	running    bool

	// synced flips once the initial cache sync completes. The informer
	// replays every pre-existing resource as an add before that point;
	// the engine lists after Start, so replayed adds would only
	// duplicate work.
	synced bool
}

func newCRDStore(restConfig *rest.Config, namespace string) *crdStore {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))

	return &crdStore{
		restConfig: restConfig,
		namespace:  namespace,
		scheme:     scheme,
	}
}

// Start builds the cache, registers the Application informer, and waits
// for the initial sync so List serves a complete set immediately.
func (s *crdStore) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancelFunc = context.WithCancel(ctx)
	s.changes = changes
	s.running = true
	s.mu.Unlock()

	cacheOpts := cache.Options{Scheme: s.scheme}
	if s.namespace != "" {
		cacheOpts.DefaultNamespaces = map[string]cache.Config{
			s.namespace: {},
		}
	}

	c, err := cache.New(s.restConfig, cacheOpts)
	if err != nil {
		s.markStopped()
		return fmt.Errorf("failed to create cache: %w", err)
	}

	s.mu.Lock()
	s.cache = c
	s.mu.Unlock()

	informer, err := c.GetInformer(s.ctx, &v1alpha1.Application{})
	if err != nil {
		s.markStopped()
		return fmt.Errorf("failed to get application informer: %w", err)
	}
	if _, err := informer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc:    s.handleAdd,
		UpdateFunc: s.handleUpdate,
		DeleteFunc: s.handleDelete,
	}); err != nil {
		s.markStopped()
		return fmt.Errorf("failed to add event handler: %w", err)
	}

	go func() {
		if err := c.Start(s.ctx); err != nil {
			logging.Error("Registry", err, "Application cache stopped with error")
		}
	}()

	if !c.WaitForCacheSync(s.ctx) {
		s.markStopped()
		return fmt.Errorf("failed to sync application cache")
	}

	s.mu.Lock()
	s.synced = true
	s.mu.Unlock()

	logging.Info("Registry", "Watching Application resources in namespace %s", s.namespaceDisplay())
	return nil
}

func (s *crdStore) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
}

func (s *crdStore) handleAdd(obj interface{}) {
	app, ok := obj.(*v1alpha1.Application)
	if !ok {
		logging.Warn("Registry", "Unexpected object type in add event")
		return
	}

	s.mu.RLock()
	synced := s.synced
	s.mu.RUnlock()
	if !synced {
		return
	}

	s.emit(app.Name, OperationCreate)
}

func (s *crdStore) handleUpdate(oldObj, newObj interface{}) {
	oldApp, okOld := oldObj.(*v1alpha1.Application)
	newApp, okNew := newObj.(*v1alpha1.Application)
	if !okOld || !okNew {
		logging.Warn("Registry", "Unexpected object type in update event")
		return
	}
	// Status writes and resyncs come back through the informer; only a
	// changed generation means the spec changed.
	if oldApp.Generation == newApp.Generation && oldApp.Generation != 0 {
		return
	}
	s.emit(newApp.Name, OperationUpdate)
}

func (s *crdStore) handleDelete(obj interface{}) {
	if tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
		obj = tombstone.Obj
	}
	app, ok := obj.(*v1alpha1.Application)
	if !ok {
		logging.Warn("Registry", "Unexpected object type in delete event")
		return
	}
	s.emit(app.Name, OperationDelete)
}

func (s *crdStore) emit(name string, op ChangeOperation) {
	s.mu.RLock()
	changes := s.changes
	running := s.running
	s.mu.RUnlock()

	if !running || changes == nil {
		return
	}

	select {
	case changes <- ChangeEvent{Name: name, Operation: op, Timestamp: time.Now()}:
		logging.Debug("Registry", "Emitted change event: %s %s", op, name)
	default:
		logging.Warn("Registry", "Change event channel full, dropping %s for %s", op, name)
	}
}

// Stop cancels the cache context; informer registrations die with it.
func (s *crdStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	return nil
}

// List returns copies of all Application resources in the watched
// namespace.
func (s *crdStore) List() []*v1alpha1.Application {
	s.mu.RLock()
	c := s.cache
	ctx := s.ctx
	s.mu.RUnlock()

	if c == nil {
		return nil
	}

	var list v1alpha1.ApplicationList
	if err := c.List(ctx, &list, client.InNamespace(s.namespace)); err != nil {
		logging.Error("Registry", err, "Failed to list applications from cache")
		return nil
	}

	apps := make([]*v1alpha1.Application, 0, len(list.Items))
	for i := range list.Items {
		apps = append(apps, list.Items[i].DeepCopy())
	}
	return apps
}

// Get returns a copy of one Application resource.
func (s *crdStore) Get(name string) (*v1alpha1.Application, bool) {
	s.mu.RLock()
	c := s.cache
	ctx := s.ctx
	s.mu.RUnlock()

	if c == nil {
		return nil, false
	}

	var app v1alpha1.Application
	key := client.ObjectKey{Namespace: s.namespace, Name: name}
	if err := c.Get(ctx, key, &app); err != nil {
		return nil, false
	}
	return app.DeepCopy(), true
}

func (s *crdStore) namespaceDisplay() string {
	if s.namespace == "" {
		return "all namespaces"
	}
	return s.namespace
}
