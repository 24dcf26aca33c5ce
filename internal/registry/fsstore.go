package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"sigs.k8s.io/yaml"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// fsStore reads Application definitions from YAML files in a single
// directory, one Application per file. The directory is watched with
// fsnotify; bursts of writes (editors, git checkouts) are debounced per
// file before the definition is re-read.
type fsStore struct {
	mu sync.RWMutex

	dir      string
	debounce time.Duration

	// apps holds the current definitions by Application name.
	apps map[string]*v1alpha1.Application

	// names maps file path to the Application name it defined, so a
	// deleted file can be traced back to its Application.
	names map[string]string

	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	changes chan<- ChangeEvent
	stopCh  chan struct{}
	running bool
}

func newFSStore(dir string, debounce time.Duration) *fsStore {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &fsStore{
		dir:      dir,
		debounce: debounce,
		apps:     make(map[string]*v1alpha1.Application),
		names:    make(map[string]string),
		pending:  make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}
}

// Start scans the directory and begins watching it. The initial scan
// populates the store silently; only later changes produce events.
func (s *fsStore) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create application directory %s: %w", s.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		s.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	s.watcher = watcher
	s.changes = changes
	s.stopCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	if err := s.scan(); err != nil {
		s.Stop()
		return err
	}

	go s.processEvents(ctx)

	logging.Info("Registry", "Watching %s for application definitions", s.dir)
	return nil
}

// scan loads every definition file in the directory.
func (s *fsStore) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read application directory %s: %w", s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		app, err := loadDefinition(path)
		if err != nil {
			logging.Warn("Registry", "Skipping %s: %v", path, err)
			continue
		}

		s.mu.Lock()
		if holder, taken := s.findPathFor(app.Name); taken && holder != path {
			logging.Warn("Registry", "Skipping %s: application %q already defined in %s", path, app.Name, holder)
			s.mu.Unlock()
			continue
		}
		s.apps[app.Name] = app
		s.names[path] = app.Name
		s.mu.Unlock()
	}
	return nil
}

func (s *fsStore) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.cleanupPending()
			return

		case <-s.stopCh:
			s.cleanupPending()
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleFsEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Registry", err, "Filesystem watcher error")
		}
	}
}

// handleFsEvent debounces a filesystem event per path. What actually
// happened to the file is decided when the timer fires, by looking at
// the filesystem, so Create/Write/Rename bursts collapse into a single
// reload.
func (s *fsStore) handleFsEvent(event fsnotify.Event) {
	if !isDefinitionFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	path := event.Name

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.pending[path]; ok {
		timer.Stop()
	}
	s.pending[path] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()

		select {
		case <-s.stopCh:
		default:
			s.reload(path)
		}
	})
}

// reload re-reads one definition file and reconciles the in-memory set
// with what is (or is no longer) on disk.
func (s *fsStore) reload(path string) {
	app, err := loadDefinition(path)

	s.mu.Lock()
	previous, hadPrevious := s.names[path]

	switch {
	case os.IsNotExist(err):
		if !hadPrevious {
			s.mu.Unlock()
			return
		}
		delete(s.apps, previous)
		delete(s.names, path)
		s.mu.Unlock()
		s.emit(previous, OperationDelete)
		return

	case err != nil:
		// A broken file does not unregister a previously valid
		// definition; the last good spec keeps reconciling.
		s.mu.Unlock()
		logging.Warn("Registry", "Ignoring %s: %v", path, err)
		return
	}

	if holder, taken := s.findPathFor(app.Name); taken && holder != path {
		s.mu.Unlock()
		logging.Warn("Registry", "Ignoring %s: application %q already defined in %s", path, app.Name, holder)
		return
	}

	renamed := hadPrevious && previous != app.Name
	if renamed {
		delete(s.apps, previous)
	}
	s.apps[app.Name] = app
	s.names[path] = app.Name
	s.mu.Unlock()

	if renamed {
		s.emit(previous, OperationDelete)
		s.emit(app.Name, OperationCreate)
		return
	}
	if hadPrevious {
		s.emit(app.Name, OperationUpdate)
		return
	}
	s.emit(app.Name, OperationCreate)
}

// findPathFor returns the path currently defining the named
// Application. Callers hold s.mu.
func (s *fsStore) findPathFor(name string) (string, bool) {
	for path, n := range s.names {
		if n == name {
			return path, true
		}
	}
	return "", false
}

func (s *fsStore) emit(name string, op ChangeOperation) {
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

func (s *fsStore) cleanupPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, timer := range s.pending {
		timer.Stop()
	}
	s.pending = make(map[string]*time.Timer)
}

// Stop ends watching.
func (s *fsStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			logging.Error("Registry", err, "Error closing filesystem watcher")
		}
		s.watcher = nil
	}
	return nil
}

// List returns copies of all definitions.
func (s *fsStore) List() []*v1alpha1.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]*v1alpha1.Application, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app.DeepCopy())
	}
	return apps
}

// Get returns a copy of one definition.
func (s *fsStore) Get(name string) (*v1alpha1.Application, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[name]
	if !ok {
		return nil, false
	}
	return app.DeepCopy(), true
}

// loadDefinition reads and validates one Application file. An empty
// metadata.name falls back to the file name.
func loadDefinition(path string) (*v1alpha1.Application, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var app v1alpha1.Application
	if err := yaml.UnmarshalStrict(data, &app); err != nil {
		return nil, fmt.Errorf("invalid application definition: %w", err)
	}

	if app.Name == "" {
		app.Name = nameFromPath(path)
	}
	if err := app.ValidateSpec(); err != nil {
		return nil, err
	}
	return &app, nil
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".yaml")
	return strings.TrimSuffix(base, ".yml")
}

func isDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
