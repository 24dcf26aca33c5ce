package registry

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"capstan/internal/api"
	"capstan/internal/config"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

func configWithMode(mode string) config.RegistryConfig {
	return config.RegistryConfig{Mode: mode}
}

type fakeStore struct {
	apps    map[string]*v1alpha1.Application
	started bool
	stopped bool
}

func (f *fakeStore) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	f.started = true
	return nil
}

func (f *fakeStore) Stop() error {
	f.stopped = true
	return nil
}

func (f *fakeStore) List() []*v1alpha1.Application {
	apps := make([]*v1alpha1.Application, 0, len(f.apps))
	for _, app := range f.apps {
		apps = append(apps, app)
	}
	return apps
}

func (f *fakeStore) Get(name string) (*v1alpha1.Application, bool) {
	app, ok := f.apps[name]
	return app, ok
}

func definedApp(name string) *v1alpha1.Application {
	return &v1alpha1.Application{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: v1alpha1.ApplicationSpec{
			Source: v1alpha1.SourceSpec{RepoURL: "https://example.com/" + name + ".git"},
		},
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	store := &fakeStore{apps: map[string]*v1alpha1.Application{
		"zeta":  definedApp("zeta"),
		"alpha": definedApp("alpha"),
		"mid":   definedApp("mid"),
	}}
	reg := NewWithStore(store)

	apps := reg.List()
	if len(apps) != 3 {
		t.Fatalf("expected 3 applications, got %d", len(apps))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if apps[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, apps[i].Name)
		}
	}
}

func TestRegistry_GetUnknownIsNotFound(t *testing.T) {
	reg := NewWithStore(&fakeStore{apps: map[string]*v1alpha1.Application{}})

	_, err := reg.Get("missing")
	if err == nil {
		t.Fatal("expected an error for an unknown application")
	}
	if !api.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}

func TestRegistry_StartStopDelegates(t *testing.T) {
	store := &fakeStore{apps: map[string]*v1alpha1.Application{}}
	reg := NewWithStore(store)

	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !store.started {
		t.Error("expected the store to be started")
	}

	if err := reg.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !store.stopped {
		t.Error("expected the store to be stopped")
	}
}

func TestRegistry_UnknownModeIsRejected(t *testing.T) {
	_, err := New(configWithMode("etcd"))
	if err == nil {
		t.Fatal("expected an error for an unknown registry mode")
	}
}

func TestRegistry_FilesystemModeByDefault(t *testing.T) {
	cfg := configWithMode("")
	cfg.Dir = t.TempDir()

	reg, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := reg.store.(*fsStore); !ok {
		t.Errorf("expected a filesystem store, got %T", reg.store)
	}
}
