package observer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

var (
	gvkConfigMap  = schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}
	gvkDeployment = schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}
	gvkNamespace  = schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}
)

func liveObj(gvk schema.GroupVersionKind, namespace, name, owner string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(gvk)
	u.SetName(name)
	if namespace != "" {
		u.SetNamespace(namespace)
	}
	if owner != "" {
		u.SetLabels(map[string]string{v1alpha1.TrackingLabel: owner})
	}
	return u
}

func testMapper() meta.RESTMapper {
	mapper := meta.NewDefaultRESTMapper(nil)
	mapper.Add(gvkConfigMap, meta.RESTScopeNamespace)
	mapper.Add(gvkDeployment, meta.RESTScopeNamespace)
	mapper.Add(gvkNamespace, meta.RESTScopeRoot)
	return mapper
}

func newFakeObserver(t *testing.T, objs ...client.Object) *Observer {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	cli := fake.NewClientBuilder().
		WithScheme(scheme).
		WithRESTMapper(testMapper()).
		WithObjects(objs...).
		Build()
	return New(cli, nil)
}

func testApp(name string) *v1alpha1.Application {
	return &v1alpha1.Application{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"}}
}

func TestObserve_FiltersByOwnership(t *testing.T) {
	obs := newFakeObserver(t,
		liveObj(gvkConfigMap, "demo", "mine", "web"),
		liveObj(gvkConfigMap, "demo", "foreign", "other-app"),
		liveObj(gvkConfigMap, "demo", "unowned", ""),
		liveObj(gvkDeployment, "demo", "mine", "web"),
	)

	snap, err := obs.Observe(context.Background(), testApp("web"), []schema.GroupVersionKind{gvkConfigMap, gvkDeployment})
	require.NoError(t, err)
	require.Len(t, snap.Resources, 2)

	_, hasCM := snap.Resources[api.ResourceKey{Kind: "ConfigMap", Namespace: "demo", Name: "mine"}]
	_, hasDeploy := snap.Resources[api.ResourceKey{Group: "apps", Kind: "Deployment", Namespace: "demo", Name: "mine"}]
	assert.True(t, hasCM)
	assert.True(t, hasDeploy)
	assert.False(t, snap.ObservedAt.IsZero())
}

func TestObserve_SpansNamespaces(t *testing.T) {
	obs := newFakeObserver(t,
		liveObj(gvkConfigMap, "ns-a", "cm", "web"),
		liveObj(gvkConfigMap, "ns-b", "cm", "web"),
	)

	snap, err := obs.Observe(context.Background(), testApp("web"), []schema.GroupVersionKind{gvkConfigMap})
	require.NoError(t, err)
	assert.Len(t, snap.Resources, 2, "owned resources are tracked wherever they live")
}

func TestObserve_UpdatesLatest(t *testing.T) {
	obs := newFakeObserver(t, liveObj(gvkConfigMap, "demo", "cm", "web"))
	app := testApp("web")

	assert.Nil(t, obs.Latest("web"))

	snap, err := obs.Observe(context.Background(), app, []schema.GroupVersionKind{gvkConfigMap})
	require.NoError(t, err)
	assert.Same(t, snap, obs.Latest("web"))

	obs.Forget("web")
	assert.Nil(t, obs.Latest("web"))
}

func TestObserve_EmptyKindSet(t *testing.T) {
	obs := newFakeObserver(t)
	snap, err := obs.Observe(context.Background(), testApp("web"), nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Resources)
}

func TestIsNamespaced(t *testing.T) {
	obs := newFakeObserver(t)

	namespaced, err := obs.IsNamespaced(gvkConfigMap)
	require.NoError(t, err)
	assert.True(t, namespaced)

	namespaced, err = obs.IsNamespaced(gvkNamespace)
	require.NoError(t, err)
	assert.False(t, namespaced)

	_, err = obs.IsNamespaced(schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Widget"})
	assert.Error(t, err, "unknown kinds cannot be resolved")
}

func TestApplyNamespaceDefaults(t *testing.T) {
	obs := newFakeObserver(t)

	cm := liveObj(gvkConfigMap, "", "cm", "")
	ns := liveObj(gvkNamespace, "", "demo", "")
	pinned := liveObj(gvkConfigMap, "explicit", "cm2", "")
	widget := liveObj(schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Widget"}, "", "w", "")

	obs.ApplyNamespaceDefaults([]*unstructured.Unstructured{cm, ns, pinned, widget}, "fallback")

	assert.Equal(t, "fallback", cm.GetNamespace(), "namespaced object without namespace gets the default")
	assert.Empty(t, ns.GetNamespace(), "cluster-scoped objects stay cluster-scoped")
	assert.Equal(t, "explicit", pinned.GetNamespace(), "explicit namespaces are never overridden")
	assert.Empty(t, widget.GetNamespace(), "unknown scope leaves the object untouched")
}

func TestApplyNamespaceDefaults_NoDestinationNamespace(t *testing.T) {
	obs := newFakeObserver(t)
	cm := liveObj(gvkConfigMap, "", "cm", "")
	obs.ApplyNamespaceDefaults([]*unstructured.Unstructured{cm}, "")
	assert.Empty(t, cm.GetNamespace())
}
