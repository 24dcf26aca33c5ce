package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

func TestNormalize_StripsServerFields(t *testing.T) {
	u := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":              "cm",
			"namespace":         "demo",
			"resourceVersion":   "42",
			"uid":               "abc-def",
			"generation":        int64(3),
			"creationTimestamp": "2026-01-01T00:00:00Z",
			"selfLink":          "/api/v1/x",
			"managedFields":     []interface{}{map[string]interface{}{"manager": "capstan"}},
			"annotations": map[string]interface{}{
				lastAppliedAnnotation: "{}",
				"keep":                "me",
			},
			"labels": map[string]interface{}{
				v1alpha1.TrackingLabel: "app",
				"team":                 "core",
			},
		},
		"data":   map[string]interface{}{"a": "1"},
		"status": map[string]interface{}{"phase": "Active"},
	}}

	out := Normalize(u)

	meta := out.Object["metadata"].(map[string]interface{})
	for _, gone := range []string{"resourceVersion", "uid", "generation", "creationTimestamp", "selfLink", "managedFields"} {
		assert.NotContains(t, meta, gone)
	}
	_, hasStatus := out.Object["status"]
	assert.False(t, hasStatus)

	assert.Equal(t, map[string]string{"keep": "me"}, out.GetAnnotations())
	assert.Equal(t, map[string]string{"team": "core"}, out.GetLabels())
	assert.Equal(t, "cm", out.GetName())
	assert.Equal(t, "demo", out.GetNamespace())
}

func TestNormalize_RemovesEmptiedMaps(t *testing.T) {
	u := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":        "cm",
			"annotations": map[string]interface{}{lastAppliedAnnotation: "{}"},
			"labels":      map[string]interface{}{v1alpha1.TrackingLabel: "app"},
		},
	}}

	out := Normalize(u)
	meta := out.Object["metadata"].(map[string]interface{})
	assert.NotContains(t, meta, "annotations", "emptied annotation map must disappear")
	assert.NotContains(t, meta, "labels", "emptied label map must disappear")
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	u := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":            "cm",
			"resourceVersion": "42",
		},
		"status": map[string]interface{}{"phase": "Active"},
	}}

	_ = Normalize(u)

	require.Equal(t, "42", u.GetResourceVersion())
	_, hasStatus := u.Object["status"]
	assert.True(t, hasStatus)
}

func TestNormalize_Nil(t *testing.T) {
	assert.Nil(t, Normalize(nil))
}
