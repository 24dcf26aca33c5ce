package diff

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// serverManagedMetadata lists the metadata fields the API server owns.
// They differ on every round trip and must never read as drift.
var serverManagedMetadata = []string{
	"resourceVersion",
	"uid",
	"generation",
	"creationTimestamp",
	"managedFields",
	"selfLink",
}

const lastAppliedAnnotation = "kubectl.kubernetes.io/last-applied-configuration"

// Normalize returns a deep copy of obj with every server-populated or
// capstan-injected field removed: status, server-managed metadata, the
// kubectl last-applied annotation, and the tracking label. Manifests are
// normalized with the same rules so exported YAML (which often carries
// creationTimestamp: null and friends) compares clean.
func Normalize(obj *unstructured.Unstructured) *unstructured.Unstructured {
	if obj == nil {
		return nil
	}
	out := obj.DeepCopy()

	unstructured.RemoveNestedField(out.Object, "status")
	for _, field := range serverManagedMetadata {
		unstructured.RemoveNestedField(out.Object, "metadata", field)
	}

	if annotations := out.GetAnnotations(); annotations != nil {
		delete(annotations, lastAppliedAnnotation)
		if len(annotations) == 0 {
			unstructured.RemoveNestedField(out.Object, "metadata", "annotations")
		} else {
			out.SetAnnotations(annotations)
		}
	}

	if labels := out.GetLabels(); labels != nil {
		delete(labels, v1alpha1.TrackingLabel)
		if len(labels) == 0 {
			unstructured.RemoveNestedField(out.Object, "metadata", "labels")
		} else {
			out.SetLabels(labels)
		}
	}

	return out
}
