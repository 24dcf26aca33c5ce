package executor

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// FieldOwner is the server-side-apply field manager capstan writes as.
const FieldOwner = "capstan-controller"

// ResourceWriter is the executor's view of the destination cluster. The
// production implementation wraps the shared cluster client; tests
// substitute an in-memory fake.
type ResourceWriter interface {
	// Apply creates or updates obj with server-side apply semantics.
	// Applying unchanged content is a no-op, which makes retries safe.
	Apply(ctx context.Context, obj *unstructured.Unstructured) error

	// Delete removes obj, cascading to dependents. Implementations
	// return API errors unclassified; the executor decides what a
	// not-found means for the operation at hand.
	Delete(ctx context.Context, obj *unstructured.Unstructured) error

	// Get fetches the live object at ref's coordinates (group, version,
	// kind, namespace, name).
	Get(ctx context.Context, ref *unstructured.Unstructured) (*unstructured.Unstructured, error)
}

type clientWriter struct {
	cli client.Client
}

// NewClientWriter adapts a cluster client into a ResourceWriter.
func NewClientWriter(cli client.Client) ResourceWriter {
	return &clientWriter{cli: cli}
}

func (w *clientWriter) Apply(ctx context.Context, obj *unstructured.Unstructured) error {
	return w.cli.Patch(ctx, obj, client.Apply, client.FieldOwner(FieldOwner), client.ForceOwnership)
}

func (w *clientWriter) Delete(ctx context.Context, obj *unstructured.Unstructured) error {
	return w.cli.Delete(ctx, obj, client.PropagationPolicy(metav1.DeletePropagationForeground))
}

func (w *clientWriter) Get(ctx context.Context, ref *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	out := &unstructured.Unstructured{}
	out.SetGroupVersionKind(ref.GroupVersionKind())
	if err := w.cli.Get(ctx, client.ObjectKeyFromObject(ref), out); err != nil {
		return nil, err
	}
	return out, nil
}
