package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"

	"capstan/internal/api"
)

// parseDocuments decodes rendered manifest files into unstructured
// objects. Files may hold multiple YAML documents or raw JSON; empty
// documents are skipped and v1 Lists are flattened into their items.
// Every object must carry apiVersion, kind and metadata.name, and no two
// documents in one revision may declare the same resource.
func parseDocuments(docs []Document) ([]*unstructured.Unstructured, error) {
	var objects []*unstructured.Unstructured
	seen := map[api.ResourceKey]string{}

	for _, doc := range docs {
		decoder := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(doc.Raw), 4096)
		for i := 0; ; i++ {
			var ext runtime.RawExtension
			if err := decoder.Decode(&ext); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, api.NewParseError(doc.Path, fmt.Errorf("document %d: %w", i, err))
			}
			if len(bytes.TrimSpace(ext.Raw)) == 0 {
				continue
			}

			obj := &unstructured.Unstructured{}
			if err := obj.UnmarshalJSON(ext.Raw); err != nil {
				return nil, api.NewParseError(doc.Path, fmt.Errorf("document %d: %w", i, err))
			}

			items := []*unstructured.Unstructured{obj}
			if obj.IsList() {
				items = items[:0]
				err := obj.EachListItem(func(o runtime.Object) error {
					items = append(items, o.(*unstructured.Unstructured))
					return nil
				})
				if err != nil {
					return nil, api.NewParseError(doc.Path, fmt.Errorf("document %d: %w", i, err))
				}
			}

			for _, item := range items {
				if item.GetName() == "" {
					return nil, api.NewParseError(doc.Path,
						fmt.Errorf("document %d: %s is missing metadata.name", i, item.GetKind()))
				}
				key := api.KeyFor(item)
				if prev, dup := seen[key]; dup {
					return nil, api.NewParseError(doc.Path,
						fmt.Errorf("document %d: %s already declared in %s", i, key, prev))
				}
				seen[key] = doc.Path
				objects = append(objects, item)
			}
		}
	}
	return objects, nil
}
