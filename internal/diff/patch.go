package diff

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// semanticDiff computes the update patch between a live object and the
// manifest that declares it. The overlay merges the manifest onto the
// normalized live state, so fields the manifest never mentions (server
// defaults, admission-injected values, other controllers' additions)
// cannot register as drift; only fields the manifest declares, deletes
// with an explicit null, or replaces wholesale show up in the patch.
func semanticDiff(desired, observed *unstructured.Unstructured) ([]byte, error) {
	live := Normalize(observed)
	manifest := Normalize(desired)

	before, err := json.Marshal(live.Object)
	if err != nil {
		return nil, fmt.Errorf("marshal observed: %w", err)
	}
	after, err := json.Marshal(deepMerge(live.Object, manifest.Object))
	if err != nil {
		return nil, fmt.Errorf("marshal overlay: %w", err)
	}

	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	return patch, nil
}

// emptyPatch reports whether a merge patch changes nothing.
func emptyPatch(patch []byte) bool {
	return len(patch) == 0 || string(patch) == "{}"
}

// deepMerge overlays src onto dst with JSON merge-patch semantics: maps
// merge recursively, scalars and lists replace, explicit nulls delete.
// Neither input is mutated.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if v == nil {
			delete(out, k)
			continue
		}
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := out[k].(map[string]interface{}); ok {
				out[k] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}
