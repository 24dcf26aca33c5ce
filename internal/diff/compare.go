// Package diff computes the drift between the desired state declared in
// a source revision and the observed state of the destination cluster.
//
// Comparison is semantic, not textual: observed objects are normalized
// to strip server-populated fields, and the update patch is the merge
// patch from the normalized live state to the manifest overlaid on it.
// A resource whose manifest fields all match its live values produces no
// work even when the server has defaulted a hundred other fields.
package diff

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// Compare builds the execution plan for one reconciliation: one record
// per resource present in either set, matched by (group, kind,
// namespace, name).
//
// Desired but not observed is a Create. Present in both is an Update
// when the semantic diff is non-empty, otherwise a NoOp. Observed but
// not desired is a Prune, and only when the policy allows pruning and the
// live object carries the Application's tracking label; resources owned
// by nobody or by another Application are never touched.
func Compare(desired []*unstructured.Unstructured, observed map[api.ResourceKey]*unstructured.Unstructured, pol Policy) (*Plan, error) {
	records := make([]DriftRecord, 0, len(desired))
	inDesired := make(map[api.ResourceKey]bool, len(desired))

	for _, manifest := range desired {
		key := api.KeyFor(manifest)
		inDesired[key] = true

		live, exists := observed[key]
		if !exists {
			records = append(records, DriftRecord{Key: key, Action: api.ActionCreate, Desired: manifest})
			continue
		}

		patch, err := semanticDiff(manifest, live)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", key, err)
		}
		if emptyPatch(patch) {
			records = append(records, DriftRecord{Key: key, Action: api.ActionNoOp, Desired: manifest, Observed: live})
			continue
		}
		records = append(records, DriftRecord{
			Key:      key,
			Action:   api.ActionUpdate,
			Desired:  manifest,
			Observed: live,
			Patch:    patch,
		})
	}

	for key, live := range observed {
		if inDesired[key] || !ownedBy(live, pol.Application) {
			continue
		}
		if !pol.Prune {
			records = append(records, DriftRecord{Key: key, Action: api.ActionNoOp, Observed: live, Note: "prune disabled"})
			continue
		}
		records = append(records, DriftRecord{Key: key, Action: api.ActionPrune, Observed: live})
	}

	sortPlan(records)
	return &Plan{Records: records, Summary: summarize(records)}, nil
}

func ownedBy(obj *unstructured.Unstructured, application string) bool {
	return application != "" && obj.GetLabels()[v1alpha1.TrackingLabel] == application
}
