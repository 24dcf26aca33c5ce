package diff

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"capstan/internal/api"
)

// DriftRecord is the verdict for one resource present in the desired
// set, the observed set, or both.
type DriftRecord struct {
	Key    api.ResourceKey
	Action api.Action

	// Desired is the manifest object; nil for prunes.
	Desired *unstructured.Unstructured
	// Observed is the live object; nil for creates.
	Observed *unstructured.Unstructured

	// Patch holds the field-level merge patch for updates. Empty for
	// every other action.
	Patch []byte

	// Note explains a NoOp that is not plain convergence, e.g. a prune
	// candidate held back by policy.
	Note string
}

// Plan is an ordered set of drift records: applies in dependency order
// first, prunes in reverse dependency order last.
type Plan struct {
	Records []DriftRecord
	Summary Summary
}

// Summary counts the plan's actions.
type Summary struct {
	Create int
	Update int
	Prune  int
	NoOp   int
}

// InSync reports whether the plan contains no work.
func (p *Plan) InSync() bool {
	return p.Summary.Create == 0 && p.Summary.Update == 0 && p.Summary.Prune == 0
}

// Changes returns the number of records the executor will act on.
func (p *Plan) Changes() int {
	return p.Summary.Create + p.Summary.Update + p.Summary.Prune
}

// Policy carries the per-Application knobs the comparison honors.
type Policy struct {
	// Application is the owning Application's name, matched against the
	// tracking label on observed resources.
	Application string
	// Prune permits deleting owned resources that left the desired set.
	Prune bool
}

func summarize(records []DriftRecord) Summary {
	var s Summary
	for _, r := range records {
		switch r.Action {
		case api.ActionCreate:
			s.Create++
		case api.ActionUpdate:
			s.Update++
		case api.ActionPrune:
			s.Prune++
		case api.ActionNoOp:
			s.NoOp++
		}
	}
	return s
}
