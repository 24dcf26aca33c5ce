package diff

import (
	"sort"

	"capstan/internal/api"
)

// kindPriority orders applies so that dependencies exist before their
// dependents: namespaces and CRDs before anything that lives in them,
// RBAC and config before the workloads that mount them. Unlisted kinds
// sort after everything listed, alphabetically.
var kindPriority = map[string]int{
	"Namespace":                      0,
	"CustomResourceDefinition":       1,
	"PriorityClass":                  2,
	"PodDisruptionBudget":            3,
	"ResourceQuota":                  4,
	"LimitRange":                     5,
	"NetworkPolicy":                  6,
	"StorageClass":                   7,
	"PersistentVolume":               8,
	"PersistentVolumeClaim":          9,
	"ServiceAccount":                 10,
	"ClusterRole":                    11,
	"ClusterRoleBinding":             12,
	"Role":                           13,
	"RoleBinding":                    14,
	"Secret":                         15,
	"ConfigMap":                      16,
	"Service":                        17,
	"DaemonSet":                      18,
	"Pod":                            19,
	"ReplicaSet":                     20,
	"Deployment":                     21,
	"StatefulSet":                    22,
	"HorizontalPodAutoscaler":        23,
	"Job":                            24,
	"CronJob":                        25,
	"Ingress":                        26,
	"APIService":                     27,
	"MutatingWebhookConfiguration":   28,
	"ValidatingWebhookConfiguration": 29,
}

const unlistedPriority = 100

func priorityFor(kind string) int {
	if p, ok := kindPriority[kind]; ok {
		return p
	}
	return unlistedPriority
}

// sortPlan arranges records for execution: creates, updates and no-ops
// ascending by dependency priority; prunes after every apply, in reverse
// priority so dependents disappear before what they depend on. Ties
// break on (group, kind, namespace, name), making the order total and
// deterministic.
func sortPlan(records []DriftRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]

		aPrune := a.Action == api.ActionPrune
		bPrune := b.Action == api.ActionPrune
		if aPrune != bPrune {
			return !aPrune
		}

		pa, pb := priorityFor(a.Key.Kind), priorityFor(b.Key.Kind)
		if pa != pb {
			if aPrune {
				return pa > pb
			}
			return pa < pb
		}
		return lessKey(a.Key, b.Key)
	})
}

func lessKey(a, b api.ResourceKey) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Namespace != b.Namespace {
		return a.Namespace < b.Namespace
	}
	return a.Name < b.Name
}
