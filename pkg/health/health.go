// Package health grades the runtime health of Kubernetes resources.
//
// Health rules are per-kind functions in a lookup table rather than a type
// hierarchy: workloads are graded from their status (a Deployment is
// healthy when the observed replica count matches the desired count and no
// pod is crash-looping), plumbing kinds like ConfigMaps are healthy by
// existing. Kinds without a rule fall back to healthy so that custom
// resources never block a sync verdict.
package health

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Status is the graded health of a single resource or a whole sync.
type Status string

const (
	// StatusUnknown means the rule could not read the resource status.
	StatusUnknown Status = "unknown"
	// StatusHealthy means the resource has converged to its desired state.
	StatusHealthy Status = "healthy"
	// StatusProgressing means the resource is still converging.
	StatusProgressing Status = "progressing"
	// StatusDegraded means the resource cannot converge without help.
	StatusDegraded Status = "degraded"
)

// rank orders statuses from best to worst for aggregation.
var rank = map[Status]int{
	StatusHealthy:     0,
	StatusUnknown:     1,
	StatusProgressing: 2,
	StatusDegraded:    3,
}

// Worse returns the worse of two statuses.
func Worse(a, b Status) Status {
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Result carries the grade and a human-readable explanation.
type Result struct {
	Status  Status
	Message string
}

type checkFunc func(obj *unstructured.Unstructured) (Result, error)

// checks maps GroupKind to its grading rule. Kinds not listed grade
// healthy on existence.
var checks = map[schema.GroupKind]checkFunc{
	{Group: "apps", Kind: "Deployment"}:             checkDeployment,
	{Group: "apps", Kind: "StatefulSet"}:            checkStatefulSet,
	{Group: "apps", Kind: "DaemonSet"}:              checkDaemonSet,
	{Group: "apps", Kind: "ReplicaSet"}:             checkReplicaSet,
	{Group: "", Kind: "Pod"}:                        checkPod,
	{Group: "", Kind: "Service"}:                    checkService,
	{Group: "", Kind: "Namespace"}:                  checkNamespace,
	{Group: "", Kind: "PersistentVolumeClaim"}:      checkPVC,
	{Group: "batch", Kind: "Job"}:                   checkJob,
	{Group: "networking.k8s.io", Kind: "Ingress"}:   checkIngress,
	{Group: "apiextensions.k8s.io", Kind: "CustomResourceDefinition"}: checkEstablished,
}

// HasRule reports whether a grading rule exists for the GroupKind, i.e.
// whether the resource is worth re-polling while it converges.
func HasRule(gk schema.GroupKind) bool {
	_, ok := checks[gk]
	return ok
}

// Grade grades a single live resource. A nil object grades Unknown.
func Grade(obj *unstructured.Unstructured) Result {
	if obj == nil {
		return Result{Status: StatusUnknown, Message: "resource not observed"}
	}
	check, ok := checks[obj.GroupVersionKind().GroupKind()]
	if !ok {
		return Result{Status: StatusHealthy}
	}
	res, err := check(obj)
	if err != nil {
		return Result{Status: StatusUnknown, Message: err.Error()}
	}
	return res
}

// Aggregate folds per-resource results into a single verdict: the worst
// status wins, and the message names the first resource that dragged the
// verdict down.
func Aggregate(results map[string]Result) Result {
	agg := Result{Status: StatusHealthy}
	for name, res := range results {
		if w := Worse(agg.Status, res.Status); w != agg.Status {
			agg.Status = w
			agg.Message = fmt.Sprintf("%s: %s", name, res.Message)
		}
	}
	return agg
}

func checkDeployment(obj *unstructured.Unstructured) (Result, error) {
	var dep appsv1.Deployment
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &dep); err != nil {
		return Result{}, fmt.Errorf("reading deployment status: %w", err)
	}

	if dep.Status.ObservedGeneration < dep.Generation {
		return Result{Status: StatusProgressing, Message: "waiting for rollout to be observed"}, nil
	}
	for _, cond := range dep.Status.Conditions {
		if cond.Type == appsv1.DeploymentProgressing && cond.Reason == "ProgressDeadlineExceeded" {
			return Result{Status: StatusDegraded, Message: "progress deadline exceeded"}, nil
		}
	}

	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	if dep.Status.UpdatedReplicas < desired {
		return Result{
			Status:  StatusProgressing,
			Message: fmt.Sprintf("%d of %d replicas updated", dep.Status.UpdatedReplicas, desired),
		}, nil
	}
	if dep.Status.AvailableReplicas < desired {
		return Result{
			Status:  StatusProgressing,
			Message: fmt.Sprintf("%d of %d replicas available", dep.Status.AvailableReplicas, desired),
		}, nil
	}
	return Result{Status: StatusHealthy}, nil
}

func checkStatefulSet(obj *unstructured.Unstructured) (Result, error) {
	var sts appsv1.StatefulSet
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &sts); err != nil {
		return Result{}, fmt.Errorf("reading statefulset status: %w", err)
	}

	if sts.Status.ObservedGeneration < sts.Generation {
		return Result{Status: StatusProgressing, Message: "waiting for rollout to be observed"}, nil
	}
	desired := int32(1)
	if sts.Spec.Replicas != nil {
		desired = *sts.Spec.Replicas
	}
	if sts.Status.ReadyReplicas < desired {
		return Result{
			Status:  StatusProgressing,
			Message: fmt.Sprintf("%d of %d replicas ready", sts.Status.ReadyReplicas, desired),
		}, nil
	}
	if sts.Status.UpdateRevision != "" && sts.Status.UpdateRevision != sts.Status.CurrentRevision {
		return Result{Status: StatusProgressing, Message: "revision rollout in progress"}, nil
	}
	return Result{Status: StatusHealthy}, nil
}

func checkDaemonSet(obj *unstructured.Unstructured) (Result, error) {
	var ds appsv1.DaemonSet
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &ds); err != nil {
		return Result{}, fmt.Errorf("reading daemonset status: %w", err)
	}

	if ds.Status.ObservedGeneration < ds.Generation {
		return Result{Status: StatusProgressing, Message: "waiting for rollout to be observed"}, nil
	}
	if ds.Status.UpdatedNumberScheduled < ds.Status.DesiredNumberScheduled {
		return Result{
			Status:  StatusProgressing,
			Message: fmt.Sprintf("%d of %d pods updated", ds.Status.UpdatedNumberScheduled, ds.Status.DesiredNumberScheduled),
		}, nil
	}
	if ds.Status.NumberUnavailable > 0 {
		return Result{
			Status:  StatusProgressing,
			Message: fmt.Sprintf("%d pods unavailable", ds.Status.NumberUnavailable),
		}, nil
	}
	return Result{Status: StatusHealthy}, nil
}

func checkReplicaSet(obj *unstructured.Unstructured) (Result, error) {
	var rs appsv1.ReplicaSet
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &rs); err != nil {
		return Result{}, fmt.Errorf("reading replicaset status: %w", err)
	}

	desired := int32(1)
	if rs.Spec.Replicas != nil {
		desired = *rs.Spec.Replicas
	}
	if rs.Status.AvailableReplicas < desired {
		return Result{
			Status:  StatusProgressing,
			Message: fmt.Sprintf("%d of %d replicas available", rs.Status.AvailableReplicas, desired),
		}, nil
	}
	return Result{Status: StatusHealthy}, nil
}

func checkPod(obj *unstructured.Unstructured) (Result, error) {
	var pod corev1.Pod
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &pod); err != nil {
		return Result{}, fmt.Errorf("reading pod status: %w", err)
	}

	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Waiting != nil && cs.State.Waiting.Reason == "CrashLoopBackOff" {
			return Result{Status: StatusDegraded, Message: fmt.Sprintf("container %s is crash-looping", cs.Name)}, nil
		}
	}

	switch pod.Status.Phase {
	case corev1.PodSucceeded:
		return Result{Status: StatusHealthy}, nil
	case corev1.PodRunning:
		for _, cond := range pod.Status.Conditions {
			if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
				return Result{Status: StatusHealthy}, nil
			}
		}
		return Result{Status: StatusProgressing, Message: "pod running but not ready"}, nil
	case corev1.PodPending:
		return Result{Status: StatusProgressing, Message: "pod pending"}, nil
	case corev1.PodFailed:
		return Result{Status: StatusDegraded, Message: pod.Status.Message}, nil
	default:
		return Result{Status: StatusUnknown, Message: fmt.Sprintf("pod phase %q", pod.Status.Phase)}, nil
	}
}

func checkService(obj *unstructured.Unstructured) (Result, error) {
	svcType, _, _ := unstructured.NestedString(obj.Object, "spec", "type")
	if svcType != string(corev1.ServiceTypeLoadBalancer) {
		return Result{Status: StatusHealthy}, nil
	}
	ingress, _, _ := unstructured.NestedSlice(obj.Object, "status", "loadBalancer", "ingress")
	if len(ingress) == 0 {
		return Result{Status: StatusProgressing, Message: "waiting for load balancer"}, nil
	}
	return Result{Status: StatusHealthy}, nil
}

func checkNamespace(obj *unstructured.Unstructured) (Result, error) {
	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	switch phase {
	case string(corev1.NamespaceTerminating):
		return Result{Status: StatusProgressing, Message: "namespace is terminating"}, nil
	default:
		// Active, or unset on very fresh objects.
		return Result{Status: StatusHealthy}, nil
	}
}

func checkPVC(obj *unstructured.Unstructured) (Result, error) {
	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	switch corev1.PersistentVolumeClaimPhase(phase) {
	case corev1.ClaimBound:
		return Result{Status: StatusHealthy}, nil
	case corev1.ClaimLost:
		return Result{Status: StatusDegraded, Message: "claim lost its volume"}, nil
	default:
		return Result{Status: StatusProgressing, Message: "claim not bound"}, nil
	}
}

func checkJob(obj *unstructured.Unstructured) (Result, error) {
	var job batchv1.Job
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &job); err != nil {
		return Result{}, fmt.Errorf("reading job status: %w", err)
	}

	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			return Result{Status: StatusHealthy}, nil
		case batchv1.JobFailed:
			return Result{Status: StatusDegraded, Message: cond.Message}, nil
		}
	}
	return Result{Status: StatusProgressing, Message: "job still running"}, nil
}

func checkIngress(obj *unstructured.Unstructured) (Result, error) {
	ingress, _, _ := unstructured.NestedSlice(obj.Object, "status", "loadBalancer", "ingress")
	if len(ingress) == 0 {
		return Result{Status: StatusProgressing, Message: "waiting for load balancer"}, nil
	}
	return Result{Status: StatusHealthy}, nil
}

// checkEstablished grades a CRD healthy once the API server accepts it.
func checkEstablished(obj *unstructured.Unstructured) (Result, error) {
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] == "Established" && cond["status"] == "True" {
			return Result{Status: StatusHealthy}, nil
		}
	}
	return Result{Status: StatusProgressing, Message: "definition not yet established"}, nil
}
