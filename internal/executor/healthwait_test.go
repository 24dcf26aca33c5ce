package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"capstan/internal/api"
	"capstan/pkg/health"
)

// waitOptions keeps health-wait tests fast without changing semantics.
func waitOptions(timeout time.Duration) Options {
	return Options{
		OpTimeout:      time.Second,
		HealthTimeout:  timeout,
		HealthInterval: 5 * time.Millisecond,
	}
}

func deployment(name string, desired, updated, available int64) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]interface{}{
			"name":       name,
			"namespace":  "demo",
			"generation": int64(1),
		},
		"spec": map[string]interface{}{
			"replicas": desired,
		},
		"status": map[string]interface{}{
			"observedGeneration": int64(1),
			"updatedReplicas":    updated,
			"availableReplicas":  available,
		},
	}}
}

func degradedDeployment(name string) *unstructured.Unstructured {
	dep := deployment(name, 1, 0, 0)
	dep.Object["status"].(map[string]interface{})["conditions"] = []interface{}{
		map[string]interface{}{
			"type":   "Progressing",
			"status": "False",
			"reason": "ProgressDeadlineExceeded",
		},
	}
	return dep
}

func TestWaitHealthy_NoGradedKindsIsVacuouslyHealthy(t *testing.T) {
	writer := newFakeWriter()
	writer.getHook = func(key api.ResourceKey) (*unstructured.Unstructured, error) {
		t.Fatalf("unexpected Get for %s: kinds without a rule are not polled", key)
		return nil, nil
	}
	exec := New(writer, waitOptions(time.Second))

	res, err := exec.WaitHealthy(context.Background(), execTestApp(),
		[]*unstructured.Unstructured{manifest("ConfigMap", "demo", "settings")})
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, res.Status)
}

func TestWaitHealthy_HealthyImmediately(t *testing.T) {
	writer := newFakeWriter(deployment("web", 2, 2, 2))
	exec := New(writer, waitOptions(time.Second))

	res, err := exec.WaitHealthy(context.Background(), execTestApp(),
		[]*unstructured.Unstructured{deployment("web", 2, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, res.Status)
}

func TestWaitHealthy_ProgressingConverges(t *testing.T) {
	var polls int
	writer := newFakeWriter()
	writer.getHook = func(api.ResourceKey) (*unstructured.Unstructured, error) {
		polls++
		if polls < 3 {
			return deployment("web", 2, 2, 1), nil
		}
		return deployment("web", 2, 2, 2), nil
	}
	exec := New(writer, waitOptions(2*time.Second))

	res, err := exec.WaitHealthy(context.Background(), execTestApp(),
		[]*unstructured.Unstructured{deployment("web", 2, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, res.Status)
	assert.GreaterOrEqual(t, polls, 3)
}

func TestWaitHealthy_TimesOutWhileProgressing(t *testing.T) {
	writer := newFakeWriter(deployment("web", 3, 1, 1))
	exec := New(writer, waitOptions(50*time.Millisecond))

	res, err := exec.WaitHealthy(context.Background(), execTestApp(),
		[]*unstructured.Unstructured{deployment("web", 3, 1, 1)})
	require.Error(t, err)
	assert.True(t, api.IsHealthTimeout(err))
	assert.Equal(t, health.StatusProgressing, res.Status)
	assert.Contains(t, err.Error(), "replicas")
}

func TestWaitHealthy_DegradedExitsEarly(t *testing.T) {
	writer := newFakeWriter(degradedDeployment("web"))
	exec := New(writer, waitOptions(time.Minute))

	start := time.Now()
	res, err := exec.WaitHealthy(context.Background(), execTestApp(),
		[]*unstructured.Unstructured{deployment("web", 1, 1, 1)})
	require.Error(t, err)
	assert.True(t, api.IsHealthTimeout(err))
	assert.Equal(t, health.StatusDegraded, res.Status)
	assert.Contains(t, err.Error(), "progress deadline exceeded")
	assert.Less(t, time.Since(start), 10*time.Second, "a degraded resource must not wait out the window")
}

func TestWaitHealthy_MissingResourceGradesProgressing(t *testing.T) {
	writer := newFakeWriter() // nothing applied yet
	exec := New(writer, waitOptions(50*time.Millisecond))

	res, err := exec.WaitHealthy(context.Background(), execTestApp(),
		[]*unstructured.Unstructured{deployment("web", 1, 1, 1)})
	require.Error(t, err)
	assert.True(t, api.IsHealthTimeout(err))
	assert.Equal(t, health.StatusProgressing, res.Status)
	assert.Contains(t, res.Message, "not visible yet")
}

func TestWaitHealthy_CancellationInterruptsWait(t *testing.T) {
	writer := newFakeWriter(deployment("web", 2, 0, 0))
	exec := New(writer, waitOptions(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := exec.WaitHealthy(ctx, execTestApp(),
		[]*unstructured.Unstructured{deployment("web", 2, 0, 0)})
	require.Error(t, err)
	assert.False(t, api.IsHealthTimeout(err), "cancellation is not a health verdict")
	assert.Contains(t, err.Error(), "health wait interrupted")
}
