package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"capstan/internal/api"
	"capstan/pkg/apis/capstan/v1alpha1"
)

func TestClient_ListApplications(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/applications" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]api.ApplicationSummary{
			{Name: "web", Phase: v1alpha1.PhaseHealthy, Automated: true},
			{Name: "batch", Phase: v1alpha1.PhaseIdle},
		})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	list, err := c.ListApplications(context.Background())
	if err != nil {
		t.Fatalf("ListApplications failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "web" || list[1].Name != "batch" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestClient_GetApplication(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/applications/web" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ApplicationDetail{
			ApplicationSummary: api.ApplicationSummary{Name: "web", Phase: v1alpha1.PhaseRetrying},
			RetryCount:         2,
		})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	detail, err := c.GetApplication(context.Background(), "web")
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if detail.Name != "web" || detail.RetryCount != 2 {
		t.Errorf("detail = %+v, want web with retryCount 2", detail)
	}
}

func TestClient_NotFoundMapsToNotFoundError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "application ghost not found"})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})

	if _, err := c.GetApplication(context.Background(), "ghost"); !api.IsNotFound(err) {
		t.Errorf("GetApplication error = %v, want NotFoundError", err)
	}
	if _, err := c.GetHistory(context.Background(), "ghost"); !api.IsNotFound(err) {
		t.Errorf("GetHistory error = %v, want NotFoundError", err)
	}
	if err := c.TriggerSync(context.Background(), "ghost", api.SyncRequest{}); !api.IsNotFound(err) {
		t.Errorf("TriggerSync error = %v, want NotFoundError", err)
	}
}

func TestClient_TriggerSync(t *testing.T) {
	var got api.SyncRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/applications/web/sync" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	req := api.SyncRequest{Revision: strings.Repeat("b", 40), Prune: true}
	if err := c.TriggerSync(context.Background(), "web", req); err != nil {
		t.Fatalf("TriggerSync failed: %v", err)
	}
	if got != req {
		t.Errorf("server saw %+v, want %+v", got, req)
	}
}

func TestClient_ServerErrorCarriesMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "registry unavailable"})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	_, err := c.ListApplications(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "registry unavailable") || !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want status and server message", err)
	}
}

func TestClient_Healthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	if err := c.Healthy(context.Background()); err != nil {
		t.Errorf("Healthy failed: %v", err)
	}
}

func TestClient_WaitForSync(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		detail := api.ApplicationDetail{
			ApplicationSummary: api.ApplicationSummary{Name: "web", Phase: v1alpha1.PhaseSyncing},
			LastResult:         &api.SyncResult{OperationID: "op-old", Phase: v1alpha1.PhaseHealthy},
		}
		// The third poll sees the attempt triggered after the baseline.
		if n >= 3 {
			detail.Phase = v1alpha1.PhaseHealthy
			detail.LastResult = &api.SyncResult{OperationID: "op-new", Phase: v1alpha1.PhaseHealthy}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(detail)
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	detail, err := c.WaitForSync(ctx, "web", "op-old", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForSync failed: %v", err)
	}
	if detail.LastResult == nil || detail.LastResult.OperationID != "op-new" {
		t.Errorf("detail = %+v, want the post-trigger result", detail)
	}
	if got := calls.Load(); got < 3 {
		t.Errorf("polled %d times, want at least 3", got)
	}
}

func TestClient_WaitForSyncTimesOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ApplicationDetail{
			ApplicationSummary: api.ApplicationSummary{Name: "web"},
		})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.WaitForSync(ctx, "web", "", 5*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !strings.Contains(err.Error(), "timed out waiting") {
		t.Errorf("error = %v, want timeout wording", err)
	}
}
