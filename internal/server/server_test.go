package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"capstan/internal/api"
	"capstan/internal/config"
	"capstan/pkg/apis/capstan/v1alpha1"
)

type stubStatus struct {
	summaries []api.ApplicationSummary
	details   map[string]*api.ApplicationDetail
	history   map[string][]api.SyncResult
}

func (s *stubStatus) ListApplications() []api.ApplicationSummary { return s.summaries }

func (s *stubStatus) GetApplication(name string) (*api.ApplicationDetail, error) {
	d, ok := s.details[name]
	if !ok {
		return nil, api.NewApplicationNotFoundError(name)
	}
	return d, nil
}

func (s *stubStatus) GetHistory(name string) ([]api.SyncResult, error) {
	h, ok := s.history[name]
	if !ok {
		return nil, api.NewApplicationNotFoundError(name)
	}
	return h, nil
}

type triggerCall struct {
	name string
	req  api.SyncRequest
}

type stubTrigger struct {
	mu    sync.Mutex
	known map[string]bool
	calls []triggerCall
}

func (s *stubTrigger) TriggerSync(name string, req api.SyncRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[name] {
		return api.NewApplicationNotFoundError(name)
	}
	s.calls = append(s.calls, triggerCall{name: name, req: req})
	return nil
}

func (s *stubTrigger) last(t *testing.T) triggerCall {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		t.Fatal("expected a recorded trigger call")
	}
	return s.calls[len(s.calls)-1]
}

func (s *stubTrigger) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// newTestServer registers the stubs in the api registry and serves the
// route table through httptest. Cleanup deregisters so later tests see
// the state they set up themselves.
func newTestServer(t *testing.T, status api.StatusHandler, trigger api.TriggerHandler) *httptest.Server {
	t.Helper()
	api.RegisterStatusHandler(status)
	api.RegisterTriggerHandler(trigger)
	t.Cleanup(func() {
		api.RegisterStatusHandler(nil)
		api.RegisterTriggerHandler(nil)
	})

	srv := New(config.ServerConfig{}, nil)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestServer_ListApplications(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	status := &stubStatus{
		summaries: []api.ApplicationSummary{
			{
				Name:           "web",
				Source:         "https://git.example.com/web.git",
				Path:           "manifests",
				Destination:    "in-cluster/default",
				Automated:      true,
				Phase:          v1alpha1.PhaseHealthy,
				Health:         v1alpha1.HealthHealthy,
				SyncedRevision: strings.Repeat("a", 40),
				LastSyncTime:   &now,
			},
			{
				Name:  "batch",
				Phase: v1alpha1.PhaseIdle,
			},
		},
	}
	ts := newTestServer(t, status, &stubTrigger{})

	resp, err := http.Get(ts.URL + "/api/v1/applications")
	if err != nil {
		t.Fatalf("GET applications failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got []api.ApplicationSummary
	decodeBody(t, resp, &got)
	if len(got) != 2 {
		t.Fatalf("len(applications) = %d, want 2", len(got))
	}
	if got[0].Name != "web" || got[0].Phase != v1alpha1.PhaseHealthy {
		t.Errorf("first summary = %+v, want web/healthy", got[0])
	}
	if got[0].SyncedRevision != strings.Repeat("a", 40) {
		t.Errorf("syncedRevision = %q", got[0].SyncedRevision)
	}
	if got[0].LastSyncTime == nil || !got[0].LastSyncTime.Equal(now) {
		t.Errorf("lastSyncTime = %v, want %v", got[0].LastSyncTime, now)
	}
}

func TestServer_GetApplication(t *testing.T) {
	status := &stubStatus{
		details: map[string]*api.ApplicationDetail{
			"web": {
				ApplicationSummary: api.ApplicationSummary{
					Name:  "web",
					Phase: v1alpha1.PhaseRetrying,
				},
				RetryCount: 3,
				Spec: v1alpha1.ApplicationSpec{
					Source: v1alpha1.SourceSpec{RepoURL: "https://git.example.com/web.git"},
				},
			},
		},
	}
	ts := newTestServer(t, status, &stubTrigger{})

	resp, err := http.Get(ts.URL + "/api/v1/applications/web")
	if err != nil {
		t.Fatalf("GET application failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got api.ApplicationDetail
	decodeBody(t, resp, &got)
	if got.Name != "web" || got.RetryCount != 3 {
		t.Errorf("detail = %+v, want web with retryCount 3", got)
	}
	if got.Spec.Source.RepoURL != "https://git.example.com/web.git" {
		t.Errorf("spec.source.repoURL = %q", got.Spec.Source.RepoURL)
	}
}

func TestServer_GetApplicationNotFound(t *testing.T) {
	ts := newTestServer(t, &stubStatus{}, &stubTrigger{})

	resp, err := http.Get(ts.URL + "/api/v1/applications/ghost")
	if err != nil {
		t.Fatalf("GET application failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var got map[string]string
	decodeBody(t, resp, &got)
	if !strings.Contains(got["error"], "ghost") {
		t.Errorf("error body = %q, want the application name in it", got["error"])
	}
}

func TestServer_GetHistory(t *testing.T) {
	status := &stubStatus{
		history: map[string][]api.SyncResult{
			"web": {
				{OperationID: "op-2", Application: "web", Phase: v1alpha1.PhaseHealthy},
				{OperationID: "op-1", Application: "web", Phase: v1alpha1.PhaseFailed, Error: "ParseError: parse: bad.yaml"},
			},
		},
	}
	ts := newTestServer(t, status, &stubTrigger{})

	resp, err := http.Get(ts.URL + "/api/v1/applications/web/history")
	if err != nil {
		t.Fatalf("GET history failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []api.SyncResult
	decodeBody(t, resp, &got)
	if len(got) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(got))
	}
	if got[0].OperationID != "op-2" || got[1].Phase != v1alpha1.PhaseFailed {
		t.Errorf("history order or content wrong: %+v", got)
	}

	resp, err = http.Get(ts.URL + "/api/v1/applications/ghost/history")
	if err != nil {
		t.Fatalf("GET history failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown app history status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestServer_TriggerSync(t *testing.T) {
	trigger := &stubTrigger{known: map[string]bool{"web": true}}
	ts := newTestServer(t, &stubStatus{}, trigger)

	body, _ := json.Marshal(api.SyncRequest{Revision: strings.Repeat("b", 40), Prune: true})
	resp, err := http.Post(ts.URL+"/api/v1/applications/web/sync", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST sync failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var ack map[string]string
	decodeBody(t, resp, &ack)
	if ack["status"] != "queued" || ack["application"] != "web" {
		t.Errorf("ack = %v, want queued for web", ack)
	}

	call := trigger.last(t)
	if call.name != "web" {
		t.Errorf("triggered name = %q, want web", call.name)
	}
	if call.req.Revision != strings.Repeat("b", 40) || !call.req.Prune {
		t.Errorf("trigger request = %+v, want pinned revision with prune", call.req)
	}
}

func TestServer_TriggerSyncEmptyBody(t *testing.T) {
	trigger := &stubTrigger{known: map[string]bool{"web": true}}
	ts := newTestServer(t, &stubStatus{}, trigger)

	resp, err := http.Post(ts.URL+"/api/v1/applications/web/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST sync failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	call := trigger.last(t)
	if call.req.Revision != "" || call.req.Prune {
		t.Errorf("empty body should mean zero request, got %+v", call.req)
	}
}

func TestServer_TriggerSyncErrors(t *testing.T) {
	trigger := &stubTrigger{known: map[string]bool{"web": true}}
	ts := newTestServer(t, &stubStatus{}, trigger)

	resp, err := http.Post(ts.URL+"/api/v1/applications/ghost/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST sync failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown app status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	resp, err = http.Post(ts.URL+"/api/v1/applications/web/sync", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST sync failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if got := trigger.count(); got != 0 {
		t.Errorf("trigger calls = %d, want 0; both attempts must be rejected", got)
	}
}

func TestServer_Healthz(t *testing.T) {
	ts := newTestServer(t, &stubStatus{}, &stubTrigger{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got map[string]string
	decodeBody(t, resp, &got)
	if got["status"] != "ok" {
		t.Errorf("healthz body = %v, want status ok", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capstan_test_requests_total",
		Help: "Test counter.",
	})
	reg.MustRegister(counter)
	counter.Inc()

	api.RegisterStatusHandler(&stubStatus{})
	api.RegisterTriggerHandler(&stubTrigger{})
	t.Cleanup(func() {
		api.RegisterStatusHandler(nil)
		api.RegisterTriggerHandler(nil)
	})

	srv := New(config.ServerConfig{}, reg)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("failed to read metrics body: %v", err)
	}
	if !strings.Contains(buf.String(), "capstan_test_requests_total 1") {
		t.Errorf("metrics output missing test counter:\n%s", buf.String())
	}
}

func TestServer_MetricsDisabledWithoutGatherer(t *testing.T) {
	ts := newTestServer(t, &stubStatus{}, &stubTrigger{})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestServer_UnregisteredHandlers(t *testing.T) {
	api.RegisterStatusHandler(nil)
	api.RegisterTriggerHandler(nil)

	srv := New(config.ServerConfig{}, nil)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/v1/applications")
	if err != nil {
		t.Fatalf("GET applications failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("list status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	resp, err = http.Post(ts.URL+"/api/v1/applications/web/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST sync failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("sync status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	api.RegisterStatusHandler(&stubStatus{})
	api.RegisterTriggerHandler(&stubTrigger{})
	t.Cleanup(func() {
		api.RegisterStatusHandler(nil)
		api.RegisterTriggerHandler(nil)
	})

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0}
	srv := New(cfg, nil)
	if got := srv.Addr(); got != "127.0.0.1:0" {
		t.Errorf("Addr before Start = %q, want configured address", got)
	}

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	}()

	if srv.Addr() == "127.0.0.1:0" {
		t.Fatal("Addr after Start should carry the real port")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.Addr()))
	if err != nil {
		t.Fatalf("GET healthz over real listener failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := New(config.ServerConfig{}, nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown before Start should be a no-op, got %v", err)
	}
}
