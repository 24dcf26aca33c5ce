package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

func TestShortRevision(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "full git hash truncates to eight",
			input:    strings.Repeat("a", 40),
			expected: "aaaaaaaa",
		},
		{
			name:     "short value passes through",
			input:    "main",
			expected: "main",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shortRevision(tt.input); got != tt.expected {
				t.Errorf("shortRevision(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Now()
	past := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		input    *time.Time
		expected string
	}{
		{name: "nil renders dash", input: nil, expected: "-"},
		{name: "seconds", input: past(30 * time.Second), expected: "30s"},
		{name: "minutes", input: past(5 * time.Minute), expected: "5m"},
		{name: "hours", input: past(3 * time.Hour), expected: "3h"},
		{name: "days", input: past(49 * time.Hour), expected: "2d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatAge(tt.input); got != tt.expected {
				t.Errorf("formatAge = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestColoredPhaseKeepsPhaseText(t *testing.T) {
	phases := []v1alpha1.ApplicationPhase{
		v1alpha1.PhaseIdle,
		v1alpha1.PhaseSyncing,
		v1alpha1.PhaseRetrying,
		v1alpha1.PhaseHealthy,
		v1alpha1.PhaseDegraded,
		v1alpha1.PhaseFailed,
	}
	for _, p := range phases {
		if got := coloredPhase(p); !strings.Contains(got, string(p)) {
			t.Errorf("coloredPhase(%s) = %q, phase text lost", p, got)
		}
	}
}

func TestPrintEncoded(t *testing.T) {
	detail := api.ApplicationDetail{
		ApplicationSummary: api.ApplicationSummary{Name: "web", Phase: v1alpha1.PhaseHealthy},
	}

	var jsonBuf bytes.Buffer
	if err := printEncoded(&jsonBuf, outputJSON, detail); err != nil {
		t.Fatalf("printEncoded json failed: %v", err)
	}
	var roundTrip api.ApplicationDetail
	if err := json.Unmarshal(jsonBuf.Bytes(), &roundTrip); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if roundTrip.Name != "web" {
		t.Errorf("json round trip name = %q, want web", roundTrip.Name)
	}

	var yamlBuf bytes.Buffer
	if err := printEncoded(&yamlBuf, outputYAML, detail); err != nil {
		t.Fatalf("printEncoded yaml failed: %v", err)
	}
	if !strings.Contains(yamlBuf.String(), "name: web") {
		t.Errorf("yaml output missing name:\n%s", yamlBuf.String())
	}

	if err := printEncoded(&bytes.Buffer{}, "csv", detail); err == nil {
		t.Error("expected an error for unknown format")
	}
}

func TestAutomatedLabel(t *testing.T) {
	if got := automatedLabel(true); got != "auto" {
		t.Errorf("automatedLabel(true) = %q, want auto", got)
	}
	if got := automatedLabel(false); got != "manual" {
		t.Errorf("automatedLabel(false) = %q, want manual", got)
	}
}

func TestJoinNonEmpty(t *testing.T) {
	if got := joinNonEmpty(" ", "repo", "", "(path)"); got != "repo (path)" {
		t.Errorf("joinNonEmpty = %q, want %q", got, "repo (path)")
	}
	if got := joinNonEmpty(" ", "", ""); got != "" {
		t.Errorf("joinNonEmpty of empties = %q, want empty", got)
	}
}
