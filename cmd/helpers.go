package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	sigsyaml "sigs.k8s.io/yaml"

	"capstan/internal/client"
	"capstan/internal/config"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// Output formats accepted by the -o flag.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// apiEndpoint resolves the status API base URL: the --endpoint flag
// wins, otherwise the configured server address.
func apiEndpoint() (string, error) {
	if rootEndpoint != "" {
		return rootEndpoint, nil
	}

	configPath := rootConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return "http://" + cfg.Server.Address(), nil
}

// newAPIClient builds the client for the resolved endpoint.
func newAPIClient() (*client.Client, error) {
	endpoint, err := apiEndpoint()
	if err != nil {
		return nil, err
	}
	return client.New(client.Config{BaseURL: endpoint}), nil
}

// printEncoded writes v as JSON or YAML depending on format.
func printEncoded(w io.Writer, format string, v interface{}) error {
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	case outputYAML:
		data, err := sigsyaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		fmt.Fprint(w, string(data))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json, or yaml)", format)
	}
}

// coloredPhase renders an Application phase with the conventional
// traffic-light colors.
func coloredPhase(phase v1alpha1.ApplicationPhase) string {
	switch phase {
	case v1alpha1.PhaseHealthy:
		return text.FgGreen.Sprint(string(phase))
	case v1alpha1.PhaseSyncing, v1alpha1.PhaseRetrying:
		return text.FgYellow.Sprint(string(phase))
	case v1alpha1.PhaseDegraded, v1alpha1.PhaseFailed:
		return text.FgRed.Sprint(string(phase))
	default:
		return string(phase)
	}
}

// shortRevision abbreviates a revision hash for table cells.
func shortRevision(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// formatAge renders a timestamp as a relative age, the way kubectl does.
func formatAge(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	d := time.Since(*t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// automatedLabel summarizes the sync policy for list output.
func automatedLabel(automated bool) string {
	if automated {
		return "auto"
	}
	return "manual"
}

// joinNonEmpty joins the non-empty strings with sep.
func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
