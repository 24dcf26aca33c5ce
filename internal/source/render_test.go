package source

import (
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

func renderTestApp(values map[string]string) *v1alpha1.Application {
	return &v1alpha1.Application{
		ObjectMeta: metav1.ObjectMeta{Name: "web"},
		Spec: v1alpha1.ApplicationSpec{
			Source: v1alpha1.SourceSpec{
				RepoURL: "/src",
				Render:  &v1alpha1.RenderSpec{Enabled: true, Values: values},
			},
			Destination: v1alpha1.DestinationSpec{Namespace: "prod"},
		},
	}
}

func TestRenderDocuments_ValuesAndAppContext(t *testing.T) {
	app := renderTestApp(map[string]string{"replicas": "3", "env": "prod"})
	docs := []Document{{
		Path: "deploy.yaml",
		Raw: []byte(`metadata:
  name: {{ .App.Name }}
  namespace: {{ .App.Namespace }}
  labels:
    env: {{ .Values.env | upper }}
spec:
  replicas: {{ .Values.replicas }}
`),
	}}

	out, err := renderDocuments(docs, app)
	require.NoError(t, err)
	require.Len(t, out, 1)
	rendered := string(out[0].Raw)
	assert.Contains(t, rendered, "name: web")
	assert.Contains(t, rendered, "namespace: prod")
	assert.Contains(t, rendered, "env: PROD")
	assert.Contains(t, rendered, "replicas: 3")
}

func TestRenderDocuments_SprigFunctions(t *testing.T) {
	app := renderTestApp(map[string]string{"host": "demo.example.com"})
	docs := []Document{{
		Path: "ing.yaml",
		Raw:  []byte(`host: {{ .Values.host | trimSuffix ".example.com" }}{{ ".internal" }}`),
	}}

	out, err := renderDocuments(docs, app)
	require.NoError(t, err)
	assert.Equal(t, "host: demo.internal", string(out[0].Raw))
}

func TestRenderDocuments_MissingValueFails(t *testing.T) {
	app := renderTestApp(map[string]string{})
	docs := []Document{{Path: "bad.yaml", Raw: []byte(`x: {{ .Values.absent }}`)}}

	_, err := renderDocuments(docs, app)
	require.Error(t, err)
	assert.Equal(t, api.KindParseError, api.KindOf(err))
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestRenderDocuments_SyntaxError(t *testing.T) {
	app := renderTestApp(nil)
	docs := []Document{{Path: "broken.yaml", Raw: []byte(`x: {{ .Values.a`)}}

	_, err := renderDocuments(docs, app)
	require.Error(t, err)
	assert.Equal(t, api.KindParseError, api.KindOf(err))
}

func TestRenderDocuments_Deterministic(t *testing.T) {
	app := renderTestApp(map[string]string{"a": "1", "b": "2", "c": "3"})
	docs := []Document{{Path: "d.yaml", Raw: []byte(`v: {{ .Values.a }}{{ .Values.b }}{{ .Values.c }}`)}}

	first, err := renderDocuments(docs, app)
	require.NoError(t, err)
	second, err := renderDocuments(docs, app)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
