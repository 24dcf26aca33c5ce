package source

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// renderContext is the data every manifest template sees: the values
// from the Application spec plus the Application's own coordinates.
type renderContext struct {
	Values map[string]string
	App    renderApp
}

type renderApp struct {
	Name      string
	Namespace string
}

// renderDocuments runs each manifest through text/template with the
// sprig function map before parsing. missingkey=error keeps a typoed
// value reference from silently rendering an empty string into a
// manifest. Rendering is deterministic, so revision-keyed caching stays
// valid as long as the render inputs are part of the cache key.
func renderDocuments(docs []Document, app *v1alpha1.Application) ([]Document, error) {
	data := renderContext{
		Values: map[string]string{},
		App: renderApp{
			Name:      app.Name,
			Namespace: app.Spec.Destination.Namespace,
		},
	}
	if r := app.Spec.Source.Render; r != nil && r.Values != nil {
		data.Values = r.Values
	}

	rendered := make([]Document, 0, len(docs))
	for _, doc := range docs {
		tmpl, err := template.New(doc.Path).
			Option("missingkey=error").
			Funcs(sprig.TxtFuncMap()).
			Parse(string(doc.Raw))
		if err != nil {
			return nil, api.NewParseError(doc.Path, fmt.Errorf("template: %w", err))
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, api.NewParseError(doc.Path, fmt.Errorf("template: %w", err))
		}
		rendered = append(rendered, Document{Path: doc.Path, Raw: buf.Bytes()})
	}
	return rendered, nil
}
