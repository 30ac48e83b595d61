package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
sources:
  github_workflow_orgs:
    - name: actions
      url: https://github.com/actions
      description: Official GitHub Actions
    - name: azure-samples
      url: https://github.com/Azure-Samples
      description: Azure sample workflows
  github_repository_templates:
    - name: go-api-template
      url: https://github.com/acme/go-api-template
      description: Go REST API starter
      metadata:
        language: Go
        framework: Gin
        architectureType: microservice
        features: [auth, telemetry]
        compliance: [soc2]
        use-cases: [api]
        complexity: medium
    - name: ts-web-template
      url: https://github.com/acme/ts-web-template
      description: TypeScript web app starter
      metadata:
        language: TypeScript
        framework: Next.js
        architectureType: monolith
        features: [auth]
        compliance: []
        use-cases: [web]
        complexity: low
`

type fakeGetter struct {
	content string
	err     error
}

func (g *fakeGetter) GetFileContent(_ context.Context, _, _, _ string) (string, error) {
	return g.content, g.err
}

func loadSample(t *testing.T) *Catalog {
	t.Helper()
	l := NewLoader(&fakeGetter{content: sampleCatalog}, "acme", "platform-config", "pe.yaml")
	return l.Load(context.Background())
}

func TestLoadParsesCatalog(t *testing.T) {
	cat := loadSample(t)

	require.Len(t, cat.Sources.WorkflowOrgs, 2)
	require.Len(t, cat.Sources.RepositoryTemplates, 2)

	tpl := cat.Sources.RepositoryTemplates[0]
	assert.Equal(t, "go-api-template", tpl.Name)
	assert.Equal(t, "Go", tpl.Metadata.Language)
	assert.Equal(t, []string{"auth", "telemetry"}, tpl.Metadata.Features)
	assert.Equal(t, []string{"api"}, tpl.Metadata.UseCases)
}

func TestLoadDegradesToEmptyCatalog(t *testing.T) {
	l := NewLoader(&fakeGetter{err: errors.New("404")}, "acme", "platform-config", "pe.yaml")
	cat := l.Load(context.Background())
	require.NotNil(t, cat)
	assert.Empty(t, cat.Sources.WorkflowOrgs)
	assert.Empty(t, cat.Sources.RepositoryTemplates)

	l = NewLoader(&fakeGetter{content: "{not yaml: ["}, "acme", "platform-config", "pe.yaml")
	cat = l.Load(context.Background())
	require.NotNil(t, cat)
	assert.Empty(t, cat.Sources.RepositoryTemplates)
}

func TestTemplatesFilter(t *testing.T) {
	cat := loadSample(t)

	tests := []struct {
		name   string
		filter TemplateFilter
		want   []string
	}{
		{"no filter returns all", TemplateFilter{}, []string{"go-api-template", "ts-web-template"}},
		{"language exact", TemplateFilter{Language: "Go"}, []string{"go-api-template"}},
		{"language case-insensitive", TemplateFilter{Language: "typescript"}, []string{"ts-web-template"}},
		{"feature matches any element", TemplateFilter{Feature: "telemetry"}, []string{"go-api-template"}},
		{"shared feature matches both", TemplateFilter{Feature: "AUTH"}, []string{"go-api-template", "ts-web-template"}},
		{"compliance", TemplateFilter{Compliance: "soc2"}, []string{"go-api-template"}},
		{"combined filters", TemplateFilter{Language: "go", Complexity: "Medium"}, []string{"go-api-template"}},
		{"partial name does not match", TemplateFilter{Language: "G"}, nil},
		{"no match", TemplateFilter{Framework: "Rails"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cat.Templates(tc.filter)
			var names []string
			for _, tpl := range got {
				names = append(names, tpl.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}

func TestWorkflowOrgs(t *testing.T) {
	cat := loadSample(t)

	all := cat.WorkflowOrgs("")
	require.Len(t, all, 2)

	// Substring match, case-insensitive.
	got := cat.WorkflowOrgs("AZURE")
	require.Len(t, got, 1)
	assert.Equal(t, "azure-samples", got[0].Name)
	assert.Equal(t, "https://github.com/Azure-Samples/.github/workflow-templates", got[0].WorkflowsURL())

	assert.Empty(t, cat.WorkflowOrgs("gitlab"))
}
