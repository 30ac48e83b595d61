// Package catalog loads the platform-engineering template catalog
// (pe.yaml) from a GitHub repository and answers filtered queries over it.
package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// WorkflowOrg is a GitHub organization publishing reusable workflow
// templates under .github/workflow-templates.
type WorkflowOrg struct {
	Name        string `yaml:"name" json:"name"`
	URL         string `yaml:"url" json:"url"`
	Description string `yaml:"description" json:"description"`
}

// WorkflowsURL points at the organization's workflow-template directory.
func (o WorkflowOrg) WorkflowsURL() string {
	return o.URL + "/.github/workflow-templates"
}

// TemplateMetadata classifies a repository template.
type TemplateMetadata struct {
	Language         string   `yaml:"language" json:"language"`
	Framework        string   `yaml:"framework" json:"framework"`
	ArchitectureType string   `yaml:"architectureType" json:"architectureType"`
	Features         []string `yaml:"features" json:"features"`
	Compliance       []string `yaml:"compliance" json:"compliance"`
	UseCases         []string `yaml:"use-cases" json:"useCases"`
	Complexity       string   `yaml:"complexity" json:"complexity"`
}

// RepositoryTemplate is an organization-approved template repository.
type RepositoryTemplate struct {
	Name        string           `yaml:"name" json:"name"`
	URL         string           `yaml:"url" json:"url"`
	Description string           `yaml:"description" json:"description"`
	Metadata    TemplateMetadata `yaml:"metadata" json:"metadata"`
}

// Catalog is the parsed pe.yaml.
type Catalog struct {
	Sources struct {
		WorkflowOrgs        []WorkflowOrg        `yaml:"github_workflow_orgs"`
		RepositoryTemplates []RepositoryTemplate `yaml:"github_repository_templates"`
	} `yaml:"sources"`
}

// ContentGetter fetches a file from a repository, decoded.
type ContentGetter interface {
	GetFileContent(ctx context.Context, owner, repo, path string) (string, error)
}

// Loader fetches and parses the catalog.
type Loader struct {
	getter ContentGetter
	owner  string
	repo   string
	path   string
	log    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger.
func WithLoaderLogger(log *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = log
	}
}

// NewLoader creates a Loader reading {owner}/{repo}:{path}.
func NewLoader(getter ContentGetter, owner, repo, path string, opts ...LoaderOption) *Loader {
	l := &Loader{
		getter: getter,
		owner:  owner,
		repo:   repo,
		path:   path,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches and parses the catalog. Fetch or parse failure degrades to
// an empty catalog rather than an error: template queries are advisory and
// must not block provisioning.
func (l *Loader) Load(ctx context.Context) *Catalog {
	var cat Catalog

	content, err := l.getter.GetFileContent(ctx, l.owner, l.repo, l.path)
	if err != nil {
		l.log.Warn("failed to fetch template catalog, using empty catalog",
			zap.String("repository", l.owner+"/"+l.repo),
			zap.String("path", l.path),
			zap.Error(err))
		return &cat
	}

	if err := yaml.Unmarshal([]byte(content), &cat); err != nil {
		l.log.Warn("failed to parse template catalog, using empty catalog",
			zap.String("path", l.path),
			zap.Error(err))
		return &Catalog{}
	}
	return &cat
}

// TemplateFilter narrows repository templates. Every set field must match
// (case-insensitive exact match; Feature and Compliance match any element).
type TemplateFilter struct {
	Language         string
	Framework        string
	ArchitectureType string
	Feature          string
	Compliance       string
	Complexity       string
}

// Templates returns the repository templates matching the filter.
func (c *Catalog) Templates(f TemplateFilter) []RepositoryTemplate {
	out := make([]RepositoryTemplate, 0, len(c.Sources.RepositoryTemplates))
	for _, t := range c.Sources.RepositoryTemplates {
		if !matchExact(f.Language, t.Metadata.Language) ||
			!matchExact(f.Framework, t.Metadata.Framework) ||
			!matchExact(f.ArchitectureType, t.Metadata.ArchitectureType) ||
			!matchExact(f.Complexity, t.Metadata.Complexity) ||
			!matchAny(f.Feature, t.Metadata.Features) ||
			!matchAny(f.Compliance, t.Metadata.Compliance) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// WorkflowOrgs returns the workflow-template organizations whose name
// contains the query, case-insensitively. An empty query returns all.
func (c *Catalog) WorkflowOrgs(organization string) []WorkflowOrg {
	if organization == "" {
		return c.Sources.WorkflowOrgs
	}
	query := strings.ToLower(organization)

	out := make([]WorkflowOrg, 0, len(c.Sources.WorkflowOrgs))
	for _, o := range c.Sources.WorkflowOrgs {
		if strings.Contains(strings.ToLower(o.Name), query) {
			out = append(out, o)
		}
	}
	return out
}

func matchExact(want, have string) bool {
	return want == "" || strings.EqualFold(want, have)
}

func matchAny(want string, have []string) bool {
	if want == "" {
		return true
	}
	for _, h := range have {
		if strings.EqualFold(want, h) {
			return true
		}
	}
	return false
}
