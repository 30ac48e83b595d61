package provision

import (
	"context"

	"go.uber.org/zap"
)

// EnvironmentProvisioner deploys deployment environments from catalog
// definitions and reports what was materialized.
type EnvironmentProvisioner struct {
	environments EnvironmentClient
	resources    ResourceLister
	log          *zap.Logger
}

// EnvironmentProvisionerOption configures an EnvironmentProvisioner.
type EnvironmentProvisionerOption func(*EnvironmentProvisioner)

// WithEnvironmentLogger sets the logger.
func WithEnvironmentLogger(log *zap.Logger) EnvironmentProvisionerOption {
	return func(p *EnvironmentProvisioner) {
		p.log = log
	}
}

// NewEnvironmentProvisioner creates an EnvironmentProvisioner.
func NewEnvironmentProvisioner(environments EnvironmentClient, resources ResourceLister, opts ...EnvironmentProvisionerOption) *EnvironmentProvisioner {
	p := &EnvironmentProvisioner{
		environments: environments,
		resources:    resources,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ListDefinitions returns the environment definitions published by the
// project's catalogs.
func (p *EnvironmentProvisioner) ListDefinitions(ctx context.Context, project string) ([]EnvironmentDefinition, error) {
	return p.environments.ListDefinitions(ctx, project)
}

// GetDefinition returns a single catalog definition by name.
func (p *EnvironmentProvisioner) GetDefinition(ctx context.Context, project, catalog, name string) (*EnvironmentDefinition, error) {
	return p.environments.GetDefinition(ctx, project, catalog, name)
}

// Provision creates the named environment from a catalog definition, waits
// for the deployment to settle, and reads back where the resources landed.
// The returned instance carries the deployment resource group parsed out of
// the environment's resource group ID.
func (p *EnvironmentProvisioner) Provision(ctx context.Context, project, envType, name, catalog, definition string, parameters map[string]interface{}) (*EnvironmentInstance, error) {
	env := EnvironmentInstance{
		Name:           name,
		EnvType:        NormalizeEnvType(envType),
		DefinitionName: definition,
		CatalogName:    catalog,
	}
	p.log.Info("creating environment",
		zap.String("project", project),
		zap.String("environment", name),
		zap.String("definition", definition))

	if err := p.environments.CreateEnvironment(ctx, project, env, parameters); err != nil {
		return nil, err
	}

	created, err := p.environments.GetEnvironment(ctx, project, name)
	if err != nil {
		return nil, err
	}

	loc := ParseResourceID(created.ResourceGroupID)
	created.Subscription = loc.Subscription
	created.ResourceGroup = loc.ResourceGroup

	p.log.Info("environment ready",
		zap.String("environment", created.Name),
		zap.String("resource_group", created.ResourceGroup))
	return created, nil
}

// Locate reads back an existing environment and resolves where its
// resources landed.
func (p *EnvironmentProvisioner) Locate(ctx context.Context, project, name string) (*EnvironmentInstance, error) {
	env, err := p.environments.GetEnvironment(ctx, project, name)
	if err != nil {
		return nil, err
	}
	loc := ParseResourceID(env.ResourceGroupID)
	env.Subscription = loc.Subscription
	env.ResourceGroup = loc.ResourceGroup
	return env, nil
}

// Resources lists the Azure resources deployed into an environment's
// resource group.
func (p *EnvironmentProvisioner) Resources(ctx context.Context, env *EnvironmentInstance) ([]Resource, error) {
	if env.ResourceGroup == "" {
		return nil, ErrValidation("environment has no resource group to inspect").
			WithResource("environment", env.Name)
	}
	return p.resources.ListResources(ctx, env.ResourceGroup)
}
