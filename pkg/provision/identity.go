package provision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Roles assigned to the deployment identity, in creation order.
const (
	RoleReader           = "Reader"
	RoleADEUser          = "Deployment Environments User"
	RoleContributor      = "Contributor"
	environmentTypesPath = "environmentTypes"
)

// IdentityProvisioner creates (or reuses) the application identity and
// service principal for a (project, envType) pair and grants the roles the
// identity needs to deploy.
//
// Provision is re-entrant: every step is an idempotent create, and a run
// that fails after step k leaves steps 1..k applied. No rollback is
// attempted; re-invocation completes the remaining steps.
type IdentityProvisioner struct {
	directory DirectoryClient
	roles     RoleAssigner
	projects  ProjectLocator
	log       *zap.Logger
}

// IdentityProvisionerOption configures an IdentityProvisioner.
type IdentityProvisionerOption func(*IdentityProvisioner)

// WithIdentityLogger sets the logger.
func WithIdentityLogger(log *zap.Logger) IdentityProvisionerOption {
	return func(p *IdentityProvisioner) {
		p.log = log
	}
}

// NewIdentityProvisioner creates an IdentityProvisioner.
func NewIdentityProvisioner(directory DirectoryClient, roles RoleAssigner, projects ProjectLocator, opts ...IdentityProvisionerOption) *IdentityProvisioner {
	p := &IdentityProvisioner{
		directory: directory,
		roles:     roles,
		projects:  projects,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision runs the identity stage:
//
//  1. Create (or reuse) the application named "{project}-{EnvType}".
//  2. Create the service principal; if the remote reports one already
//     exists for the application, resolve it by lookup instead of failing.
//  3. Resolve the project's ARM resource ID by name.
//  4. Create the three role assignments: Reader at the project scope,
//     "Deployment Environments User" at the environment-type scope, and
//     Contributor at the deployment resource-group scope. Duplicate
//     assignments are success; any other rejection aborts the remaining
//     steps.
//
// deploymentResourceGroup may be a bare resource group name or a full ARM
// scope path.
func (p *IdentityProvisioner) Provision(ctx context.Context, envType, projectName, deploymentResourceGroup string) (*IdentityResult, error) {
	displayName := IdentityDisplayName(projectName, envType)

	app, err := p.ensureApplication(ctx, displayName)
	if err != nil {
		return nil, err
	}
	p.log.Info("application identity ready",
		zap.String("display_name", displayName),
		zap.String("app_id", app.AppID))

	sp, err := p.ensureServicePrincipal(ctx, app.AppID)
	if err != nil {
		return nil, err
	}
	p.log.Info("service principal ready",
		zap.String("principal_id", sp.ID),
		zap.String("app_id", app.AppID))

	project, err := p.projects.FindProjectByName(ctx, projectName)
	if err != nil {
		return nil, err
	}

	normalized := NormalizeEnvType(envType)
	assignments := []RoleAssignment{
		{Scope: project.ID, RoleName: RoleReader, PrincipalID: sp.ID},
		{Scope: fmt.Sprintf("%s/%s/%s", project.ID, environmentTypesPath, normalized), RoleName: RoleADEUser, PrincipalID: sp.ID},
		{Scope: deploymentScope(project.ID, deploymentResourceGroup), RoleName: RoleContributor, PrincipalID: sp.ID},
	}
	for _, a := range assignments {
		if err := p.roles.EnsureRoleAssignment(ctx, a.Scope, a.RoleName, a.PrincipalID); err != nil {
			return nil, err
		}
		p.log.Info("role assignment ensured",
			zap.String("role", a.RoleName),
			zap.String("scope", a.Scope))
	}

	return &IdentityResult{
		AppID:       app.AppID,
		ObjectID:    app.ObjectID,
		PrincipalID: sp.ID,
		DisplayName: displayName,
	}, nil
}

// ensureApplication reuses an application whose display name already matches
// and creates one otherwise. Re-invocation must not register a second
// application for the same pair.
func (p *IdentityProvisioner) ensureApplication(ctx context.Context, displayName string) (*ApplicationIdentity, error) {
	apps, err := p.directory.FindApplicationsByName(ctx, displayName)
	if err != nil && !IsCategory(err, ErrCategoryNotFound) {
		return nil, err
	}
	switch len(apps) {
	case 0:
		return p.directory.CreateApplication(ctx, displayName)
	case 1:
		return apps[0], nil
	default:
		return nil, ErrConflict("application", displayName).
			WithOperation("create-identity").
			WithDetail("count", len(apps))
	}
}

func (p *IdentityProvisioner) ensureServicePrincipal(ctx context.Context, appID string) (*ServicePrincipal, error) {
	sp, err := p.directory.CreateServicePrincipal(ctx, appID)
	if err == nil {
		return sp, nil
	}
	if !IsRecoverable(err) {
		return nil, err
	}
	// Principal already exists for this application: resolve it instead of
	// failing. This is the load-bearing idempotency rule of the pipeline.
	return p.directory.GetServicePrincipalByAppID(ctx, appID)
}

// deploymentScope turns a deployment resource group into an RBAC scope. A
// value that already looks like an ARM path is used as-is; a bare name is
// anchored under the project's subscription.
func deploymentScope(projectID, deploymentResourceGroup string) string {
	if strings.HasPrefix(deploymentResourceGroup, "/") {
		return deploymentResourceGroup
	}
	loc := ParseResourceID(projectID)
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", loc.Subscription, deploymentResourceGroup)
}
