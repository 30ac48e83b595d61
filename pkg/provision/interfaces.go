package provision

import (
	"context"
)

// DirectoryClient abstracts the Microsoft Graph operations the pipeline
// needs. Implementations map the remote's structured error codes to the
// provision error taxonomy; stages branch on categories only.
type DirectoryClient interface {
	// CreateApplication registers a new application with the display name.
	CreateApplication(ctx context.Context, displayName string) (*ApplicationIdentity, error)

	// FindApplicationsByName looks up applications whose display name equals
	// displayName. Returns a not_found error when none match.
	FindApplicationsByName(ctx context.Context, displayName string) ([]*ApplicationIdentity, error)

	// CreateServicePrincipal instantiates the principal for an application.
	// Returns an already_exists error when the remote reports one is present.
	CreateServicePrincipal(ctx context.Context, appID string) (*ServicePrincipal, error)

	// GetServicePrincipalByAppID resolves the existing principal for an
	// application, the fallback when CreateServicePrincipal reports
	// already_exists.
	GetServicePrincipalByAppID(ctx context.Context, appID string) (*ServicePrincipal, error)

	// CreateFederatedCredential attaches an OIDC trust subject to the
	// application identified by its directory object ID. Re-submitting an
	// identical credential is an already_exists error; a same-name credential
	// with a different subject is a conflict.
	CreateFederatedCredential(ctx context.Context, appObjectID string, cred FederatedCredential) error

	// ListFederatedCredentials returns the credentials attached to an
	// application, used by verification and idempotent re-binding.
	ListFederatedCredentials(ctx context.Context, appObjectID string) ([]FederatedCredential, error)
}

// RoleAssigner abstracts RBAC role-assignment creation. EnsureRoleAssignment
// treats a duplicate assignment as success.
type RoleAssigner interface {
	EnsureRoleAssignment(ctx context.Context, scope, roleName, principalID string) error
}

// ProjectLocator resolves DevCenter projects by name.
type ProjectLocator interface {
	// FindProjectByName returns the project whose name matches, or a
	// not_found error.
	FindProjectByName(ctx context.Context, name string) (*Project, error)
}

// EnvironmentClient abstracts the ADE data plane.
type EnvironmentClient interface {
	// ListDefinitions lists the environment definitions of a project.
	ListDefinitions(ctx context.Context, project string) ([]EnvironmentDefinition, error)

	// GetDefinition reads one environment definition from a catalog.
	GetDefinition(ctx context.Context, project, catalog, name string) (*EnvironmentDefinition, error)

	// CreateEnvironment deploys an environment and blocks until the remote
	// reports a terminal provisioning state. A name collision within the
	// project is a conflict error.
	CreateEnvironment(ctx context.Context, project string, env EnvironmentInstance, parameters map[string]interface{}) error

	// GetEnvironment reads an environment, including its resourceGroupId.
	GetEnvironment(ctx context.Context, project, name string) (*EnvironmentInstance, error)
}

// ResourceLister reads the raw resource inventory of a resource group.
type ResourceLister interface {
	ListResources(ctx context.Context, resourceGroup string) ([]Resource, error)
}

// RepositoryConfigurer abstracts the GitHub repository surface the pipeline
// writes to.
type RepositoryConfigurer interface {
	// CreateOrUpdateEnvironment applies the config with PUT semantics.
	CreateOrUpdateEnvironment(ctx context.Context, owner, repo string, cfg EnvironmentConfig) (*GitHubEnvironment, error)

	// SetSecret seals plaintext against the environment's public key and
	// writes the ciphertext. The plaintext never leaves the process
	// unencrypted and is never logged; only the status comes back.
	SetSecret(ctx context.Context, owner, repo, environment, name, plaintext string) (SecretStatus, error)
}
