package provision

import (
	"time"
)

// ApplicationIdentity is an AD application registration. DisplayName is
// derived deterministically from the project and environment type and is the
// sole lookup key used by later stages.
type ApplicationIdentity struct {
	// AppID is the application (client) ID used in token exchanges.
	AppID string `json:"app_id"`

	// ObjectID is the directory object ID of the application.
	ObjectID string `json:"object_id"`

	// DisplayName is "{project}-{EnvType}".
	DisplayName string `json:"display_name"`
}

// ServicePrincipal is the usable identity instance bound 1:1 to an
// application registration.
type ServicePrincipal struct {
	// ID is the service principal object ID, the assignee of role assignments.
	ID string `json:"id"`

	// AppID is the owning application's client ID.
	AppID string `json:"app_id"`
}

// RoleAssignment grants a role to a principal at an RBAC scope.
type RoleAssignment struct {
	// Scope is the resource-hierarchy path the assignment applies at.
	Scope string `json:"scope"`

	// RoleName is the built-in role name (e.g. "Reader", "Contributor").
	RoleName string `json:"role_name"`

	// PrincipalID is the service principal object ID.
	PrincipalID string `json:"principal_id"`
}

// FederatedCredential is the OIDC trust statement attached to an application.
// Its shape is a compatibility contract with GitHub Actions' OIDC consumer
// and must not be altered.
type FederatedCredential struct {
	// Name must be unique within the application. It is derived
	// deterministically from (org, repo, envType) so re-runs update rather
	// than duplicate.
	Name string `json:"name"`

	// Issuer is the GitHub Actions token issuer.
	Issuer string `json:"issuer"`

	// Subject is "repo:{org}/{repo}:environment:{EnvType}".
	Subject string `json:"subject"`

	// Description is informational.
	Description string `json:"description,omitempty"`

	// Audiences accepted in the exchanged token.
	Audiences []string `json:"audiences"`
}

// Project is a DevCenter project resolved by name lookup.
type Project struct {
	// ID is the full ARM resource ID; role-assignment scopes derive from it.
	ID string `json:"id"`

	// Name is the project name.
	Name string `json:"name"`
}

// EnvironmentDefinition is an infrastructure template available in a
// DevCenter catalog.
type EnvironmentDefinition struct {
	Name         string `json:"name"`
	CatalogName  string `json:"catalogName"`
	Description  string `json:"description,omitempty"`
	TemplatePath string `json:"templatePath,omitempty"`
}

// EnvironmentInstance is a deployed ADE environment. ResourceGroup and
// Subscription are derived from ResourceGroupID by ParseResourceID, never
// stored remotely.
type EnvironmentInstance struct {
	Name            string `json:"name"`
	EnvType         string `json:"environmentType"`
	DefinitionName  string `json:"environmentDefinitionName"`
	CatalogName     string `json:"catalogName"`
	ResourceGroupID string `json:"resourceGroupId"`

	// Derived fields, populated by the provisioner.
	ResourceGroup string `json:"resourceGroup,omitempty"`
	Subscription  string `json:"subscription,omitempty"`
}

// Resource is one entry of a resource group's inventory.
type Resource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
}

// GitHubEnvironment is a deployment environment on a repository.
type GitHubEnvironment struct {
	Owner     string    `json:"owner"`
	Repo      string    `json:"repo"`
	Name      string    `json:"name"`
	WaitTimer int       `json:"wait_timer"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Reviewer is a required reviewer on a GitHub deployment environment.
type Reviewer struct {
	// Type is "User" or "Team".
	Type string `json:"type"`

	// ID is the user or team ID.
	ID int64 `json:"id"`
}

// BranchPolicy restricts which branches may deploy to an environment.
type BranchPolicy struct {
	// ProtectedBranches limits deployments to protected branches.
	ProtectedBranches bool `json:"protected_branches"`

	// CustomBranchPolicies enables per-environment branch name patterns.
	CustomBranchPolicies bool `json:"custom_branch_policies"`
}

// EnvironmentConfig describes the desired state for a GitHub deployment
// environment. Creates and updates share PUT semantics.
type EnvironmentConfig struct {
	Name string `json:"name"`

	// WaitTimer is minutes to delay deployments, 0 to MaxWaitTimerMinutes.
	WaitTimer int `json:"wait_timer"`

	Reviewers []Reviewer `json:"reviewers,omitempty"`

	BranchPolicy *BranchPolicy `json:"branch_policy,omitempty"`
}

// MaxWaitTimerMinutes is GitHub's upper bound on the environment wait timer.
const MaxWaitTimerMinutes = 43200

// Validate checks the config before any network call is made.
func (c *EnvironmentConfig) Validate() error {
	if c.Name == "" {
		return ErrValidation("environment name is required")
	}
	if c.WaitTimer < 0 || c.WaitTimer > MaxWaitTimerMinutes {
		return ErrValidation("wait_timer must be between 0 and 43200 minutes").
			WithDetail("wait_timer", c.WaitTimer)
	}
	for _, r := range c.Reviewers {
		if r.Type != "User" && r.Type != "Team" {
			return ErrValidation("reviewer type must be 'User' or 'Team'").
				WithDetail("type", r.Type)
		}
	}
	return nil
}

// SecretStatus reports the outcome of a secret write. The plaintext is
// write-only; callers only ever see this status.
type SecretStatus string

const (
	SecretCreated SecretStatus = "created"
	SecretUpdated SecretStatus = "updated"
)

// IdentityResult is the output of the identity-provisioning stage.
type IdentityResult struct {
	// AppID is the application (client) ID.
	AppID string `json:"app_id"`

	// ObjectID is the application's directory object ID.
	ObjectID string `json:"object_id"`

	// PrincipalID is the service principal object ID.
	PrincipalID string `json:"principal_id"`

	// DisplayName is the derived application display name.
	DisplayName string `json:"display_name"`
}

// BindingResult is the output of the federated-credential binding stage.
type BindingResult struct {
	// ObjectID is the bound application's directory object ID.
	ObjectID string `json:"object_id"`

	// CredentialName is the deterministic credential name.
	CredentialName string `json:"credential_name"`

	// Subject is the OIDC subject claim the credential trusts.
	Subject string `json:"subject"`
}
