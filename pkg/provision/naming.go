package provision

import (
	"fmt"
	"strings"
)

// NormalizeEnvType canonicalizes an environment type to
// capitalized-first-letter form: "dev" and "DEV" both become "Dev".
func NormalizeEnvType(envType string) string {
	if envType == "" {
		return ""
	}
	return strings.ToUpper(envType[:1]) + strings.ToLower(envType[1:])
}

// IdentityDisplayName derives the application display name for a
// (project, envType) pair. The derived name is the sole lookup key used by
// the federated-credential binder, so the derivation must stay stable.
func IdentityDisplayName(project, envType string) string {
	return fmt.Sprintf("%s-%s", project, NormalizeEnvType(envType))
}

// CredentialName derives the federated-credential name for an
// (org, repo, envType) tuple. Including org and repo keeps names unique when
// one application federates several repositories; re-running with the same
// inputs lands on the same name so the remote updates instead of duplicating.
func CredentialName(org, repo, envType string) string {
	return fmt.Sprintf("ade-%s-%s-%s", org, repo, NormalizeEnvType(envType))
}

// FederationSubject builds the OIDC subject claim GitHub Actions presents
// for a deployment to the given repository environment.
func FederationSubject(org, repo, envType string) string {
	return fmt.Sprintf("repo:%s/%s:environment:%s", org, repo, NormalizeEnvType(envType))
}

const (
	// GitHubOIDCIssuer is the token issuer for GitHub Actions workflows.
	GitHubOIDCIssuer = "https://token.actions.githubusercontent.com"

	// AzureTokenExchangeAudience is the audience Azure AD accepts for
	// federated token exchange.
	AzureTokenExchangeAudience = "api://AzureADTokenExchange"
)

// NewFederatedCredential assembles the OIDC trust object for a repository
// environment. The field shape is a compatibility contract with GitHub
// Actions' OIDC consumer.
func NewFederatedCredential(org, repo, envType string) FederatedCredential {
	normalized := NormalizeEnvType(envType)
	return FederatedCredential{
		Name:        CredentialName(org, repo, envType),
		Issuer:      GitHubOIDCIssuer,
		Subject:     FederationSubject(org, repo, envType),
		Description: normalized,
		Audiences:   []string{AzureTokenExchangeAudience},
	}
}
