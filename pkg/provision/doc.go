// Package provision implements the trust-chain provisioning pipeline that
// lets a GitHub Actions workflow deploy into an Azure Deployment Environment
// without long-lived credentials.
//
// # Overview
//
// The pipeline establishes three things, in order:
//
//  1. An application identity and service principal named after the
//     DevCenter project and environment type ("{project}-{EnvType}"), with
//     the role assignments the identity needs: Reader on the project,
//     "Deployment Environments User" on the environment type, and
//     Contributor on the deployment resource group.
//  2. A federated identity credential on the application that trusts the
//     GitHub Actions OIDC issuer for exactly one repository environment
//     (subject "repo:{org}/{repo}:environment:{EnvType}").
//  3. A GitHub repository environment of the same name, populated with the
//     AZURE_CLIENT_ID, AZURE_TENANT_ID, and AZURE_SUBSCRIPTION_ID secrets
//     that azure/login needs for the token exchange.
//
// # Idempotency and recovery
//
// Every stage is an idempotent create: existing applications are reused by
// display-name lookup, an existing service principal is resolved instead of
// recreated, duplicate role assignments and federated credentials are
// success, and the GitHub environment is applied with PUT semantics. There
// is no compensating rollback; the recovery path for a partial failure is
// re-invoking the pipeline with the same inputs, which converges on the
// same end state.
//
// # Errors
//
// Failures carry an ErrorCategory discriminator. Client implementations map
// remote status and error codes to categories at the boundary; nothing above
// the boundary matches on message text. The already_exists category never
// escapes a stage; it is the signal for the lookup fallbacks above.
//
// # Structure
//
// The stages (IdentityProvisioner, FederatedCredentialBinder,
// EnvironmentProvisioner) depend only on the narrow interfaces in
// interfaces.go; the Azure and GitHub implementations live in pkg/azure and
// pkg/githubenv. Pipeline chains the stages and writes a receipt through a
// RecordStore; the verify framework re-queries the remotes to check a
// receipt still holds.
package provision
