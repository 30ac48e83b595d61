// Package azure implements the Azure side of the provisioning pipeline:
// credential acquisition, Microsoft Graph directory operations, RBAC role
// assignments, DevCenter project lookup, and the deployment-environments
// data plane.
package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.uber.org/zap"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

const armScope = "https://management.azure.com/.default"

// SessionConfig selects and parameterizes the credential.
type SessionConfig struct {
	// TenantID, ClientID, ClientSecret select a service-principal login.
	// When any of them is empty the session falls back to the Azure CLI's
	// cached login.
	TenantID     string
	ClientID     string
	ClientSecret string

	// SubscriptionID pins every management-plane operation of the session.
	SubscriptionID string
}

// Session is an authenticated Azure context: one credential and one pinned
// subscription shared by every client the pipeline constructs.
type Session struct {
	cred           azcore.TokenCredential
	tenantID       string
	subscriptionID string
	log            *zap.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// NewSession builds a session from the config. Service-principal secrets
// take precedence; otherwise the Azure CLI's cached login is used. The
// credential is constructed here but not exercised until Ensure or the
// first client call.
func NewSession(cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if cfg.SubscriptionID == "" {
		return nil, provision.ErrValidation("subscription ID is required")
	}

	s := &Session{
		tenantID:       cfg.TenantID,
		subscriptionID: cfg.SubscriptionID,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
		cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		if err != nil {
			return nil, provision.ErrAuth("failed to build service principal credential").WithCause(err)
		}
		s.cred = cred
		s.log.Debug("session using service principal credential",
			zap.String("client_id", cfg.ClientID))
		return s, nil
	}

	cred, err := azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
		TenantID: cfg.TenantID,
	})
	if err != nil {
		return nil, provision.ErrAuth("failed to build Azure CLI credential").WithCause(err)
	}
	s.cred = cred
	s.log.Debug("session using Azure CLI credential")
	return s, nil
}

// Ensure proves the credential can mint a management-plane token. Call it
// once before starting a pipeline run so auth failures surface before any
// resource is touched.
func (s *Session) Ensure(ctx context.Context) error {
	_, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{armScope},
	})
	if err != nil {
		return provision.ErrAuth("no usable Azure credential").
			WithOperation("ensure-session").
			WithCause(err)
	}
	return nil
}

// Credential returns the session's token credential for client construction.
func (s *Session) Credential() azcore.TokenCredential {
	return s.cred
}

// TenantID returns the tenant the session authenticates against. Empty when
// the CLI credential's default tenant is in use.
func (s *Session) TenantID() string {
	return s.tenantID
}

// SubscriptionID returns the pinned subscription.
func (s *Session) SubscriptionID() string {
	return s.subscriptionID
}
