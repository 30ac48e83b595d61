package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	msgraphsdk "github.com/microsoftgraph/msgraph-beta-sdk-go"
	"github.com/microsoftgraph/msgraph-beta-sdk-go/applications"
	"github.com/microsoftgraph/msgraph-beta-sdk-go/models"
	"github.com/microsoftgraph/msgraph-beta-sdk-go/models/odataerrors"
	"go.uber.org/zap"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

// Graph error codes the client branches on. These are the structured codes
// in the OData error envelope, not message text.
const (
	graphCodeResourceNotFound = "Request_ResourceNotFound"
	graphCodeMultipleObjects  = "Request_MultipleObjectsWithSameKeyValue"
	graphCodeBadRequest       = "Request_BadRequest"
)

var graphScopes = []string{"https://graph.microsoft.com/.default"}

// GraphClient implements provision.DirectoryClient on the Microsoft Graph
// SDK.
type GraphClient struct {
	client *msgraphsdk.GraphServiceClient
	log    *zap.Logger
}

// GraphOption configures a GraphClient.
type GraphOption func(*GraphClient)

// WithGraphLogger sets the logger.
func WithGraphLogger(log *zap.Logger) GraphOption {
	return func(c *GraphClient) {
		c.log = log
	}
}

// NewGraphClient builds a Graph client from the session credential.
func NewGraphClient(session *Session, opts ...GraphOption) (*GraphClient, error) {
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(session.Credential(), graphScopes)
	if err != nil {
		return nil, provision.ErrAuth("failed to build Microsoft Graph client").WithCause(err)
	}

	c := &GraphClient{
		client: client,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateApplication implements provision.DirectoryClient.
func (c *GraphClient) CreateApplication(ctx context.Context, displayName string) (*provision.ApplicationIdentity, error) {
	app := models.NewApplication()
	app.SetDisplayName(to.Ptr(displayName))
	app.SetSignInAudience(to.Ptr("AzureADMyOrg"))

	created, err := c.client.Applications().Post(ctx, app, nil)
	if err != nil {
		return nil, graphError(err, "create-application", "application", displayName)
	}

	c.log.Debug("application created",
		zap.String("display_name", displayName),
		zap.Stringp("app_id", created.GetAppId()))
	return &provision.ApplicationIdentity{
		AppID:       deref(created.GetAppId()),
		ObjectID:    deref(created.GetId()),
		DisplayName: deref(created.GetDisplayName()),
	}, nil
}

// FindApplicationsByName implements provision.DirectoryClient.
func (c *GraphClient) FindApplicationsByName(ctx context.Context, displayName string) ([]*provision.ApplicationIdentity, error) {
	filter := fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(displayName, "'", "''"))
	resp, err := c.client.Applications().Get(ctx, &applications.ApplicationsRequestBuilderGetRequestConfiguration{
		QueryParameters: &applications.ApplicationsRequestBuilderGetQueryParameters{
			Filter: to.Ptr(filter),
		},
	})
	if err != nil {
		return nil, graphError(err, "find-application", "application", displayName)
	}

	var apps []*provision.ApplicationIdentity
	for _, a := range resp.GetValue() {
		apps = append(apps, &provision.ApplicationIdentity{
			AppID:       deref(a.GetAppId()),
			ObjectID:    deref(a.GetId()),
			DisplayName: deref(a.GetDisplayName()),
		})
	}
	return apps, nil
}

// CreateServicePrincipal implements provision.DirectoryClient.
func (c *GraphClient) CreateServicePrincipal(ctx context.Context, appID string) (*provision.ServicePrincipal, error) {
	sp := models.NewServicePrincipal()
	sp.SetAppId(to.Ptr(appID))

	created, err := c.client.ServicePrincipals().Post(ctx, sp, nil)
	if err != nil {
		return nil, graphError(err, "create-service-principal", "service principal", appID)
	}

	c.log.Debug("service principal created",
		zap.String("app_id", appID),
		zap.Stringp("principal_id", created.GetId()))
	return &provision.ServicePrincipal{
		ID:    deref(created.GetId()),
		AppID: deref(created.GetAppId()),
	}, nil
}

// GetServicePrincipalByAppID implements provision.DirectoryClient.
func (c *GraphClient) GetServicePrincipalByAppID(ctx context.Context, appID string) (*provision.ServicePrincipal, error) {
	sp, err := c.client.ServicePrincipalsWithAppId(to.Ptr(appID)).Get(ctx, nil)
	if err != nil {
		return nil, graphError(err, "get-service-principal", "service principal", appID)
	}
	return &provision.ServicePrincipal{
		ID:    deref(sp.GetId()),
		AppID: deref(sp.GetAppId()),
	}, nil
}

// CreateFederatedCredential implements provision.DirectoryClient.
func (c *GraphClient) CreateFederatedCredential(ctx context.Context, appObjectID string, cred provision.FederatedCredential) error {
	fc := models.NewFederatedIdentityCredential()
	fc.SetName(to.Ptr(cred.Name))
	fc.SetIssuer(to.Ptr(cred.Issuer))
	fc.SetSubject(to.Ptr(cred.Subject))
	fc.SetAudiences(cred.Audiences)
	if cred.Description != "" {
		fc.SetDescription(to.Ptr(cred.Description))
	}

	_, err := c.client.Applications().ByApplicationId(appObjectID).FederatedIdentityCredentials().Post(ctx, fc, nil)
	if err != nil {
		// Graph reports a duplicate credential name on this endpoint as a
		// BadRequest-class code, not a conflict status.
		if graphErrorCode(err) == graphCodeBadRequest {
			return provision.ErrAlreadyExists("federated credential", cred.Name).
				WithOperation("create-federated-credential").
				WithCause(err)
		}
		return graphError(err, "create-federated-credential", "federated credential", cred.Name)
	}

	c.log.Debug("federated credential created",
		zap.String("credential", cred.Name),
		zap.String("subject", cred.Subject))
	return nil
}

// ListFederatedCredentials implements provision.DirectoryClient.
func (c *GraphClient) ListFederatedCredentials(ctx context.Context, appObjectID string) ([]provision.FederatedCredential, error) {
	resp, err := c.client.Applications().ByApplicationId(appObjectID).FederatedIdentityCredentials().Get(ctx, nil)
	if err != nil {
		return nil, graphError(err, "list-federated-credentials", "application", appObjectID)
	}

	var creds []provision.FederatedCredential
	for _, fc := range resp.GetValue() {
		creds = append(creds, provision.FederatedCredential{
			Name:        deref(fc.GetName()),
			Issuer:      deref(fc.GetIssuer()),
			Subject:     deref(fc.GetSubject()),
			Description: deref(fc.GetDescription()),
			Audiences:   fc.GetAudiences(),
		})
	}
	return creds, nil
}

// graphError maps an OData error envelope to the provision taxonomy by its
// structured code.
func graphError(err error, op, resourceType, resourceID string) error {
	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return provision.ErrProvision("graph request failed").
			WithOperation(op).
			WithResource(resourceType, resourceID).
			WithCause(err)
	}

	code := graphErrorCode(err)
	switch code {
	case graphCodeResourceNotFound:
		return provision.ErrNotFound(resourceType, resourceID).
			WithOperation(op).
			WithCause(err)
	case graphCodeMultipleObjects:
		return provision.ErrAlreadyExists(resourceType, resourceID).
			WithOperation(op).
			WithCause(err)
	}
	if strings.Contains(strings.ToLower(code), "authorization") || strings.Contains(strings.ToLower(code), "authentication") {
		return provision.ErrAuth("graph request rejected").
			WithOperation(op).
			WithCause(err).
			WithDetail("code", code)
	}
	return provision.ErrProvision("graph request failed").
		WithOperation(op).
		WithResource(resourceType, resourceID).
		WithCause(err).
		WithDetail("code", code)
}

// graphErrorCode extracts the structured code from an OData error envelope,
// or "" when err is not one.
func graphErrorCode(err error) string {
	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return ""
	}
	if main := odataErr.GetErrorEscaped(); main != nil {
		return deref(main.GetCode())
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
