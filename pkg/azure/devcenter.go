package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"go.uber.org/zap"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

// The deployment-environments data plane is a separate audience from ARM;
// definitions and environments live behind the DevCenter endpoint, not
// management.azure.com.
const (
	devCenterScope      = "https://devcenter.azure.com/.default"
	devCenterAPIVersion = "2023-04-01"

	moduleName    = "github.com/anirudhbiyani/ade-bootstrap"
	moduleVersion = "v0.1.0"
)

// Terminal provisioning states reported by the data plane.
const (
	provisioningSucceeded = "Succeeded"
	provisioningFailed    = "Failed"
	provisioningCanceled  = "Canceled"
)

const defaultPollInterval = 10 * time.Second

// Wire shapes of the data plane.

type environmentDefinitionPage struct {
	Value    []environmentDefinition `json:"value"`
	NextLink string                  `json:"nextLink"`
}

type environmentDefinition struct {
	Name         string `json:"name"`
	CatalogName  string `json:"catalogName"`
	Description  string `json:"description"`
	TemplatePath string `json:"templatePath"`
}

type environmentResource struct {
	Name                      string                 `json:"name"`
	EnvironmentType           string                 `json:"environmentType"`
	CatalogName               string                 `json:"catalogName"`
	EnvironmentDefinitionName string                 `json:"environmentDefinitionName"`
	Parameters                map[string]interface{} `json:"parameters,omitempty"`
	ProvisioningState         string                 `json:"provisioningState,omitempty"`
	ResourceGroupID           string                 `json:"resourceGroupId,omitempty"`
	Error                     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// DevCenterClient is a typed client for the deployment-environments data
// plane, implementing provision.EnvironmentClient. There is no standalone
// SDK for this surface; requests are built on the azcore runtime with a
// bearer-token policy for the DevCenter audience.
type DevCenterClient struct {
	endpoint     string
	pipeline     runtime.Pipeline
	transport    policy.Transporter
	pollInterval time.Duration
	log          *zap.Logger
}

// DevCenterOption configures a DevCenterClient.
type DevCenterOption func(*DevCenterClient)

// WithDevCenterLogger sets the logger.
func WithDevCenterLogger(log *zap.Logger) DevCenterOption {
	return func(c *DevCenterClient) {
		c.log = log
	}
}

// WithPollInterval overrides how often environment creation is polled.
func WithPollInterval(d time.Duration) DevCenterOption {
	return func(c *DevCenterClient) {
		c.pollInterval = d
	}
}

// WithDevCenterTransport overrides the HTTP transport.
func WithDevCenterTransport(t policy.Transporter) DevCenterOption {
	return func(c *DevCenterClient) {
		c.transport = t
	}
}

// NewDevCenterClient builds a data-plane client for one DevCenter endpoint
// (e.g. "https://contoso-devcenter.eastus.devcenter.azure.com").
func NewDevCenterClient(endpoint string, session *Session, opts ...DevCenterOption) (*DevCenterClient, error) {
	if endpoint == "" {
		return nil, provision.ErrValidation("DevCenter endpoint is required")
	}

	c := &DevCenterClient{
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		pollInterval: defaultPollInterval,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.pipeline = runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{
			runtime.NewBearerTokenPolicy(session.Credential(), []string{devCenterScope}, nil),
		},
	}, &policy.ClientOptions{Transport: c.transport})
	return c, nil
}

// ListDefinitions implements provision.EnvironmentClient.
func (c *DevCenterClient) ListDefinitions(ctx context.Context, project string) ([]provision.EnvironmentDefinition, error) {
	next := fmt.Sprintf("%s/projects/%s/environmentDefinitions?api-version=%s",
		c.endpoint, url.PathEscape(project), devCenterAPIVersion)

	var out []provision.EnvironmentDefinition
	for next != "" {
		var page environmentDefinitionPage
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, d := range page.Value {
			out = append(out, provision.EnvironmentDefinition{
				Name:         d.Name,
				CatalogName:  d.CatalogName,
				Description:  d.Description,
				TemplatePath: d.TemplatePath,
			})
		}
		next = page.NextLink
	}
	return out, nil
}

// GetDefinition implements provision.EnvironmentClient.
func (c *DevCenterClient) GetDefinition(ctx context.Context, project, catalog, name string) (*provision.EnvironmentDefinition, error) {
	u := fmt.Sprintf("%s/projects/%s/catalogs/%s/environmentDefinitions/%s?api-version=%s",
		c.endpoint, url.PathEscape(project), url.PathEscape(catalog), url.PathEscape(name), devCenterAPIVersion)

	var d environmentDefinition
	if err := c.get(ctx, u, &d); err != nil {
		return nil, err
	}
	return &provision.EnvironmentDefinition{
		Name:         d.Name,
		CatalogName:  d.CatalogName,
		Description:  d.Description,
		TemplatePath: d.TemplatePath,
	}, nil
}

// CreateEnvironment implements provision.EnvironmentClient. The PUT is
// accepted asynchronously; the call polls the environment until the data
// plane reports a terminal provisioning state.
func (c *DevCenterClient) CreateEnvironment(ctx context.Context, project string, env provision.EnvironmentInstance, parameters map[string]interface{}) error {
	u := c.environmentURL(project, env.Name)

	body := environmentResource{
		EnvironmentType:           env.EnvType,
		CatalogName:               env.CatalogName,
		EnvironmentDefinitionName: env.DefinitionName,
		Parameters:                parameters,
	}

	req, err := runtime.NewRequest(ctx, http.MethodPut, u)
	if err != nil {
		return provision.ErrInternal("failed to build environment request").WithCause(err)
	}
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return provision.ErrInternal("failed to encode environment request").WithCause(err)
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return provision.ErrProvision("environment create request failed").
			WithOperation("create-environment").
			WithCause(err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK, http.StatusCreated) {
		return c.responseError(resp.StatusCode, runtime.NewResponseError(resp), "create-environment", "environment", env.Name)
	}

	c.log.Info("environment accepted, waiting for deployment",
		zap.String("project", project),
		zap.String("environment", env.Name))
	return c.waitForEnvironment(ctx, project, env.Name)
}

// GetEnvironment implements provision.EnvironmentClient.
func (c *DevCenterClient) GetEnvironment(ctx context.Context, project, name string) (*provision.EnvironmentInstance, error) {
	var env environmentResource
	if err := c.get(ctx, c.environmentURL(project, name), &env); err != nil {
		return nil, err
	}
	return &provision.EnvironmentInstance{
		Name:            env.Name,
		EnvType:         env.EnvironmentType,
		DefinitionName:  env.EnvironmentDefinitionName,
		CatalogName:     env.CatalogName,
		ResourceGroupID: env.ResourceGroupID,
	}, nil
}

// waitForEnvironment polls until the environment settles.
func (c *DevCenterClient) waitForEnvironment(ctx context.Context, project, name string) error {
	for {
		var env environmentResource
		if err := c.get(ctx, c.environmentURL(project, name), &env); err != nil {
			return err
		}

		switch env.ProvisioningState {
		case provisioningSucceeded:
			return nil
		case provisioningFailed, provisioningCanceled:
			e := provision.ErrProvision(fmt.Sprintf("environment deployment %s", strings.ToLower(env.ProvisioningState))).
				WithOperation("create-environment").
				WithResource("environment", name)
			if env.Error != nil {
				e = e.WithDetail("code", env.Error.Code).WithDetail("message", env.Error.Message)
			}
			return e
		}

		c.log.Debug("environment still deploying",
			zap.String("environment", name),
			zap.String("state", env.ProvisioningState))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *DevCenterClient) environmentURL(project, name string) string {
	return fmt.Sprintf("%s/projects/%s/users/me/environments/%s?api-version=%s",
		c.endpoint, url.PathEscape(project), url.PathEscape(name), devCenterAPIVersion)
}

// get performs a GET and unmarshals the JSON body into out.
func (c *DevCenterClient) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := runtime.NewRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return provision.ErrInternal("failed to build request").WithCause(err)
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return provision.ErrProvision("data plane request failed").WithCause(err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return c.responseError(resp.StatusCode, runtime.NewResponseError(resp), "get", "resource", rawURL)
	}
	if err := runtime.UnmarshalAsJSON(resp, out); err != nil {
		return provision.ErrInternal("failed to decode data plane response").WithCause(err)
	}
	return nil
}

// responseError maps data-plane status codes to the provision taxonomy.
func (c *DevCenterClient) responseError(status int, err error, op, resourceType, resourceID string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return provision.ErrAuth("data plane request rejected").
			WithOperation(op).
			WithCause(err)
	case http.StatusNotFound:
		return provision.ErrNotFound(resourceType, resourceID).
			WithOperation(op).
			WithCause(err)
	case http.StatusConflict:
		return provision.ErrConflict(resourceType, resourceID).
			WithOperation(op).
			WithCause(err)
	}
	return provision.ErrProvision("data plane request failed").
		WithOperation(op).
		WithResource(resourceType, resourceID).
		WithCause(err)
}
