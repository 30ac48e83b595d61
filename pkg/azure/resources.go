package azure

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/devcenter/armdevcenter"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"go.uber.org/zap"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

// ProjectClient implements provision.ProjectLocator on the DevCenter
// control plane. Projects are matched by name across the subscription; the
// ARM resource ID that comes back is the scope RBAC grants hang off.
type ProjectClient struct {
	projects *armdevcenter.ProjectsClient
	log      *zap.Logger
}

// ProjectClientOption configures a ProjectClient.
type ProjectClientOption func(*ProjectClient)

// WithProjectLogger sets the logger.
func WithProjectLogger(log *zap.Logger) ProjectClientOption {
	return func(c *ProjectClient) {
		c.log = log
	}
}

// NewProjectClient builds a project locator from the session.
func NewProjectClient(session *Session, opts ...ProjectClientOption) (*ProjectClient, error) {
	projects, err := armdevcenter.NewProjectsClient(session.SubscriptionID(), session.Credential(), nil)
	if err != nil {
		return nil, provision.ErrInternal("failed to build projects client").WithCause(err)
	}

	c := &ProjectClient{
		projects: projects,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FindProjectByName implements provision.ProjectLocator.
func (c *ProjectClient) FindProjectByName(ctx context.Context, name string) (*provision.Project, error) {
	pager := c.projects.NewListBySubscriptionPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, provision.ErrProvision("failed to list projects").
				WithOperation("find-project").
				WithCause(err)
		}
		for _, p := range page.Value {
			if p.Name != nil && strings.EqualFold(*p.Name, name) {
				c.log.Debug("project resolved",
					zap.String("project", *p.Name),
					zap.Stringp("id", p.ID))
				return &provision.Project{
					ID:   deref(p.ID),
					Name: *p.Name,
				}, nil
			}
		}
	}
	return nil, provision.ErrNotFound("project", name).WithOperation("find-project")
}

// ResourceClient implements provision.ResourceLister on the ARM resources
// API, scoped to the session subscription.
type ResourceClient struct {
	resources *armresources.Client
}

// NewResourceClient builds a resource lister from the session.
func NewResourceClient(session *Session) (*ResourceClient, error) {
	resources, err := armresources.NewClient(session.SubscriptionID(), session.Credential(), nil)
	if err != nil {
		return nil, provision.ErrInternal("failed to build resources client").WithCause(err)
	}
	return &ResourceClient{resources: resources}, nil
}

// ListResources implements provision.ResourceLister.
func (c *ResourceClient) ListResources(ctx context.Context, resourceGroup string) ([]provision.Resource, error) {
	pager := c.resources.NewListByResourceGroupPager(resourceGroup, nil)

	var out []provision.Resource
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, provision.ErrProvision("failed to list resources").
				WithOperation("list-resources").
				WithResource("resource group", resourceGroup).
				WithCause(err)
		}
		for _, r := range page.Value {
			out = append(out, provision.Resource{
				ID:       deref(r.ID),
				Name:     deref(r.Name),
				Type:     deref(r.Type),
				Location: deref(r.Location),
			})
		}
	}
	return out, nil
}
