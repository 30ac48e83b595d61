package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

// ARM error codes for role-assignment creation.
const (
	armCodeRoleAssignmentExists = "RoleAssignmentExists"
	armCodePrincipalNotFound    = "PrincipalNotFound"
)

// A freshly created service principal takes a moment to replicate through
// the directory; assignment attempts during that window fail with
// PrincipalNotFound and are retried.
const (
	defaultPrincipalRetries = 10
	defaultPrincipalDelay   = 5 * time.Second
)

// RoleClient implements provision.RoleAssigner on the ARM authorization
// API. Role names are resolved to definition IDs at the assignment scope.
type RoleClient struct {
	definitions *armauthorization.RoleDefinitionsClient
	assignments *armauthorization.RoleAssignmentsClient
	retries     int
	retryDelay  time.Duration
	log         *zap.Logger
}

// RoleClientOption configures a RoleClient.
type RoleClientOption func(*RoleClient)

// WithRoleLogger sets the logger.
func WithRoleLogger(log *zap.Logger) RoleClientOption {
	return func(c *RoleClient) {
		c.log = log
	}
}

// WithPrincipalRetry overrides the PrincipalNotFound retry policy.
func WithPrincipalRetry(retries int, delay time.Duration) RoleClientOption {
	return func(c *RoleClient) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// NewRoleClient builds a role-assignment client from the session.
func NewRoleClient(session *Session, opts ...RoleClientOption) (*RoleClient, error) {
	definitions, err := armauthorization.NewRoleDefinitionsClient(session.Credential(), nil)
	if err != nil {
		return nil, provision.ErrInternal("failed to build role definitions client").WithCause(err)
	}
	assignments, err := armauthorization.NewRoleAssignmentsClient(session.SubscriptionID(), session.Credential(), nil)
	if err != nil {
		return nil, provision.ErrInternal("failed to build role assignments client").WithCause(err)
	}

	c := &RoleClient{
		definitions: definitions,
		assignments: assignments,
		retries:     defaultPrincipalRetries,
		retryDelay:  defaultPrincipalDelay,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EnsureRoleAssignment implements provision.RoleAssigner. A duplicate
// assignment is success; a principal that has not replicated yet is retried.
func (c *RoleClient) EnsureRoleAssignment(ctx context.Context, scope, roleName, principalID string) error {
	definitionID, err := c.findRoleDefinition(ctx, scope, roleName)
	if err != nil {
		return err
	}

	params := armauthorization.RoleAssignmentCreateParameters{
		Properties: &armauthorization.RoleAssignmentProperties{
			RoleDefinitionID: to.Ptr(definitionID),
			PrincipalID:      to.Ptr(principalID),
			PrincipalType:    to.Ptr(armauthorization.PrincipalTypeServicePrincipal),
		},
	}

	for attempt := 0; ; attempt++ {
		_, err := c.assignments.Create(ctx, scope, uuid.New().String(), params, nil)
		if err == nil {
			return nil
		}

		switch armErrorCode(err) {
		case armCodeRoleAssignmentExists:
			c.log.Debug("role assignment already exists",
				zap.String("role", roleName),
				zap.String("scope", scope))
			return nil
		case armCodePrincipalNotFound:
			if attempt >= c.retries {
				return provision.ErrProvision("principal never became visible for role assignment").
					WithOperation("ensure-role-assignment").
					WithResource("role assignment", roleName).
					WithCause(err)
			}
			c.log.Debug("principal not replicated yet, retrying",
				zap.String("principal_id", principalID),
				zap.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		default:
			return provision.ErrProvision(fmt.Sprintf("failed to assign role %q", roleName)).
				WithOperation("ensure-role-assignment").
				WithResource("role assignment", scope).
				WithCause(err)
		}
	}
}

// findRoleDefinition resolves a role display name to its definition ID at
// the given scope.
func (c *RoleClient) findRoleDefinition(ctx context.Context, scope, roleName string) (string, error) {
	filter := fmt.Sprintf("roleName eq '%s'", strings.ReplaceAll(roleName, "'", "''"))
	pager := c.definitions.NewListPager(scope, &armauthorization.RoleDefinitionsClientListOptions{
		Filter: to.Ptr(filter),
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", provision.ErrProvision("failed to list role definitions").
				WithOperation("find-role-definition").
				WithCause(err)
		}
		for _, def := range page.Value {
			if def.ID != nil {
				return *def.ID, nil
			}
		}
	}
	return "", provision.ErrNotFound("role definition", roleName).
		WithOperation("find-role-definition").
		WithDetail("scope", scope)
}

// armErrorCode extracts the structured error code from an ARM response
// error, or "" when the error is not one.
func armErrorCode(err error) string {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.ErrorCode
	}
	return ""
}
