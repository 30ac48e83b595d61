package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProjects() *fakeProjects {
	return &fakeProjects{projects: map[string]*Project{
		"proj": {ID: "/subscriptions/sub-1/resourceGroups/proj-rg/providers/Microsoft.DevCenter/projects/proj", Name: "proj"},
	}}
}

func TestIdentityProvisionCreatesEverything(t *testing.T) {
	directory := newFakeDirectory()
	roles := &fakeRoles{}
	p := NewIdentityProvisioner(directory, roles, testProjects())

	result, err := p.Provision(context.Background(), "dev", "proj", "proj-dev-rg")
	require.NoError(t, err)

	assert.Equal(t, "proj-Dev", result.DisplayName)
	assert.Equal(t, "app-1", result.AppID)
	assert.Equal(t, "sp-app-1", result.PrincipalID)

	require.Len(t, roles.assignments, 3)
	assert.Equal(t, RoleReader, roles.assignments[0].RoleName)
	assert.Equal(t, "/subscriptions/sub-1/resourceGroups/proj-rg/providers/Microsoft.DevCenter/projects/proj", roles.assignments[0].Scope)

	assert.Equal(t, RoleADEUser, roles.assignments[1].RoleName)
	assert.Equal(t, "/subscriptions/sub-1/resourceGroups/proj-rg/providers/Microsoft.DevCenter/projects/proj/environmentTypes/Dev", roles.assignments[1].Scope)

	assert.Equal(t, RoleContributor, roles.assignments[2].RoleName)
	assert.Equal(t, "/subscriptions/sub-1/resourceGroups/proj-dev-rg", roles.assignments[2].Scope)
}

func TestIdentityProvisionReusesExistingApplication(t *testing.T) {
	directory := newFakeDirectory()
	roles := &fakeRoles{}
	p := NewIdentityProvisioner(directory, roles, testProjects())

	first, err := p.Provision(context.Background(), "dev", "proj", "proj-dev-rg")
	require.NoError(t, err)

	second, err := p.Provision(context.Background(), "dev", "proj", "proj-dev-rg")
	require.NoError(t, err)

	assert.Equal(t, first.AppID, second.AppID)
	assert.Equal(t, 1, directory.createAppCalls, "re-run must not register a second application")
}

func TestIdentityProvisionResolvesExistingPrincipal(t *testing.T) {
	directory := newFakeDirectory()
	roles := &fakeRoles{}
	p := NewIdentityProvisioner(directory, roles, testProjects())

	first, err := p.Provision(context.Background(), "dev", "proj", "proj-dev-rg")
	require.NoError(t, err)

	// The second run hits the already_exists path inside the directory and
	// must fall back to lookup rather than fail.
	second, err := p.Provision(context.Background(), "dev", "proj", "proj-dev-rg")
	require.NoError(t, err)
	assert.Equal(t, first.PrincipalID, second.PrincipalID)
	assert.Equal(t, 2, directory.createSPCalls)
}

func TestIdentityProvisionDisplayNameConflict(t *testing.T) {
	directory := newFakeDirectory()
	directory.apps = []*ApplicationIdentity{
		{AppID: "a1", ObjectID: "o1", DisplayName: "proj-Dev"},
		{AppID: "a2", ObjectID: "o2", DisplayName: "proj-Dev"},
	}
	p := NewIdentityProvisioner(directory, &fakeRoles{}, testProjects())

	_, err := p.Provision(context.Background(), "dev", "proj", "proj-dev-rg")
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryConflict))
}

func TestIdentityProvisionStopsOnRoleFailure(t *testing.T) {
	directory := newFakeDirectory()
	roles := &fakeRoles{
		failRole: RoleADEUser,
		failErr:  ErrProvision("role assignment rejected"),
	}
	p := NewIdentityProvisioner(directory, roles, testProjects())

	_, err := p.Provision(context.Background(), "dev", "proj", "proj-dev-rg")
	require.Error(t, err)

	// Earlier steps stay applied, the failing role stops the chain, and no
	// rollback removes what was created.
	assert.Len(t, directory.apps, 1)
	assert.Len(t, directory.principals, 1)
	require.Len(t, roles.assignments, 1)
	assert.Equal(t, RoleReader, roles.assignments[0].RoleName)
}

func TestIdentityProvisionAcceptsFullScopePath(t *testing.T) {
	directory := newFakeDirectory()
	roles := &fakeRoles{}
	p := NewIdentityProvisioner(directory, roles, testProjects())

	scope := "/subscriptions/other-sub/resourceGroups/external-rg"
	_, err := p.Provision(context.Background(), "dev", "proj", scope)
	require.NoError(t, err)
	assert.Equal(t, scope, roles.assignments[2].Scope)
}

func TestIdentityProvisionUnknownProject(t *testing.T) {
	p := NewIdentityProvisioner(newFakeDirectory(), &fakeRoles{}, &fakeProjects{projects: map[string]*Project{}})

	_, err := p.Provision(context.Background(), "dev", "missing", "rg")
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryNotFound))
}
