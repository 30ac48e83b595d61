package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(directory *fakeDirectory, roles *fakeRoles, repo *fakeRepo, opts ...PipelineOption) *Pipeline {
	return NewPipeline(
		NewIdentityProvisioner(directory, roles, testProjects()),
		NewFederatedCredentialBinder(directory),
		repo,
		opts...,
	)
}

func testRequest() PipelineRequest {
	return PipelineRequest{
		Org:                     "acme",
		Repo:                    "web",
		Project:                 "proj",
		EnvType:                 "test",
		DeploymentResourceGroup: "proj-test-rg",
		TenantID:                "tenant-1",
		SubscriptionID:          "sub-1",
	}
}

func TestPipelineEstablishesFullChain(t *testing.T) {
	directory := newFakeDirectory()
	repo := newFakeRepo()
	p := newTestPipeline(directory, &fakeRoles{}, repo)

	result, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "proj-Test", result.Identity.DisplayName)
	assert.Equal(t, "repo:acme/web:environment:Test", result.Binding.Subject)
	assert.Equal(t, "Test", result.Environment.Name)

	// Login secrets land in the environment, client ID from the identity.
	assert.Equal(t, result.Identity.AppID, repo.secrets["acme/web:Test:AZURE_CLIENT_ID"])
	assert.Equal(t, "tenant-1", repo.secrets["acme/web:Test:AZURE_TENANT_ID"])
	assert.Equal(t, "sub-1", repo.secrets["acme/web:Test:AZURE_SUBSCRIPTION_ID"])
	assert.Equal(t, SecretCreated, result.Secrets[SecretClientID])
}

func TestPipelineRerunConverges(t *testing.T) {
	directory := newFakeDirectory()
	repo := newFakeRepo()
	p := newTestPipeline(directory, &fakeRoles{}, repo)

	first, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	second, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Identity.AppID, second.Identity.AppID)
	assert.Len(t, directory.apps, 1)
	assert.Len(t, directory.credentials["obj-1"], 1)
	assert.Equal(t, SecretUpdated, second.Secrets[SecretClientID])
}

func TestPipelinePartialFailureThenRecovery(t *testing.T) {
	directory := newFakeDirectory()
	repo := newFakeRepo()
	repo.envErr = ErrProvision("github unavailable")
	records := NewMemoryRecordStore()
	p := newTestPipeline(directory, &fakeRoles{}, repo, WithRecordStore(records))

	_, err := p.Run(context.Background(), testRequest())
	require.Error(t, err)

	// Earlier stages stay applied; no rollback happened.
	assert.Len(t, directory.apps, 1)
	assert.Len(t, directory.credentials["obj-1"], 1)
	assert.Empty(t, repo.environments)

	rec, err := records.Get(context.Background(), RecordID("acme", "web", "proj", "test"))
	require.NoError(t, err)
	assert.True(t, rec.HasStep(StepIdentity))
	assert.True(t, rec.HasStep(StepFederation))
	assert.False(t, rec.HasStep(StepEnvironment))

	// Re-invocation with the same request is the recovery path.
	repo.envErr = nil
	result, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "app-1", result.Identity.AppID)

	rec, err = records.Get(context.Background(), RecordID("acme", "web", "proj", "test"))
	require.NoError(t, err)
	assert.True(t, rec.HasStep(StepSecrets))
}

func TestPipelineValidatesBeforeAnyCall(t *testing.T) {
	directory := newFakeDirectory()
	p := newTestPipeline(directory, &fakeRoles{}, newFakeRepo())

	req := testRequest()
	req.Org = ""
	_, err := p.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryValidation))
	assert.Empty(t, directory.apps, "nothing may be created on invalid input")

	// The tenant is written to the repository as a secret, so a run cannot
	// start without it even when the Azure login itself did not need one.
	req = testRequest()
	req.TenantID = ""
	_, err = p.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryValidation))
	assert.Empty(t, directory.apps)
}

func TestPipelineRejectsBadWaitTimer(t *testing.T) {
	directory := newFakeDirectory()
	p := newTestPipeline(directory, &fakeRoles{}, newFakeRepo())

	req := testRequest()
	req.Environment = &EnvironmentConfig{Name: "Test", WaitTimer: MaxWaitTimerMinutes + 1}
	_, err := p.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryValidation))
	assert.Empty(t, directory.apps)
}

func TestPipelineEnvironmentNameFollowsEnvType(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPipeline(newFakeDirectory(), &fakeRoles{}, repo)

	req := testRequest()
	// A custom config cannot rename the environment away from the env type.
	req.Environment = &EnvironmentConfig{Name: "Custom", WaitTimer: 30}
	result, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Test", result.Environment.Name)
	assert.Equal(t, 30, result.Environment.WaitTimer)
}
