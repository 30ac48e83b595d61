package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directoryWithApp(displayName string) *fakeDirectory {
	directory := newFakeDirectory()
	directory.apps = []*ApplicationIdentity{
		{AppID: "app-1", ObjectID: "obj-1", DisplayName: displayName},
	}
	return directory
}

func TestBindAttachesCredential(t *testing.T) {
	directory := directoryWithApp("proj-Dev")
	b := NewFederatedCredentialBinder(directory)

	result, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.NoError(t, err)

	assert.Equal(t, "obj-1", result.ObjectID)
	assert.Equal(t, "ade-acme-web-Dev", result.CredentialName)
	assert.Equal(t, "repo:acme/web:environment:Dev", result.Subject)

	creds := directory.credentials["obj-1"]
	require.Len(t, creds, 1)
	assert.Equal(t, GitHubOIDCIssuer, creds[0].Issuer)
	assert.Equal(t, []string{AzureTokenExchangeAudience}, creds[0].Audiences)
}

func TestBindIsIdempotent(t *testing.T) {
	directory := directoryWithApp("proj-Dev")
	b := NewFederatedCredentialBinder(directory)

	first, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.NoError(t, err)

	second, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.NoError(t, err)

	assert.Equal(t, first.Subject, second.Subject)
	assert.Len(t, directory.credentials["obj-1"], 1)
	assert.Equal(t, 1, directory.createCredCalls, "existing binding must be reused, not recreated")
}

func TestBindRejectsForeignSubjectUnderSameName(t *testing.T) {
	directory := directoryWithApp("proj-Dev")
	directory.credentials["obj-1"] = []FederatedCredential{
		{
			Name:      "ade-acme-web-Dev",
			Issuer:    GitHubOIDCIssuer,
			Subject:   "repo:evil/other:environment:Dev",
			Audiences: []string{AzureTokenExchangeAudience},
		},
	}
	b := NewFederatedCredentialBinder(directory)

	_, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryConflict))
	// The foreign credential must be left untouched, not overwritten.
	assert.Equal(t, 0, directory.createCredCalls)
	assert.Equal(t, "repo:evil/other:environment:Dev", directory.credentials["obj-1"][0].Subject)
}

func TestBindRejectsDifferentAudiencesUnderSameName(t *testing.T) {
	directory := directoryWithApp("proj-Dev")
	directory.credentials["obj-1"] = []FederatedCredential{
		{
			Name:      "ade-acme-web-Dev",
			Issuer:    GitHubOIDCIssuer,
			Subject:   "repo:acme/web:environment:Dev",
			Audiences: []string{"api://SomethingElse"},
		},
	}
	b := NewFederatedCredentialBinder(directory)

	_, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryConflict))
}

func TestBindSeparateRepositoriesCoexist(t *testing.T) {
	directory := directoryWithApp("proj-Dev")
	b := NewFederatedCredentialBinder(directory)

	_, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.NoError(t, err)
	_, err = b.Bind(context.Background(), "acme", "api", "dev", "proj")
	require.NoError(t, err)

	assert.Len(t, directory.credentials["obj-1"], 2)
}

func TestBindMissingApplication(t *testing.T) {
	b := NewFederatedCredentialBinder(newFakeDirectory())

	_, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryNotFound))
}

func TestBindAmbiguousDisplayName(t *testing.T) {
	directory := newFakeDirectory()
	directory.apps = []*ApplicationIdentity{
		{AppID: "a1", ObjectID: "o1", DisplayName: "proj-Dev"},
		{AppID: "a2", ObjectID: "o2", DisplayName: "proj-Dev"},
	}
	b := NewFederatedCredentialBinder(directory)

	_, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCategoryConflict))
}

func TestBindRecoversFromConcurrentCreate(t *testing.T) {
	directory := directoryWithApp("proj-Dev")
	directory.createCredErr = ErrAlreadyExists("federated credential", "ade-acme-web-Dev")
	b := NewFederatedCredentialBinder(directory)

	result, err := b.Bind(context.Background(), "acme", "web", "dev", "proj")
	require.NoError(t, err)
	assert.Equal(t, "repo:acme/web:environment:Dev", result.Subject)
}
