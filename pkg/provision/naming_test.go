package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEnvType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dev", "Dev"},
		{"DEV", "Dev"},
		{"Dev", "Dev"},
		{"pRoD", "Prod"},
		{"t", "T"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEnvType(tt.in), "input %q", tt.in)
	}
}

func TestIdentityDisplayName(t *testing.T) {
	assert.Equal(t, "proj-Dev", IdentityDisplayName("proj", "dev"))
	assert.Equal(t, "proj-Dev", IdentityDisplayName("proj", "DEV"))

	// Same pair always derives the same name regardless of input casing.
	assert.Equal(t,
		IdentityDisplayName("proj", "test"),
		IdentityDisplayName("proj", "TEST"))
}

func TestFederationSubject(t *testing.T) {
	assert.Equal(t, "repo:acme/web:environment:Dev", FederationSubject("acme", "web", "dev"))
	assert.Equal(t, "repo:acme/web:environment:Prod", FederationSubject("acme", "web", "PROD"))
}

func TestCredentialName(t *testing.T) {
	assert.Equal(t, "ade-acme-web-Dev", CredentialName("acme", "web", "dev"))

	// Distinct repositories on the same identity get distinct names.
	assert.NotEqual(t,
		CredentialName("acme", "web", "dev"),
		CredentialName("acme", "api", "dev"))
}

func TestNewFederatedCredential(t *testing.T) {
	cred := NewFederatedCredential("acme", "web", "dev")

	assert.Equal(t, "ade-acme-web-Dev", cred.Name)
	assert.Equal(t, "https://token.actions.githubusercontent.com", cred.Issuer)
	assert.Equal(t, "repo:acme/web:environment:Dev", cred.Subject)
	assert.Equal(t, []string{"api://AzureADTokenExchange"}, cred.Audiences)
}
