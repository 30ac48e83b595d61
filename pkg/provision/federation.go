package provision

import (
	"context"

	"go.uber.org/zap"
)

// FederatedCredentialBinder attaches a GitHub Actions OIDC trust binding to
// an existing application identity. The binding ties a single repository
// environment (org, repo, envType) to the identity: tokens minted by GitHub
// for that environment, and only that environment, are exchangeable for the
// identity's credentials.
type FederatedCredentialBinder struct {
	directory DirectoryClient
	log       *zap.Logger
}

// FederatedCredentialBinderOption configures a FederatedCredentialBinder.
type FederatedCredentialBinderOption func(*FederatedCredentialBinder)

// WithBinderLogger sets the logger.
func WithBinderLogger(log *zap.Logger) FederatedCredentialBinderOption {
	return func(b *FederatedCredentialBinder) {
		b.log = log
	}
}

// NewFederatedCredentialBinder creates a FederatedCredentialBinder.
func NewFederatedCredentialBinder(directory DirectoryClient, opts ...FederatedCredentialBinderOption) *FederatedCredentialBinder {
	b := &FederatedCredentialBinder{
		directory: directory,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind resolves the application named "{project}-{EnvType}" and attaches a
// federated credential scoped to repo:{org}/{repo}:environment:{EnvType}.
//
// The application must already exist; Bind never creates it. A missing
// application is a not_found error, and more than one application carrying
// the display name is a conflict, since the name is the only lookup key.
//
// Bind is idempotent: if a credential with the derived name and the same
// trust statement is already attached, it is left in place and reported as
// the result. A credential carrying the derived name but a different
// subject, issuer, or audience set is a conflict: silently keeping it would
// leave a foreign repository trusted under this binding's name.
func (b *FederatedCredentialBinder) Bind(ctx context.Context, org, repo, envType, projectName string) (*BindingResult, error) {
	displayName := IdentityDisplayName(projectName, envType)

	apps, err := b.directory.FindApplicationsByName(ctx, displayName)
	if err != nil {
		return nil, err
	}
	switch len(apps) {
	case 0:
		return nil, ErrNotFound("application", displayName).WithOperation("bind-credential")
	case 1:
		// sole match, proceed
	default:
		return nil, ErrConflict("application", displayName).
			WithOperation("bind-credential").
			WithDetail("count", len(apps))
	}
	app := apps[0]

	cred := NewFederatedCredential(org, repo, envType)

	existing, err := b.directory.ListFederatedCredentials(ctx, app.ObjectID)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if c.Name != cred.Name {
			continue
		}
		if !sameTrust(c, cred) {
			return nil, ErrConflict("federated credential", cred.Name).
				WithOperation("bind-credential").
				WithDetail("existing_subject", c.Subject).
				WithDetail("expected_subject", cred.Subject)
		}
		b.log.Info("federated credential already bound",
			zap.String("credential", cred.Name),
			zap.String("subject", c.Subject))
		return &BindingResult{
			ObjectID:       app.ObjectID,
			CredentialName: cred.Name,
			Subject:        c.Subject,
		}, nil
	}

	if err := b.directory.CreateFederatedCredential(ctx, app.ObjectID, cred); err != nil {
		if !IsRecoverable(err) {
			return nil, err
		}
		// Created concurrently between list and create; the binding holds.
	}
	b.log.Info("federated credential bound",
		zap.String("credential", cred.Name),
		zap.String("subject", cred.Subject),
		zap.String("object_id", app.ObjectID))

	return &BindingResult{
		ObjectID:       app.ObjectID,
		CredentialName: cred.Name,
		Subject:        cred.Subject,
	}, nil
}

// sameTrust reports whether two credentials state the same trust: same
// subject, same issuer, and the same audience set.
func sameTrust(a, b FederatedCredential) bool {
	if a.Subject != b.Subject || a.Issuer != b.Issuer {
		return false
	}
	if len(a.Audiences) != len(b.Audiences) {
		return false
	}
	for i := range a.Audiences {
		if a.Audiences[i] != b.Audiences[i] {
			return false
		}
	}
	return true
}
