// Package githubenv configures GitHub repositories for OIDC deployments:
// repository environments with protection rules, sealed environment
// secrets, repository generation from templates, and config-file retrieval.
package githubenv

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

// Client implements provision.RepositoryConfigurer on the GitHub REST API.
type Client struct {
	gh  *github.Client
	log *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithGitHubClient injects a pre-built API client, used by tests to point
// at a local server.
func WithGitHubClient(gh *github.Client) Option {
	return func(c *Client) {
		c.gh = gh
	}
}

// NewClient builds a client authenticated with a token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		gh:  github.NewClient(nil).WithAuthToken(token),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateOrUpdateEnvironment implements provision.RepositoryConfigurer. The
// call has PUT semantics: re-applying the same config is success, and a
// changed config overwrites the previous one. The config is validated
// before any network traffic.
func (c *Client) CreateOrUpdateEnvironment(ctx context.Context, owner, repo string, cfg provision.EnvironmentConfig) (*provision.GitHubEnvironment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	update := &github.CreateUpdateEnvironment{}
	if cfg.WaitTimer > 0 {
		update.WaitTimer = github.Int(cfg.WaitTimer)
	}
	for _, r := range cfg.Reviewers {
		update.Reviewers = append(update.Reviewers, &github.EnvReviewers{
			Type: github.String(r.Type),
			ID:   github.Int64(r.ID),
		})
	}
	if cfg.BranchPolicy != nil {
		update.DeploymentBranchPolicy = &github.BranchPolicy{
			ProtectedBranches:    github.Bool(cfg.BranchPolicy.ProtectedBranches),
			CustomBranchPolicies: github.Bool(cfg.BranchPolicy.CustomBranchPolicies),
		}
	}

	env, _, err := c.gh.Repositories.CreateUpdateEnvironment(ctx, owner, repo, cfg.Name, update)
	if err != nil {
		return nil, githubError(err, "create-environment", "environment", cfg.Name)
	}

	c.log.Info("repository environment applied",
		zap.String("repository", owner+"/"+repo),
		zap.String("environment", cfg.Name))
	return toEnvironment(owner, repo, env), nil
}

// GetEnvironment reads a repository environment.
func (c *Client) GetEnvironment(ctx context.Context, owner, repo, name string) (*provision.GitHubEnvironment, error) {
	env, _, err := c.gh.Repositories.GetEnvironment(ctx, owner, repo, name)
	if err != nil {
		return nil, githubError(err, "get-environment", "environment", name)
	}
	return toEnvironment(owner, repo, env), nil
}

// SetSecret implements provision.RepositoryConfigurer. The plaintext is
// sealed against the environment's public key in-process; neither plaintext
// nor ciphertext is logged. The returned status distinguishes a first write
// from an overwrite.
func (c *Client) SetSecret(ctx context.Context, owner, repo, environment, name, plaintext string) (provision.SecretStatus, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", githubError(err, "set-secret", "repository", owner+"/"+repo)
	}
	repoID := int(r.GetID())

	key, _, err := c.gh.Actions.GetEnvPublicKey(ctx, repoID, environment)
	if err != nil {
		return "", githubError(err, "set-secret", "environment", environment)
	}

	sealed, err := sealSecret(plaintext, key.GetKey())
	if err != nil {
		return "", err
	}

	resp, err := c.gh.Actions.CreateOrUpdateEnvSecret(ctx, repoID, environment, &github.EncryptedSecret{
		Name:           name,
		KeyID:          key.GetKeyID(),
		EncryptedValue: sealed,
	})
	if err != nil {
		return "", githubError(err, "set-secret", "secret", name)
	}

	status := provision.SecretUpdated
	if resp != nil && resp.StatusCode == http.StatusCreated {
		status = provision.SecretCreated
	}
	c.log.Info("environment secret written",
		zap.String("environment", environment),
		zap.String("secret", name),
		zap.String("status", string(status)))
	return status, nil
}

// TemplateRepoRequest describes a repository to generate from a template.
type TemplateRepoRequest struct {
	TemplateOwner      string
	TemplateRepo       string
	Owner              string
	Name               string
	Description        string
	Private            bool
	IncludeAllBranches bool
}

// CreateFromTemplate generates a new repository from a template repository.
func (c *Client) CreateFromTemplate(ctx context.Context, req TemplateRepoRequest) (string, error) {
	created, _, err := c.gh.Repositories.CreateFromTemplate(ctx, req.TemplateOwner, req.TemplateRepo, &github.TemplateRepoRequest{
		Name:               github.String(req.Name),
		Owner:              github.String(req.Owner),
		Description:        github.String(req.Description),
		Private:            github.Bool(req.Private),
		IncludeAllBranches: github.Bool(req.IncludeAllBranches),
	})
	if err != nil {
		return "", githubError(err, "create-from-template", "repository",
			fmt.Sprintf("%s/%s", req.TemplateOwner, req.TemplateRepo))
	}

	c.log.Info("repository generated from template",
		zap.String("template", req.TemplateOwner+"/"+req.TemplateRepo),
		zap.String("repository", created.GetFullName()))
	return created.GetHTMLURL(), nil
}

// GetFileContent fetches a file from a repository and returns its decoded
// content.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path string) (string, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", githubError(err, "get-content", "file", fmt.Sprintf("%s/%s:%s", owner, repo, path))
	}
	if file == nil {
		return "", provision.ErrNotFound("file", path).WithOperation("get-content")
	}

	content, err := file.GetContent()
	if err != nil {
		return "", provision.ErrInternal("failed to decode file content").WithCause(err)
	}
	return content, nil
}

func toEnvironment(owner, repo string, env *github.Environment) *provision.GitHubEnvironment {
	out := &provision.GitHubEnvironment{
		Owner: owner,
		Repo:  repo,
		Name:  env.GetName(),
	}
	if env.WaitTimer != nil {
		out.WaitTimer = *env.WaitTimer
	}
	if env.CreatedAt != nil {
		out.CreatedAt = env.CreatedAt.Time
	}
	if env.UpdatedAt != nil {
		out.UpdatedAt = env.UpdatedAt.Time
	}
	return out
}

// githubError maps a REST rejection to the provision taxonomy by status
// code.
func githubError(err error, op, resourceType, resourceID string) error {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return provision.ErrProvision("github request failed").
			WithOperation(op).
			WithResource(resourceType, resourceID).
			WithCause(err)
	}

	switch ghErr.Response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return provision.ErrAuth("github request rejected").
			WithOperation(op).
			WithCause(err)
	case http.StatusNotFound:
		return provision.ErrNotFound(resourceType, resourceID).
			WithOperation(op).
			WithCause(err)
	case http.StatusUnprocessableEntity:
		return provision.ErrValidation("github rejected the request payload").
			WithOperation(op).
			WithResource(resourceType, resourceID).
			WithCause(err)
	}
	return provision.ErrProvision("github request failed").
		WithOperation(op).
		WithResource(resourceType, resourceID).
		WithCause(err)
}
