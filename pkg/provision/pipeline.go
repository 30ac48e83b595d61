package provision

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Secret names written into the GitHub environment. Workflows pass these to
// azure/login for the OIDC token exchange.
const (
	SecretClientID       = "AZURE_CLIENT_ID"
	SecretTenantID       = "AZURE_TENANT_ID"
	SecretSubscriptionID = "AZURE_SUBSCRIPTION_ID"
)

// PipelineRequest is the input for a full provisioning run.
type PipelineRequest struct {
	Org     string
	Repo    string
	Project string
	EnvType string

	// DeploymentResourceGroup is where the identity gets Contributor.
	// Either a bare resource group name or a full ARM scope path.
	DeploymentResourceGroup string

	// TenantID and SubscriptionID are written into the GitHub environment
	// alongside the provisioned client ID.
	TenantID       string
	SubscriptionID string

	// Environment optionally overrides the protection settings of the
	// GitHub environment. The environment name is always the normalized
	// env type.
	Environment *EnvironmentConfig
}

// Validate checks the request before any remote call is made.
func (r *PipelineRequest) Validate() error {
	switch {
	case r.Org == "":
		return ErrValidation("org is required")
	case r.Repo == "":
		return ErrValidation("repo is required")
	case r.Project == "":
		return ErrValidation("project is required")
	case r.EnvType == "":
		return ErrValidation("envType is required")
	case r.DeploymentResourceGroup == "":
		return ErrValidation("deployment resource group is required")
	case r.TenantID == "":
		return ErrValidation("tenant ID is required")
	case r.SubscriptionID == "":
		return ErrValidation("subscription ID is required")
	}
	if r.Environment != nil {
		// The environment name is always derived from the env type; the
		// override only carries protection settings.
		cfg := *r.Environment
		cfg.Name = NormalizeEnvType(r.EnvType)
		return cfg.Validate()
	}
	return nil
}

// PipelineResult reports what a run established.
type PipelineResult struct {
	Identity    *IdentityResult
	Binding     *BindingResult
	Environment *GitHubEnvironment
	Secrets     map[string]SecretStatus
}

// Pipeline chains the provisioning stages into the full trust chain:
// identity and roles, then the OIDC federation binding, then the GitHub
// environment and its login secrets.
//
// The chain is a saga of individually idempotent steps with no compensating
// rollback. A run that fails at step k leaves steps 1..k-1 applied and
// returns the failing step's error; re-invoking with the same request is the
// recovery path and converges on the same end state.
type Pipeline struct {
	identity *IdentityProvisioner
	binder   *FederatedCredentialBinder
	github   RepositoryConfigurer
	records  RecordStore
	log      *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger.
func WithPipelineLogger(log *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithRecordStore sets where run receipts are persisted.
func WithRecordStore(s RecordStore) PipelineOption {
	return func(p *Pipeline) {
		p.records = s
	}
}

// NewPipeline creates a Pipeline.
func NewPipeline(identity *IdentityProvisioner, binder *FederatedCredentialBinder, github RepositoryConfigurer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		identity: identity,
		binder:   binder,
		github:   github,
		records:  NewMemoryRecordStore(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full chain. Partial failures leave earlier steps applied;
// the record receipt reflects exactly the steps that completed.
func (p *Pipeline) Run(ctx context.Context, req PipelineRequest) (*PipelineResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := p.loadRecord(ctx, req)
	result := &PipelineResult{Secrets: make(map[string]SecretStatus)}

	identity, err := p.identity.Provision(ctx, req.EnvType, req.Project, req.DeploymentResourceGroup)
	if err != nil {
		return nil, err
	}
	result.Identity = identity
	rec.AppID = identity.AppID
	rec.ObjectID = identity.ObjectID
	rec.MarkStep(StepIdentity)
	p.checkpoint(ctx, rec)

	binding, err := p.binder.Bind(ctx, req.Org, req.Repo, req.EnvType, req.Project)
	if err != nil {
		return nil, err
	}
	result.Binding = binding
	rec.Subject = binding.Subject
	rec.MarkStep(StepFederation)
	p.checkpoint(ctx, rec)

	cfg := EnvironmentConfig{Name: NormalizeEnvType(req.EnvType)}
	if req.Environment != nil {
		cfg = *req.Environment
		cfg.Name = NormalizeEnvType(req.EnvType)
	}
	env, err := p.github.CreateOrUpdateEnvironment(ctx, req.Org, req.Repo, cfg)
	if err != nil {
		return nil, err
	}
	result.Environment = env
	rec.MarkStep(StepEnvironment)
	p.checkpoint(ctx, rec)

	secrets := map[string]string{
		SecretClientID:       identity.AppID,
		SecretTenantID:       req.TenantID,
		SecretSubscriptionID: req.SubscriptionID,
	}
	for _, name := range []string{SecretClientID, SecretTenantID, SecretSubscriptionID} {
		status, err := p.github.SetSecret(ctx, req.Org, req.Repo, cfg.Name, name, secrets[name])
		if err != nil {
			return nil, err
		}
		result.Secrets[name] = status
		p.log.Info("environment secret set",
			zap.String("secret", name),
			zap.String("status", string(status)))
	}
	rec.MarkStep(StepSecrets)
	p.checkpoint(ctx, rec)

	p.log.Info("trust chain established",
		zap.String("app_id", identity.AppID),
		zap.String("subject", binding.Subject),
		zap.String("environment", cfg.Name))
	return result, nil
}

// loadRecord resumes the receipt for this target if one exists, or starts a
// fresh one.
func (p *Pipeline) loadRecord(ctx context.Context, req PipelineRequest) *ProvisionRecord {
	id := RecordID(req.Org, req.Repo, req.Project, req.EnvType)
	if rec, err := p.records.Get(ctx, id); err == nil {
		return rec
	}
	return &ProvisionRecord{
		ID:        id,
		Org:       req.Org,
		Repo:      req.Repo,
		Project:   req.Project,
		EnvType:   NormalizeEnvType(req.EnvType),
		CreatedAt: time.Now(),
	}
}

// checkpoint persists the receipt. A store failure never fails the run; the
// remote state is authoritative.
func (p *Pipeline) checkpoint(ctx context.Context, rec *ProvisionRecord) {
	if err := p.records.Save(ctx, *rec); err != nil {
		p.log.Warn("failed to save provision record", zap.Error(err))
	}
}
