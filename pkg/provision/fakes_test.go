package provision

import (
	"context"
	"fmt"
)

// fakeDirectory is an in-memory DirectoryClient with the same idempotency
// behavior as the remote: duplicate service-principal creation reports
// already_exists, lookups resolve what was created.
type fakeDirectory struct {
	apps        []*ApplicationIdentity
	principals  map[string]*ServicePrincipal
	credentials map[string][]FederatedCredential

	createAppCalls  int
	createSPCalls   int
	createCredCalls int

	createAppErr  error
	createSPErr   error
	createCredErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		principals:  make(map[string]*ServicePrincipal),
		credentials: make(map[string][]FederatedCredential),
	}
}

func (f *fakeDirectory) CreateApplication(ctx context.Context, displayName string) (*ApplicationIdentity, error) {
	f.createAppCalls++
	if f.createAppErr != nil {
		return nil, f.createAppErr
	}
	app := &ApplicationIdentity{
		AppID:       fmt.Sprintf("app-%d", len(f.apps)+1),
		ObjectID:    fmt.Sprintf("obj-%d", len(f.apps)+1),
		DisplayName: displayName,
	}
	f.apps = append(f.apps, app)
	return app, nil
}

func (f *fakeDirectory) FindApplicationsByName(ctx context.Context, displayName string) ([]*ApplicationIdentity, error) {
	var out []*ApplicationIdentity
	for _, a := range f.apps {
		if a.DisplayName == displayName {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeDirectory) CreateServicePrincipal(ctx context.Context, appID string) (*ServicePrincipal, error) {
	f.createSPCalls++
	if f.createSPErr != nil {
		return nil, f.createSPErr
	}
	if _, exists := f.principals[appID]; exists {
		return nil, ErrAlreadyExists("service principal", appID)
	}
	sp := &ServicePrincipal{ID: "sp-" + appID, AppID: appID}
	f.principals[appID] = sp
	return sp, nil
}

func (f *fakeDirectory) GetServicePrincipalByAppID(ctx context.Context, appID string) (*ServicePrincipal, error) {
	sp, exists := f.principals[appID]
	if !exists {
		return nil, ErrNotFound("service principal", appID)
	}
	return sp, nil
}

func (f *fakeDirectory) CreateFederatedCredential(ctx context.Context, appObjectID string, cred FederatedCredential) error {
	f.createCredCalls++
	if f.createCredErr != nil {
		return f.createCredErr
	}
	for _, c := range f.credentials[appObjectID] {
		if c.Name == cred.Name {
			return ErrAlreadyExists("federated credential", cred.Name)
		}
	}
	f.credentials[appObjectID] = append(f.credentials[appObjectID], cred)
	return nil
}

func (f *fakeDirectory) ListFederatedCredentials(ctx context.Context, appObjectID string) ([]FederatedCredential, error) {
	return f.credentials[appObjectID], nil
}

// fakeRoles records EnsureRoleAssignment calls and can fail a specific role.
type fakeRoles struct {
	assignments []RoleAssignment
	failRole    string
	failErr     error
}

func (f *fakeRoles) EnsureRoleAssignment(ctx context.Context, scope, roleName, principalID string) error {
	if f.failRole != "" && roleName == f.failRole {
		return f.failErr
	}
	f.assignments = append(f.assignments, RoleAssignment{Scope: scope, RoleName: roleName, PrincipalID: principalID})
	return nil
}

// fakeProjects resolves project names to ARM IDs.
type fakeProjects struct {
	projects map[string]*Project
}

func (f *fakeProjects) FindProjectByName(ctx context.Context, name string) (*Project, error) {
	p, ok := f.projects[name]
	if !ok {
		return nil, ErrNotFound("project", name)
	}
	return p, nil
}

// fakeRepo is an in-memory RepositoryConfigurer.
type fakeRepo struct {
	environments map[string]EnvironmentConfig
	secrets      map[string]string

	envErr    error
	secretErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		environments: make(map[string]EnvironmentConfig),
		secrets:      make(map[string]string),
	}
}

func (f *fakeRepo) CreateOrUpdateEnvironment(ctx context.Context, owner, repo string, cfg EnvironmentConfig) (*GitHubEnvironment, error) {
	if f.envErr != nil {
		return nil, f.envErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f.environments[owner+"/"+repo+":"+cfg.Name] = cfg
	return &GitHubEnvironment{Owner: owner, Repo: repo, Name: cfg.Name, WaitTimer: cfg.WaitTimer}, nil
}

func (f *fakeRepo) SetSecret(ctx context.Context, owner, repo, environment, name, plaintext string) (SecretStatus, error) {
	if f.secretErr != nil {
		return "", f.secretErr
	}
	key := owner + "/" + repo + ":" + environment + ":" + name
	status := SecretCreated
	if _, exists := f.secrets[key]; exists {
		status = SecretUpdated
	}
	f.secrets[key] = plaintext
	return status, nil
}
