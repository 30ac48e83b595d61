// Package main is the entry point for the ade-bootstrap CLI.
//
// The CLI provisions the trust chain that lets GitHub Actions deploy into
// Azure Deployment Environments: an application identity with the right
// roles, an OIDC federation binding, and a GitHub repository environment
// holding the login secrets.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/azure"
	"github.com/anirudhbiyani/ade-bootstrap/pkg/catalog"
	"github.com/anirudhbiyani/ade-bootstrap/pkg/githubenv"
	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

const (
	exitError       = 1
	exitVerifyError = 2
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "provision":
		return cmdProvision(ctx, cmdArgs)
	case "create-identity":
		return cmdCreateIdentity(ctx, cmdArgs)
	case "bind-credential":
		return cmdBindCredential(ctx, cmdArgs)
	case "create-environment":
		return cmdCreateEnvironment(ctx, cmdArgs)
	case "definitions":
		return cmdDefinitions(ctx, cmdArgs)
	case "resources":
		return cmdResources(ctx, cmdArgs)
	case "gh-environment":
		return cmdGHEnvironment(ctx, cmdArgs)
	case "gh-secret":
		return cmdGHSecret(ctx, cmdArgs)
	case "repo-from-template":
		return cmdRepoFromTemplate(ctx, cmdArgs)
	case "templates":
		return cmdTemplates(ctx, cmdArgs)
	case "workflows":
		return cmdWorkflows(ctx, cmdArgs)
	case "verify":
		return cmdVerify(ctx, cmdArgs)
	case "version":
		return cmdVersion()
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nRun 'ade-bootstrap help' for usage", cmd)
	}
}

func printUsage() {
	fmt.Println(`ade-bootstrap - GitHub Actions to Azure Deployment Environments trust setup

Usage:
  ade-bootstrap <command> [options]

Commands:
  provision           Run the full chain: identity, federation, GitHub environment, secrets
  create-identity     Create the application identity, principal, and role assignments
  bind-credential     Attach the GitHub OIDC federated credential to the identity
  create-environment  Deploy a deployment environment from a catalog definition
  definitions         List or show environment definitions
  resources           List the Azure resources of a deployed environment
  gh-environment      Create or update a GitHub repository environment
  gh-secret           Set a sealed secret on a repository environment
  repo-from-template  Generate a repository from a template repository
  templates           Query the repository-template catalog
  workflows           Query the workflow-template organizations
  verify              Re-check a provisioned trust chain against the remotes
  version             Show version information
  help                Show this help message

Environment:
  AZURE_TENANT_ID        Azure AD tenant; required by provision (it is written to
                         the repository as a secret), optional elsewhere with CLI login
  AZURE_CLIENT_ID        Client ID for service-principal login
  AZURE_CLIENT_SECRET    Client secret for service-principal login
  AZURE_SUBSCRIPTION_ID  Subscription every operation is pinned to (required)
  DEVCENTER_ENDPOINT     DevCenter data-plane endpoint (for environment commands)
  DEVCENTER_PROJECT      Default project name
  DEVCENTER_CATALOG      Default catalog name
  GITHUB_TOKEN           Token for GitHub commands
  PE_CONFIG_REPO         owner/repo holding the template catalog
  PE_CONFIG_PATH         Path of the catalog file (default: pe.yaml)

Provision Options:
  --org <org>             GitHub organization (required)
  --repo <repo>           GitHub repository (required)
  --project <name>        DevCenter project (or DEVCENTER_PROJECT)
  --env-type <type>       Environment type, e.g. dev, test, prod (required)
  --deployment-rg <rg>    Resource group the identity deploys into (required)
  --wait-timer <minutes>  GitHub environment wait timer (0-43200)
  --state <path>          Receipt file path (default: ~/.ade-bootstrap/state.json)
  -v, --verbose           Verbose output

Examples:
  # Full chain for acme/web deploying to the Dev environment of proj
  ade-bootstrap provision --org acme --repo web --project proj \
    --env-type dev --deployment-rg proj-dev-rg

  # Identity and roles only
  ade-bootstrap create-identity --project proj --env-type dev \
    --deployment-rg proj-dev-rg

  # Federation binding only (identity must exist)
  ade-bootstrap bind-credential --org acme --repo web --project proj --env-type dev

  # Deploy an environment from a catalog definition
  ade-bootstrap create-environment --project proj --env-type dev \
    --name web-dev --definition WebApp

  # GitHub environment with a wait timer and sealed secret
  ade-bootstrap gh-environment --org acme --repo web --name Dev --wait-timer 30
  ade-bootstrap gh-secret --org acme --repo web --environment Dev \
    --name AZURE_CLIENT_ID --value 00000000-0000-0000-0000-000000000000

  # Verify a previous run still holds
  ade-bootstrap verify --org acme --repo web --project proj --env-type dev`)
}

// envConfig is the shared environment-variable configuration.
type envConfig struct {
	tenantID       string
	clientID       string
	clientSecret   string
	subscriptionID string
	devCenterURL   string
	project        string
	catalog        string
	githubToken    string
	peConfigRepo   string
	peConfigPath   string
}

func loadEnvConfig() envConfig {
	cfg := envConfig{
		tenantID:       os.Getenv("AZURE_TENANT_ID"),
		clientID:       os.Getenv("AZURE_CLIENT_ID"),
		clientSecret:   os.Getenv("AZURE_CLIENT_SECRET"),
		subscriptionID: os.Getenv("AZURE_SUBSCRIPTION_ID"),
		devCenterURL:   os.Getenv("DEVCENTER_ENDPOINT"),
		project:        os.Getenv("DEVCENTER_PROJECT"),
		catalog:        os.Getenv("DEVCENTER_CATALOG"),
		githubToken:    os.Getenv("GITHUB_TOKEN"),
		peConfigRepo:   os.Getenv("PE_CONFIG_REPO"),
		peConfigPath:   os.Getenv("PE_CONFIG_PATH"),
	}
	if cfg.peConfigPath == "" {
		cfg.peConfigPath = "pe.yaml"
	}
	return cfg
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func newSession(ctx context.Context, cfg envConfig, log *zap.Logger) (*azure.Session, error) {
	session, err := azure.NewSession(azure.SessionConfig{
		TenantID:       cfg.tenantID,
		ClientID:       cfg.clientID,
		ClientSecret:   cfg.clientSecret,
		SubscriptionID: cfg.subscriptionID,
	}, azure.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := session.Ensure(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func requireGitHubToken(cfg envConfig) error {
	if cfg.githubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required for this command")
	}
	return nil
}

// provisionOpts carries the flags shared by the pipeline commands.
type provisionOpts struct {
	org          string
	repo         string
	project      string
	envType      string
	deploymentRG string
	waitTimer    int
	statePath    string
	verbose      bool
}

func parseProvisionOpts(args []string, cfg envConfig) (*provisionOpts, error) {
	opts := &provisionOpts{
		project:   cfg.project,
		statePath: provision.DefaultRecordStorePath(),
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--org":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--org requires an argument")
			}
			opts.org = args[i+1]
			i++
		case "--repo":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--repo requires an argument")
			}
			opts.repo = args[i+1]
			i++
		case "--project":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--project requires an argument")
			}
			opts.project = args[i+1]
			i++
		case "--env-type":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--env-type requires an argument")
			}
			opts.envType = args[i+1]
			i++
		case "--deployment-rg":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--deployment-rg requires an argument")
			}
			opts.deploymentRG = args[i+1]
			i++
		case "--wait-timer":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--wait-timer requires an argument")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid wait timer: %w", err)
			}
			opts.waitTimer = n
			i++
		case "--state":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--state requires a path argument")
			}
			opts.statePath = args[i+1]
			i++
		case "-v", "--verbose":
			opts.verbose = true
		default:
			return nil, fmt.Errorf("unknown option: %s", args[i])
		}
	}

	if opts.project == "" {
		return nil, fmt.Errorf("--project or DEVCENTER_PROJECT is required")
	}
	if opts.envType == "" {
		return nil, fmt.Errorf("--env-type is required")
	}
	return opts, nil
}

func cmdProvision(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseProvisionOpts(args, cfg)
	if err != nil {
		return err
	}
	if opts.org == "" || opts.repo == "" {
		return fmt.Errorf("--org and --repo are required")
	}
	if opts.deploymentRG == "" {
		return fmt.Errorf("--deployment-rg is required")
	}
	if err := requireGitHubToken(cfg); err != nil {
		return err
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	session, err := newSession(ctx, cfg, log)
	if err != nil {
		return err
	}

	graph, err := azure.NewGraphClient(session, azure.WithGraphLogger(log))
	if err != nil {
		return err
	}
	roles, err := azure.NewRoleClient(session, azure.WithRoleLogger(log))
	if err != nil {
		return err
	}
	projects, err := azure.NewProjectClient(session, azure.WithProjectLogger(log))
	if err != nil {
		return err
	}
	github := githubenv.NewClient(cfg.githubToken, githubenv.WithClientLogger(log))

	records, err := provision.NewFileRecordStore(opts.statePath)
	if err != nil {
		return err
	}

	pipeline := provision.NewPipeline(
		provision.NewIdentityProvisioner(graph, roles, projects, provision.WithIdentityLogger(log)),
		provision.NewFederatedCredentialBinder(graph, provision.WithBinderLogger(log)),
		github,
		provision.WithPipelineLogger(log),
		provision.WithRecordStore(records),
	)

	req := provision.PipelineRequest{
		Org:                     opts.org,
		Repo:                    opts.repo,
		Project:                 opts.project,
		EnvType:                 opts.envType,
		DeploymentResourceGroup: opts.deploymentRG,
		TenantID:                session.TenantID(),
		SubscriptionID:          session.SubscriptionID(),
	}
	if opts.waitTimer > 0 {
		req.Environment = &provision.EnvironmentConfig{WaitTimer: opts.waitTimer}
	}

	result, err := pipeline.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("provision failed: %w", err)
	}

	fmt.Println("\n=== Trust Chain Established ===")
	fmt.Printf("Identity: %s (%s)\n", result.Identity.DisplayName, result.Identity.AppID)
	fmt.Printf("Federation subject: %s\n", result.Binding.Subject)
	fmt.Printf("GitHub environment: %s/%s:%s\n", opts.org, opts.repo, result.Environment.Name)
	for name, status := range result.Secrets {
		fmt.Printf("Secret %s: %s\n", name, status)
	}
	return nil
}

func cmdCreateIdentity(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseProvisionOpts(args, cfg)
	if err != nil {
		return err
	}
	if opts.deploymentRG == "" {
		return fmt.Errorf("--deployment-rg is required")
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	session, err := newSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	graph, err := azure.NewGraphClient(session, azure.WithGraphLogger(log))
	if err != nil {
		return err
	}
	roles, err := azure.NewRoleClient(session, azure.WithRoleLogger(log))
	if err != nil {
		return err
	}
	projects, err := azure.NewProjectClient(session, azure.WithProjectLogger(log))
	if err != nil {
		return err
	}

	provisioner := provision.NewIdentityProvisioner(graph, roles, projects, provision.WithIdentityLogger(log))
	result, err := provisioner.Provision(ctx, opts.envType, opts.project, opts.deploymentRG)
	if err != nil {
		return fmt.Errorf("create-identity failed: %w", err)
	}

	fmt.Println("=== Identity Ready ===")
	fmt.Printf("Display name: %s\n", result.DisplayName)
	fmt.Printf("Client ID: %s\n", result.AppID)
	fmt.Printf("Object ID: %s\n", result.ObjectID)
	fmt.Printf("Principal ID: %s\n", result.PrincipalID)
	return nil
}

func cmdBindCredential(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseProvisionOpts(args, cfg)
	if err != nil {
		return err
	}
	if opts.org == "" || opts.repo == "" {
		return fmt.Errorf("--org and --repo are required")
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	session, err := newSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	graph, err := azure.NewGraphClient(session, azure.WithGraphLogger(log))
	if err != nil {
		return err
	}

	binder := provision.NewFederatedCredentialBinder(graph, provision.WithBinderLogger(log))
	result, err := binder.Bind(ctx, opts.org, opts.repo, opts.envType, opts.project)
	if err != nil {
		return fmt.Errorf("bind-credential failed: %w", err)
	}

	fmt.Println("=== Federation Bound ===")
	fmt.Printf("Credential: %s\n", result.CredentialName)
	fmt.Printf("Subject: %s\n", result.Subject)
	return nil
}

type environmentOpts struct {
	project    string
	envType    string
	name       string
	catalog    string
	definition string
	parameters string
	verbose    bool
}

func parseEnvironmentOpts(args []string, cfg envConfig) (*environmentOpts, error) {
	opts := &environmentOpts{
		project: cfg.project,
		catalog: cfg.catalog,
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--project":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--project requires an argument")
			}
			opts.project = args[i+1]
			i++
		case "--env-type":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--env-type requires an argument")
			}
			opts.envType = args[i+1]
			i++
		case "--name":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--name requires an argument")
			}
			opts.name = args[i+1]
			i++
		case "--catalog":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--catalog requires an argument")
			}
			opts.catalog = args[i+1]
			i++
		case "--definition":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--definition requires an argument")
			}
			opts.definition = args[i+1]
			i++
		case "--parameters":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--parameters requires a JSON argument")
			}
			opts.parameters = args[i+1]
			i++
		case "-v", "--verbose":
			opts.verbose = true
		default:
			return nil, fmt.Errorf("unknown option: %s", args[i])
		}
	}

	if opts.project == "" {
		return nil, fmt.Errorf("--project or DEVCENTER_PROJECT is required")
	}
	return opts, nil
}

func newEnvironmentProvisioner(ctx context.Context, cfg envConfig, verbose bool) (*provision.EnvironmentProvisioner, *zap.Logger, error) {
	log, err := newLogger(verbose)
	if err != nil {
		return nil, nil, err
	}

	session, err := newSession(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	devcenter, err := azure.NewDevCenterClient(cfg.devCenterURL, session, azure.WithDevCenterLogger(log))
	if err != nil {
		return nil, nil, err
	}
	resources, err := azure.NewResourceClient(session)
	if err != nil {
		return nil, nil, err
	}

	return provision.NewEnvironmentProvisioner(devcenter, resources, provision.WithEnvironmentLogger(log)), log, nil
}

func cmdCreateEnvironment(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseEnvironmentOpts(args, cfg)
	if err != nil {
		return err
	}
	if opts.envType == "" {
		return fmt.Errorf("--env-type is required")
	}
	if opts.name == "" {
		return fmt.Errorf("--name is required")
	}
	if opts.definition == "" {
		return fmt.Errorf("--definition is required")
	}

	var parameters map[string]interface{}
	if opts.parameters != "" {
		if err := json.Unmarshal([]byte(opts.parameters), &parameters); err != nil {
			return fmt.Errorf("invalid --parameters JSON: %w", err)
		}
	}

	provisioner, log, err := newEnvironmentProvisioner(ctx, cfg, opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	env, err := provisioner.Provision(ctx, opts.project, opts.envType, opts.name, opts.catalog, opts.definition, parameters)
	if err != nil {
		return fmt.Errorf("create-environment failed: %w", err)
	}

	fmt.Println("=== Environment Deployed ===")
	fmt.Printf("Name: %s\n", env.Name)
	fmt.Printf("Type: %s\n", env.EnvType)
	fmt.Printf("Resource group: %s (subscription %s)\n", env.ResourceGroup, env.Subscription)
	return nil
}

func cmdDefinitions(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseEnvironmentOpts(args, cfg)
	if err != nil {
		return err
	}

	provisioner, log, err := newEnvironmentProvisioner(ctx, cfg, opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	// With --name show a single definition, otherwise list them all.
	if opts.name != "" {
		if opts.catalog == "" {
			return fmt.Errorf("--catalog or DEVCENTER_CATALOG is required with --name")
		}
		def, err := provisioner.GetDefinition(ctx, opts.project, opts.catalog, opts.name)
		if err != nil {
			return err
		}
		fmt.Printf("Name: %s\nCatalog: %s\nTemplate: %s\n", def.Name, def.CatalogName, def.TemplatePath)
		if def.Description != "" {
			fmt.Printf("Description: %s\n", def.Description)
		}
		return nil
	}

	defs, err := provisioner.ListDefinitions(ctx, opts.project)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Println("No environment definitions found")
		return nil
	}

	fmt.Printf("%-30s %-20s %s\n", "NAME", "CATALOG", "DESCRIPTION")
	for _, d := range defs {
		fmt.Printf("%-30s %-20s %s\n", d.Name, d.CatalogName, d.Description)
	}
	return nil
}

func cmdResources(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseEnvironmentOpts(args, cfg)
	if err != nil {
		return err
	}
	if opts.name == "" {
		return fmt.Errorf("--name is required")
	}

	provisioner, log, err := newEnvironmentProvisioner(ctx, cfg, opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	env, err := provisioner.Locate(ctx, opts.project, opts.name)
	if err != nil {
		return err
	}
	resources, err := provisioner.Resources(ctx, env)
	if err != nil {
		return err
	}
	if len(resources) == 0 {
		fmt.Println("No resources found")
		return nil
	}

	fmt.Printf("%-40s %-40s %s\n", "NAME", "TYPE", "LOCATION")
	for _, r := range resources {
		fmt.Printf("%-40s %-40s %s\n", r.Name, r.Type, r.Location)
	}
	return nil
}

type ghOpts struct {
	org         string
	repo        string
	name        string
	environment string
	value       string
	valueEnv    string
	waitTimer   int
	reviewers   string
	verbose     bool

	templateOwner      string
	templateRepo       string
	description        string
	private            bool
	includeAllBranches bool
}

func parseGHOpts(args []string) (*ghOpts, error) {
	opts := &ghOpts{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--org":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--org requires an argument")
			}
			opts.org = args[i+1]
			i++
		case "--repo":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--repo requires an argument")
			}
			opts.repo = args[i+1]
			i++
		case "--name":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--name requires an argument")
			}
			opts.name = args[i+1]
			i++
		case "--environment":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--environment requires an argument")
			}
			opts.environment = args[i+1]
			i++
		case "--value":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--value requires an argument")
			}
			opts.value = args[i+1]
			i++
		case "--value-from-env":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--value-from-env requires a variable name")
			}
			opts.valueEnv = args[i+1]
			i++
		case "--wait-timer":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--wait-timer requires an argument")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid wait timer: %w", err)
			}
			opts.waitTimer = n
			i++
		case "--reviewers":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--reviewers requires an argument")
			}
			opts.reviewers = args[i+1]
			i++
		case "--template-owner":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--template-owner requires an argument")
			}
			opts.templateOwner = args[i+1]
			i++
		case "--template-repo":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--template-repo requires an argument")
			}
			opts.templateRepo = args[i+1]
			i++
		case "--description":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--description requires an argument")
			}
			opts.description = args[i+1]
			i++
		case "--private":
			opts.private = true
		case "--include-all-branches":
			opts.includeAllBranches = true
		case "-v", "--verbose":
			opts.verbose = true
		default:
			return nil, fmt.Errorf("unknown option: %s", args[i])
		}
	}

	if opts.org == "" || opts.repo == "" {
		return nil, fmt.Errorf("--org and --repo are required")
	}
	return opts, nil
}

// parseReviewers parses "User:123,Team:456" into reviewer entries.
func parseReviewers(s string) ([]provision.Reviewer, error) {
	if s == "" {
		return nil, nil
	}
	var out []provision.Reviewer
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid reviewer %q, expected Type:ID", part)
		}
		id, err := strconv.ParseInt(kv[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reviewer ID in %q: %w", part, err)
		}
		out = append(out, provision.Reviewer{Type: kv[0], ID: id})
	}
	return out, nil
}

func cmdGHEnvironment(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseGHOpts(args)
	if err != nil {
		return err
	}
	if opts.name == "" {
		return fmt.Errorf("--name is required")
	}
	if err := requireGitHubToken(cfg); err != nil {
		return err
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	reviewers, err := parseReviewers(opts.reviewers)
	if err != nil {
		return err
	}

	client := githubenv.NewClient(cfg.githubToken, githubenv.WithClientLogger(log))
	env, err := client.CreateOrUpdateEnvironment(ctx, opts.org, opts.repo, provision.EnvironmentConfig{
		Name:      opts.name,
		WaitTimer: opts.waitTimer,
		Reviewers: reviewers,
	})
	if err != nil {
		return fmt.Errorf("gh-environment failed: %w", err)
	}

	fmt.Printf("Environment %s/%s:%s applied (wait timer %d)\n",
		opts.org, opts.repo, env.Name, env.WaitTimer)
	return nil
}

func cmdGHSecret(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseGHOpts(args)
	if err != nil {
		return err
	}
	if opts.environment == "" {
		return fmt.Errorf("--environment is required")
	}
	if opts.name == "" {
		return fmt.Errorf("--name is required")
	}
	if err := requireGitHubToken(cfg); err != nil {
		return err
	}

	value := opts.value
	if value == "" && opts.valueEnv != "" {
		value = os.Getenv(opts.valueEnv)
	}
	if value == "" {
		return fmt.Errorf("--value or --value-from-env is required")
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	client := githubenv.NewClient(cfg.githubToken, githubenv.WithClientLogger(log))
	status, err := client.SetSecret(ctx, opts.org, opts.repo, opts.environment, opts.name, value)
	if err != nil {
		return fmt.Errorf("gh-secret failed: %w", err)
	}

	fmt.Printf("Secret %s on %s/%s:%s %s\n", opts.name, opts.org, opts.repo, opts.environment, status)
	return nil
}

func cmdRepoFromTemplate(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseGHOpts(args)
	if err != nil {
		return err
	}
	if opts.templateOwner == "" || opts.templateRepo == "" {
		return fmt.Errorf("--template-owner and --template-repo are required")
	}
	if err := requireGitHubToken(cfg); err != nil {
		return err
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	client := githubenv.NewClient(cfg.githubToken, githubenv.WithClientLogger(log))
	url, err := client.CreateFromTemplate(ctx, githubenv.TemplateRepoRequest{
		TemplateOwner:      opts.templateOwner,
		TemplateRepo:       opts.templateRepo,
		Owner:              opts.org,
		Name:               opts.repo,
		Description:        opts.description,
		Private:            opts.private,
		IncludeAllBranches: opts.includeAllBranches,
	})
	if err != nil {
		return fmt.Errorf("repo-from-template failed: %w", err)
	}

	fmt.Printf("Repository created: %s\n", url)
	return nil
}

func loadCatalog(ctx context.Context, cfg envConfig, verbose bool) (*catalog.Catalog, *zap.Logger, error) {
	if err := requireGitHubToken(cfg); err != nil {
		return nil, nil, err
	}
	if cfg.peConfigRepo == "" {
		return nil, nil, fmt.Errorf("PE_CONFIG_REPO is required for catalog commands")
	}
	parts := strings.SplitN(cfg.peConfigRepo, "/", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("PE_CONFIG_REPO must be owner/repo, got %q", cfg.peConfigRepo)
	}

	log, err := newLogger(verbose)
	if err != nil {
		return nil, nil, err
	}

	client := githubenv.NewClient(cfg.githubToken, githubenv.WithClientLogger(log))
	loader := catalog.NewLoader(client, parts[0], parts[1], cfg.peConfigPath, catalog.WithLoaderLogger(log))
	return loader.Load(ctx), log, nil
}

func cmdTemplates(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()

	var filter catalog.TemplateFilter
	verbose := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--language":
			if i+1 >= len(args) {
				return fmt.Errorf("--language requires an argument")
			}
			filter.Language = args[i+1]
			i++
		case "--framework":
			if i+1 >= len(args) {
				return fmt.Errorf("--framework requires an argument")
			}
			filter.Framework = args[i+1]
			i++
		case "--architecture":
			if i+1 >= len(args) {
				return fmt.Errorf("--architecture requires an argument")
			}
			filter.ArchitectureType = args[i+1]
			i++
		case "--feature":
			if i+1 >= len(args) {
				return fmt.Errorf("--feature requires an argument")
			}
			filter.Feature = args[i+1]
			i++
		case "--compliance":
			if i+1 >= len(args) {
				return fmt.Errorf("--compliance requires an argument")
			}
			filter.Compliance = args[i+1]
			i++
		case "--complexity":
			if i+1 >= len(args) {
				return fmt.Errorf("--complexity requires an argument")
			}
			filter.Complexity = args[i+1]
			i++
		case "-v", "--verbose":
			verbose = true
		default:
			return fmt.Errorf("unknown option: %s", args[i])
		}
	}

	cat, log, err := loadCatalog(ctx, cfg, verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	templates := cat.Templates(filter)
	if len(templates) == 0 {
		fmt.Println("No repository templates found matching the provided filters")
		return nil
	}

	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("Found %d matching repository templates:\n%s\n", len(templates), data)
	return nil
}

func cmdWorkflows(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()

	organization := ""
	verbose := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--organization":
			if i+1 >= len(args) {
				return fmt.Errorf("--organization requires an argument")
			}
			organization = args[i+1]
			i++
		case "-v", "--verbose":
			verbose = true
		default:
			return fmt.Errorf("unknown option: %s", args[i])
		}
	}

	cat, log, err := loadCatalog(ctx, cfg, verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	orgs := cat.WorkflowOrgs(organization)
	if len(orgs) == 0 {
		fmt.Println("No workflow-template organizations found matching the provided filters")
		return nil
	}

	fmt.Printf("%-25s %-50s %s\n", "NAME", "WORKFLOWS", "DESCRIPTION")
	for _, o := range orgs {
		fmt.Printf("%-25s %-50s %s\n", o.Name, o.WorkflowsURL(), o.Description)
	}
	return nil
}

func cmdVerify(ctx context.Context, args []string) error {
	cfg := loadEnvConfig()
	opts, err := parseProvisionOpts(args, cfg)
	if err != nil {
		return err
	}
	if opts.org == "" || opts.repo == "" {
		return fmt.Errorf("--org and --repo are required")
	}
	if err := requireGitHubToken(cfg); err != nil {
		return err
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	records, err := provision.NewFileRecordStore(opts.statePath)
	if err != nil {
		return err
	}
	rec, err := records.Get(ctx, provision.RecordID(opts.org, opts.repo, opts.project, opts.envType))
	if err != nil {
		return fmt.Errorf("no provision record for this target; run provision first: %w", err)
	}

	session, err := newSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	graph, err := azure.NewGraphClient(session, azure.WithGraphLogger(log))
	if err != nil {
		return err
	}
	github := githubenv.NewClient(cfg.githubToken, githubenv.WithClientLogger(log))

	report := provision.RunVerification(ctx, *rec, []provision.Verifier{
		provision.NewApplicationExistsVerifier(graph),
		provision.NewFederatedSubjectVerifier(graph),
		provision.NewGitHubEnvironmentVerifier(github),
	})

	fmt.Println("=== Verification Report ===")
	fmt.Printf("Target: %s\n", rec.ID)
	fmt.Printf("Valid: %t\n", report.IsValid())
	fmt.Printf("Checks: %d passed, %d failed, %d skipped\n",
		report.Passed, report.Failed, report.Skipped)

	for _, check := range report.Checks {
		status := "✓"
		switch check.Status {
		case provision.CheckStatusFailed:
			status = "✗"
		case provision.CheckStatusSkipped:
			status = "○"
		}

		fmt.Printf("\n%s %s [%s]\n", status, check.Name, check.Severity)
		if check.Status == provision.CheckStatusFailed && check.Remediation != "" {
			fmt.Printf("  Remediation: %s\n", check.Remediation)
		}
	}

	if !report.IsValid() {
		os.Exit(exitVerifyError)
	}
	return nil
}

func cmdVersion() error {
	fmt.Println("ade-bootstrap version 0.1.0")
	fmt.Println("  Pipeline: identity, federation, GitHub environment, secrets")
	return nil
}
