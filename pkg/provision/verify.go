package provision

import (
	"context"
	"fmt"
	"time"
)

// CheckStatus is the outcome of a single verification check.
type CheckStatus string

const (
	CheckStatusPassed  CheckStatus = "passed"
	CheckStatusFailed  CheckStatus = "failed"
	CheckStatusSkipped CheckStatus = "skipped"
)

// CheckSeverity ranks how serious a failed check is.
type CheckSeverity string

const (
	SeverityWarning  CheckSeverity = "warning"
	SeverityError    CheckSeverity = "error"
	SeverityCritical CheckSeverity = "critical"
)

// VerificationCheck is the result of one check against the provisioned
// trust chain.
type VerificationCheck struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Status      CheckStatus            `json:"status"`
	Severity    CheckSeverity          `json:"severity"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

// VerificationReport aggregates the checks run against one record.
type VerificationReport struct {
	Record     ProvisionRecord     `json:"record"`
	Checks     []VerificationCheck `json:"checks"`
	Passed     int                 `json:"passed"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
	VerifiedAt time.Time           `json:"verified_at"`
}

// IsValid reports whether no check of severity error or higher failed.
func (r *VerificationReport) IsValid() bool {
	for _, c := range r.Checks {
		if c.Status == CheckStatusFailed && c.Severity != SeverityWarning {
			return false
		}
	}
	return true
}

// Verifier runs one check against a provisioning record. Checks always
// query the remote; the record only says what to look for.
type Verifier interface {
	ID() string
	Name() string
	Verify(ctx context.Context, rec ProvisionRecord) VerificationCheck
}

// ApplicationExistsVerifier checks the application identity is still
// registered under its derived display name.
type ApplicationExistsVerifier struct {
	directory DirectoryClient
}

// NewApplicationExistsVerifier creates an ApplicationExistsVerifier.
func NewApplicationExistsVerifier(directory DirectoryClient) *ApplicationExistsVerifier {
	return &ApplicationExistsVerifier{directory: directory}
}

func (v *ApplicationExistsVerifier) ID() string   { return "application_exists" }
func (v *ApplicationExistsVerifier) Name() string { return "Application Exists" }

func (v *ApplicationExistsVerifier) Verify(ctx context.Context, rec ProvisionRecord) VerificationCheck {
	start := time.Now()
	check := VerificationCheck{
		ID:       v.ID(),
		Name:     v.Name(),
		Severity: SeverityCritical,
		Evidence: make(map[string]interface{}),
	}

	displayName := IdentityDisplayName(rec.Project, rec.EnvType)
	check.Evidence["display_name"] = displayName

	apps, err := v.directory.FindApplicationsByName(ctx, displayName)
	if err != nil && !IsCategory(err, ErrCategoryNotFound) {
		check.Status = CheckStatusFailed
		check.Evidence["error"] = err.Error()
		check.Remediation = "Check directory permissions for the verifying credential"
		check.Duration = time.Since(start)
		return check
	}
	if len(apps) == 0 {
		check.Status = CheckStatusFailed
		check.Remediation = "Re-run provisioning to recreate the application identity"
		check.Duration = time.Since(start)
		return check
	}

	check.Status = CheckStatusPassed
	check.Evidence["app_id"] = apps[0].AppID
	check.Duration = time.Since(start)
	return check
}

// FederatedSubjectVerifier checks the application carries a federated
// credential with the expected repository-environment subject.
type FederatedSubjectVerifier struct {
	directory DirectoryClient
}

// NewFederatedSubjectVerifier creates a FederatedSubjectVerifier.
func NewFederatedSubjectVerifier(directory DirectoryClient) *FederatedSubjectVerifier {
	return &FederatedSubjectVerifier{directory: directory}
}

func (v *FederatedSubjectVerifier) ID() string   { return "federated_subject" }
func (v *FederatedSubjectVerifier) Name() string { return "Federated Subject Match" }

func (v *FederatedSubjectVerifier) Verify(ctx context.Context, rec ProvisionRecord) VerificationCheck {
	start := time.Now()
	check := VerificationCheck{
		ID:       v.ID(),
		Name:     v.Name(),
		Severity: SeverityCritical,
		Evidence: make(map[string]interface{}),
	}

	if rec.ObjectID == "" {
		check.Status = CheckStatusSkipped
		check.Remediation = "No application object ID recorded; run the identity stage first"
		check.Duration = time.Since(start)
		return check
	}

	expected := FederationSubject(rec.Org, rec.Repo, rec.EnvType)
	check.Evidence["expected_subject"] = expected

	creds, err := v.directory.ListFederatedCredentials(ctx, rec.ObjectID)
	if err != nil {
		check.Status = CheckStatusFailed
		check.Evidence["error"] = err.Error()
		check.Duration = time.Since(start)
		return check
	}

	for _, c := range creds {
		if c.Subject == expected {
			check.Status = CheckStatusPassed
			check.Evidence["credential"] = c.Name
			check.Evidence["issuer"] = c.Issuer
			check.Duration = time.Since(start)
			return check
		}
	}

	check.Status = CheckStatusFailed
	check.Evidence["credential_count"] = len(creds)
	check.Remediation = "Re-run the federation stage to attach the credential"
	check.Duration = time.Since(start)
	return check
}

// EnvironmentReader reads a GitHub repository environment, the narrow
// surface the verifier needs.
type EnvironmentReader interface {
	GetEnvironment(ctx context.Context, owner, repo, name string) (*GitHubEnvironment, error)
}

// GitHubEnvironmentVerifier checks the repository environment exists.
type GitHubEnvironmentVerifier struct {
	reader EnvironmentReader
}

// NewGitHubEnvironmentVerifier creates a GitHubEnvironmentVerifier.
func NewGitHubEnvironmentVerifier(reader EnvironmentReader) *GitHubEnvironmentVerifier {
	return &GitHubEnvironmentVerifier{reader: reader}
}

func (v *GitHubEnvironmentVerifier) ID() string   { return "github_environment" }
func (v *GitHubEnvironmentVerifier) Name() string { return "GitHub Environment Exists" }

func (v *GitHubEnvironmentVerifier) Verify(ctx context.Context, rec ProvisionRecord) VerificationCheck {
	start := time.Now()
	check := VerificationCheck{
		ID:       v.ID(),
		Name:     v.Name(),
		Severity: SeverityError,
		Evidence: make(map[string]interface{}),
	}

	name := NormalizeEnvType(rec.EnvType)
	check.Evidence["environment"] = fmt.Sprintf("%s/%s:%s", rec.Org, rec.Repo, name)

	env, err := v.reader.GetEnvironment(ctx, rec.Org, rec.Repo, name)
	if err != nil {
		check.Status = CheckStatusFailed
		check.Evidence["error"] = err.Error()
		check.Remediation = "Re-run the environment stage to recreate it"
		check.Duration = time.Since(start)
		return check
	}

	check.Status = CheckStatusPassed
	check.Evidence["wait_timer"] = env.WaitTimer
	check.Duration = time.Since(start)
	return check
}

// RunVerification executes the verifiers against a record and aggregates
// the report.
func RunVerification(ctx context.Context, rec ProvisionRecord, verifiers []Verifier) *VerificationReport {
	report := &VerificationReport{
		Record:     rec,
		Checks:     make([]VerificationCheck, 0, len(verifiers)),
		VerifiedAt: time.Now(),
	}

	for _, v := range verifiers {
		check := v.Verify(ctx, rec)
		report.Checks = append(report.Checks, check)

		switch check.Status {
		case CheckStatusPassed:
			report.Passed++
		case CheckStatusFailed:
			report.Failed++
		case CheckStatusSkipped:
			report.Skipped++
		}
	}

	return report
}
