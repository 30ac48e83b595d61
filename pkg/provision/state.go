package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PipelineStep identifies one stage of the provisioning pipeline.
type PipelineStep string

const (
	StepIdentity    PipelineStep = "identity"
	StepFederation  PipelineStep = "federation"
	StepEnvironment PipelineStep = "github_environment"
	StepSecrets     PipelineStep = "github_secrets"
)

// ProvisionRecord captures what a pipeline run has applied for one
// (org, repo, project, envType) target. Records exist for reporting and
// verification; the pipeline's re-entry safety comes from the remote APIs,
// not from this file.
type ProvisionRecord struct {
	ID        string         `json:"id"`
	Org       string         `json:"org"`
	Repo      string         `json:"repo"`
	Project   string         `json:"project"`
	EnvType   string         `json:"env_type"`
	AppID     string         `json:"app_id,omitempty"`
	ObjectID  string         `json:"object_id,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Steps     []PipelineStep `json:"steps"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RecordID derives the store key for a provisioning target.
func RecordID(org, repo, project, envType string) string {
	return fmt.Sprintf("%s/%s/%s/%s", org, repo, project, NormalizeEnvType(envType))
}

// HasStep reports whether a step has been recorded as applied.
func (r *ProvisionRecord) HasStep(step PipelineStep) bool {
	for _, s := range r.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// MarkStep records a step as applied. Re-marking is a no-op.
func (r *ProvisionRecord) MarkStep(step PipelineStep) {
	if !r.HasStep(step) {
		r.Steps = append(r.Steps, step)
	}
}

// RecordStore persists provisioning records between runs.
type RecordStore interface {
	// Save stores a record, replacing any prior version.
	Save(ctx context.Context, rec ProvisionRecord) error

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*ProvisionRecord, error)

	// List returns all stored records.
	List(ctx context.Context) ([]ProvisionRecord, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}

// recordStoreVersion is the current schema version for the record file.
const recordStoreVersion = 1

type recordData struct {
	Version   int                        `json:"version"`
	Records   map[string]ProvisionRecord `json:"records"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// MemoryRecordStore is an in-memory RecordStore, used in tests.
type MemoryRecordStore struct {
	mu    sync.RWMutex
	state recordData
}

// NewMemoryRecordStore creates a new in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		state: recordData{
			Version: recordStoreVersion,
			Records: make(map[string]ProvisionRecord),
		},
	}
}

// Save implements RecordStore.
func (s *MemoryRecordStore) Save(ctx context.Context, rec ProvisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = time.Now()
	s.state.Records[rec.ID] = rec
	s.state.UpdatedAt = rec.UpdatedAt
	return nil
}

// Get implements RecordStore.
func (s *MemoryRecordStore) Get(ctx context.Context, id string) (*ProvisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.state.Records[id]
	if !exists {
		return nil, ErrNotFound("provision record", id)
	}
	return &rec, nil
}

// List implements RecordStore.
func (s *MemoryRecordStore) List(ctx context.Context) ([]ProvisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]ProvisionRecord, 0, len(s.state.Records))
	for _, rec := range s.state.Records {
		recs = append(recs, rec)
	}
	return recs, nil
}

// Delete implements RecordStore.
func (s *MemoryRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state.Records, id)
	s.state.UpdatedAt = time.Now()
	return nil
}

// FileRecordStore is a file-backed RecordStore.
type FileRecordStore struct {
	mu       sync.RWMutex
	filePath string
	state    recordData
}

// NewFileRecordStore creates a file-backed record store, loading any
// existing state from filePath.
func NewFileRecordStore(filePath string) (*FileRecordStore, error) {
	s := &FileRecordStore{
		filePath: filePath,
		state: recordData{
			Version: recordStoreVersion,
			Records: make(map[string]ProvisionRecord),
		},
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load record store: %w", err)
	}

	return s, nil
}

func (s *FileRecordStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var state recordData
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("invalid record file format: %w", err)
	}
	if state.Version != recordStoreVersion {
		// Only version 1 exists; future versions migrate here.
		state.Version = recordStoreVersion
	}
	if state.Records == nil {
		state.Records = make(map[string]ProvisionRecord)
	}

	s.state = state
	return nil
}

// save writes state to file atomically.
func (s *FileRecordStore) save() error {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp record file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename record file: %w", err)
	}

	return nil
}

// Save implements RecordStore.
func (s *FileRecordStore) Save(ctx context.Context, rec ProvisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = time.Now()
	s.state.Records[rec.ID] = rec
	return s.save()
}

// Get implements RecordStore.
func (s *FileRecordStore) Get(ctx context.Context, id string) (*ProvisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.state.Records[id]
	if !exists {
		return nil, ErrNotFound("provision record", id)
	}
	return &rec, nil
}

// List implements RecordStore.
func (s *FileRecordStore) List(ctx context.Context) ([]ProvisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]ProvisionRecord, 0, len(s.state.Records))
	for _, rec := range s.state.Records {
		recs = append(recs, rec)
	}
	return recs, nil
}

// Delete implements RecordStore.
func (s *FileRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.Records[id]; !exists {
		return nil
	}
	delete(s.state.Records, id)
	return s.save()
}

// DefaultRecordStorePath returns the default location for the record file.
func DefaultRecordStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ade-bootstrap", "state.json")
}
