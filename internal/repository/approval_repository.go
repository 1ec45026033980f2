package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/observability"
)

const approvalMapFile = "approved_extensions.json"

// ApprovalRepository maps session_id to the granted quota extension.
// One grant per session; upsert overwrites.
type ApprovalRepository interface {
	GetGrant(sessionID string) (*domain.ApprovalGrant, bool)
	UpsertGrant(sessionID string, grant domain.ApprovalGrant) error
}

type FileApprovalRepository struct {
	path string
}

func NewApprovalRepository(dataDir string) *FileApprovalRepository {
	return &FileApprovalRepository{path: filepath.Join(dataDir, approvalMapFile)}
}

// GetGrant never fails the caller: a missing or corrupt approval map
// degrades to "no grant" so the quota engine falls back to the base limit.
func (r *FileApprovalRepository) GetGrant(sessionID string) (*domain.ApprovalGrant, bool) {
	grants := r.loadOrEmpty()
	grant, ok := grants[sessionID]
	if !ok {
		observability.RecordRepositoryOperation(context.Background(), "approval", "get_grant", "not_found")
		return nil, false
	}
	observability.RecordRepositoryOperation(context.Background(), "approval", "get_grant", "success")
	return &grant, true
}

func (r *FileApprovalRepository) UpsertGrant(sessionID string, grant domain.ApprovalGrant) error {
	grants := r.loadOrEmpty()
	grants[sessionID] = grant

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "approval", "upsert_grant", "error")
		return fmt.Errorf("create approval dir: %w", err)
	}
	payload, err := json.MarshalIndent(grants, "", "  ")
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "approval", "upsert_grant", "error")
		return fmt.Errorf("encode approvals: %w", err)
	}
	if err := os.WriteFile(r.path, append(payload, '\n'), 0o644); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "approval", "upsert_grant", "error")
		return fmt.Errorf("write approvals: %w", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "approval", "upsert_grant", "success")
	return nil
}

func (r *FileApprovalRepository) loadOrEmpty() map[string]domain.ApprovalGrant {
	grants := make(map[string]domain.ApprovalGrant)
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return grants
	}
	if err := json.Unmarshal(raw, &grants); err != nil {
		// Corrupt file degrades to empty rather than failing the caller.
		return make(map[string]domain.ApprovalGrant)
	}
	return grants
}
