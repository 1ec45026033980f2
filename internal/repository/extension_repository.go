package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/observability"
)

var ErrRequestNotFound = errors.New("extension request not found")

const (
	extensionLedgerFile = "extension_requests.ndjson"

	// Fixed-width fraction keeps timestamps lexicographically sortable,
	// which the newest-first listing contract relies on.
	ledgerTimeFormat = "2006-01-02T15:04:05.000000Z07:00"
)

// ExtensionRepository is the durable ledger of extension requests.
//
// Mutations rewrite the whole file with no locking: concurrent writers can
// lose an update (last full rewrite wins). That is an accepted property of
// the flat-file design, not something this layer tries to fix.
type ExtensionRepository interface {
	Create(sessionID, email string) (*domain.ExtensionRequest, error)
	HasPending(sessionID string) (bool, error)
	ListPending() ([]domain.ExtensionRequest, error)
	List(statusFilter string) ([]domain.ExtensionRequest, error)
	FindByID(requestID string) (*domain.ExtensionRequest, error)
	Approve(requestID string, queriesGranted int) error
	Deny(requestID string) error
}

type FileExtensionRepository struct {
	path string
	now  func() time.Time
}

func NewExtensionRepository(dataDir string) *FileExtensionRepository {
	return &FileExtensionRepository{
		path: filepath.Join(dataDir, extensionLedgerFile),
		now:  time.Now,
	}
}

// WithClock overrides the time source. Tests use it to control request ids.
func (r *FileExtensionRepository) WithClock(now func() time.Time) *FileExtensionRepository {
	r.now = now
	return r
}

// Create appends one pending record. Callers must have verified that no
// pending request exists for the session; no uniqueness check happens here.
func (r *FileExtensionRepository) Create(sessionID, email string) (*domain.ExtensionRequest, error) {
	now := r.now().UTC()
	req := &domain.ExtensionRequest{
		SessionID: sessionID,
		Email:     email,
		Timestamp: now.Format(ledgerTimeFormat),
		Status:    domain.StatusPending,
		RequestID: fmt.Sprintf("%s_%d", sessionID, now.Unix()),
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "create", "error")
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "create", "error")
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(req)
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "create", "error")
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "create", "error")
		return nil, fmt.Errorf("append request: %w", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "extension", "create", "success")
	return req, nil
}

func (r *FileExtensionRepository) HasPending(sessionID string) (bool, error) {
	records, err := r.readAll()
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "has_pending", "error")
		return false, err
	}
	for _, rec := range records {
		if rec.SessionID == sessionID && rec.Status == domain.StatusPending {
			observability.RecordRepositoryOperation(context.Background(), "extension", "has_pending", "success")
			return true, nil
		}
	}
	observability.RecordRepositoryOperation(context.Background(), "extension", "has_pending", "success")
	return false, nil
}

func (r *FileExtensionRepository) ListPending() ([]domain.ExtensionRequest, error) {
	return r.List(domain.StatusPending)
}

// List returns records matching the status filter ("all" for everything),
// newest first.
func (r *FileExtensionRepository) List(statusFilter string) ([]domain.ExtensionRequest, error) {
	records, err := r.readAll()
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "list", "error")
		return nil, err
	}
	filtered := make([]domain.ExtensionRequest, 0, len(records))
	for _, rec := range records {
		if statusFilter == "all" || rec.Status == statusFilter {
			filtered = append(filtered, rec)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp > filtered[j].Timestamp
	})
	observability.RecordRepositoryOperation(context.Background(), "extension", "list", "success")
	return filtered, nil
}

func (r *FileExtensionRepository) FindByID(requestID string) (*domain.ExtensionRequest, error) {
	records, err := r.readAll()
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "find_by_id", "error")
		return nil, err
	}
	for i := range records {
		if records[i].RequestID == requestID {
			observability.RecordRepositoryOperation(context.Background(), "extension", "find_by_id", "success")
			return &records[i], nil
		}
	}
	observability.RecordRepositoryOperation(context.Background(), "extension", "find_by_id", "not_found")
	return nil, ErrRequestNotFound
}

// Approve marks the first matching record approved and rewrites the whole
// file. Missing file or unknown id is a silent no-op; callers that need a
// not-found error use FindByID first.
func (r *FileExtensionRepository) Approve(requestID string, queriesGranted int) error {
	err := r.mutate(requestID, func(rec *domain.ExtensionRequest) {
		approvedAt := r.now().UTC().Format(ledgerTimeFormat)
		rec.Status = domain.StatusApproved
		rec.QueriesGranted = queriesGranted
		rec.ApprovedAt = &approvedAt
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "approve", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "extension", "approve", "success")
	return nil
}

func (r *FileExtensionRepository) Deny(requestID string) error {
	err := r.mutate(requestID, func(rec *domain.ExtensionRequest) {
		deniedAt := r.now().UTC().Format(ledgerTimeFormat)
		rec.Status = domain.StatusDenied
		rec.ApprovedAt = &deniedAt
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "extension", "deny", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "extension", "deny", "success")
	return nil
}

func (r *FileExtensionRepository) mutate(requestID string, apply func(*domain.ExtensionRequest)) error {
	records, err := r.readAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].RequestID == requestID {
			apply(&records[i])
			break
		}
	}
	return r.writeAll(records)
}

func (r *FileExtensionRepository) readAll() ([]domain.ExtensionRequest, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var records []domain.ExtensionRequest
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.ExtensionRequest
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode ledger line: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}

func (r *FileExtensionRepository) writeAll(records []domain.ExtensionRequest) error {
	f, err := os.OpenFile(r.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("rewrite ledger: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := range records {
		line, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write ledger line: %w", err)
		}
	}
	return w.Flush()
}
