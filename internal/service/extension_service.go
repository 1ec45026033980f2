package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/observability"
	"github.com/polymorphcorp/profilegpt/internal/repository"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

// ExtensionService owns the request-more-queries workflow: it turns a
// post-limit chat message carrying an email into a pending ledger record,
// and applies admin approve/deny decisions back to the ledger and the
// grant file.
type ExtensionService struct {
	requests repository.ExtensionRepository
	grants   repository.ApprovalRepository
	sessions *session.Store
	guard    *SubmissionGuard
	notifier Notifier
	logger   *slog.Logger
}

func NewExtensionService(
	requests repository.ExtensionRepository,
	grants repository.ApprovalRepository,
	sessions *session.Store,
	guard *SubmissionGuard,
	notifier Notifier,
	logger *slog.Logger,
) *ExtensionService {
	return &ExtensionService{
		requests: requests,
		grants:   grants,
		sessions: sessions,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleLimitReached produces the reply for a chat message that arrived
// after the session exhausted its limit. If the message carries an email
// and no pending request exists, a new request is recorded and the admin
// is notified; otherwise the user is told how to ask, or that review is
// still in progress. The returned flag is true only when this call
// recorded a new request.
func (s *ExtensionService) HandleLimitReached(ctx context.Context, sessionID, message string, limit int) (string, bool, error) {
	// The ledger, not the session marker, decides whether a request is in
	// flight: a denied request must not block a fresh submission, and the
	// marker does not survive a session-store restart.
	pending, err := s.requests.HasPending(sessionID)
	if err != nil {
		return "", false, fmt.Errorf("check pending extension request: %w", err)
	}
	if pending {
		if err := s.sessions.MarkExtensionRequested(ctx, sessionID, ""); err != nil {
			s.logger.Warn("session extension marker write failed", "error", err, "session_id", sessionID)
		}
		return extensionPendingMessage, false, nil
	}

	email := ExtractEmail(message)
	if email == "" {
		return limitReachedMessage(limit), false, nil
	}

	if !s.guard.Acquire(ctx, sessionID) {
		return extensionPendingMessage, false, nil
	}

	req, err := s.requests.Create(sessionID, email)
	if err != nil {
		s.guard.Release(ctx, sessionID)
		return "", false, fmt.Errorf("create extension request: %w", err)
	}
	observability.RecordExtensionTransition(ctx, domain.StatusPending)

	if err := s.sessions.MarkExtensionRequested(ctx, sessionID, req.RequestID); err != nil {
		s.logger.Warn("session extension marker write failed", "error", err, "session_id", sessionID)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyExtensionRequest(ctx, req); err != nil {
			s.logger.Warn("extension request notification failed",
				"error", err, "request_id", req.RequestID)
		}
	}

	s.logger.Info("extension request submitted",
		"session_id", sessionID, "request_id", req.RequestID)
	return extensionRequestedMessage, true, nil
}

// Approve grants extra queries for the request's session. The grant
// overwrites any earlier grant for that session and takes effect on the
// session's next request.
func (s *ExtensionService) Approve(ctx context.Context, requestID string, queriesGranted int) (*domain.ExtensionRequest, error) {
	if _, err := s.findRequest(requestID); err != nil {
		return nil, err
	}

	if err := s.requests.Approve(requestID, queriesGranted); err != nil {
		return nil, fmt.Errorf("approve extension request: %w", err)
	}

	rec, err := s.findRequest(requestID)
	if err != nil {
		return nil, err
	}

	approvedAt := ""
	if rec.ApprovedAt != nil {
		approvedAt = *rec.ApprovedAt
	}
	err = s.grants.UpsertGrant(rec.SessionID, domain.ApprovalGrant{
		QueriesGranted: rec.QueriesGranted,
		ApprovedAt:     approvedAt,
		RequestID:      rec.RequestID,
		Email:          rec.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("record approval grant: %w", err)
	}

	s.guard.Release(ctx, rec.SessionID)
	observability.RecordExtensionTransition(ctx, domain.StatusApproved)
	s.logger.Info("extension request approved",
		"request_id", requestID, "session_id", rec.SessionID, "queries_granted", queriesGranted)
	return rec, nil
}

// Deny marks the request denied. The session may submit a fresh request
// afterwards; denial is not a block.
func (s *ExtensionService) Deny(ctx context.Context, requestID string) (*domain.ExtensionRequest, error) {
	if _, err := s.findRequest(requestID); err != nil {
		return nil, err
	}

	if err := s.requests.Deny(requestID); err != nil {
		return nil, fmt.Errorf("deny extension request: %w", err)
	}

	rec, err := s.findRequest(requestID)
	if err != nil {
		return nil, err
	}

	s.guard.Release(ctx, rec.SessionID)
	observability.RecordExtensionTransition(ctx, domain.StatusDenied)
	s.logger.Info("extension request denied",
		"request_id", requestID, "session_id", rec.SessionID)
	return rec, nil
}

// List returns requests newest first, optionally filtered by status.
func (s *ExtensionService) List(statusFilter string) ([]domain.ExtensionRequest, error) {
	return s.requests.List(statusFilter)
}

func (s *ExtensionService) findRequest(requestID string) (*domain.ExtensionRequest, error) {
	rec, err := s.requests.FindByID(requestID)
	if errors.Is(err, repository.ErrRequestNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load extension request: %w", err)
	}
	return rec, nil
}
