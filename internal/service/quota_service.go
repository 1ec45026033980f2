package service

import (
	"context"

	"github.com/polymorphcorp/profilegpt/internal/observability"
	"github.com/polymorphcorp/profilegpt/internal/repository"
)

// QuotaService computes the effective per-session query limit: the base
// allowance plus whatever grant the most recent approval recorded. Grants
// overwrite rather than accumulate, so a second approval replaces the
// first.
type QuotaService struct {
	grants    repository.ApprovalRepository
	baseLimit int
}

func NewQuotaService(grants repository.ApprovalRepository, baseLimit int) *QuotaService {
	return &QuotaService{grants: grants, baseLimit: baseLimit}
}

func (s *QuotaService) BaseLimit() int { return s.baseLimit }

// EffectiveLimit re-reads the grant file on every call so an approval
// takes effect on the session's very next request.
func (s *QuotaService) EffectiveLimit(sessionID string) int {
	limit := s.baseLimit
	if grant, ok := s.grants.GetGrant(sessionID); ok {
		limit += grant.QueriesGranted
	}
	return limit
}

// Admit reports whether a session with the given used count may consume
// one more query.
func (s *QuotaService) Admit(ctx context.Context, sessionID string, usedCount int) (bool, int) {
	limit := s.EffectiveLimit(sessionID)
	admitted := usedCount < limit
	outcome := "admitted"
	if !admitted {
		outcome = "limit_reached"
	}
	observability.RecordQuotaDecision(ctx, outcome)
	return admitted, limit
}
