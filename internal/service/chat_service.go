package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/llm"
	"github.com/polymorphcorp/profilegpt/internal/observability"
	"github.com/polymorphcorp/profilegpt/internal/repository"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

// ChatResult is what the chat endpoint renders. LimitReached covers both
// the first limit hit and every post-limit turn, including the extension
// workflow replies. ExtensionRequested is true only for the turn that
// recorded a new extension request.
type ChatResult struct {
	Reply              string
	QueryCount         int
	QueryLimit         int
	LimitReached       bool
	ExtensionRequested bool
}

// VetResult carries the job-fit evaluation plus quota state.
type VetResult struct {
	Fit        llm.JobFit
	QueryCount int
	QueryLimit int
}

// ChatService runs a user turn end to end: quota admission, input
// sanitation, intent gating, the persona conversation, and the usage and
// interaction ledgers.
type ChatService struct {
	sessions     *session.Store
	quota        *QuotaService
	extensions   *ExtensionService
	assistant    Assistant
	usage        repository.UsageRepository
	interactions repository.InteractionRepository
	logger       *slog.Logger

	maxQueryLength          int
	maxJobDescriptionLength int
}

func NewChatService(
	sessions *session.Store,
	quota *QuotaService,
	extensions *ExtensionService,
	assistant Assistant,
	usage repository.UsageRepository,
	interactions repository.InteractionRepository,
	logger *slog.Logger,
	maxQueryLength, maxJobDescriptionLength int,
) *ChatService {
	return &ChatService{
		sessions:                sessions,
		quota:                   quota,
		extensions:              extensions,
		assistant:               assistant,
		usage:                   usage,
		interactions:            interactions,
		logger:                  logger,
		maxQueryLength:          maxQueryLength,
		maxJobDescriptionLength: maxJobDescriptionLength,
	}
}

// Handle processes one chat turn. Validation failures return sentinel
// errors and never consume quota; filtered (out-of-scope) turns do.
func (s *ChatService) Handle(ctx context.Context, sessionID, rawMessage string) (*ChatResult, error) {
	message := strings.TrimSpace(rawMessage)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if len(message) > s.maxQueryLength {
		return nil, ErrMessageTooLong
	}

	count, err := s.sessions.QueryCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	admitted, limit := s.quota.Admit(ctx, sessionID, count)
	if !admitted {
		reply, requested, err := s.extensions.HandleLimitReached(ctx, sessionID, message, limit)
		if err != nil {
			return nil, err
		}
		return &ChatResult{
			Reply:              reply,
			QueryCount:         count,
			QueryLimit:         limit,
			LimitReached:       true,
			ExtensionRequested: requested,
		}, nil
	}

	sanitized := SanitizeMessage(message, s.maxQueryLength)
	if sanitized == "" {
		return nil, ErrInvalidMessage
	}

	if IsMetaQuestion(sanitized) {
		// Canned help, no model call, no quota consumed.
		return &ChatResult{Reply: HelpResponse, QueryCount: count, QueryLimit: limit}, nil
	}

	if s.refuse(ctx, sessionID, sanitized) {
		reply := RefusalResponse()
		newCount, err := s.sessions.IncrementQueryCount(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		s.recordInteraction(sessionID, sanitized, reply, true)
		return &ChatResult{Reply: reply, QueryCount: newCount, QueryLimit: limit}, nil
	}

	if err := s.sessions.AppendTurn(ctx, sessionID, "user", sanitized); err != nil {
		return nil, err
	}
	history, err := s.sessions.Conversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	completion, err := s.assistant.Respond(ctx, history)
	if err != nil {
		observability.RecordLLMCall(ctx, domain.CallTypeConversation, "error")
		return nil, err
	}
	observability.RecordLLMCall(ctx, domain.CallTypeConversation, "ok")

	if err := s.sessions.AppendTurn(ctx, sessionID, "assistant", completion.Content); err != nil {
		s.logger.Warn("transcript append failed", "error", err, "session_id", sessionID)
	}
	newCount, err := s.sessions.IncrementQueryCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.recordUsage(sessionID, completion.Usage, completion.Model, domain.CallTypeConversation, nil)
	s.recordInteraction(sessionID, sanitized, completion.Content, false)

	return &ChatResult{Reply: completion.Content, QueryCount: newCount, QueryLimit: limit}, nil
}

// Vet evaluates a job description against the persona. Vetting is free:
// it neither checks nor consumes the chat query budget, it only reports
// the session's current standing.
func (s *ChatService) Vet(ctx context.Context, sessionID, rawJobDescription string) (*VetResult, error) {
	jobDescription := strings.TrimSpace(rawJobDescription)
	if jobDescription == "" {
		return nil, ErrEmptyMessage
	}
	if len(jobDescription) > s.maxJobDescriptionLength {
		return nil, ErrMessageTooLong
	}

	count, err := s.sessions.QueryCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	limit := s.quota.EffectiveLimit(sessionID)

	sanitized := SanitizeJobDescription(jobDescription, s.maxJobDescriptionLength)
	if sanitized == "" {
		return nil, ErrInvalidMessage
	}

	result, err := s.assistant.EvaluateJobDescription(ctx, sanitized)
	if err != nil {
		observability.RecordLLMCall(ctx, domain.CallTypeJobVetting, "error")
		return nil, err
	}
	observability.RecordLLMCall(ctx, domain.CallTypeJobVetting, "ok")

	s.recordUsage(sessionID, result.Usage, result.Model, domain.CallTypeJobVetting, nil)
	s.recordInteraction(sessionID, "[job fit check]", result.Summary, false)

	return &VetResult{Fit: result.JobFit, QueryCount: count, QueryLimit: limit}, nil
}

// refuse runs the intent classifier and reports whether the message is
// out of scope. Classifier failure falls through to the conversation.
func (s *ChatService) refuse(ctx context.Context, sessionID, message string) bool {
	scope, err := s.assistant.ClassifyIntent(ctx, message)
	if err != nil {
		observability.RecordLLMCall(ctx, domain.CallTypeClassification, "error")
		s.logger.Warn("intent classification failed, passing message through",
			"error", err, "session_id", sessionID)
		return false
	}
	observability.RecordLLMCall(ctx, domain.CallTypeClassification, "ok")
	s.recordUsage(sessionID, scope.Usage, scope.Model, domain.CallTypeClassification, &scope.Scope)
	return scope.Scope == domain.ScopeOut
}

func (s *ChatService) recordUsage(sessionID string, usage llm.Usage, model, callType string, scope *string) {
	if _, err := s.usage.Log(sessionID, usage.PromptTokens, usage.CompletionTokens, model, callType, scope); err != nil {
		s.logger.Warn("usage log write failed", "error", err, "session_id", sessionID)
	}
}

func (s *ChatService) recordInteraction(sessionID, userMessage, assistantResponse string, filtered bool) {
	if err := s.interactions.Append(sessionID, userMessage, assistantResponse, filtered); err != nil {
		s.logger.Warn("interaction log write failed", "error", err, "session_id", sessionID)
	}
}
