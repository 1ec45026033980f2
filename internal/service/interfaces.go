package service

import (
	"context"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/llm"
)

// Assistant is the model-facing surface the chat service depends on.
// *llm.Client satisfies it; tests substitute fakes.
type Assistant interface {
	ClassifyIntent(ctx context.Context, message string) (*llm.ScopeResult, error)
	Respond(ctx context.Context, history []domain.Turn) (*llm.Completion, error)
	EvaluateJobDescription(ctx context.Context, jobDescription string) (*llm.JobFitResult, error)
}

// Notifier delivers the admin alert for a new extension request. Delivery
// is best effort; failures never fail the request itself.
type Notifier interface {
	NotifyExtensionRequest(ctx context.Context, req *domain.ExtensionRequest) error
}
