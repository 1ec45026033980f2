package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/llm"
	"github.com/polymorphcorp/profilegpt/internal/repository"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testHarness struct {
	chat       *ChatService
	extensions *ExtensionService
	quota      *QuotaService
	sessions   *session.Store
	requests   *repository.FileExtensionRepository
	grants     *repository.FileApprovalRepository
	usage      *repository.FileUsageRepository
	log        *repository.FileInteractionRepository
	assistant  *fakeAssistant
	notifier   *fakeNotifier
}

func newHarness(t *testing.T, baseLimit int) *testHarness {
	t.Helper()
	dir := t.TempDir()
	_, client := newRedisClientForTest(t)
	logger := testLogger()

	h := &testHarness{
		sessions:  session.NewStore(client, "test", time.Hour),
		requests:  repository.NewExtensionRepository(dir),
		grants:    repository.NewApprovalRepository(dir),
		usage:     repository.NewUsageRepository(dir),
		log:       repository.NewInteractionRepository(dir),
		assistant: &fakeAssistant{scope: domain.ScopeIn, reply: "Eric has a decade of DevOps experience."},
		notifier:  &fakeNotifier{},
	}
	h.quota = NewQuotaService(h.grants, baseLimit)
	guard := NewSubmissionGuard(client, "test")
	h.extensions = NewExtensionService(h.requests, h.grants, h.sessions, guard, h.notifier, logger)
	h.chat = NewChatService(h.sessions, h.quota, h.extensions, h.assistant, h.usage, h.log, logger, 500, 5000)
	return h
}

type fakeAssistant struct {
	scope    string
	scopeErr error
	reply    string
	replyErr error
	fit      llm.JobFit
	fitErr   error

	classifyCalls int
	respondCalls  int
	lastHistory   []domain.Turn
}

func (f *fakeAssistant) ClassifyIntent(_ context.Context, _ string) (*llm.ScopeResult, error) {
	f.classifyCalls++
	if f.scopeErr != nil {
		return nil, f.scopeErr
	}
	return &llm.ScopeResult{
		Scope: f.scope,
		Model: "test-model",
		Usage: llm.Usage{PromptTokens: 12, CompletionTokens: 1},
	}, nil
}

func (f *fakeAssistant) Respond(_ context.Context, history []domain.Turn) (*llm.Completion, error) {
	f.respondCalls++
	f.lastHistory = history
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return &llm.Completion{
		Content: f.reply,
		Model:   "test-model",
		Usage:   llm.Usage{PromptTokens: 40, CompletionTokens: 25},
	}, nil
}

func (f *fakeAssistant) EvaluateJobDescription(_ context.Context, _ string) (*llm.JobFitResult, error) {
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	return &llm.JobFitResult{
		JobFit: f.fit,
		Model:  "test-model",
		Usage:  llm.Usage{PromptTokens: 200, CompletionTokens: 80},
	}, nil
}

type fakeNotifier struct {
	calls []*domain.ExtensionRequest
	err   error
}

func (f *fakeNotifier) NotifyExtensionRequest(_ context.Context, req *domain.ExtensionRequest) error {
	f.calls = append(f.calls, req)
	return f.err
}
