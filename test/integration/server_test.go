package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/http/handler"
	"github.com/polymorphcorp/profilegpt/internal/http/router"
	"github.com/polymorphcorp/profilegpt/internal/llm"
	"github.com/polymorphcorp/profilegpt/internal/repository"
	"github.com/polymorphcorp/profilegpt/internal/service"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

const adminKey = "integration-admin-key-0001"

type scriptedAssistant struct {
	scope string
}

func (s *scriptedAssistant) ClassifyIntent(_ context.Context, _ string) (*llm.ScopeResult, error) {
	return &llm.ScopeResult{Scope: s.scope, Model: "test-model", Usage: llm.Usage{PromptTokens: 15, CompletionTokens: 1}}, nil
}

func (s *scriptedAssistant) Respond(_ context.Context, history []domain.Turn) (*llm.Completion, error) {
	return &llm.Completion{
		Content: "Answer to: " + history[len(history)-1].Content,
		Model:   "test-model",
		Usage:   llm.Usage{PromptTokens: 50, CompletionTokens: 30},
	}, nil
}

func (s *scriptedAssistant) EvaluateJobDescription(_ context.Context, _ string) (*llm.JobFitResult, error) {
	return &llm.JobFitResult{JobFit: llm.JobFit{FitScore: 65, Summary: "partial match"}, Model: "test-model"}, nil
}

type silentNotifier struct{}

func (silentNotifier) NotifyExtensionRequest(context.Context, *domain.ExtensionRequest) error {
	return nil
}

type testServer struct {
	url        string
	client     *http.Client
	requests   *repository.FileExtensionRepository
	grants     *repository.FileApprovalRepository
	extensions *service.ExtensionService
}

func newChatTestServer(t *testing.T, baseLimit int) *testServer {
	t.Helper()
	dir := t.TempDir()
	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() {
		_ = redisClient.Close()
		redisServer.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewStore(redisClient, "itest", time.Hour)
	requests := repository.NewExtensionRepository(dir)
	grants := repository.NewApprovalRepository(dir)
	usage := repository.NewUsageRepository(dir)
	interactions := repository.NewInteractionRepository(dir)

	quota := service.NewQuotaService(grants, baseLimit)
	guard := service.NewSubmissionGuard(redisClient, "itest")
	extensions := service.NewExtensionService(requests, grants, sessions, guard, silentNotifier{}, logger)
	chat := service.NewChatService(sessions, quota, extensions,
		&scriptedAssistant{scope: domain.ScopeIn}, usage, interactions, logger, 500, 5000)

	h := router.NewRouter(router.Dependencies{
		ChatHandler:     handler.NewChatHandler(chat, quota, sessions, logger),
		AdminHandler:    handler.NewAdminHandler(extensions, sessions, usage, interactions, logger),
		AdminKey:        adminKey,
		SessionTTL:      time.Hour,
		APIRateLimitRPM: 100000,
	})

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	jar := newCookieJar()
	return &testServer{
		url:        server.URL,
		client:     &http.Client{Jar: jar, Timeout: 5 * time.Second},
		requests:   requests,
		grants:     grants,
		extensions: extensions,
	}
}

func newCookieJar() http.CookieJar {
	jar, _ := cookiejar.New(nil)
	return jar
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, client *http.Client, method, url string, headers map[string]string, body string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope from %s %s: %v", method, url, err)
	}
	return resp, env
}

func chatData(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return data
}

// limitDetails unpacks the 429 limit_reached error payload.
func limitDetails(t *testing.T, env envelope) map[string]any {
	t.Helper()
	if env.Success || env.Error == nil {
		t.Fatalf("expected a limit_reached error envelope, got %+v", env)
	}
	if env.Error.Code != "limit_reached" {
		t.Fatalf("error code = %q, want limit_reached", env.Error.Code)
	}
	return env.Error.Details
}
