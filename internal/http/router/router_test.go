package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/http/handler"
	"github.com/polymorphcorp/profilegpt/internal/llm"
	"github.com/polymorphcorp/profilegpt/internal/repository"
	"github.com/polymorphcorp/profilegpt/internal/service"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

const testAdminKey = "router-test-admin-key-123"

type stubAssistant struct {
	scope string
	reply string
}

func (s *stubAssistant) ClassifyIntent(_ context.Context, _ string) (*llm.ScopeResult, error) {
	return &llm.ScopeResult{Scope: s.scope, Model: "test-model"}, nil
}

func (s *stubAssistant) Respond(_ context.Context, _ []domain.Turn) (*llm.Completion, error) {
	return &llm.Completion{Content: s.reply, Model: "test-model", Usage: llm.Usage{PromptTokens: 30, CompletionTokens: 20}}, nil
}

func (s *stubAssistant) EvaluateJobDescription(_ context.Context, _ string) (*llm.JobFitResult, error) {
	return &llm.JobFitResult{JobFit: llm.JobFit{FitScore: 77, Summary: "good"}, Model: "test-model"}, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyExtensionRequest(context.Context, *domain.ExtensionRequest) error {
	return nil
}

type routerFixture struct {
	handler      http.Handler
	requests     *repository.FileExtensionRepository
	grants       *repository.FileApprovalRepository
	interactions *repository.FileInteractionRepository
}

func newTestRouter(t *testing.T, baseLimit int) *routerFixture {
	t.Helper()
	dir := t.TempDir()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewStore(client, "test", time.Hour)
	requests := repository.NewExtensionRepository(dir)
	grants := repository.NewApprovalRepository(dir)
	usage := repository.NewUsageRepository(dir)
	interactions := repository.NewInteractionRepository(dir)

	quota := service.NewQuotaService(grants, baseLimit)
	guard := service.NewSubmissionGuard(client, "test")
	extensions := service.NewExtensionService(requests, grants, sessions, guard, noopNotifier{}, logger)
	chat := service.NewChatService(sessions, quota, extensions,
		&stubAssistant{scope: domain.ScopeIn, reply: "Eric led the platform migration."},
		usage, interactions, logger, 500, 5000)

	h := NewRouter(Dependencies{
		ChatHandler:     handler.NewChatHandler(chat, quota, sessions, logger),
		AdminHandler:    handler.NewAdminHandler(extensions, sessions, usage, interactions, logger),
		AdminKey:        testAdminKey,
		CORSOrigins:     []string{"http://localhost"},
		SessionTTL:      time.Hour,
		APIRateLimitRPM: 1000,
	})
	return &routerFixture{handler: h, requests: requests, grants: grants, interactions: interactions}
}

func perform(h http.Handler, method, target string, headers map[string]string, cookies []*http.Cookie, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.10.10.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	data, _ := env["data"].(map[string]any)
	return data
}

func decodeErrorDetails(t *testing.T, rr *httptest.ResponseRecorder) (string, map[string]any) {
	t.Helper()
	var env map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	apiErr, _ := env["error"].(map[string]any)
	if apiErr == nil {
		t.Fatalf("no error in envelope: %v", env)
	}
	code, _ := apiErr["code"].(string)
	details, _ := apiErr["details"].(map[string]any)
	return code, details
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestRouter(t, 20)
	rr := perform(f.handler, http.MethodGet, "/health", nil, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestChatMintsSessionAndAnswers(t *testing.T) {
	f := newTestRouter(t, 20)

	rr := perform(f.handler, http.MethodPost, "/chat", nil, nil, `{"message":"What has Eric built?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	cookie := sessionCookie(t, rr)
	if len(cookie.Value) != 8 {
		t.Fatalf("session token %q has unexpected length", cookie.Value)
	}

	data := decodeData(t, rr)
	if data["response"] != "Eric led the platform migration." {
		t.Fatalf("response = %v", data["response"])
	}
	if data["query_count"].(float64) != 1 {
		t.Fatalf("query_count = %v", data["query_count"])
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	f := newTestRouter(t, 20)
	rr := perform(f.handler, http.MethodPost, "/chat", nil, nil, `{"message":"  "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "EMPTY_MESSAGE") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestStatusReflectsUsage(t *testing.T) {
	f := newTestRouter(t, 20)

	first := perform(f.handler, http.MethodPost, "/chat", nil, nil, `{"message":"Tell me about Eric"}`)
	cookie := sessionCookie(t, first)

	rr := perform(f.handler, http.MethodGet, "/status", nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	data := decodeData(t, rr)
	if data["query_count"].(float64) != 1 || data["queries_remaining"].(float64) != 19 {
		t.Fatalf("status = %+v", data)
	}
	if data["max_queries"].(float64) != 20 {
		t.Fatalf("max_queries = %v", data["max_queries"])
	}
}

func TestVetReturnsFit(t *testing.T) {
	f := newTestRouter(t, 20)
	rr := perform(f.handler, http.MethodPost, "/vet", nil, nil, `{"job_description":"Platform engineer, Go, Kubernetes"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["fit_score"].(float64) != 77 {
		t.Fatalf("fit_score = %v", data["fit_score"])
	}
}

func TestAdminRequiresKey(t *testing.T) {
	f := newTestRouter(t, 20)

	rr := perform(f.handler, http.MethodGet, "/admin/extension-requests", nil, nil, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("no key: expected 403, got %d", rr.Code)
	}

	rr = perform(f.handler, http.MethodGet, "/admin/extension-requests",
		map[string]string{"X-Admin-Key": "wrong"}, nil, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong key: expected 403, got %d", rr.Code)
	}

	rr = perform(f.handler, http.MethodGet, "/admin/extension-requests",
		map[string]string{"X-Admin-Key": testAdminKey}, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("valid key: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestExtensionLifecycleOverHTTP(t *testing.T) {
	f := newTestRouter(t, 1)
	adminHeaders := map[string]string{"X-Admin-Key": testAdminKey}

	// Use up the single allowed query.
	first := perform(f.handler, http.MethodPost, "/chat", nil, nil, `{"message":"Tell me about Eric"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first chat: %d", first.Code)
	}
	cookie := sessionCookie(t, first)
	cookies := []*http.Cookie{cookie}

	// At the limit without an email: 429 telling the user how to ask.
	rr := perform(f.handler, http.MethodPost, "/chat", nil, cookies, `{"message":"more please"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("post-limit chat: expected 429, got %d", rr.Code)
	}
	code, details := decodeErrorDetails(t, rr)
	if code != "limit_reached" {
		t.Fatalf("error code = %q", code)
	}
	if details["extension_requested"] != false {
		t.Fatalf("extension_requested without email: %+v", details)
	}
	if !strings.Contains(details["response"].(string), "email") {
		t.Fatalf("reply = %v", details["response"])
	}

	// Submit the email: still 429, but tagged as a recorded request.
	rr = perform(f.handler, http.MethodPost, "/chat", nil, cookies, `{"message":"reach me at user@example.com"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("submission: expected 429, got %d", rr.Code)
	}
	code, details = decodeErrorDetails(t, rr)
	if code != "limit_reached" || details["extension_requested"] != true {
		t.Fatalf("submission not tagged: code=%q details=%+v", code, details)
	}

	// Admin sees the pending request.
	rr = perform(f.handler, http.MethodGet, "/admin/extension-requests", adminHeaders, nil, "")
	var pendingEnv struct {
		Data struct {
			Requests []domain.ExtensionRequest `json:"requests"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&pendingEnv); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(pendingEnv.Data.Requests) != 1 {
		t.Fatalf("pending = %+v", pendingEnv.Data.Requests)
	}
	requestID := pendingEnv.Data.Requests[0].RequestID

	// Approve 5 extra queries.
	rr = perform(f.handler, http.MethodPost, "/admin/approve-extension", adminHeaders, nil,
		`{"request_id":"`+requestID+`","queries_granted":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: %d body=%s", rr.Code, rr.Body.String())
	}

	// The session can chat again immediately.
	rr = perform(f.handler, http.MethodPost, "/chat", nil, cookies, `{"message":"Thanks! What else has Eric done?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("post-approval chat: %d body=%s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["max_queries"].(float64) != 6 {
		t.Fatalf("max_queries = %v, want 6", data["max_queries"])
	}
	if data["queries_remaining"].(float64) != 4 {
		t.Fatalf("queries_remaining = %v, want 4", data["queries_remaining"])
	}
}

func TestApproveUnknownRequestIs404(t *testing.T) {
	f := newTestRouter(t, 20)
	rr := perform(f.handler, http.MethodPost, "/admin/approve-extension",
		map[string]string{"X-Admin-Key": testAdminKey}, nil, `{"request_id":"missing_1"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdminResetClearsCount(t *testing.T) {
	f := newTestRouter(t, 20)

	first := perform(f.handler, http.MethodPost, "/chat", nil, nil, `{"message":"Tell me about Eric"}`)
	cookie := sessionCookie(t, first)

	rr := perform(f.handler, http.MethodGet, "/admin/reset?session_id="+cookie.Value,
		map[string]string{"X-Admin-Key": testAdminKey}, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: %d", rr.Code)
	}
	data := decodeData(t, rr)
	if data["previous_count"].(float64) != 1 {
		t.Fatalf("previous_count = %v", data["previous_count"])
	}

	status := perform(f.handler, http.MethodGet, "/status", nil, []*http.Cookie{cookie}, "")
	if d := decodeData(t, status); d["query_count"].(float64) != 0 {
		t.Fatalf("count after reset = %v", d["query_count"])
	}
}

func TestUnconfiguredAdminKeyDisablesSurface(t *testing.T) {
	dir := t.TempDir()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewStore(client, "test", time.Hour)
	grants := repository.NewApprovalRepository(dir)
	usage := repository.NewUsageRepository(dir)
	interactions := repository.NewInteractionRepository(dir)
	quota := service.NewQuotaService(grants, 20)
	extensions := service.NewExtensionService(repository.NewExtensionRepository(dir), grants, sessions,
		service.NewSubmissionGuard(client, "test"), noopNotifier{}, logger)
	chat := service.NewChatService(sessions, quota, extensions,
		&stubAssistant{scope: domain.ScopeIn, reply: "ok"}, usage, interactions, logger, 500, 5000)

	h := NewRouter(Dependencies{
		ChatHandler:     handler.NewChatHandler(chat, quota, sessions, logger),
		AdminHandler:    handler.NewAdminHandler(extensions, sessions, usage, interactions, logger),
		AdminKey:        "",
		SessionTTL:      time.Hour,
		APIRateLimitRPM: 1000,
	})

	rr := perform(h, http.MethodGet, "/admin/extension-requests",
		map[string]string{"X-Admin-Key": "anything"}, nil, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with no configured key, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ADMIN_NOT_CONFIGURED") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestAdminDatasetFilteredQuery(t *testing.T) {
	f := newTestRouter(t, 20)
	adminHeaders := map[string]string{"X-Admin-Key": testAdminKey}

	if err := f.interactions.Append("sess1", "What does Eric do?", "He builds platforms.", false); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := f.interactions.Append("sess1", "What's the weather?", "refused", true); err != nil {
		t.Fatalf("append filtered: %v", err)
	}

	rr := perform(f.handler, http.MethodGet, "/admin/dataset?filtered=true", adminHeaders, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("dataset filtered=true: %d body=%s", rr.Code, rr.Body.String())
	}
	var env struct {
		Data repository.DatasetPage `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode dataset: %v", err)
	}
	if env.Data.Total != 1 || !env.Data.Entries[0].FilteredPreLLM {
		t.Fatalf("filtered page = %+v", env.Data)
	}

	rr = perform(f.handler, http.MethodGet, "/admin/dataset?filtered=false", adminHeaders, nil, "")
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode dataset: %v", err)
	}
	if env.Data.Total != 1 || env.Data.Entries[0].FilteredPreLLM {
		t.Fatalf("unfiltered page = %+v", env.Data)
	}

	rr = perform(f.handler, http.MethodGet, "/admin/dataset?filtered=maybe", adminHeaders, nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("dataset filtered=maybe: expected 400, got %d", rr.Code)
	}
}
