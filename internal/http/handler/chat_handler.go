package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/polymorphcorp/profilegpt/internal/http/middleware"
	"github.com/polymorphcorp/profilegpt/internal/http/response"
	"github.com/polymorphcorp/profilegpt/internal/llm"
	"github.com/polymorphcorp/profilegpt/internal/service"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

type ChatHandler struct {
	chat     *service.ChatService
	quota    *service.QuotaService
	sessions *session.Store
	logger   *slog.Logger
}

func NewChatHandler(chat *service.ChatService, quota *service.QuotaService, sessions *session.Store, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, quota: quota, sessions: sessions, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
}

type vetRequest struct {
	JobDescription string `json:"job_description"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with a message field", nil)
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.chat.Handle(r.Context(), sessionID, req.Message)
	if err != nil {
		h.writeChatError(w, r, err)
		return
	}

	if result.LimitReached {
		response.Error(w, r, http.StatusTooManyRequests, "limit_reached", result.Reply, map[string]any{
			"response":            result.Reply,
			"extension_requested": result.ExtensionRequested,
			"query_count":         result.QueryCount,
			"max_queries":         result.QueryLimit,
			"queries_remaining":   0,
		})
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]any{
		"response":          result.Reply,
		"query_count":       result.QueryCount,
		"max_queries":       result.QueryLimit,
		"queries_remaining": remainingQueries(result.QueryCount, result.QueryLimit),
	})
}

// Vet handles POST /vet.
func (h *ChatHandler) Vet(w http.ResponseWriter, r *http.Request) {
	var req vetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with a job_description field", nil)
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.chat.Vet(r.Context(), sessionID, req.JobDescription)
	if err != nil {
		h.writeChatError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]any{
		"fit_score":         result.Fit.FitScore,
		"summary":           result.Fit.Summary,
		"strengths":         result.Fit.Strengths,
		"gaps":              result.Fit.Gaps,
		"query_count":       result.QueryCount,
		"max_queries":       result.QueryLimit,
		"queries_remaining": remainingQueries(result.QueryCount, result.QueryLimit),
	})
}

// Status handles GET /status.
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	count, err := h.sessions.QueryCount(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("session store unavailable", "error", err)
		response.Error(w, r, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "session store unavailable", nil)
		return
	}
	limit := h.quota.EffectiveLimit(sessionID)
	requested, _, err := h.sessions.ExtensionRequested(r.Context(), sessionID)
	if err != nil {
		h.logger.Warn("extension marker read failed", "error", err, "session_id", sessionID)
	}

	response.JSON(w, r, http.StatusOK, map[string]any{
		"session_id":          sessionID,
		"query_count":         count,
		"max_queries":         limit,
		"queries_remaining":   remainingQueries(count, limit),
		"extension_requested": requested,
	})
}

func remainingQueries(count, limit int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		response.Error(w, r, http.StatusBadRequest, "EMPTY_MESSAGE", "message must not be empty", nil)
	case errors.Is(err, service.ErrMessageTooLong):
		response.Error(w, r, http.StatusBadRequest, "MESSAGE_TOO_LONG", "message exceeds the maximum length", nil)
	case errors.Is(err, service.ErrInvalidMessage):
		response.Error(w, r, http.StatusBadRequest, "INVALID_MESSAGE", "message contains no usable content", nil)
	case errors.Is(err, llm.ErrNotConfigured):
		response.Error(w, r, http.StatusServiceUnavailable, "LLM_NOT_CONFIGURED", "assistant is not configured", nil)
	default:
		h.logger.Error("chat request failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
	}
}
