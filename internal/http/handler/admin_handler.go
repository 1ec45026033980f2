package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/http/middleware"
	"github.com/polymorphcorp/profilegpt/internal/http/response"
	"github.com/polymorphcorp/profilegpt/internal/observability"
	"github.com/polymorphcorp/profilegpt/internal/repository"
	"github.com/polymorphcorp/profilegpt/internal/service"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

const defaultQueriesGranted = 10

type AdminHandler struct {
	extensions   *service.ExtensionService
	sessions     *session.Store
	usage        repository.UsageRepository
	interactions repository.InteractionRepository
	logger       *slog.Logger
}

func NewAdminHandler(
	extensions *service.ExtensionService,
	sessions *session.Store,
	usage repository.UsageRepository,
	interactions repository.InteractionRepository,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		extensions:   extensions,
		sessions:     sessions,
		usage:        usage,
		interactions: interactions,
		logger:       logger,
	}
}

// Reset handles GET /admin/reset: it zeroes a session's query count.
// Without a session_id parameter it resets the caller's own session.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = middleware.GetSessionID(r.Context())
	}

	previous, err := h.sessions.Reset(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("session reset failed", "error", err, "session_id", sessionID)
		response.Error(w, r, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "session store unavailable", nil)
		return
	}

	observability.Audit(r, "admin.session.reset", "session_id", sessionID, "previous_count", previous)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"session_id":     sessionID,
		"previous_count": previous,
	})
}

// Dataset handles GET /admin/dataset: the interaction log, filterable and
// paginated, newest first.
func (h *AdminHandler) Dataset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := repository.InteractionQuery{SessionID: q.Get("session_id")}

	if date := q.Get("date"); date != "" {
		if !repository.ValidateDateToken(date) {
			response.Error(w, r, http.StatusBadRequest, "INVALID_DATE",
				"date must be YYMMDD, today or yesterday", nil)
			return
		}
		resolved := repository.ResolveDateToken(date, timeNow())
		query.StartDate = resolved
		query.EndDate = resolved
	} else {
		query.StartDate = q.Get("start_date")
		query.EndDate = q.Get("end_date")
	}

	if v := q.Get("filtered"); v != "" {
		filtered, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "INVALID_FILTER", "filtered must be true or false", nil)
			return
		}
		query.Filtered = strconv.FormatBool(filtered)
	}
	query.Limit, _ = strconv.Atoi(q.Get("limit"))
	query.Offset, _ = strconv.Atoi(q.Get("offset"))

	page, err := h.interactions.List(query)
	if err != nil {
		h.logger.Error("dataset read failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "DATASET_READ_FAILED", "could not read the interaction log", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

// ExtensionRequests handles GET /admin/extension-requests.
func (h *AdminHandler) ExtensionRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = domain.StatusPending
	}
	if !domain.ValidStatusFilter(status) {
		response.Error(w, r, http.StatusBadRequest, "INVALID_STATUS",
			"status must be pending, approved, denied or all", nil)
		return
	}

	requests, err := h.extensions.List(status)
	if err != nil {
		h.logger.Error("extension ledger read failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "LEDGER_READ_FAILED", "could not read the extension ledger", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"requests": requests,
		"count":    len(requests),
	})
}

type approveRequest struct {
	RequestID      string `json:"request_id"`
	QueriesGranted int    `json:"queries_granted"`
}

type denyRequest struct {
	RequestID string `json:"request_id"`
}

// ApproveExtension handles POST /admin/approve-extension.
func (h *AdminHandler) ApproveExtension(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
		response.Error(w, r, http.StatusBadRequest, "INVALID_BODY", "request_id is required", nil)
		return
	}
	if req.QueriesGranted == 0 {
		req.QueriesGranted = defaultQueriesGranted
	}
	if req.QueriesGranted < 0 {
		response.Error(w, r, http.StatusBadRequest, "INVALID_GRANT", "queries_granted must be positive", nil)
		return
	}

	rec, err := h.extensions.Approve(r.Context(), req.RequestID, req.QueriesGranted)
	if err != nil {
		h.writeDecisionError(w, r, err)
		return
	}

	observability.Audit(r, "admin.extension.approved",
		"request_id", rec.RequestID, "session_id", rec.SessionID, "queries_granted", req.QueriesGranted)
	response.JSON(w, r, http.StatusOK, rec)
}

// DenyExtension handles POST /admin/deny-extension.
func (h *AdminHandler) DenyExtension(w http.ResponseWriter, r *http.Request) {
	var req denyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
		response.Error(w, r, http.StatusBadRequest, "INVALID_BODY", "request_id is required", nil)
		return
	}

	rec, err := h.extensions.Deny(r.Context(), req.RequestID)
	if err != nil {
		h.writeDecisionError(w, r, err)
		return
	}

	observability.Audit(r, "admin.extension.denied",
		"request_id", rec.RequestID, "session_id", rec.SessionID)
	response.JSON(w, r, http.StatusOK, rec)
}

// Usage handles GET /admin/usage: per-call records plus aggregates.
func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.UsageFilter{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		SessionID: q.Get("session_id"),
	}

	records, err := h.usage.List(filter)
	if err != nil {
		h.logger.Error("usage ledger read failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "LEDGER_READ_FAILED", "could not read the usage ledger", nil)
		return
	}

	payload := map[string]any{
		"stats":   repository.CalculateUsageStats(records),
		"records": records,
	}
	if top, _ := strconv.Atoi(q.Get("top")); top > 0 {
		sessions, err := h.usage.TopSessions(top, 30)
		if err != nil {
			h.logger.Warn("top sessions aggregation failed", "error", err)
		} else {
			payload["top_sessions"] = sessions
		}
	}
	response.JSON(w, r, http.StatusOK, payload)
}

func (h *AdminHandler) writeDecisionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrRequestNotFound) {
		response.Error(w, r, http.StatusNotFound, "REQUEST_NOT_FOUND", "no extension request with that id", nil)
		return
	}
	h.logger.Error("extension decision failed", "error", err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
}
