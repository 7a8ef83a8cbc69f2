package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/auth"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/logger"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/middleware"
	"github.com/pesio-ai/be-mt-approvals/internal/repository"
	"github.com/pesio-ai/be-mt-approvals/internal/service"
)

const maxBodyBytes = 1 << 20

// ApprovalAPI is the part of service.ApprovalService the transports need.
type ApprovalAPI interface {
	FetchApprovalContext(ctx context.Context, reportID, userID string) (*service.ApprovalContext, error)
	SubmitDecision(ctx context.Context, req *service.SubmitDecisionRequest) (*service.DecisionResult, error)
	SaveReportResults(ctx context.Context, req *service.SaveResultsRequest) error
	EditAndMark(ctx context.Context, req *service.SaveResultsRequest) (*service.ApprovalContext, error)
	FetchCurrentUser(ctx context.Context, userID string) (*repository.User, error)
	ListPendingForUser(ctx context.Context, userID string) ([]service.PendingApproval, error)
	GetActivity(ctx context.Context, reportID string) ([]*repository.ActivityEntry, error)
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	service ApprovalAPI
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(service ApprovalAPI, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		log:     log.Component("http"),
	}
}

// RegisterRoutes mounts the API routes on mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/me", h.GetCurrentUser)
	mux.HandleFunc("/api/v1/reports/approval", h.GetApprovalContext)
	mux.HandleFunc("/api/v1/reports/decision", h.SubmitDecision)
	mux.HandleFunc("/api/v1/reports/results", h.SaveResults)
	mux.HandleFunc("/api/v1/reports/edit", h.EditAndMark)
	mux.HandleFunc("/api/v1/reports/activity", h.GetActivity)
	mux.HandleFunc("/api/v1/approvals/pending", h.ListPending)
}

// userID extracts the authenticated user ID from context, or returns empty string.
func userID(ctx context.Context) string {
	if uc, err := auth.GetUserContext(ctx); err == nil {
		return uc.UserID
	}
	return ""
}

// GetCurrentUser handles GET /api/v1/me
func (h *HTTPHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := h.service.FetchCurrentUser(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch current user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetApprovalContext handles GET /api/v1/reports/approval?id=
func (h *HTTPHandler) GetApprovalContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reportID := r.URL.Query().Get("id")
	if reportID == "" {
		http.Error(w, "Report ID is required", http.StatusBadRequest)
		return
	}

	ac, err := h.service.FetchApprovalContext(r.Context(), reportID, userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch approval context")
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

type decisionBody struct {
	ReportID   string `json:"report_id"`
	StepNumber int    `json:"step_number"`
	Action     string `json:"action"`
	Comment    string `json:"comment"`
}

func (b decisionBody) toRequest(actedBy string) (*service.SubmitDecisionRequest, error) {
	if b.ReportID == "" {
		return nil, errors.InvalidInput("report_id", "report id is required")
	}
	if b.StepNumber < 1 {
		return nil, errors.InvalidInput("step_number", "step number must be positive")
	}
	action, err := approval.ParseAction(b.Action)
	if err != nil {
		return nil, errors.InvalidInput("action", err.Error())
	}
	return &service.SubmitDecisionRequest{
		ReportID:   b.ReportID,
		StepNumber: b.StepNumber,
		Action:     action,
		Comment:    b.Comment,
		ActedBy:    actedBy,
	}, nil
}

// SubmitDecision handles POST /api/v1/reports/decision
func (h *HTTPHandler) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body decisionBody
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req, err := body.toRequest(userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "Invalid decision request")
		return
	}

	res, err := h.service.SubmitDecision(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, "Failed to submit decision")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type resultsBody struct {
	ReportID string `json:"report_id"`
	Results  []struct {
		ItemID string `json:"item_id"`
		Result string `json:"result"`
		Notes  string `json:"notes"`
	} `json:"results"`
}

func (b resultsBody) toRequest(uid string) (*service.SaveResultsRequest, error) {
	if b.ReportID == "" {
		return nil, errors.InvalidInput("report_id", "report id is required")
	}
	req := &service.SaveResultsRequest{ReportID: b.ReportID, UserID: uid}
	for _, in := range b.Results {
		res, ok := repository.ParseItemResult(in.Result)
		if !ok {
			return nil, errors.InvalidInput("results", "result must be MS or TMS: "+in.Result)
		}
		req.Results = append(req.Results, repository.ItemResultUpdate{ItemID: in.ItemID, Result: res, Notes: in.Notes})
	}
	return req, nil
}

// SaveResults handles POST /api/v1/reports/results
func (h *HTTPHandler) SaveResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body resultsBody
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req, err := body.toRequest(userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "Invalid results request")
		return
	}

	if err := h.service.SaveReportResults(r.Context(), req); err != nil {
		h.writeError(w, r, err, "Failed to save report results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// EditAndMark handles POST /api/v1/reports/edit
func (h *HTTPHandler) EditAndMark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body resultsBody
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req, err := body.toRequest(userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "Invalid edit request")
		return
	}

	ac, err := h.service.EditAndMark(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, "Failed to edit report")
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

// ListPending handles GET /api/v1/approvals/pending
func (h *HTTPHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pending, err := h.service.ListPendingForUser(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "Failed to list pending approvals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending": pending,
		"total":   len(pending),
	})
}

// GetActivity handles GET /api/v1/reports/activity?id=
func (h *HTTPHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reportID := r.URL.Query().Get("id")
	if reportID == "" {
		http.Error(w, "Report ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetActivity(r.Context(), reportID)
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch activity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError logs err once and writes it as a JSON error document.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := errors.HTTPStatus(err)
	ev := h.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).
		Str("request_id", middleware.RequestIDFrom(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg(msg)

	body := &errors.AppError{Code: errors.CodeOf(err), Message: err.Error()}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		body.Field = appErr.Field
		body.Message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		body.Message = "internal error"
	}
	writeJSON(w, status, map[string]interface{}{"error": body})
}
