package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibescan/api/internal/app"
	"github.com/vibescan/api/pkg/apierror"
	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/logger"
	"github.com/vibescan/api/pkg/validator"
)

// FindingHandler handles per-finding workflow operations.
type FindingHandler struct {
	findings  *app.FindingService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewFindingHandler creates a new FindingHandler.
func NewFindingHandler(findings *app.FindingService, v *validator.Validator, log *logger.Logger) *FindingHandler {
	return &FindingHandler{
		findings:  findings,
		validator: v,
		logger:    log.With("handler", "finding"),
	}
}

// UpdateStatusRequest is the body for changing a finding's workflow
// status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open fixed ignored false_positive other"`
}

// FeedbackRequest is the body for false-positive feedback.
type FeedbackRequest struct {
	UserVerdict string `json:"user_verdict" validate:"required,fp_verdict"`
	Note        string `json:"note" validate:"max=2000"`
}

// FeedbackResponse acknowledges recorded feedback.
type FeedbackResponse struct {
	ID        string    `json:"id"`
	FindingID string    `json:"finding_id"`
	Verdict   string    `json:"verdict"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateStatus sets the workflow status of one finding.
func (h *FindingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}
	findingID, ok := pathID(w, r, chi.URLParam(r, "id"), "finding id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	if err := h.findings.UpdateFindingStatus(r.Context(), userID, findingID, finding.Status(req.Status)); err != nil {
		handleServiceError(w, r, h.logger, "Finding", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// SubmitFeedback records a user verdict on a finding's false-positive
// classification.
func (h *FindingHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}
	findingID, ok := pathID(w, r, chi.URLParam(r, "id"), "finding id")
	if !ok {
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	fb, err := h.findings.SubmitFeedback(r.Context(), userID, findingID, req.UserVerdict, req.Note)
	if err != nil {
		handleServiceError(w, r, h.logger, "Finding", err)
		return
	}

	respondJSON(w, http.StatusCreated, FeedbackResponse{
		ID:        fb.ID.String(),
		FindingID: fb.FindingID.String(),
		Verdict:   string(fb.Verdict),
		CreatedAt: fb.CreatedAt,
	})
}
