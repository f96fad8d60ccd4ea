package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibescan/api/internal/app"
	"github.com/vibescan/api/internal/app/report"
	"github.com/vibescan/api/pkg/apierror"
	"github.com/vibescan/api/pkg/domain/scan"
	"github.com/vibescan/api/pkg/domain/shared"
	"github.com/vibescan/api/pkg/logger"
	"github.com/vibescan/api/pkg/validator"
)

// ScanHandler handles scan creation and scan reads.
type ScanHandler struct {
	scans     *app.ScanService
	findings  *app.FindingService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(scans *app.ScanService, findings *app.FindingService, v *validator.Validator, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		scans:     scans,
		findings:  findings,
		validator: v,
		logger:    log.With("handler", "scan"),
	}
}

// CreateScanRequest is the JSON body for a git-sourced scan.
type CreateScanRequest struct {
	ProjectName string `json:"project_name" validate:"required,min=1,max=200"`
	GitURL      string `json:"git_url" validate:"required,url"`
}

// ScanResponse is the scan representation served to clients.
type ScanResponse struct {
	ID            string     `json:"id"`
	ProjectName   string     `json:"project_name"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	FindingsCount int        `json:"findings_count"`
	Failure       string     `json:"failure,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CreateScanResponse bundles the scan with its normalized report.
type CreateScanResponse struct {
	Scan     ScanResponse        `json:"scan"`
	Findings []report.Normalized `json:"findings"`
}

// CreateScan runs the full pipeline for an uploaded archive
// (multipart/form-data with a "project" file) or a git URL (JSON
// body). The report comes back in the response; progress events also
// stream over the scan's websocket channel.
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	var result *app.ScanResult
	var err error

	if isMultipart(r) {
		result, err = h.createFromUpload(w, r, userID)
	} else {
		result, err = h.createFromGit(w, r, userID)
	}
	if result == nil && err == nil {
		return // request error already written
	}
	if err != nil {
		handleServiceError(w, r, h.logger, "Scan", err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateScanResponse{
		Scan:     toScanResponse(result.Scan),
		Findings: result.Findings,
	})
}

func (h *ScanHandler) createFromUpload(w http.ResponseWriter, r *http.Request, userID shared.ID) (*app.ScanResult, error) {
	file, header, err := r.FormFile("project")
	if err != nil {
		writeError(w, r, apierror.BadRequest("Missing project archive"))
		return nil, nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apierror.BadRequest("Failed to read project archive"))
		return nil, nil
	}

	projectName := r.FormValue("project_name")
	if projectName == "" {
		projectName = header.Filename
	}

	return h.scans.CreateScanFromArchive(r.Context(), userID, projectName, bytes.NewReader(data), int64(len(data)))
}

func (h *ScanHandler) createFromGit(w http.ResponseWriter, r *http.Request, userID shared.ID) (*app.ScanResult, error) {
	var req CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return nil, nil
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, r, err)
		return nil, nil
	}

	return h.scans.CreateScanFromGit(r.Context(), userID, req.ProjectName, req.GitURL)
}

// ListScans returns the user's scans, newest first.
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	scans, err := h.findings.ListScans(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, h.logger, "Scan", err)
		return
	}

	out := make([]ScanResponse, len(scans))
	for i, sc := range scans {
		out[i] = toScanResponse(sc)
	}
	respondJSON(w, http.StatusOK, map[string]any{"scans": out})
}

// GetScan returns one scan.
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}
	scanID, ok := pathID(w, r, chi.URLParam(r, "id"), "scan id")
	if !ok {
		return
	}

	sc, err := h.findings.GetScan(r.Context(), userID, scanID)
	if err != nil {
		handleServiceError(w, r, h.logger, "Scan", err)
		return
	}

	respondJSON(w, http.StatusOK, toScanResponse(sc))
}

// ListFindings returns one scan's normalized findings.
func (h *ScanHandler) ListFindings(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}
	scanID, ok := pathID(w, r, chi.URLParam(r, "id"), "scan id")
	if !ok {
		return
	}

	findings, err := h.findings.ListFindings(r.Context(), userID, scanID)
	if err != nil {
		handleServiceError(w, r, h.logger, "Scan", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"findings": findings})
}

func toScanResponse(sc *scan.Scan) ScanResponse {
	return ScanResponse{
		ID:            sc.ID().String(),
		ProjectName:   sc.ProjectName(),
		Source:        string(sc.Source()),
		Status:        string(sc.Status()),
		FindingsCount: sc.FindingsCount(),
		Failure:       sc.Failure(),
		CreatedAt:     sc.CreatedAt(),
		CompletedAt:   sc.CompletedAt(),
	}
}

func isMultipart(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return len(contentType) >= 19 && contentType[:19] == "multipart/form-data"
}
