package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/api/handler/dto"
	"greenloan-engine/internal/domain/application"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/pkg/apperrors"
)

type ApplicationHandler struct {
	service application.ApplicationService
	logger  *slog.Logger
}

func NewApplicationHandler(s application.ApplicationService, l *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: s,
		logger:  l.With("component", "ApplicationHandler"),
	}
}

// SubmitApplication files a new loan application for the caller.
//
// @Summary Submit a loan application
// @Description Requires verified KYC. The requested amount is validated against the loan type's limit and the income rule.
// @Tags Applications
// @Accept json
// @Produce json
// @Param request body dto.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} dto.ApplicationResponse "Application submitted"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 403 {object} dto.ErrorResponse "KYC not verified"
// @Router /applications [post]
// @Security BearerAuth
func (h *ApplicationHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.SubmitApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	monthlyIncome, _ := decimal.NewFromString(req.MonthlyIncome)

	created, err := h.service.SubmitApplication(r.Context(), application.SubmitApplicationInput{
		ApplicantID:       caller,
		LoanTypeID:        req.LoanTypeID,
		Amount:            amount,
		DurationMonths:    req.DurationMonths,
		Purpose:           req.Purpose,
		MonthlyIncome:     monthlyIncome,
		Address:           req.Address,
		CitizenshipNumber: req.CitizenshipNumber,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewApplicationResponse(created, true))
}

// GetApplication retrieves one application.
//
// @Summary Retrieve application details
// @Tags Applications
// @Produce json
// @Param applicationID path int true "Application ID"
// @Success 200 {object} dto.ApplicationResponse "Application details"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{applicationID} [get]
// @Security BearerAuth
func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicationID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewApplicationResponse(app, false))
}

// ListMyApplications lists the caller's applications.
//
// @Summary List the caller's applications
// @Tags Applications
// @Produce json
// @Success 200 {array} dto.ApplicationResponse "Applications"
// @Router /applications [get]
// @Security BearerAuth
func (h *ApplicationHandler) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	apps, err := h.service.ListApplicationsByApplicant(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.ApplicationResponse, len(apps))
	for i, app := range apps {
		resp[i] = dto.NewApplicationResponse(app, false)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetStatusHistory returns the application's full audit trail.
//
// @Summary Retrieve application status history
// @Tags Applications
// @Produce json
// @Param applicationID path int true "Application ID"
// @Success 200 {array} dto.StatusChangeResponse "Status history"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{applicationID}/history [get]
// @Security BearerAuth
func (h *ApplicationHandler) GetStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicationID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	history, err := h.service.GetStatusHistory(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.StatusChangeResponse, len(history))
	for i, c := range history {
		resp[i] = dto.NewStatusChangeResponse(c)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListDocuments lists all documents attached to an application.
//
// @Summary List application documents
// @Tags Applications
// @Produce json
// @Param applicationID path int true "Application ID"
// @Success 200 {array} dto.DocumentResponse "Documents"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{applicationID}/documents [get]
// @Security BearerAuth
func (h *ApplicationHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicationID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	docs, err := h.service.GetDocuments(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.DocumentResponse, len(docs))
	for i, d := range docs {
		resp[i] = dto.NewDocumentResponse(d)
	}
	respondJSON(w, http.StatusOK, resp)
}

// UploadDocument attaches a file to a required or requested document slot.
//
// @Summary Upload an application document
// @Description Uploading the last outstanding officer-requested document automatically advances the application to info_provided.
// @Tags Applications
// @Accept json
// @Produce json
// @Param applicationID path int true "Application ID"
// @Param request body dto.UploadDocumentRequest true "Document payload"
// @Success 201 {object} dto.DocumentResponse "Document stored"
// @Failure 400 {object} dto.ErrorResponse "Invalid document type"
// @Failure 403 {object} dto.ErrorResponse "Caller is not the applicant"
// @Router /applications/{applicationID}/documents [post]
// @Security BearerAuth
func (h *ApplicationHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicationID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.UploadDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	doc, err := h.service.UploadDocument(r.Context(), id, caller, catalog.DocumentType(req.DocumentType), req.FileName)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewDocumentResponse(doc))
}

// RequestDocuments asks the applicant for additional documents. Officer only.
//
// @Summary Request additional documents
// @Tags Applications
// @Accept json
// @Produce json
// @Param applicationID path int true "Application ID"
// @Param request body dto.RequestDocumentsRequest true "Requested document types"
// @Success 200 {object} map[string]string "Documents requested"
// @Failure 403 {object} dto.ErrorResponse "Caller is not an officer"
// @Failure 409 {object} dto.ErrorResponse "Transition not allowed from current status"
// @Router /applications/{applicationID}/documents/request [post]
// @Security BearerAuth
func (h *ApplicationHandler) RequestDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicationID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.RequestDocumentsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.RequestAdditionalDocuments(r.Context(), id, caller, req.Types(), req.Note); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Additional documents requested"})
}

// ReviewDocument verifies or rejects an uploaded document. Officer only.
//
// @Summary Review an uploaded document
// @Tags Applications
// @Accept json
// @Produce json
// @Param documentID path int true "Document ID"
// @Param request body dto.ReviewDocumentRequest true "Review decision"
// @Success 200 {object} map[string]string "Document reviewed"
// @Failure 403 {object} dto.ErrorResponse "Caller is not an officer"
// @Failure 409 {object} dto.ErrorResponse "Document has no uploaded file"
// @Router /documents/{documentID}/review [post]
// @Security BearerAuth
func (h *ApplicationHandler) ReviewDocument(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "documentID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.ReviewDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.ReviewDocument(r.Context(), id, caller, req.Approve); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Document reviewed"})
}

// Transition moves an application through the review workflow.
//
// @Summary Apply a workflow transition
// @Description Officer-driven transitions require an officer token; approval creates the loan and its repayment schedule atomically.
// @Tags Applications
// @Accept json
// @Produce json
// @Param applicationID path int true "Application ID"
// @Param request body dto.TransitionRequest true "Target status and note"
// @Success 200 {object} dto.ApplicationResponse "Application after the transition"
// @Failure 403 {object} dto.ErrorResponse "Actor may not drive this transition"
// @Failure 409 {object} dto.ErrorResponse "Transition not allowed from current status"
// @Router /applications/{applicationID}/transition [post]
// @Security BearerAuth
func (h *ApplicationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicationID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	app, err := h.service.Transition(r.Context(), id, application.Status(req.Target), caller, req.Note)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewApplicationResponse(app, true))
}
