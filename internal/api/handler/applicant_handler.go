package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"greenloan-engine/internal/api/handler/dto"
	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/domain/credit"
	"greenloan-engine/internal/pkg/apperrors"
)

type ApplicantHandler struct {
	service       applicant.ApplicantService
	creditService credit.CreditService
	logger        *slog.Logger
}

func NewApplicantHandler(s applicant.ApplicantService, cs credit.CreditService, l *slog.Logger) *ApplicantHandler {
	return &ApplicantHandler{
		service:       s,
		creditService: cs,
		logger:        l.With("component", "ApplicantHandler"),
	}
}

// CreateApplicant registers a new portal user.
//
// @Summary Register an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param request body dto.CreateApplicantRequest true "Applicant registration payload"
// @Success 201 {object} dto.ApplicantResponse "Applicant successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applicants [post]
func (h *ApplicantHandler) CreateApplicant(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateApplicantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.CreateApplicant(r.Context(), req.FullName, req.Email, req.Phone)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewApplicantResponse(created))
}

// GetApplicant retrieves an applicant by ID.
//
// @Summary Retrieve applicant details
// @Tags Applicants
// @Produce json
// @Param applicantID path int true "Applicant ID"
// @Success 200 {object} dto.ApplicantResponse "Applicant details"
// @Failure 404 {object} dto.ErrorResponse "Applicant not found"
// @Router /applicants/{applicantID} [get]
// @Security BearerAuth
func (h *ApplicantHandler) GetApplicant(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicantID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	a, err := h.service.GetApplicant(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewApplicantResponse(a))
}

// SubmitKYC marks the caller's KYC documents as submitted for review.
//
// @Summary Submit KYC for review
// @Tags Applicants
// @Produce json
// @Param applicantID path int true "Applicant ID"
// @Success 200 {object} map[string]string "KYC submitted"
// @Failure 403 {object} dto.ErrorResponse "Not the applicant"
// @Failure 409 {object} dto.ErrorResponse "KYC already verified"
// @Router /applicants/{applicantID}/kyc/submit [post]
// @Security BearerAuth
func (h *ApplicantHandler) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicantID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if caller != id {
		respondError(w, fmt.Errorf("%w: KYC can only be submitted for your own account", apperrors.ErrForbidden))
		return
	}

	if err := h.service.SubmitKYC(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "KYC submitted for review"})
}

// ReviewKYC verifies or rejects a submitted KYC. Officer only.
//
// @Summary Review a submitted KYC
// @Tags Applicants
// @Accept json
// @Produce json
// @Param applicantID path int true "Applicant ID"
// @Param request body dto.ReviewKYCRequest true "Review decision"
// @Success 200 {object} map[string]string "KYC reviewed"
// @Failure 403 {object} dto.ErrorResponse "Caller is not an officer"
// @Failure 409 {object} dto.ErrorResponse "KYC not awaiting review"
// @Router /applicants/{applicantID}/kyc/review [post]
// @Security BearerAuth
func (h *ApplicantHandler) ReviewKYC(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicantID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.ReviewKYCRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	reviewer, err := h.service.GetApplicant(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.ReviewKYC(r.Context(), id, reviewer, req.Approve); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "KYC reviewed"})
}

// GetCreditScore returns the applicant's current credit score.
//
// @Summary Retrieve an applicant's credit score
// @Tags Applicants
// @Produce json
// @Param applicantID path int true "Applicant ID"
// @Success 200 {object} dto.CreditScoreResponse "Credit score"
// @Failure 403 {object} dto.ErrorResponse "Not permitted"
// @Router /applicants/{applicantID}/credit-score [get]
// @Security BearerAuth
func (h *ApplicantHandler) GetCreditScore(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "applicantID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	// A customer may only read their own score; officers may read any.
	if caller != id {
		reviewer, err := h.service.GetApplicant(r.Context(), caller)
		if err != nil {
			respondError(w, err)
			return
		}
		if !reviewer.Role.IsOfficer() {
			respondError(w, fmt.Errorf("%w: cannot read another applicant's credit score", apperrors.ErrForbidden))
			return
		}
	}

	score, err := h.creditService.GetScore(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := dto.CreditScoreResponse{
		UserID: strconv.FormatInt(score.UserID, 10),
		Score:  score.Score,
	}
	if !score.LastUpdated.IsZero() {
		lastUpdated := score.LastUpdated
		resp.LastUpdated = &lastUpdated
	}
	respondJSON(w, http.StatusOK, resp)
}
