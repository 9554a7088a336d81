package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"greenloan-engine/internal/api/handler/dto"
	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/pkg/apperrors"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

// GetLoan retrieves the details of an approved loan.
//
// @Summary Retrieve loan details
// @Description Add the query parameter `include=schedule` to embed the repayment schedule.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param include query string false "Optional parameter to include repayment schedule (use 'schedule')"
// @Success 200 {object} dto.LoanResponse "Loan details"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	domainLoan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	var schedule []loan.Repayment
	if r.URL.Query().Get("include") == "schedule" {
		schedule, err = h.service.GetLoanSchedule(r.Context(), loanID)
		if err != nil {
			respondError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(domainLoan, schedule))
}

// GetSchedule retrieves the full repayment schedule of a loan.
//
// @Summary Retrieve a loan's repayment schedule
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {array} dto.RepaymentResponse "Repayment schedule"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Router /loans/{loanID}/schedule [get]
// @Security BearerAuth
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	schedule, err := h.service.GetLoanSchedule(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.RepaymentResponse, len(schedule))
	for i, entry := range schedule {
		resp[i] = dto.NewRepaymentResponse(&entry)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetOutstanding retrieves the outstanding balance of a loan.
//
// @Summary Retrieve outstanding loan balance
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.OutstandingResponse "Outstanding balance"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Router /loans/{loanID}/outstanding [get]
// @Security BearerAuth
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	outstanding, err := h.service.GetOutstanding(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := dto.OutstandingResponse{
		LoanID:            strconv.FormatInt(loanID, 10),
		OutstandingAmount: outstanding.StringFixed(2),
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListMyLoans lists the caller's approved loans.
//
// @Summary List the caller's loans
// @Tags Loans
// @Produce json
// @Success 200 {array} dto.LoanResponse "Loans"
// @Router /loans [get]
// @Security BearerAuth
func (h *LoanHandler) ListMyLoans(w http.ResponseWriter, r *http.Request) {
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	loans, err := h.service.ListLoansByApplicant(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.LoanResponse, len(loans))
	for i, l := range loans {
		resp[i] = dto.NewLoanResponse(l, nil)
	}
	respondJSON(w, http.StatusOK, resp)
}
