package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/api/handler/dto"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/pkg/apperrors"
)

type CatalogHandler struct {
	service catalog.CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(s catalog.CatalogService, l *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: s,
		logger:  l.With("component", "CatalogHandler"),
	}
}

// CreateLoanType adds a new loan product to the catalog. Officer only.
//
// @Summary Create a loan type
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanTypeRequest true "Loan type payload"
// @Success 201 {object} dto.LoanTypeResponse "Loan type created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 409 {object} dto.ErrorResponse "Loan type name already exists"
// @Router /loan-types [post]
// @Security BearerAuth
func (h *CatalogHandler) CreateLoanType(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	interestRate, _ := decimal.NewFromString(req.InterestRate)
	amountLimit, _ := decimal.NewFromString(req.AmountLimit)

	created, err := h.service.CreateLoanType(r.Context(), req.Name, req.Description, interestRate, amountLimit, req.DocumentTypes())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewLoanTypeResponse(created))
}

// ListLoanTypes returns the loan catalog.
//
// @Summary List loan types
// @Tags Catalog
// @Produce json
// @Param all query bool false "Include deactivated loan types"
// @Success 200 {array} dto.LoanTypeResponse "Loan types"
// @Router /loan-types [get]
// @Security BearerAuth
func (h *CatalogHandler) ListLoanTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	types, err := h.service.ListLoanTypes(r.Context(), activeOnly)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.LoanTypeResponse, len(types))
	for i, lt := range types {
		resp[i] = dto.NewLoanTypeResponse(lt)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetLoanType retrieves one loan product.
//
// @Summary Retrieve loan type details
// @Tags Catalog
// @Produce json
// @Param loanTypeID path int true "Loan type ID"
// @Success 200 {object} dto.LoanTypeResponse "Loan type details"
// @Failure 404 {object} dto.ErrorResponse "Loan type not found"
// @Router /loan-types/{loanTypeID} [get]
// @Security BearerAuth
func (h *CatalogHandler) GetLoanType(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "loanTypeID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	lt, err := h.service.GetLoanType(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanTypeResponse(lt))
}

// DeactivateLoanType retires a loan product from the catalog. Officer only.
//
// @Summary Deactivate a loan type
// @Tags Catalog
// @Produce json
// @Param loanTypeID path int true "Loan type ID"
// @Success 200 {object} map[string]string "Loan type deactivated"
// @Failure 404 {object} dto.ErrorResponse "Loan type not found"
// @Router /loan-types/{loanTypeID} [delete]
// @Security BearerAuth
func (h *CatalogHandler) DeactivateLoanType(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "loanTypeID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.DeactivateLoanType(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Loan type deactivated"})
}
