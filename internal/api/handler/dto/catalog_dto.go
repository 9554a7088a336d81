package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/catalog"
)

type CreateLoanTypeRequest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	InterestRate      string   `json:"interestRate"`
	AmountLimit       string   `json:"amountLimit"`
	RequiredDocuments []string `json:"requiredDocuments"`
}

func (r *CreateLoanTypeRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := decimal.NewFromString(r.InterestRate); err != nil {
		return fmt.Errorf("invalid interestRate: %w", err)
	}
	if _, err := decimal.NewFromString(r.AmountLimit); err != nil {
		return fmt.Errorf("invalid amountLimit: %w", err)
	}
	return nil
}

func (r *CreateLoanTypeRequest) DocumentTypes() []catalog.DocumentType {
	types := make([]catalog.DocumentType, len(r.RequiredDocuments))
	for i, t := range r.RequiredDocuments {
		types[i] = catalog.DocumentType(t)
	}
	return types
}

type LoanTypeResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	InterestRate      string    `json:"interestRate"`
	AmountLimit       string    `json:"amountLimit"`
	RequiredDocuments []string  `json:"requiredDocuments"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
}

func NewLoanTypeResponse(lt *catalog.LoanType) LoanTypeResponse {
	docs := make([]string, len(lt.RequiredDocuments))
	for i, d := range lt.RequiredDocuments {
		docs[i] = string(d)
	}
	return LoanTypeResponse{
		ID:                strconv.FormatInt(lt.ID, 10),
		Name:              lt.Name,
		Description:       lt.Description,
		InterestRate:      lt.InterestRate.String(),
		AmountLimit:       lt.AmountLimit.StringFixed(2),
		RequiredDocuments: docs,
		IsActive:          lt.IsActive,
		CreatedAt:         lt.CreatedAt,
	}
}
