package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/pkg/apperrors"
)

// DocumentType is a document-type code a loan product may require.
type DocumentType string

const (
	DocCitizenshipFront     DocumentType = "citizenship_front"
	DocCitizenshipBack      DocumentType = "citizenship_back"
	DocSalarySlip           DocumentType = "salary_slip"
	DocBankStatement        DocumentType = "bank_statement"
	DocBusinessRegistration DocumentType = "business_registration"
	DocPropertyDocument     DocumentType = "property_document"
	DocAdmissionLetter      DocumentType = "admission_letter"
	DocIDProof              DocumentType = "id_proof"
)

var documentTypes = map[DocumentType]struct{}{
	DocCitizenshipFront:     {},
	DocCitizenshipBack:      {},
	DocSalarySlip:           {},
	DocBankStatement:        {},
	DocBusinessRegistration: {},
	DocPropertyDocument:     {},
	DocAdmissionLetter:      {},
	DocIDProof:              {},
}

func (d DocumentType) IsValid() bool {
	_, ok := documentTypes[d]
	return ok
}

// DocumentTypes returns every known document-type code.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocCitizenshipFront,
		DocCitizenshipBack,
		DocSalarySlip,
		DocBankStatement,
		DocBusinessRegistration,
		DocPropertyDocument,
		DocAdmissionLetter,
		DocIDProof,
	}
}

// LoanType is a loan product offered by the portal. RequiredDocuments is the
// baseline set an applicant must upload before document verification.
type LoanType struct {
	ID                int64
	Name              string
	Description       string
	InterestRate      decimal.Decimal
	AmountLimit       decimal.Decimal
	RequiredDocuments []DocumentType
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewLoanType(name, description string, interestRate, amountLimit decimal.Decimal, requiredDocuments []DocumentType) (*LoanType, error) {
	lt := &LoanType{
		Name:              name,
		Description:       description,
		InterestRate:      interestRate,
		AmountLimit:       amountLimit,
		RequiredDocuments: requiredDocuments,
		IsActive:          true,
	}
	if err := lt.Validate(); err != nil {
		return nil, err
	}
	return lt, nil
}

func (lt *LoanType) Validate() error {
	if lt.Name == "" {
		return apperrors.NewValidationError("name", "loan type name is required")
	}
	if lt.InterestRate.IsNegative() {
		return apperrors.NewValidationError("interestRate", "interest rate cannot be negative")
	}
	if !lt.AmountLimit.IsPositive() {
		return apperrors.NewValidationError("amountLimit", "amount limit must be positive")
	}
	for _, doc := range lt.RequiredDocuments {
		if !doc.IsValid() {
			return apperrors.NewValidationError("requiredDocuments", fmt.Sprintf("invalid document type: %s", doc))
		}
	}
	return nil
}
