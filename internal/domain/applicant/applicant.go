package applicant

import (
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/pkg/apperrors"
)

type Role string

const (
	RoleCustomer      Role = "customer"
	RoleOfficer       Role = "officer"
	RoleSeniorOfficer Role = "senior_officer"
	RoleAdmin         Role = "admin"
)

// IsOfficer reports whether the role may drive officer-only workflow
// transitions.
func (r Role) IsOfficer() bool {
	return r == RoleOfficer || r == RoleSeniorOfficer
}

type KYCStatus string

const (
	KYCPending   KYCStatus = "pending"
	KYCSubmitted KYCStatus = "submitted"
	KYCVerified  KYCStatus = "verified"
	KYCRejected  KYCStatus = "rejected"
)

type Applicant struct {
	ID            int64
	FullName      string
	Email         string
	Phone         string
	Role          Role
	KYCStatus     KYCStatus
	KYCVerifiedAt *time.Time
	KYCVerifiedBy *int64
	MonthlyIncome decimal.Decimal
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewApplicant(fullName, email, phone string) (*Applicant, error) {
	if fullName == "" {
		return nil, apperrors.NewValidationError("fullName", "full name is required")
	}
	if email == "" {
		return nil, apperrors.NewValidationError("email", "email is required")
	}
	return &Applicant{
		FullName:  fullName,
		Email:     email,
		Phone:     phone,
		Role:      RoleCustomer,
		KYCStatus: KYCPending,
		Active:    true,
	}, nil
}

// CanApplyForLoan is the loan-eligibility gate: only active customers with
// verified KYC may submit an application.
func (a *Applicant) CanApplyForLoan() bool {
	return a.Active && a.Role == RoleCustomer && a.KYCStatus == KYCVerified
}
