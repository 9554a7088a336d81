package dto

import (
	"fmt"
	"strconv"
	"time"

	"greenloan-engine/internal/domain/applicant"
)

type CreateApplicantRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (r *CreateApplicantRequest) Validate() error {
	if r.FullName == "" {
		return fmt.Errorf("fullName is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

type ReviewKYCRequest struct {
	Approve bool `json:"approve"`
}

type ApplicantResponse struct {
	ID            string     `json:"id"`
	FullName      string     `json:"fullName"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Role          string     `json:"role"`
	KYCStatus     string     `json:"kycStatus"`
	KYCVerifiedAt *time.Time `json:"kycVerifiedAt,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func NewApplicantResponse(a *applicant.Applicant) ApplicantResponse {
	return ApplicantResponse{
		ID:            strconv.FormatInt(a.ID, 10),
		FullName:      a.FullName,
		Email:         a.Email,
		Phone:         a.Phone,
		Role:          string(a.Role),
		KYCStatus:     string(a.KYCStatus),
		KYCVerifiedAt: a.KYCVerifiedAt,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt,
	}
}

type CreditScoreResponse struct {
	UserID      string     `json:"userId"`
	Score       int        `json:"score"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}
