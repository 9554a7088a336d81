package dto

import (
	"strconv"
	"time"

	"greenloan-engine/internal/domain/loan"
)

type LoanResponse struct {
	ID            string              `json:"id"`
	ApplicationID string              `json:"applicationId"`
	ApplicantID   string              `json:"applicantId"`
	Principal     string              `json:"principal"`
	InterestRate  string              `json:"interestRate"`
	TenureMonths  int                 `json:"tenureMonths"`
	ApprovedAt    string              `json:"approvedAt"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	Schedule      []RepaymentResponse `json:"schedule,omitempty"`
}

type RepaymentResponse struct {
	ID         string     `json:"id"`
	Month      int        `json:"month"`
	DueDate    string     `json:"dueDate"`
	AmountDue  string     `json:"amountDue"`
	AmountPaid *string    `json:"amountPaid,omitempty"`
	PaidDate   *time.Time `json:"paidDate,omitempty"`
	Status     string     `json:"status"`
}

type OutstandingResponse struct {
	LoanID            string `json:"loanId"`
	OutstandingAmount string `json:"outstandingAmount"`
}

func NewLoanResponse(l *loan.ApprovedLoan, schedule []loan.Repayment) LoanResponse {
	resp := LoanResponse{
		ID:            strconv.FormatInt(l.ID, 10),
		ApplicationID: strconv.FormatInt(l.ApplicationID, 10),
		ApplicantID:   strconv.FormatInt(l.ApplicantID, 10),
		Principal:     l.Principal.StringFixed(2),
		InterestRate:  l.InterestRate.String(),
		TenureMonths:  l.TenureMonths,
		ApprovedAt:    l.ApprovedAt.Format(time.RFC3339[:10]),
		Status:        string(l.Status),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}

	if schedule != nil {
		resp.Schedule = make([]RepaymentResponse, len(schedule))
		for i, entry := range schedule {
			resp.Schedule[i] = NewRepaymentResponse(&entry)
		}
	}

	return resp
}

func NewRepaymentResponse(entry *loan.Repayment) RepaymentResponse {
	var paidAmountStr *string
	if entry.AmountPaid.IsPositive() {
		s := entry.AmountPaid.StringFixed(2)
		paidAmountStr = &s
	}

	return RepaymentResponse{
		ID:         strconv.FormatInt(entry.ID, 10),
		Month:      entry.Month,
		DueDate:    entry.DueDate.Format(time.RFC3339[:10]),
		AmountDue:  entry.AmountDue.StringFixed(2),
		AmountPaid: paidAmountStr,
		PaidDate:   entry.PaidDate,
		Status:     string(entry.Status),
	}
}
