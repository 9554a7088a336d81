package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/payment"
)

type ConfirmPaymentRequest struct {
	RepaymentIDs []int64 `json:"repaymentIds"`
	Amount       string  `json:"amount"`
	Method       string  `json:"method"`
	Reference    string  `json:"reference"`
}

func (r *ConfirmPaymentRequest) Validate() error {
	if len(r.RepaymentIDs) == 0 {
		return fmt.Errorf("repaymentIds is required")
	}
	if _, err := decimal.NewFromString(r.Amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	if r.Reference == "" {
		return fmt.Errorf("reference is required")
	}
	return nil
}

type AllocationResponse struct {
	RepaymentID string `json:"repaymentId"`
	Applied     string `json:"applied"`
	Status      string `json:"status"`
}

type PaymentResultResponse struct {
	Allocations []AllocationResponse `json:"allocations"`
	Leftover    string               `json:"leftover"`
	ClosedLoans []string             `json:"closedLoans,omitempty"`
	CreditScore int                  `json:"creditScore"`
}

func NewPaymentResultResponse(res *payment.ConfirmPaymentResult) PaymentResultResponse {
	resp := PaymentResultResponse{
		Leftover:    res.Leftover.StringFixed(2),
		CreditScore: res.CreditScore,
	}
	resp.Allocations = make([]AllocationResponse, len(res.Allocations))
	for i, a := range res.Allocations {
		resp.Allocations[i] = AllocationResponse{
			RepaymentID: strconv.FormatInt(a.RepaymentID, 10),
			Applied:     a.Applied.StringFixed(2),
			Status:      string(a.Status),
		}
	}
	for _, id := range res.ClosedLoans {
		resp.ClosedLoans = append(resp.ClosedLoans, strconv.FormatInt(id, 10))
	}
	return resp
}

type PaymentResponse struct {
	ID          string    `json:"id"`
	RepaymentID string    `json:"repaymentId"`
	Amount      string    `json:"amount"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference"`
	PaidAt      time.Time `json:"paidAt"`
}

func NewPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          strconv.FormatInt(p.ID, 10),
		RepaymentID: strconv.FormatInt(p.RepaymentID, 10),
		Amount:      p.Amount.StringFixed(2),
		Method:      string(p.Method),
		Reference:   p.Reference,
		PaidAt:      p.PaidAt,
	}
}

type InitiateGatewayRequest struct {
	Provider     string  `json:"provider"`
	Amount       string  `json:"amount"`
	RepaymentIDs []int64 `json:"repaymentIds"`
}

func (r *InitiateGatewayRequest) Validate() error {
	if r.Provider != string(payment.ProviderEsewa) && r.Provider != string(payment.ProviderKhalti) {
		return fmt.Errorf("provider must be 'esewa' or 'khalti'")
	}
	if _, err := decimal.NewFromString(r.Amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if len(r.RepaymentIDs) == 0 {
		return fmt.Errorf("repaymentIds is required")
	}
	return nil
}

// GatewayInitResponse carries everything the client needs to render the
// provider's payment form, including the signed payload for eSewa.
type GatewayInitResponse struct {
	TransactionUUID  string `json:"transactionUuid"`
	Provider         string `json:"provider"`
	Amount           string `json:"amount"`
	ProductCode      string `json:"productCode,omitempty"`
	Signature        string `json:"signature,omitempty"`
	SignedFieldNames string `json:"signedFieldNames,omitempty"`
}

type GatewayCallbackRequest struct {
	TransactionUUID string `json:"transactionUuid"`
	RefID           string `json:"refId"`
	Status          string `json:"status"`
}

func (r *GatewayCallbackRequest) Validate() error {
	if r.TransactionUUID == "" {
		return fmt.Errorf("transactionUuid is required")
	}
	return nil
}
