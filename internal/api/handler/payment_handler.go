package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/api/handler/dto"
	"greenloan-engine/internal/config"
	"greenloan-engine/internal/domain/payment"
	"greenloan-engine/internal/pkg/apperrors"
)

type PaymentHandler struct {
	service    payment.PaymentService
	gatewayCfg config.GatewayConfig
	logger     *slog.Logger
}

func NewPaymentHandler(s payment.PaymentService, gatewayCfg config.GatewayConfig, l *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:    s,
		gatewayCfg: gatewayCfg,
		logger:     l.With("component", "PaymentHandler"),
	}
}

// ConfirmPayment records a settled payment and allocates it across repayments.
//
// @Summary Confirm a repayment payment
// @Description Allocates the paid amount across the given repayments in due-date order. The reference is idempotent, repeating it returns a conflict.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.ConfirmPaymentRequest true "Payment payload"
// @Success 200 {object} dto.PaymentResultResponse "Payment recorded and allocated"
// @Failure 400 {object} dto.ErrorResponse "Invalid payment amount or no payable repayment"
// @Failure 409 {object} dto.ErrorResponse "Duplicate payment reference"
// @Router /payments [post]
// @Security BearerAuth
func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)

	result, err := h.service.ConfirmPayment(r.Context(), payment.ConfirmPaymentInput{
		ApplicantID:  caller,
		RepaymentIDs: req.RepaymentIDs,
		Amount:       amount,
		Method:       payment.Method(req.Method),
		Reference:    req.Reference,
		PaidAt:       time.Now(),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPaymentResultResponse(result))
}

// ListPaymentsByRepayment lists the payment ledger entries recorded against a repayment.
//
// @Summary List payments for a repayment
// @Tags Payments
// @Produce json
// @Param repaymentID path int true "Repayment ID"
// @Success 200 {array} dto.PaymentResponse "Payments"
// @Router /repayments/{repaymentID}/payments [get]
// @Security BearerAuth
func (h *PaymentHandler) ListPaymentsByRepayment(w http.ResponseWriter, r *http.Request) {
	repaymentID, err := idFromURL(r, "repaymentID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	payments, err := h.service.ListPaymentsByRepayment(r.Context(), repaymentID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.PaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dto.NewPaymentResponse(p)
	}
	respondJSON(w, http.StatusOK, resp)
}

// InitiateGatewayPayment opens a payment gateway transaction for the caller.
//
// @Summary Initiate a gateway payment
// @Description Creates a PENDING gateway transaction. For eSewa the response carries the HMAC signature and signed field names the client must forward to the gateway form.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.InitiateGatewayRequest true "Gateway payment payload"
// @Success 201 {object} dto.GatewayInitResponse "Gateway transaction created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Router /payments/gateway [post]
// @Security BearerAuth
func (h *PaymentHandler) InitiateGatewayPayment(w http.ResponseWriter, r *http.Request) {
	caller, err := actorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.InitiateGatewayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)

	gt, err := h.service.InitiateGatewayPayment(r.Context(), caller, payment.GatewayProvider(req.Provider), amount, req.RepaymentIDs)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := dto.GatewayInitResponse{
		TransactionUUID: gt.TransactionUUID,
		Provider:        string(gt.Provider),
		Amount:          gt.Amount.StringFixed(2),
		ProductCode:     gt.ProductCode,
	}
	if gt.Provider == payment.ProviderEsewa {
		resp.Signature = payment.EsewaSignature(h.gatewayCfg.EsewaSecretKey, gt.Amount, gt.TransactionUUID, gt.ProductCode)
		resp.SignedFieldNames = payment.EsewaSignedFieldNames
	}
	respondJSON(w, http.StatusCreated, resp)
}

// GatewayCallback settles or fails a pending gateway transaction.
//
// @Summary Handle a gateway payment callback
// @Description On SUCCESS the transaction amount is allocated across its repayments. Replayed callbacks for an already settled transaction return a conflict.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.GatewayCallbackRequest true "Gateway callback payload"
// @Success 200 {object} dto.PaymentResultResponse "Transaction settled"
// @Failure 404 {object} dto.ErrorResponse "Unknown transaction"
// @Failure 409 {object} dto.ErrorResponse "Transaction already settled"
// @Router /payments/gateway/callback [post]
func (h *PaymentHandler) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	var req dto.GatewayCallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if req.Status != string(payment.GatewaySuccess) {
		if err := h.service.FailGatewayPayment(r.Context(), req.TransactionUUID); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Gateway transaction marked failed"})
		return
	}

	result, err := h.service.CompleteGatewayPayment(r.Context(), req.TransactionUUID, req.RefID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPaymentResultResponse(result))
}
