package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"greenloan-engine/internal/api/handler/dto"
	"greenloan-engine/internal/api/middleware"
	"greenloan-engine/internal/config"
	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/domain/payment"
	"greenloan-engine/internal/pkg/apperrors"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) ConfirmPayment(ctx context.Context, in payment.ConfirmPaymentInput) (*payment.ConfirmPaymentResult, error) {
	args := m.Called(ctx, in)
	if res, ok := args.Get(0).(*payment.ConfirmPaymentResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentService) ListPaymentsByRepayment(ctx context.Context, repaymentID int64) ([]*payment.Payment, error) {
	args := m.Called(ctx, repaymentID)
	if payments, ok := args.Get(0).([]*payment.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentService) InitiateGatewayPayment(ctx context.Context, userID int64, provider payment.GatewayProvider, amount decimal.Decimal, repaymentIDs []int64) (*payment.GatewayTransaction, error) {
	args := m.Called(ctx, userID, provider, amount, repaymentIDs)
	if gt, ok := args.Get(0).(*payment.GatewayTransaction); ok {
		return gt, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentService) CompleteGatewayPayment(ctx context.Context, transactionUUID, refID string) (*payment.ConfirmPaymentResult, error) {
	args := m.Called(ctx, transactionUUID, refID)
	if res, ok := args.Get(0).(*payment.ConfirmPaymentResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentService) FailGatewayPayment(ctx context.Context, transactionUUID string) error {
	return m.Called(ctx, transactionUUID).Error(0)
}

var gatewayCfg = config.GatewayConfig{
	EsewaSecretKey:   "8gBm/:&EnhH.1/q",
	EsewaProductCode: "EPAYTEST",
}

func authedJSONRequest(method, target string, body any, userID int64) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithUser(req.Context(), userID, applicant.RoleCustomer))
}

func TestPaymentHandlerConfirmPayment(t *testing.T) {
	t.Run("confirms a payment and returns the allocation", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		mockService.On("ConfirmPayment", mock.Anything, mock.MatchedBy(func(in payment.ConfirmPaymentInput) bool {
			return in.ApplicantID == 1 &&
				in.Reference == "TXN-001" &&
				in.Amount.Equal(decimal.NewFromInt(1500)) &&
				in.Method == payment.MethodBank
		})).Return(&payment.ConfirmPaymentResult{
			Allocations: []payment.AllocationResult{
				{RepaymentID: 1, Applied: decimal.NewFromInt(1000), Status: loan.RepaymentPaid},
				{RepaymentID: 2, Applied: decimal.NewFromInt(500), Status: loan.RepaymentPartial},
			},
			Leftover:    decimal.Zero,
			CreditScore: 510,
		}, nil)

		body := dto.ConfirmPaymentRequest{
			RepaymentIDs: []int64{1, 2},
			Amount:       "1500",
			Method:       "bank",
			Reference:    "TXN-001",
		}
		rec := httptest.NewRecorder()

		h.ConfirmPayment(rec, authedJSONRequest(http.MethodPost, "/payments", body, 1))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.PaymentResultResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp.Allocations, 2)
		assert.Equal(t, "0.00", resp.Leftover)
		assert.Equal(t, 510, resp.CreditScore)
		mockService.AssertExpectations(t)
	})

	t.Run("a repeated reference returns a conflict", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		mockService.On("ConfirmPayment", mock.Anything, mock.Anything).
			Return(nil, apperrors.ErrDuplicateReference)

		body := dto.ConfirmPaymentRequest{
			RepaymentIDs: []int64{1},
			Amount:       "1000",
			Method:       "bank",
			Reference:    "TXN-001",
		}
		rec := httptest.NewRecorder()

		h.ConfirmPayment(rec, authedJSONRequest(http.MethodPost, "/payments", body, 1))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		body := dto.ConfirmPaymentRequest{Amount: "not-a-number", Method: "bank", Reference: "TXN-001", RepaymentIDs: []int64{1}}
		rec := httptest.NewRecorder()

		h.ConfirmPayment(rec, authedJSONRequest(http.MethodPost, "/payments", body, 1))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything)
	})

	t.Run("requires authentication", func(t *testing.T) {
		h := NewPaymentHandler(new(MockPaymentService), gatewayCfg, logger)

		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()

		h.ConfirmPayment(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPaymentHandlerInitiateGatewayPayment(t *testing.T) {
	t.Run("creates an eSewa transaction with a signed payload", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		amount := decimal.NewFromInt(1000)
		mockService.On("InitiateGatewayPayment", mock.Anything, int64(1), payment.ProviderEsewa, amount, []int64{1, 2}).
			Return(&payment.GatewayTransaction{
				Provider:        payment.ProviderEsewa,
				Amount:          amount,
				ProductCode:     "EPAYTEST",
				TransactionUUID: "txn-uuid-1",
				Status:          payment.GatewayPending,
			}, nil)

		body := dto.InitiateGatewayRequest{Provider: "esewa", Amount: "1000", RepaymentIDs: []int64{1, 2}}
		rec := httptest.NewRecorder()

		h.InitiateGatewayPayment(rec, authedJSONRequest(http.MethodPost, "/payments/gateway", body, 1))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.GatewayInitResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "txn-uuid-1", resp.TransactionUUID)
		assert.Equal(t, payment.EsewaSignedFieldNames, resp.SignedFieldNames)
		assert.Equal(t, payment.EsewaSignature(gatewayCfg.EsewaSecretKey, amount, "txn-uuid-1", "EPAYTEST"), resp.Signature)
	})

	t.Run("a Khalti transaction carries no signature", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		amount := decimal.NewFromInt(1000)
		mockService.On("InitiateGatewayPayment", mock.Anything, int64(1), payment.ProviderKhalti, amount, []int64{1}).
			Return(&payment.GatewayTransaction{
				Provider:        payment.ProviderKhalti,
				Amount:          amount,
				TransactionUUID: "txn-uuid-2",
				Status:          payment.GatewayPending,
			}, nil)

		body := dto.InitiateGatewayRequest{Provider: "khalti", Amount: "1000", RepaymentIDs: []int64{1}}
		rec := httptest.NewRecorder()

		h.InitiateGatewayPayment(rec, authedJSONRequest(http.MethodPost, "/payments/gateway", body, 1))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.GatewayInitResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Empty(t, resp.Signature)
	})

	t.Run("rejects an unknown provider", func(t *testing.T) {
		h := NewPaymentHandler(new(MockPaymentService), gatewayCfg, logger)

		body := dto.InitiateGatewayRequest{Provider: "paypal", Amount: "1000", RepaymentIDs: []int64{1}}
		rec := httptest.NewRecorder()

		h.InitiateGatewayPayment(rec, authedJSONRequest(http.MethodPost, "/payments/gateway", body, 1))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentHandlerGatewayCallback(t *testing.T) {
	t.Run("settles the transaction on success status", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		mockService.On("CompleteGatewayPayment", mock.Anything, "txn-uuid-1", "0007XYZ").
			Return(&payment.ConfirmPaymentResult{
				Allocations: []payment.AllocationResult{{RepaymentID: 1, Applied: decimal.NewFromInt(1000), Status: loan.RepaymentPaid}},
				Leftover:    decimal.Zero,
				CreditScore: 510,
			}, nil)

		body := dto.GatewayCallbackRequest{TransactionUUID: "txn-uuid-1", RefID: "0007XYZ", Status: "SUCCESS"}
		req := httptest.NewRequest(http.MethodPost, "/payments/gateway/callback", bytes.NewReader(mustJSON(body)))
		rec := httptest.NewRecorder()

		h.GatewayCallback(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.PaymentResultResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp.Allocations, 1)
		mockService.AssertExpectations(t)
	})

	t.Run("marks the transaction failed on any other status", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		mockService.On("FailGatewayPayment", mock.Anything, "txn-uuid-1").Return(nil)

		body := dto.GatewayCallbackRequest{TransactionUUID: "txn-uuid-1", Status: "FAILURE"}
		req := httptest.NewRequest(http.MethodPost, "/payments/gateway/callback", bytes.NewReader(mustJSON(body)))
		rec := httptest.NewRecorder()

		h.GatewayCallback(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertNotCalled(t, "CompleteGatewayPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a replayed callback returns a conflict", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService, gatewayCfg, logger)

		mockService.On("CompleteGatewayPayment", mock.Anything, "txn-uuid-1", "0007XYZ").
			Return(nil, apperrors.ErrDuplicateReference)

		body := dto.GatewayCallbackRequest{TransactionUUID: "txn-uuid-1", RefID: "0007XYZ", Status: "SUCCESS"}
		req := httptest.NewRequest(http.MethodPost, "/payments/gateway/callback", bytes.NewReader(mustJSON(body)))
		rec := httptest.NewRecorder()

		h.GatewayCallback(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestPaymentHandlerListPaymentsByRepayment(t *testing.T) {
	mockService := new(MockPaymentService)
	h := NewPaymentHandler(mockService, gatewayCfg, logger)

	mockService.On("ListPaymentsByRepayment", mock.Anything, int64(1)).
		Return([]*payment.Payment{
			{ID: 42, RepaymentID: 1, Amount: decimal.NewFromInt(400), Method: payment.MethodBank, Reference: "TXN-001"},
		}, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/repayments/1/payments", nil), "repaymentID", "1")
	rec := httptest.NewRecorder()

	h.ListPaymentsByRepayment(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []dto.PaymentResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp, 1)
	assert.Equal(t, "400.00", resp[0].Amount)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
