package handler

import (
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
	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/domain/application"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/pkg/apperrors"
)

type MockApplicationService struct {
	mock.Mock
}

func (m *MockApplicationService) SubmitApplication(ctx context.Context, in application.SubmitApplicationInput) (*application.Application, error) {
	args := m.Called(ctx, in)
	if app, ok := args.Get(0).(*application.Application); ok {
		return app, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicationService) GetApplication(ctx context.Context, id int64) (*application.Application, error) {
	args := m.Called(ctx, id)
	if app, ok := args.Get(0).(*application.Application); ok {
		return app, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicationService) ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]*application.Application, error) {
	args := m.Called(ctx, applicantID)
	if apps, ok := args.Get(0).([]*application.Application); ok {
		return apps, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicationService) GetStatusHistory(ctx context.Context, applicationID int64) ([]application.StatusChange, error) {
	args := m.Called(ctx, applicationID)
	if history, ok := args.Get(0).([]application.StatusChange); ok {
		return history, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicationService) GetDocuments(ctx context.Context, applicationID int64) ([]*application.Document, error) {
	args := m.Called(ctx, applicationID)
	if docs, ok := args.Get(0).([]*application.Document); ok {
		return docs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicationService) UploadDocument(ctx context.Context, applicationID, actorID int64, docType catalog.DocumentType, fileName string) (*application.Document, error) {
	args := m.Called(ctx, applicationID, actorID, docType, fileName)
	if doc, ok := args.Get(0).(*application.Document); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicationService) RequestAdditionalDocuments(ctx context.Context, applicationID, actorID int64, types []catalog.DocumentType, note string) error {
	return m.Called(ctx, applicationID, actorID, types, note).Error(0)
}

func (m *MockApplicationService) ReviewDocument(ctx context.Context, documentID, actorID int64, approve bool) error {
	return m.Called(ctx, documentID, actorID, approve).Error(0)
}

func (m *MockApplicationService) Transition(ctx context.Context, applicationID int64, target application.Status, actorID int64, note string) (*application.Application, error) {
	args := m.Called(ctx, applicationID, target, actorID, note)
	if app, ok := args.Get(0).(*application.Application); ok {
		return app, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestApplicationHandlerSubmitApplication(t *testing.T) {
	t.Run("submits a new application", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		mockService.On("SubmitApplication", mock.Anything, mock.MatchedBy(func(in application.SubmitApplicationInput) bool {
			return in.ApplicantID == 1 && in.LoanTypeID == 5 && in.Amount.Equal(decimal.NewFromInt(40000))
		})).Return(&application.Application{
			ID:            10,
			ApplicantID:   1,
			LoanTypeID:    5,
			Amount:        decimal.NewFromInt(40000),
			MonthlyIncome: decimal.NewFromInt(100000),
			Status:        application.StatusSubmitted,
		}, nil)

		body := dto.SubmitApplicationRequest{
			LoanTypeID:        5,
			Amount:            "40000",
			DurationMonths:    12,
			Purpose:           "home repair",
			MonthlyIncome:     "100000",
			Address:           "Kathmandu",
			CitizenshipNumber: "12-34-56",
		}
		rec := httptest.NewRecorder()

		h.SubmitApplication(rec, authedJSONRequest(http.MethodPost, "/applications", body, 1))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.ApplicationResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "10", resp.ID)
		assert.Equal(t, string(application.StatusSubmitted), resp.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("unverified KYC is forbidden", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		mockService.On("SubmitApplication", mock.Anything, mock.Anything).
			Return(nil, apperrors.ErrKYCNotVerified)

		body := dto.SubmitApplicationRequest{
			LoanTypeID:     5,
			Amount:         "40000",
			DurationMonths: 12,
			MonthlyIncome:  "100000",
		}
		rec := httptest.NewRecorder()

		h.SubmitApplication(rec, authedJSONRequest(http.MethodPost, "/applications", body, 1))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects a malformed amount", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		body := dto.SubmitApplicationRequest{LoanTypeID: 5, Amount: "forty thousand", DurationMonths: 12, MonthlyIncome: "100000"}
		rec := httptest.NewRecorder()

		h.SubmitApplication(rec, authedJSONRequest(http.MethodPost, "/applications", body, 1))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "SubmitApplication", mock.Anything, mock.Anything)
	})
}

func TestApplicationHandlerTransition(t *testing.T) {
	t.Run("applies an officer transition", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		mockService.On("Transition", mock.Anything, int64(10), application.StatusUnderReview, int64(99), "taking the case").
			Return(&application.Application{
				ID:            10,
				ApplicantID:   1,
				LoanTypeID:    5,
				Amount:        decimal.NewFromInt(40000),
				MonthlyIncome: decimal.NewFromInt(100000),
				Status:        application.StatusUnderReview,
			}, nil)

		body := dto.TransitionRequest{Target: "under_review", Note: "taking the case"}
		req := authedJSONRequest(http.MethodPost, "/applications/10/transition", body, 99)
		req = withURLParam(req, "applicationID", "10")
		rec := httptest.NewRecorder()

		h.Transition(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.ApplicationResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, string(application.StatusUnderReview), resp.Status)
	})

	t.Run("an invalid transition returns a conflict", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		mockService.On("Transition", mock.Anything, int64(10), application.StatusApproved, int64(99), "").
			Return(nil, apperrors.ErrInvalidTransition)

		body := dto.TransitionRequest{Target: "approved"}
		req := authedJSONRequest(http.MethodPost, "/applications/10/transition", body, 99)
		req = withURLParam(req, "applicationID", "10")
		rec := httptest.NewRecorder()

		h.Transition(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("a customer driving an officer transition is forbidden", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		mockService.On("Transition", mock.Anything, int64(10), application.StatusUnderReview, int64(1), "").
			Return(nil, apperrors.ErrForbidden)

		body := dto.TransitionRequest{Target: "under_review"}
		req := authedJSONRequest(http.MethodPost, "/applications/10/transition", body, 1)
		req = withURLParam(req, "applicationID", "10")
		rec := httptest.NewRecorder()

		h.Transition(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestApplicationHandlerUploadDocument(t *testing.T) {
	t.Run("stores the uploaded document", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		fileName := "slip.pdf"
		mockService.On("UploadDocument", mock.Anything, int64(10), int64(1), catalog.DocSalarySlip, "slip.pdf").
			Return(&application.Document{ID: 4, ApplicationID: 10, Type: catalog.DocSalarySlip, FileName: &fileName, Verification: application.DocPending}, nil)

		body := dto.UploadDocumentRequest{DocumentType: "salary_slip", FileName: "slip.pdf"}
		req := authedJSONRequest(http.MethodPost, "/applications/10/documents", body, 1)
		req = withURLParam(req, "applicationID", "10")
		rec := httptest.NewRecorder()

		h.UploadDocument(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.DocumentResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "4", resp.ID)
	})

	t.Run("rejects a payload without a file name", func(t *testing.T) {
		mockService := new(MockApplicationService)
		h := NewApplicationHandler(mockService, logger)

		body := dto.UploadDocumentRequest{DocumentType: "salary_slip"}
		req := authedJSONRequest(http.MethodPost, "/applications/10/documents", body, 1)
		req = withURLParam(req, "applicationID", "10")
		rec := httptest.NewRecorder()

		h.UploadDocument(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "UploadDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestApplicationHandlerRequestDocuments(t *testing.T) {
	mockService := new(MockApplicationService)
	h := NewApplicationHandler(mockService, logger)

	mockService.On("RequestAdditionalDocuments", mock.Anything, int64(10), int64(99),
		[]catalog.DocumentType{catalog.DocBankStatement}, "need a bank statement").Return(nil)

	body := dto.RequestDocumentsRequest{DocumentTypes: []string{"bank_statement"}, Note: "need a bank statement"}
	req := authedJSONRequest(http.MethodPost, "/applications/10/documents/request", body, 99)
	req = withURLParam(req, "applicationID", "10")
	rec := httptest.NewRecorder()

	h.RequestDocuments(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestApplicationHandlerReviewDocument(t *testing.T) {
	mockService := new(MockApplicationService)
	h := NewApplicationHandler(mockService, logger)

	mockService.On("ReviewDocument", mock.Anything, int64(4), int64(99), true).Return(nil)

	body := dto.ReviewDocumentRequest{Approve: true}
	req := authedJSONRequest(http.MethodPost, "/documents/4/review", body, 99)
	req = withURLParam(req, "documentID", "4")
	rec := httptest.NewRecorder()

	h.ReviewDocument(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestApplicationHandlerListMyApplications(t *testing.T) {
	mockService := new(MockApplicationService)
	h := NewApplicationHandler(mockService, logger)

	mockService.On("ListApplicationsByApplicant", mock.Anything, int64(1)).
		Return([]*application.Application{
			{ID: 10, ApplicantID: 1, LoanTypeID: 5, Amount: decimal.NewFromInt(40000), MonthlyIncome: decimal.NewFromInt(100000), Status: application.StatusSubmitted},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/applications", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), 1, applicant.RoleCustomer))
	rec := httptest.NewRecorder()

	h.ListMyApplications(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []dto.ApplicationResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp, 1)
}
