package applicant

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"greenloan-engine/internal/pkg/apperrors"
)

type MockApplicantRepository struct {
	mock.Mock
}

func (m *MockApplicantRepository) CreateApplicant(ctx context.Context, a *Applicant) (*Applicant, error) {
	args := m.Called(ctx, a)
	if created, ok := args.Get(0).(*Applicant); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicantRepository) GetApplicantByID(ctx context.Context, id int64) (*Applicant, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*Applicant); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApplicantRepository) UpdateKYCStatus(ctx context.Context, id int64, status KYCStatus, verifiedBy *int64) error {
	return m.Called(ctx, id, status, verifiedBy).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestCreateApplicant(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active customer with pending KYC", func(t *testing.T) {
		repo := new(MockApplicantRepository)
		svc := NewApplicantService(repo, newTestLogger())

		repo.On("CreateApplicant", ctx, mock.AnythingOfType("*applicant.Applicant")).
			Run(func(args mock.Arguments) {
				a := args.Get(1).(*Applicant)
				assert.Equal(t, RoleCustomer, a.Role)
				assert.Equal(t, KYCPending, a.KYCStatus)
				assert.True(t, a.Active)
			}).
			Return(&Applicant{ID: 1, FullName: "Sita Sharma", Role: RoleCustomer, KYCStatus: KYCPending, Active: true}, nil)

		created, err := svc.CreateApplicant(ctx, "Sita Sharma", "sita@example.com", "9841000000")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		svc := NewApplicantService(new(MockApplicantRepository), newTestLogger())

		_, err := svc.CreateApplicant(ctx, "", "sita@example.com", "9841000000")
		assert.Error(t, err)

		_, err = svc.CreateApplicant(ctx, "Sita Sharma", "", "9841000000")
		assert.Error(t, err)
	})
}

func TestSubmitKYC(t *testing.T) {
	ctx := context.Background()

	t.Run("marks a pending KYC as submitted", func(t *testing.T) {
		repo := new(MockApplicantRepository)
		svc := NewApplicantService(repo, newTestLogger())

		repo.On("GetApplicantByID", ctx, int64(1)).Return(&Applicant{ID: 1, KYCStatus: KYCPending}, nil)
		repo.On("UpdateKYCStatus", ctx, int64(1), KYCSubmitted, (*int64)(nil)).Return(nil)

		assert.NoError(t, svc.SubmitKYC(ctx, 1))
		repo.AssertExpectations(t)
	})

	t.Run("rejects resubmission after verification", func(t *testing.T) {
		repo := new(MockApplicantRepository)
		svc := NewApplicantService(repo, newTestLogger())

		repo.On("GetApplicantByID", ctx, int64(1)).Return(&Applicant{ID: 1, KYCStatus: KYCVerified}, nil)

		err := svc.SubmitKYC(ctx, 1)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestReviewKYC(t *testing.T) {
	ctx := context.Background()
	officer := &Applicant{ID: 99, Role: RoleOfficer}

	t.Run("approval verifies and records the reviewer", func(t *testing.T) {
		repo := new(MockApplicantRepository)
		svc := NewApplicantService(repo, newTestLogger())

		repo.On("GetApplicantByID", ctx, int64(1)).Return(&Applicant{ID: 1, KYCStatus: KYCSubmitted}, nil)
		repo.On("UpdateKYCStatus", ctx, int64(1), KYCVerified, &officer.ID).Return(nil)

		assert.NoError(t, svc.ReviewKYC(ctx, 1, officer, true))
		repo.AssertExpectations(t)
	})

	t.Run("rejection does not record a verifier", func(t *testing.T) {
		repo := new(MockApplicantRepository)
		svc := NewApplicantService(repo, newTestLogger())

		repo.On("GetApplicantByID", ctx, int64(1)).Return(&Applicant{ID: 1, KYCStatus: KYCSubmitted}, nil)
		repo.On("UpdateKYCStatus", ctx, int64(1), KYCRejected, (*int64)(nil)).Return(nil)

		assert.NoError(t, svc.ReviewKYC(ctx, 1, officer, false))
	})

	t.Run("only officers can review", func(t *testing.T) {
		svc := NewApplicantService(new(MockApplicantRepository), newTestLogger())
		customer := &Applicant{ID: 2, Role: RoleCustomer}

		err := svc.ReviewKYC(ctx, 1, customer, true)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)

		err = svc.ReviewKYC(ctx, 1, nil, true)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("requires the KYC to be awaiting review", func(t *testing.T) {
		repo := new(MockApplicantRepository)
		svc := NewApplicantService(repo, newTestLogger())

		repo.On("GetApplicantByID", ctx, int64(1)).Return(&Applicant{ID: 1, KYCStatus: KYCPending}, nil)

		err := svc.ReviewKYC(ctx, 1, officer, true)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestCanApplyForLoan(t *testing.T) {
	t.Run("requires an active verified customer", func(t *testing.T) {
		a := &Applicant{Role: RoleCustomer, KYCStatus: KYCVerified, Active: true}
		assert.True(t, a.CanApplyForLoan())
	})

	t.Run("unverified or inactive applicants cannot apply", func(t *testing.T) {
		assert.False(t, (&Applicant{Role: RoleCustomer, KYCStatus: KYCPending, Active: true}).CanApplyForLoan())
		assert.False(t, (&Applicant{Role: RoleCustomer, KYCStatus: KYCVerified, Active: false}).CanApplyForLoan())
		assert.False(t, (&Applicant{Role: RoleOfficer, KYCStatus: KYCVerified, Active: true}).CanApplyForLoan())
	})
}
