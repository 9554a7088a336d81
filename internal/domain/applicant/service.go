package applicant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"greenloan-engine/internal/pkg/apperrors"
)

type ApplicantService interface {
	CreateApplicant(ctx context.Context, fullName, email, phone string) (*Applicant, error)

	GetApplicant(ctx context.Context, id int64) (*Applicant, error)

	SubmitKYC(ctx context.Context, id int64) error

	// ReviewKYC verifies or rejects a submitted KYC. Officer only.
	ReviewKYC(ctx context.Context, id int64, reviewer *Applicant, approve bool) error
}

type applicantServiceImpl struct {
	repo   Repository
	logger *slog.Logger
}

func NewApplicantService(r Repository, logger *slog.Logger) ApplicantService {
	return &applicantServiceImpl{repo: r, logger: logger.With("component", "ApplicantService")}
}

func (s *applicantServiceImpl) CreateApplicant(ctx context.Context, fullName, email, phone string) (*Applicant, error) {
	s.logger.Info("Creating applicant", "email", email)
	a, err := NewApplicant(fullName, email, phone)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreateApplicant(ctx, a)
	if err != nil {
		s.logger.Error("Failed to save applicant", "email", email, "error", err)
		return nil, fmt.Errorf("failed to save applicant: %w", err)
	}
	return created, nil
}

func (s *applicantServiceImpl) GetApplicant(ctx context.Context, id int64) (*Applicant, error) {
	a, err := s.repo.GetApplicantByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: applicant %d not found", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get applicant %d: %w", id, err)
	}
	return a, nil
}

func (s *applicantServiceImpl) SubmitKYC(ctx context.Context, id int64) error {
	a, err := s.GetApplicant(ctx, id)
	if err != nil {
		return err
	}
	if a.KYCStatus == KYCVerified {
		return fmt.Errorf("%w: KYC already verified", apperrors.ErrConflict)
	}
	if err := s.repo.UpdateKYCStatus(ctx, id, KYCSubmitted, nil); err != nil {
		s.logger.Error("Failed to submit KYC", "applicantID", id, "error", err)
		return fmt.Errorf("failed to submit KYC: %w", err)
	}
	s.logger.Info("KYC submitted", "applicantID", id)
	return nil
}

func (s *applicantServiceImpl) ReviewKYC(ctx context.Context, id int64, reviewer *Applicant, approve bool) error {
	if reviewer == nil || !reviewer.Role.IsOfficer() {
		return fmt.Errorf("%w: only officers can review KYC", apperrors.ErrForbidden)
	}

	a, err := s.GetApplicant(ctx, id)
	if err != nil {
		return err
	}
	if a.KYCStatus != KYCSubmitted {
		return fmt.Errorf("%w: KYC is not awaiting review", apperrors.ErrConflict)
	}

	status := KYCRejected
	var verifiedBy *int64
	if approve {
		status = KYCVerified
		verifiedBy = &reviewer.ID
	}

	if err := s.repo.UpdateKYCStatus(ctx, id, status, verifiedBy); err != nil {
		s.logger.Error("Failed to update KYC status", "applicantID", id, "error", err)
		return fmt.Errorf("failed to update KYC status: %w", err)
	}
	s.logger.Info("KYC reviewed", "applicantID", id, "status", status, "reviewerID", reviewer.ID)
	return nil
}
