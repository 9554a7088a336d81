package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/pkg/apperrors"
)

type CatalogService interface {
	CreateLoanType(ctx context.Context, name, description string, interestRate, amountLimit decimal.Decimal, requiredDocuments []DocumentType) (*LoanType, error)

	GetLoanType(ctx context.Context, id int64) (*LoanType, error)

	ListLoanTypes(ctx context.Context, activeOnly bool) ([]*LoanType, error)

	DeactivateLoanType(ctx context.Context, id int64) error
}

type catalogServiceImpl struct {
	repo   Repository
	logger *slog.Logger
}

func NewCatalogService(r Repository, logger *slog.Logger) CatalogService {
	return &catalogServiceImpl{repo: r, logger: logger.With("component", "CatalogService")}
}

func (s *catalogServiceImpl) CreateLoanType(ctx context.Context, name, description string, interestRate, amountLimit decimal.Decimal, requiredDocuments []DocumentType) (*LoanType, error) {
	s.logger.Info("Creating loan type", "name", name)

	lt, err := NewLoanType(name, description, interestRate, amountLimit, requiredDocuments)
	if err != nil {
		s.logger.Error("Loan type validation failed", "name", name, "error", err)
		return nil, err
	}

	if existing, err := s.repo.GetLoanTypeByName(ctx, name); err == nil && existing != nil {
		s.logger.Error("Loan type name already taken", "name", name)
		return nil, fmt.Errorf("%w: loan type '%s' already exists", apperrors.ErrAlreadyExists, name)
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check loan type name: %w", err)
	}

	created, err := s.repo.CreateLoanType(ctx, lt)
	if err != nil {
		s.logger.Error("Failed to save loan type", "name", name, "error", err)
		return nil, fmt.Errorf("%w: failed to save loan type: %v", apperrors.ErrInternalServer, err)
	}
	s.logger.Info("Loan type created", "loanTypeID", created.ID, "name", created.Name)
	return created, nil
}

func (s *catalogServiceImpl) GetLoanType(ctx context.Context, id int64) (*LoanType, error) {
	lt, err := s.repo.GetLoanTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: loan type %d not found", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get loan type %d: %w", id, err)
	}
	return lt, nil
}

func (s *catalogServiceImpl) ListLoanTypes(ctx context.Context, activeOnly bool) ([]*LoanType, error) {
	types, err := s.repo.ListLoanTypes(ctx, activeOnly)
	if err != nil {
		s.logger.Error("Failed to list loan types", "error", err)
		return nil, fmt.Errorf("failed to list loan types: %w", err)
	}
	return types, nil
}

func (s *catalogServiceImpl) DeactivateLoanType(ctx context.Context, id int64) error {
	s.logger.Info("Deactivating loan type", "loanTypeID", id)
	if err := s.repo.SetLoanTypeActive(ctx, id, false); err != nil {
		s.logger.Error("Failed to deactivate loan type", "loanTypeID", id, "error", err)
		return fmt.Errorf("failed to deactivate loan type %d: %w", id, err)
	}
	return nil
}
