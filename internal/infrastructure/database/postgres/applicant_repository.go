package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

type ApplicantRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewApplicantRepository(db DBPool, logger *slog.Logger) *ApplicantRepository {
	return &ApplicantRepository{db: db, logger: logger.With("component", "ApplicantRepository")}
}

var _ applicant.Repository = (*ApplicantRepository)(nil)

const applicantColumns = `id, full_name, email, phone, role, kyc_status, kyc_verified_at, kyc_verified_by, monthly_income, active, created_at, updated_at`

func scanApplicant(row pgx.Row) (*applicant.Applicant, error) {
	var a applicant.Applicant
	err := row.Scan(
		&a.ID, &a.FullName, &a.Email, &a.Phone, &a.Role, &a.KYCStatus,
		&a.KYCVerifiedAt, &a.KYCVerifiedBy, &a.MonthlyIncome, &a.Active,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApplicantRepository) CreateApplicant(ctx context.Context, a *applicant.Applicant) (*applicant.Applicant, error) {
	sql := `
        INSERT INTO applicants (full_name, email, phone, role, kyc_status, monthly_income, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	created := *a
	err := r.db.QueryRow(ctx, sql,
		a.FullName, a.Email, a.Phone, a.Role, a.KYCStatus, a.MonthlyIncome, a.Active,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert applicant", "email", a.Email, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Applicant created in DB", "applicant_id", created.ID)
	return &created, nil
}

func (r *ApplicantRepository) GetApplicantByID(ctx context.Context, id int64) (*applicant.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`
	status := "success"
	startTime := time.Now()

	a, err := scanApplicant(r.db.QueryRow(ctx, query, id))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetApplicantByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Applicant not found", "applicant_id", id)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get applicant by ID", "applicant_id", id, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return a, nil
}

func (r *ApplicantRepository) UpdateKYCStatus(ctx context.Context, id int64, status applicant.KYCStatus, verifiedBy *int64) error {
	sql := `
        UPDATE applicants
        SET kyc_status = $1,
            kyc_verified_at = CASE WHEN $1 = 'verified' THEN NOW() ELSE kyc_verified_at END,
            kyc_verified_by = $2,
            updated_at = NOW()
        WHERE id = $3`

	cmdTag, err := r.db.Exec(ctx, sql, status, verifiedBy, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update KYC status", "applicant_id", id, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Applicant not found for KYC update", "applicant_id", id)
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "KYC status updated in DB", "applicant_id", id, "kyc_status", status)
	return nil
}
