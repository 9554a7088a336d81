package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

type CatalogRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewCatalogRepository(db DBPool, logger *slog.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: logger.With("component", "CatalogRepository")}
}

var _ catalog.Repository = (*CatalogRepository)(nil)

func documentTypesToStrings(types []catalog.DocumentType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func stringsToDocumentTypes(values []string) []catalog.DocumentType {
	out := make([]catalog.DocumentType, len(values))
	for i, v := range values {
		out[i] = catalog.DocumentType(v)
	}
	return out
}

func (r *CatalogRepository) CreateLoanType(ctx context.Context, lt *catalog.LoanType) (*catalog.LoanType, error) {
	sql := `
        INSERT INTO loan_types (name, description, interest_rate, amount_limit, required_documents, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	created := *lt
	err := r.db.QueryRow(ctx, sql,
		lt.Name, lt.Description, lt.InterestRate, lt.AmountLimit,
		documentTypesToStrings(lt.RequiredDocuments), lt.IsActive,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan type", "name", lt.Name, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Loan type created in DB", "loan_type_id", created.ID, "name", created.Name)
	return &created, nil
}

const loanTypeColumns = `id, name, description, interest_rate, amount_limit, required_documents, is_active, created_at, updated_at`

func scanLoanType(row pgx.Row) (*catalog.LoanType, error) {
	var lt catalog.LoanType
	var docs []string
	err := row.Scan(
		&lt.ID, &lt.Name, &lt.Description, &lt.InterestRate, &lt.AmountLimit,
		&docs, &lt.IsActive, &lt.CreatedAt, &lt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lt.RequiredDocuments = stringsToDocumentTypes(docs)
	return &lt, nil
}

func (r *CatalogRepository) GetLoanTypeByID(ctx context.Context, id int64) (*catalog.LoanType, error) {
	query := `SELECT ` + loanTypeColumns + ` FROM loan_types WHERE id = $1`
	status := "success"
	startTime := time.Now()

	lt, err := scanLoanType(r.db.QueryRow(ctx, query, id))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanTypeByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan type not found", "loan_type_id", id)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan type by ID", "loan_type_id", id, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return lt, nil
}

func (r *CatalogRepository) GetLoanTypeByName(ctx context.Context, name string) (*catalog.LoanType, error) {
	query := `SELECT ` + loanTypeColumns + ` FROM loan_types WHERE name = $1`

	lt, err := scanLoanType(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan type by name", "name", name, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return lt, nil
}

func (r *CatalogRepository) ListLoanTypes(ctx context.Context, activeOnly bool) ([]*catalog.LoanType, error) {
	query := `SELECT ` + loanTypeColumns + ` FROM loan_types`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loan types", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loanTypes := make([]*catalog.LoanType, 0)
	for rows.Next() {
		lt, err := scanLoanType(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan type row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loanTypes = append(loanTypes, lt)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan type rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loanTypes, nil
}

func (r *CatalogRepository) SetLoanTypeActive(ctx context.Context, id int64, active bool) error {
	sql := `UPDATE loan_types SET is_active = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, sql, active, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan type active flag", "loan_type_id", id, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Loan type not found for activation update", "loan_type_id", id)
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Loan type active flag updated", "loan_type_id", id, "is_active", active)
	return nil
}
