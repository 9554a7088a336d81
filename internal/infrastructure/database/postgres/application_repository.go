package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"greenloan-engine/internal/domain/application"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

type ApplicationRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewApplicationRepository(db DBPool, logger *slog.Logger) *ApplicationRepository {
	return &ApplicationRepository{db: db, logger: logger.With("component", "ApplicationRepository")}
}

var _ application.Repository = (*ApplicationRepository)(nil)

func (r *ApplicationRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *ApplicationRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *ApplicationRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

const applicationColumns = `id, applicant_id, loan_type_id, amount, duration_months, purpose, monthly_income, address, citizenship_number, status, officer_id, created_at, updated_at`

func scanApplication(row pgx.Row) (*application.Application, error) {
	var app application.Application
	err := row.Scan(
		&app.ID, &app.ApplicantID, &app.LoanTypeID, &app.Amount, &app.DurationMonths,
		&app.Purpose, &app.MonthlyIncome, &app.Address, &app.CitizenshipNumber,
		&app.Status, &app.OfficerID, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepository) CreateApplication(ctx context.Context, app *application.Application, initial application.StatusChange) (*application.Application, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	appSQL := `
        INSERT INTO applications (applicant_id, loan_type_id, amount, duration_months, purpose, monthly_income, address, citizenship_number, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	created := *app
	err = tx.QueryRow(ctx, appSQL,
		app.ApplicantID, app.LoanTypeID, app.Amount, app.DurationMonths, app.Purpose,
		app.MonthlyIncome, app.Address, app.CitizenshipNumber, app.Status,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert application", "applicant_id", app.ApplicantID, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	historySQL := `
        INSERT INTO application_status_history (application_id, status, actor_id, actor_name, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, historySQL, created.ID, initial.Status, initial.ActorID, initial.ActorName, initial.Note, initial.Timestamp)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert initial status history", "application_id", created.ID, "error", err)
		return nil, fmt.Errorf("%w: failed to insert initial status history: %w", apperrors.ErrDatabase, err)
	}

	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Application created in DB", "application_id", created.ID, "applicant_id", created.ApplicantID)
	return &created, nil
}

func (r *ApplicationRepository) GetApplicationByID(ctx context.Context, id int64) (*application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	status := "success"
	startTime := time.Now()

	app, err := scanApplication(r.db.QueryRow(ctx, query, id))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetApplicationByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Application not found", "application_id", id)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get application by ID", "application_id", id, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return app, nil
}

func (r *ApplicationRepository) GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`

	app, err := scanApplication(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Application not found for update", "application_id", id)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock application row", "application_id", id, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return app, nil
}

func (r *ApplicationRepository) ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]*application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE applicant_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, applicantID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query applications by applicant", "applicant_id", applicantID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	apps := make([]*application.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan application row", "applicant_id", applicantID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		apps = append(apps, app)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating application rows", "applicant_id", applicantID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return apps, nil
}

func (r *ApplicationRepository) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, app *application.Application, change application.StatusChange) error {
	sql := `UPDATE applications SET status = $1, officer_id = $2, updated_at = NOW() WHERE id = $3`

	cmdTag, err := tx.Exec(ctx, sql, app.Status, app.OfficerID, app.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update application status", "application_id", app.ID, "status", app.Status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Application status update affected zero rows", "application_id", app.ID)
		return fmt.Errorf("%w: application status update affected zero rows", apperrors.ErrDatabase)
	}

	historySQL := `
        INSERT INTO application_status_history (application_id, status, actor_id, actor_name, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := tx.Exec(ctx, historySQL, app.ID, change.Status, change.ActorID, change.ActorName, change.Note, change.Timestamp); err != nil {
		r.logger.ErrorContext(ctx, "Failed to append status history", "application_id", app.ID, "error", err)
		return fmt.Errorf("%w: failed to append status history: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Application status updated in DB", "application_id", app.ID, "new_status", app.Status)
	return nil
}

func (r *ApplicationRepository) GetStatusHistory(ctx context.Context, applicationID int64) ([]application.StatusChange, error) {
	query := `
        SELECT status, actor_id, actor_name, note, created_at
        FROM application_status_history
        WHERE application_id = $1
        ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query status history", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	history := make([]application.StatusChange, 0)
	for rows.Next() {
		var change application.StatusChange
		if err := rows.Scan(&change.Status, &change.ActorID, &change.ActorName, &change.Note, &change.Timestamp); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan status history row", "application_id", applicationID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		history = append(history, change)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating status history rows", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return history, nil
}

func (r *ApplicationRepository) AppendStatusHistory(ctx context.Context, applicationID int64, change application.StatusChange) error {
	sql := `
        INSERT INTO application_status_history (application_id, status, actor_id, actor_name, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, sql, applicationID, change.Status, change.ActorID, change.ActorName, change.Note, change.Timestamp)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to append status history", "application_id", applicationID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

const documentColumns = `id, application_id, document_type, file_name, verification, is_additional, uploaded_at`

func scanDocument(row pgx.Row) (*application.Document, error) {
	var d application.Document
	err := row.Scan(
		&d.ID, &d.ApplicationID, &d.Type, &d.FileName,
		&d.Verification, &d.IsAdditional, &d.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *ApplicationRepository) CreateDocument(ctx context.Context, doc *application.Document) (*application.Document, error) {
	sql := `
        INSERT INTO documents (application_id, document_type, file_name, verification, is_additional, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        RETURNING id, uploaded_at`

	created := *doc
	err := r.db.QueryRow(ctx, sql,
		doc.ApplicationID, doc.Type, doc.FileName, doc.Verification, doc.IsAdditional,
	).Scan(&created.ID, &created.UploadedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert document", "application_id", doc.ApplicationID, "type", doc.Type, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Document created in DB", "document_id", created.ID, "application_id", created.ApplicationID)
	return &created, nil
}

func (r *ApplicationRepository) CreatePlaceholderDocuments(ctx context.Context, tx pgx.Tx, applicationID int64, types []catalog.DocumentType) error {
	if len(types) == 0 {
		return nil
	}

	sql := `
        INSERT INTO documents (application_id, document_type, file_name, verification, is_additional, uploaded_at)
        VALUES ($1, $2, NULL, $3, TRUE, NOW())`

	batch := &pgx.Batch{}
	for _, t := range types {
		batch.Queue(sql, applicationID, t, application.DocPending)
	}

	results := tx.SendBatch(ctx, batch)

	for i := 0; i < len(types); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing document placeholder batch insert", "error", err, "entry_index", i, "application_id", applicationID)
			return fmt.Errorf("%w: failed inserting document placeholder %d: %w", apperrors.ErrDatabase, i+1, err)
		}
	}
	if err := results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing document placeholder batch results", "error", err, "application_id", applicationID)
		return fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Document placeholders created in DB", "application_id", applicationID, "num_entries", len(types))
	return nil
}

func (r *ApplicationRepository) GetDocumentByID(ctx context.Context, id int64) (*application.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Document not found", "document_id", id)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get document by ID", "document_id", id, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return doc, nil
}

func (r *ApplicationRepository) GetDocumentsByApplication(ctx context.Context, applicationID int64) ([]*application.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE application_id = $1 ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query documents", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	docs := make([]*application.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan document row", "application_id", applicationID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		docs = append(docs, doc)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating document rows", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return docs, nil
}

func (r *ApplicationRepository) UpdateDocumentFile(ctx context.Context, id int64, fileName string) error {
	sql := `
        UPDATE documents
        SET file_name = $1, verification = $2, uploaded_at = NOW()
        WHERE id = $3`

	cmdTag, err := r.db.Exec(ctx, sql, fileName, application.DocPending, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update document file", "document_id", id, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Document file update affected zero rows", "document_id", id)
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *ApplicationRepository) UpdateDocumentVerification(ctx context.Context, id int64, status application.DocumentVerification) error {
	sql := `UPDATE documents SET verification = $1 WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, sql, status, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update document verification", "document_id", id, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Document verification update affected zero rows", "document_id", id)
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Document verification updated in DB", "document_id", id, "verification", status)
	return nil
}
