package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"greenloan-engine/internal/domain/application"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/pkg/apperrors"
)

var applicationTest = &application.Application{
	ID:                10,
	ApplicantID:       1,
	LoanTypeID:        5,
	Amount:            decimal.NewFromInt(40000),
	DurationMonths:    12,
	Purpose:           "home repair",
	MonthlyIncome:     decimal.NewFromInt(100000),
	Address:           "Kathmandu",
	CitizenshipNumber: "12-34-56",
	Status:            application.StatusSubmitted,
	CreatedAt:         time.Now(),
	UpdatedAt:         time.Now(),
}

func setupApplicationRepo(t *testing.T) (context.Context, *ApplicationRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewApplicationRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func applicationRows() *pgxmock.Rows {
	a := applicationTest
	return pgxmock.NewRows([]string{"id", "applicant_id", "loan_type_id", "amount", "duration_months", "purpose", "monthly_income", "address", "citizenship_number", "status", "officer_id", "created_at", "updated_at"}).
		AddRow(a.ID, a.ApplicantID, a.LoanTypeID, a.Amount, a.DurationMonths, a.Purpose, a.MonthlyIncome, a.Address, a.CitizenshipNumber, a.Status, a.OfficerID, a.CreatedAt, a.UpdatedAt)
}

func TestCreateApplicationWritesHistoryAtomically(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	appSQL := `
        INSERT INTO applications (applicant_id, loan_type_id, amount, duration_months, purpose, monthly_income, address, citizenship_number, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	historySQL := `
        INSERT INTO application_status_history (application_id, status, actor_id, actor_name, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	initial := application.StatusChange{
		Status:    application.StatusSubmitted,
		ActorID:   1,
		ActorName: "Sita Sharma",
		Note:      "Application submitted",
		Timestamp: time.Now(),
	}

	a := applicationTest
	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(appSQL)).WithArgs(
		a.ApplicantID, a.LoanTypeID, a.Amount, a.DurationMonths, a.Purpose,
		a.MonthlyIncome, a.Address, a.CitizenshipNumber, a.Status,
	).WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
		AddRow(a.ID, a.CreatedAt, a.UpdatedAt))
	mockPool.ExpectExec(regexp.QuoteMeta(historySQL)).WithArgs(
		a.ID, initial.Status, initial.ActorID, initial.ActorName, initial.Note, initial.Timestamp,
	).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	created, err := repo.CreateApplication(ctx, a, initial)
	assert.NoError(t, err)
	assert.Equal(t, a.ID, created.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetApplicationByIDReturnOne(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(applicationTest.ID).
		WillReturnRows(applicationRows())

	app, err := repo.GetApplicationByID(ctx, applicationTest.ID)
	assert.NoError(t, err)
	assert.Equal(t, applicationTest.ApplicantID, app.ApplicantID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetApplicationByIDReturnNone(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(applicationTest.ID).
		WillReturnError(pgx.ErrNoRows)

	app, err := repo.GetApplicationByID(ctx, applicationTest.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, app)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetApplicationForUpdateLocksRow(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(applicationTest.ID).
		WillReturnRows(applicationRows())

	tx, err := mockPool.Begin(ctx)
	assert.NoError(t, err)

	app, err := repo.GetApplicationForUpdate(ctx, tx, applicationTest.ID)
	assert.NoError(t, err)
	assert.Equal(t, applicationTest.ID, app.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateStatusInTxWritesHistory(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	sql := `UPDATE applications SET status = $1, officer_id = $2, updated_at = NOW() WHERE id = $3`
	historySQL := `
        INSERT INTO application_status_history (application_id, status, actor_id, actor_name, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	officerID := int64(99)
	app := *applicationTest
	app.Status = application.StatusUnderReview
	app.OfficerID = &officerID

	change := application.StatusChange{
		Status:    application.StatusUnderReview,
		ActorID:   officerID,
		ActorName: "Officer Rana",
		Note:      "taking the case",
		Timestamp: time.Now(),
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec(regexp.QuoteMeta(sql)).WithArgs(app.Status, app.OfficerID, app.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(regexp.QuoteMeta(historySQL)).WithArgs(
		app.ID, change.Status, change.ActorID, change.ActorName, change.Note, change.Timestamp,
	).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mockPool.Begin(ctx)
	assert.NoError(t, err)

	err = repo.UpdateStatusInTx(ctx, tx, &app, change)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetStatusHistoryReturnAll(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	query := `
        SELECT status, actor_id, actor_name, note, created_at
        FROM application_status_history
        WHERE application_id = $1
        ORDER BY created_at ASC, id ASC`

	now := time.Now()
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(applicationTest.ID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "actor_id", "actor_name", "note", "created_at"}).
			AddRow(application.StatusSubmitted, int64(1), "Sita Sharma", "Application submitted", now).
			AddRow(application.StatusUnderReview, int64(99), "Officer Rana", "taking the case", now.Add(time.Hour)))

	history, err := repo.GetStatusHistory(ctx, applicationTest.ID)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, application.StatusSubmitted, history[0].Status)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateDocumentReturnsRow(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	sql := `
        INSERT INTO documents (application_id, document_type, file_name, verification, is_additional, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        RETURNING id, uploaded_at`

	fileName := "slip.pdf"
	doc := &application.Document{
		ApplicationID: applicationTest.ID,
		Type:          catalog.DocSalarySlip,
		FileName:      &fileName,
		Verification:  application.DocPending,
	}

	mockPool.ExpectQuery(regexp.QuoteMeta(sql)).WithArgs(
		doc.ApplicationID, doc.Type, doc.FileName, doc.Verification, doc.IsAdditional,
	).WillReturnRows(pgxmock.NewRows([]string{"id", "uploaded_at"}).AddRow(int64(4), time.Now()))

	created, err := repo.CreateDocument(ctx, doc)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), created.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreatePlaceholderDocumentsBatches(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	sql := `
        INSERT INTO documents (application_id, document_type, file_name, verification, is_additional, uploaded_at)
        VALUES ($1, $2, NULL, $3, TRUE, NOW())`

	types := []catalog.DocumentType{catalog.DocBankStatement, catalog.DocPropertyDocument}

	mockPool.ExpectBegin()
	batch := mockPool.ExpectBatch()
	for _, dt := range types {
		batch.ExpectExec(regexp.QuoteMeta(sql)).WithArgs(applicationTest.ID, dt, application.DocPending).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	tx, err := mockPool.Begin(ctx)
	assert.NoError(t, err)

	err = repo.CreatePlaceholderDocuments(ctx, tx, applicationTest.ID, types)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateDocumentFileWhenMissing(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	sql := `
        UPDATE documents
        SET file_name = $1, verification = $2, uploaded_at = NOW()
        WHERE id = $3`

	mockPool.ExpectExec(regexp.QuoteMeta(sql)).WithArgs("slip.pdf", application.DocPending, int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateDocumentFile(ctx, 404, "slip.pdf")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateDocumentVerificationWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupApplicationRepo(t)
	defer mockPool.Close()

	sql := `UPDATE documents SET verification = $1 WHERE id = $2`

	mockPool.ExpectExec(regexp.QuoteMeta(sql)).WithArgs(application.DocVerified, int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateDocumentVerification(ctx, 4, application.DocVerified)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
