package application

import (
	"context"

	"github.com/jackc/pgx/v5"

	"greenloan-engine/internal/domain/catalog"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error

	CreateApplication(ctx context.Context, app *Application, initial StatusChange) (*Application, error)
	GetApplicationByID(ctx context.Context, id int64) (*Application, error)
	// GetApplicationForUpdate loads the row under a row-level lock so
	// concurrent workflow transitions serialize.
	GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]*Application, error)
	UpdateStatusInTx(ctx context.Context, tx pgx.Tx, app *Application, change StatusChange) error
	GetStatusHistory(ctx context.Context, applicationID int64) ([]StatusChange, error)
	AppendStatusHistory(ctx context.Context, applicationID int64, change StatusChange) error

	CreateDocument(ctx context.Context, doc *Document) (*Document, error)
	CreatePlaceholderDocuments(ctx context.Context, tx pgx.Tx, applicationID int64, types []catalog.DocumentType) error
	GetDocumentByID(ctx context.Context, id int64) (*Document, error)
	GetDocumentsByApplication(ctx context.Context, applicationID int64) ([]*Document, error)
	UpdateDocumentFile(ctx context.Context, id int64, fileName string) error
	UpdateDocumentVerification(ctx context.Context, id int64, status DocumentVerification) error
}
