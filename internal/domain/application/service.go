package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/event"
	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

type SubmitApplicationInput struct {
	ApplicantID       int64
	LoanTypeID        int64
	Amount            decimal.Decimal
	DurationMonths    int
	Purpose           string
	MonthlyIncome     decimal.Decimal
	Address           string
	CitizenshipNumber string
}

type ApplicationService interface {
	SubmitApplication(ctx context.Context, in SubmitApplicationInput) (*Application, error)

	GetApplication(ctx context.Context, id int64) (*Application, error)

	ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]*Application, error)

	GetStatusHistory(ctx context.Context, applicationID int64) ([]StatusChange, error)

	GetDocuments(ctx context.Context, applicationID int64) ([]*Document, error)

	// UploadDocument attaches a file to a required or requested document.
	// When the upload completes an officer's information request, the
	// application auto-advances to info_provided.
	UploadDocument(ctx context.Context, applicationID, actorID int64, docType catalog.DocumentType, fileName string) (*Document, error)

	// RequestAdditionalDocuments resets the application to info_requested
	// and creates empty placeholder rows for each requested type.
	RequestAdditionalDocuments(ctx context.Context, applicationID, actorID int64, types []catalog.DocumentType, note string) error

	ReviewDocument(ctx context.Context, documentID, actorID int64, approve bool) error

	// Transition moves the application through the review workflow and
	// executes the resulting effects (loan creation, schedule generation,
	// decision events) atomically with the status change.
	Transition(ctx context.Context, applicationID int64, target Status, actorID int64, note string) (*Application, error)
}

type applicationServiceImpl struct {
	repo                 Repository
	catalogService       catalog.CatalogService
	applicantService     applicant.ApplicantService
	loanService          loan.LoanService
	publisher            event.EventPublisher
	allowedIncomePercent decimal.Decimal
	logger               *slog.Logger
}

func NewApplicationService(
	r Repository,
	cs catalog.CatalogService,
	as applicant.ApplicantService,
	ls loan.LoanService,
	pub event.EventPublisher,
	allowedIncomePercent decimal.Decimal,
	logger *slog.Logger,
) ApplicationService {
	return &applicationServiceImpl{
		repo:                 r,
		catalogService:       cs,
		applicantService:     as,
		loanService:          ls,
		publisher:            pub,
		allowedIncomePercent: allowedIncomePercent,
		logger:               logger.With("component", "ApplicationService"),
	}
}

func (s *applicationServiceImpl) SubmitApplication(ctx context.Context, in SubmitApplicationInput) (*Application, error) {
	s.logger.Info("Submitting loan application", "applicantID", in.ApplicantID, "loanTypeID", in.LoanTypeID)

	a, err := s.applicantService.GetApplicant(ctx, in.ApplicantID)
	if err != nil {
		return nil, err
	}
	if a.Role != applicant.RoleCustomer {
		return nil, fmt.Errorf("%w: only customers can apply for a loan", apperrors.ErrForbidden)
	}
	if !a.CanApplyForLoan() {
		s.logger.Warn("Application blocked, KYC not verified", "applicantID", in.ApplicantID, "kycStatus", a.KYCStatus)
		return nil, fmt.Errorf("%w: current status is '%s'", apperrors.ErrKYCNotVerified, a.KYCStatus)
	}

	lt, err := s.catalogService.GetLoanType(ctx, in.LoanTypeID)
	if err != nil {
		return nil, err
	}

	app, err := NewApplication(in.ApplicantID, lt, in.Amount, in.DurationMonths, in.Purpose,
		in.MonthlyIncome, in.Address, in.CitizenshipNumber, s.allowedIncomePercent)
	if err != nil {
		s.logger.Warn("Application validation failed", "applicantID", in.ApplicantID, "error", err)
		return nil, err
	}

	change := app.AppendHistory(StatusSubmitted, a.ID, a.FullName, "Application submitted", time.Now())

	created, err := s.repo.CreateApplication(ctx, app, change)
	if err != nil {
		s.logger.Error("Failed to save application", "applicantID", in.ApplicantID, "error", err)
		return nil, fmt.Errorf("failed to save application: %w", err)
	}

	monitoring.Business.ApplicationsSubmittedTotal.Inc()
	s.logger.Info("Application submitted", "applicationID", created.ID, "applicantID", in.ApplicantID)
	return created, nil
}

func (s *applicationServiceImpl) GetApplication(ctx context.Context, id int64) (*Application, error) {
	app, err := s.repo.GetApplicationByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: application %d not found", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get application %d: %w", id, err)
	}
	return app, nil
}

func (s *applicationServiceImpl) ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]*Application, error) {
	apps, err := s.repo.ListApplicationsByApplicant(ctx, applicantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications for applicant %d: %w", applicantID, err)
	}
	return apps, nil
}

func (s *applicationServiceImpl) GetStatusHistory(ctx context.Context, applicationID int64) ([]StatusChange, error) {
	history, err := s.repo.GetStatusHistory(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history for application %d: %w", applicationID, err)
	}
	return history, nil
}

func (s *applicationServiceImpl) GetDocuments(ctx context.Context, applicationID int64) ([]*Document, error) {
	docs, err := s.repo.GetDocumentsByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents for application %d: %w", applicationID, err)
	}
	return docs, nil
}

func (s *applicationServiceImpl) UploadDocument(ctx context.Context, applicationID, actorID int64, docType catalog.DocumentType, fileName string) (*Document, error) {
	if !docType.IsValid() {
		return nil, apperrors.NewValidationError("documentType", fmt.Sprintf("invalid document type: %s", docType))
	}
	if fileName == "" {
		return nil, apperrors.NewValidationError("fileName", "a document file is required")
	}

	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != actorID {
		return nil, fmt.Errorf("%w: only the applicant can upload documents", apperrors.ErrForbidden)
	}
	if app.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: application %d is already decided", apperrors.ErrConflict, applicationID)
	}

	docs, err := s.repo.GetDocumentsByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	var target *Document
	// Officer-requested placeholders are filled before baseline documents.
	for _, d := range docs {
		if d.Type == docType && d.IsAdditional && !d.HasFile() {
			target = d
			break
		}
	}
	if target == nil {
		for _, d := range docs {
			if d.Type == docType && !d.IsAdditional {
				target = d
				break
			}
		}
	}

	if target != nil {
		if err := s.repo.UpdateDocumentFile(ctx, target.ID, fileName); err != nil {
			return nil, fmt.Errorf("failed to store document file: %w", err)
		}
		target.FileName = &fileName
		target.Verification = DocPending
	} else {
		lt, err := s.catalogService.GetLoanType(ctx, app.LoanTypeID)
		if err != nil {
			return nil, err
		}
		required := false
		for _, req := range lt.RequiredDocuments {
			if req == docType {
				required = true
				break
			}
		}
		if !required {
			return nil, apperrors.NewValidationError("documentType",
				fmt.Sprintf("document type '%s' is neither required by '%s' nor requested by an officer", docType, lt.Name))
		}

		target, err = s.repo.CreateDocument(ctx, &Document{
			ApplicationID: applicationID,
			Type:          docType,
			FileName:      &fileName,
			Verification:  DocPending,
			IsAdditional:  false,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		docs = append(docs, target)
	}

	s.logger.Info("Document uploaded", "applicationID", applicationID, "documentType", docType)

	// Completing an information request advances the workflow on the
	// applicant's behalf.
	if app.Status == StatusInfoRequested && AdditionalDocumentsProvided(docs) {
		if _, err := s.Transition(ctx, applicationID, StatusInfoProvided, actorID, "Applicant uploaded requested documents"); err != nil {
			s.logger.Error("Failed to auto-advance to info_provided", "applicationID", applicationID, "error", err)
			return nil, err
		}
	}

	return target, nil
}

func (s *applicationServiceImpl) RequestAdditionalDocuments(ctx context.Context, applicationID, actorID int64, types []catalog.DocumentType, note string) (err error) {
	actor, err := s.applicantService.GetApplicant(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.Role.IsOfficer() {
		return fmt.Errorf("%w: only officers can request additional documents", apperrors.ErrForbidden)
	}
	if len(types) == 0 {
		return apperrors.NewValidationError("documentTypes", "at least one document type is required")
	}
	for _, t := range types {
		if !t.IsValid() {
			return apperrors.NewValidationError("documentTypes", fmt.Sprintf("invalid document type: %s", t))
		}
	}
	if note == "" {
		note = "Officer requested additional documents"
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	app, err := s.repo.GetApplicationForUpdate(ctx, tx, applicationID)
	if err != nil {
		return fmt.Errorf("failed to load application %d: %w", applicationID, err)
	}

	docs, err := s.repo.GetDocumentsByApplication(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	lt, err := s.catalogService.GetLoanType(ctx, app.LoanTypeID)
	if err != nil {
		return err
	}

	if _, err = Transition(app, TransitionContext{Documents: docs, RequiredDocuments: lt.RequiredDocuments},
		StatusInfoRequested, actor, note, time.Now()); err != nil {
		return err
	}

	if err = s.repo.CreatePlaceholderDocuments(ctx, tx, applicationID, types); err != nil {
		return fmt.Errorf("failed to create document placeholders: %w", err)
	}
	if err = s.repo.UpdateStatusInTx(ctx, tx, app, app.StatusHistory[len(app.StatusHistory)-1]); err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return fmt.Errorf("%w: could not commit: %v", apperrors.ErrInternalServer, err)
	}

	s.logger.Info("Additional documents requested", "applicationID", applicationID, "types", len(types), "officerID", actorID)
	return nil
}

func (s *applicationServiceImpl) ReviewDocument(ctx context.Context, documentID, actorID int64, approve bool) error {
	actor, err := s.applicantService.GetApplicant(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.Role.IsOfficer() {
		return fmt.Errorf("%w: only officers can review documents", apperrors.ErrForbidden)
	}

	doc, err := s.repo.GetDocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: document %d not found", apperrors.ErrNotFound, documentID)
		}
		return fmt.Errorf("failed to load document %d: %w", documentID, err)
	}
	if !doc.HasFile() {
		return fmt.Errorf("%w: document %d has no uploaded file", apperrors.ErrConflict, documentID)
	}

	status := DocRejected
	if approve {
		status = DocVerified
	}
	if err := s.repo.UpdateDocumentVerification(ctx, documentID, status); err != nil {
		return fmt.Errorf("failed to update document verification: %w", err)
	}

	app, err := s.GetApplication(ctx, doc.ApplicationID)
	if err != nil {
		return err
	}
	note := fmt.Sprintf("Document '%s' %s by %s", doc.Type, status, actor.FullName)
	if err := s.repo.AppendStatusHistory(ctx, doc.ApplicationID, StatusChange{
		Status:    app.Status,
		ActorID:   actor.ID,
		ActorName: actor.FullName,
		Note:      note,
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Error("Failed to append document review to history", "applicationID", doc.ApplicationID, "error", err)
		return fmt.Errorf("failed to record document review: %w", err)
	}

	s.logger.Info("Document reviewed", "documentID", documentID, "status", status, "officerID", actorID)
	return nil
}

func (s *applicationServiceImpl) Transition(ctx context.Context, applicationID int64, target Status, actorID int64, note string) (app *Application, err error) {
	s.logger.Info("Workflow transition requested", "applicationID", applicationID, "target", target, "actorID", actorID)

	defer func() {
		status := "success"
		if err != nil {
			status = "rejected"
		}
		monitoring.RecordTransition(string(target), status)
	}()

	actor, err := s.applicantService.GetApplicant(ctx, actorID)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	app, err = s.repo.GetApplicationForUpdate(ctx, tx, applicationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: application %d not found", apperrors.ErrNotFound, applicationID)
		}
		return nil, fmt.Errorf("failed to load application %d: %w", applicationID, err)
	}

	docs, err := s.repo.GetDocumentsByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	lt, err := s.catalogService.GetLoanType(ctx, app.LoanTypeID)
	if err != nil {
		return nil, err
	}

	effects, err := Transition(app, TransitionContext{Documents: docs, RequiredDocuments: lt.RequiredDocuments},
		target, actor, note, time.Now())
	if err != nil {
		s.logger.Warn("Workflow transition rejected", "applicationID", applicationID, "from", app.Status, "target", target, "error", err)
		return nil, err
	}

	if err = s.repo.UpdateStatusInTx(ctx, tx, app, app.StatusHistory[len(app.StatusHistory)-1]); err != nil {
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	var createdLoan *loan.ApprovedLoan
	for _, effect := range effects {
		if effect.Kind != EffectCreateLoan {
			continue
		}
		createdLoan, err = s.loanService.CreateFromApplication(ctx, tx, loan.CreateFromApplicationInput{
			ApplicationID: app.ID,
			ApplicantID:   app.ApplicantID,
			Principal:     app.Amount,
			InterestRate:  lt.InterestRate,
			TenureMonths:  app.DurationMonths,
			ApprovedBy:    actor.ID,
			ApprovedAt:    time.Now().Truncate(24 * time.Hour),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create approved loan: %w", err)
		}
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: could not commit transition: %v", apperrors.ErrInternalServer, err)
	}

	// Decision events go out after commit; delivery is fire-and-forget.
	for _, effect := range effects {
		switch effect.Kind {
		case EffectNotifyApproved:
			payload := event.LoanEventPayload{
				ApplicationID:  app.ID,
				LoanTypeName:   lt.Name,
				ApplicantID:    app.ApplicantID,
				ApplicantEmail: "",
			}
			if createdLoan != nil {
				payload.LoanID = &createdLoan.ID
			}
			if applicantRec, aerr := s.applicantService.GetApplicant(ctx, app.ApplicantID); aerr == nil {
				payload.ApplicantEmail = applicantRec.Email
			}
			if perr := s.publisher.PublishLoanApproved(ctx, event.LoanApprovedEvent{Timestamp: time.Now(), Payload: payload}); perr != nil {
				s.logger.Error("Failed to publish loan.approved event", "applicationID", app.ID, "error", perr)
			}
		case EffectNotifyRejected:
			payload := event.LoanEventPayload{
				ApplicationID: app.ID,
				LoanTypeName:  lt.Name,
				ApplicantID:   app.ApplicantID,
			}
			if applicantRec, aerr := s.applicantService.GetApplicant(ctx, app.ApplicantID); aerr == nil {
				payload.ApplicantEmail = applicantRec.Email
			}
			if perr := s.publisher.PublishLoanRejected(ctx, event.LoanRejectedEvent{Timestamp: time.Now(), Payload: payload}); perr != nil {
				s.logger.Error("Failed to publish loan.rejected event", "applicationID", app.ID, "error", perr)
			}
		}
	}

	s.logger.Info("Workflow transition applied", "applicationID", app.ID, "status", app.Status)
	return app, nil
}
