package applicant

import "context"

type Repository interface {
	CreateApplicant(ctx context.Context, a *Applicant) (*Applicant, error)
	GetApplicantByID(ctx context.Context, id int64) (*Applicant, error)
	UpdateKYCStatus(ctx context.Context, id int64, status KYCStatus, verifiedBy *int64) error
}
