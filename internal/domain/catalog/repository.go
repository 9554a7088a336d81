package catalog

import "context"

type Repository interface {
	CreateLoanType(ctx context.Context, lt *LoanType) (*LoanType, error)
	GetLoanTypeByID(ctx context.Context, id int64) (*LoanType, error)
	GetLoanTypeByName(ctx context.Context, name string) (*LoanType, error)
	ListLoanTypes(ctx context.Context, activeOnly bool) ([]*LoanType, error)
	SetLoanTypeActive(ctx context.Context, id int64, active bool) error
}
