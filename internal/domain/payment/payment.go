package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodEsewa  Method = "esewa"
	MethodKhalti Method = "khalti"
	MethodBank   Method = "bank"
	MethodCash   Method = "cash"
	MethodCard   Method = "card"
)

// Payment is one entry of the append-only payment ledger: the amount
// actually applied to a single repayment, with the channel and the external
// reference of the confirming transaction. Rows are never mutated or
// deleted.
type Payment struct {
	ID          int64
	RepaymentID int64
	Amount      decimal.Decimal
	Method      Method
	Reference   string
	PaidAt      time.Time
}

type GatewayStatus string

const (
	GatewayPending GatewayStatus = "PENDING"
	GatewaySuccess GatewayStatus = "SUCCESS"
	GatewayFailure GatewayStatus = "FAILURE"
)

type GatewayProvider string

const (
	ProviderEsewa  GatewayProvider = "esewa"
	ProviderKhalti GatewayProvider = "khalti"
)

// GatewayTransaction tracks one externally initiated payment. The
// transaction UUID is unique; a callback replay finds the row already
// settled and performs no further mutation.
type GatewayTransaction struct {
	ID              int64
	UserID          int64
	Provider        GatewayProvider
	Amount          decimal.Decimal
	ProductCode     string
	TransactionUUID string
	Status          GatewayStatus
	RefID           *string
	RepaymentIDs    []int64
	CreatedAt       time.Time
}
