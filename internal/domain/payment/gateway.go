package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/shopspring/decimal"
)

// EsewaSignedFieldNames is the field list eSewa expects in the signed
// payload, in this exact order.
const EsewaSignedFieldNames = "amount,total_amount,transaction_uuid,product_code"

// EsewaSignature computes the HMAC-SHA256 signature over the eSewa form
// fields, base64 encoded, as required by the ePay v2 form API.
func EsewaSignature(secretKey string, amount decimal.Decimal, transactionUUID, productCode string) string {
	amountStr := amount.StringFixed(0)
	message := fmt.Sprintf("amount=%s,total_amount=%s,transaction_uuid=%s,product_code=%s",
		amountStr, amountStr, transactionUUID, productCode)

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
