package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentMethod enumerates supported payment channels.
type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodSinpeMovil   PaymentMethod = "SINPE_MOVIL"
)

// ManualMethod reports whether the method requires admin-side verification.
func (m PaymentMethod) ManualMethod() bool {
	return m == MethodBankTransfer || m == MethodSinpeMovil
}

// ParsePaymentMethod validates a method string.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case MethodCreditCard, MethodBankTransfer, MethodSinpeMovil:
		return m, true
	}
	return "", false
}

// TransactionStatus enumerates payment attempt outcomes.
type TransactionStatus string

const (
	TxnPending    TransactionStatus = "PENDING"
	TxnProcessing TransactionStatus = "PROCESSING"
	TxnCompleted  TransactionStatus = "COMPLETED"
	TxnFailed     TransactionStatus = "FAILED"
	TxnRefunded   TransactionStatus = "REFUNDED"
)

// Transaction records a single payment attempt against an order.
// An order may accumulate many attempts; at most one may ever complete.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID               int64             `bun:",pk,autoincrement"`
	OrderID          int64             `bun:"order_id"`
	Reference        string            `bun:"transaction_reference"`
	Method           PaymentMethod     `bun:"payment_method"`
	Status           TransactionStatus `bun:"status"`
	Amount           Cents             `bun:"amount"`
	Currency         string            `bun:"currency"`
	ProviderResponse string            `bun:"provider_response,nullzero"`
	ProofOfPayment   string            `bun:"proof_of_payment,nullzero"`
	ProcessedAt      *time.Time        `bun:"processed_at,nullzero"`
	FailureReason    string            `bun:"failure_reason,nullzero"`
	CreatedAt        time.Time         `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
