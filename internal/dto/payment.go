package dto

import (
	"time"

	"github.com/Additional-Code/mesa/internal/entity"
)

// CreditCardPaymentRequest is the payload for the synchronous card flow.
type CreditCardPaymentRequest struct {
	OrderID        int64  `json:"order_id"`
	CardNumber     string `json:"card_number"`
	CardholderName string `json:"cardholder_name"`
	ExpiryMonth    int    `json:"expiry_month"`
	ExpiryYear     int    `json:"expiry_year"`
	CVV            string `json:"cvv"`
}

// Validate returns a field→message map; nil means the payload is valid.
func (r CreditCardPaymentRequest) Validate() map[string]any {
	errs := make(map[string]any)
	if r.OrderID <= 0 {
		errs["order_id"] = "order id is required"
	}
	if n := len(r.CardNumber); n < 13 || n > 19 || !allDigits(r.CardNumber) {
		errs["card_number"] = "card number must be 13-19 digits"
	}
	if r.CardholderName == "" {
		errs["cardholder_name"] = "cardholder name is required"
	}
	if r.ExpiryMonth < 1 || r.ExpiryMonth > 12 {
		errs["expiry_month"] = "expiry month must be between 1 and 12"
	}
	if r.ExpiryYear < 2000 {
		errs["expiry_year"] = "expiry year is invalid"
	}
	if n := len(r.CVV); n < 3 || n > 4 || !allDigits(r.CVV) {
		errs["cvv"] = "cvv must be 3-4 digits"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ManualPaymentRequest is the payload for bank transfer / SINPE payments.
type ManualPaymentRequest struct {
	OrderID        int64  `json:"order_id"`
	PaymentMethod  string `json:"payment_method"`
	Reference      string `json:"transaction_reference"`
	ProofOfPayment string `json:"proof_of_payment"`
}

// Validate returns a field→message map; nil means the payload is valid.
func (r ManualPaymentRequest) Validate() map[string]any {
	errs := make(map[string]any)
	if r.OrderID <= 0 {
		errs["order_id"] = "order id is required"
	}
	method, ok := entity.ParsePaymentMethod(r.PaymentMethod)
	if !ok || !method.ManualMethod() {
		errs["payment_method"] = "payment method must be BANK_TRANSFER or SINPE_MOVIL"
	}
	if r.Reference == "" {
		errs["transaction_reference"] = "transaction reference is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// VerifyPaymentRequest is the admin decision over a pending manual payment.
type VerifyPaymentRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

// TransactionResponse represents a payment attempt as exposed to callers.
type TransactionResponse struct {
	ID             int64                    `json:"id"`
	OrderID        int64                    `json:"order_id"`
	Reference      string                   `json:"transaction_reference"`
	Method         entity.PaymentMethod     `json:"payment_method"`
	Status         entity.TransactionStatus `json:"status"`
	Amount         entity.Cents             `json:"amount"`
	Currency       string                   `json:"currency"`
	ProofOfPayment string                   `json:"proof_of_payment,omitempty"`
	ProcessedAt    *time.Time               `json:"processed_at,omitempty"`
	FailureReason  string                   `json:"failure_reason,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

// NewTransactionResponse maps a ledger entity.
func NewTransactionResponse(txn *entity.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:             txn.ID,
		OrderID:        txn.OrderID,
		Reference:      txn.Reference,
		Method:         txn.Method,
		Status:         txn.Status,
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		ProofOfPayment: txn.ProofOfPayment,
		ProcessedAt:    txn.ProcessedAt,
		FailureReason:  txn.FailureReason,
		CreatedAt:      txn.CreatedAt,
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
