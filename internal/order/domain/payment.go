package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentGateway is the external payment collaborator. The engine trusts it
// to deduplicate charges by idempotency key; every attempt for one order,
// including retries, carries the same key.
type PaymentGateway interface {
	// Charge debits the user. Returns the gateway's payment reference.
	Charge(ctx context.Context, userID string, amount decimal.Decimal, idempotencyKey string) (string, error)
	// Refund returns a previously charged amount.
	Refund(ctx context.Context, paymentRef string, amount decimal.Decimal) error
}

// PaymentError classifies a failed gateway call. Retryable errors (network,
// timeout) may be retried with the same idempotency key; terminal declines
// may not.
type PaymentError struct {
	Code      string
	Message   string
	Retryable bool
	cause     error
}

// NewPaymentError builds a terminal payment error.
func NewPaymentError(code, message string) *PaymentError {
	return &PaymentError{Code: code, Message: message}
}

// NewRetryablePaymentError builds a retryable payment error wrapping its
// transport-level cause.
func NewRetryablePaymentError(message string, cause error) *PaymentError {
	return &PaymentError{Code: "NETWORK", Message: message, Retryable: true, cause: cause}
}

// Error implements error.
func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed (%s): %s", e.Code, e.Message)
}

// Unwrap exposes the transport-level cause, if any.
func (e *PaymentError) Unwrap() error { return e.cause }

// IsRetryablePayment reports whether err is a retryable payment failure.
func IsRetryablePayment(err error) bool {
	var pe *PaymentError
	return errors.As(err, &pe) && pe.Retryable
}
