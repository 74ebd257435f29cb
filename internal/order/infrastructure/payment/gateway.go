// Package payment adapts the external payment processor's HTTP API to the
// PaymentGateway port.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/wqellis/brickvest/internal/order/domain"
	"github.com/wqellis/brickvest/pkg/logger"
)

// Config holds the gateway endpoint settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPGateway calls the processor over HTTP. Transport failures and 5xx
// responses surface as retryable payment errors; declines (402/422) are
// terminal. The processor deduplicates by the Idempotency-Key header, so
// resty's transport retries and caller-level retries are both safe.
type HTTPGateway struct {
	client *resty.Client
}

// NewHTTPGateway creates the adapter.
func NewHTTPGateway(cfg Config) *HTTPGateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only transport errors and server-side failures retry;
			// a decline must never be re-submitted.
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &HTTPGateway{client: client}
}

type chargeRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

type chargeResponse struct {
	Success    bool   `json:"success"`
	PaymentRef string `json:"payment_ref"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Charge debits the user through the processor.
func (g *HTTPGateway) Charge(ctx context.Context, userID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	var result chargeResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", idempotencyKey).
		SetBody(chargeRequest{UserID: userID, Amount: amount.StringFixed(2)}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/charges")
	if err != nil {
		return "", domain.NewRetryablePaymentError("charge request failed", err)
	}

	switch {
	case resp.IsSuccess() && result.Success:
		logger.Debug(ctx, "payment charged", "payment_ref", result.PaymentRef)
		return result.PaymentRef, nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		return "", domain.NewRetryablePaymentError(
			fmt.Sprintf("gateway returned %d", resp.StatusCode()), nil)
	default:
		code := result.Code
		if code == "" {
			code = "DECLINED"
		}
		return "", domain.NewPaymentError(code, result.Message)
	}
}

type refundRequest struct {
	PaymentRef string `json:"payment_ref"`
	Amount     string `json:"amount"`
}

// Refund returns a previously charged amount.
func (g *HTTPGateway) Refund(ctx context.Context, paymentRef string, amount decimal.Decimal) error {
	var result chargeResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(refundRequest{PaymentRef: paymentRef, Amount: amount.StringFixed(2)}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/refunds")
	if err != nil {
		return domain.NewRetryablePaymentError("refund request failed", err)
	}

	switch {
	case resp.IsSuccess() && result.Success:
		logger.Debug(ctx, "payment refunded", "payment_ref", paymentRef)
		return nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		return domain.NewRetryablePaymentError(
			fmt.Sprintf("gateway returned %d", resp.StatusCode()), nil)
	default:
		code := result.Code
		if code == "" {
			code = "REFUND_REJECTED"
		}
		return domain.NewPaymentError(code, result.Message)
	}
}
