package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the payment provider adapter.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Session, error)
	FindPayment(ctx context.Context, paymentID string) (*Info, error)
}

// Provider event kinds delivered to the webhook.
const (
	EventPaymentSucceeded         = "payment.succeeded"
	EventPaymentCanceled          = "payment.canceled"
	EventPaymentWaitingForCapture = "payment.waiting_for_capture"
)

// Provider payment statuses.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
	StatusFailed            = "failed"
)

// Correlation metadata keys embedded at checkout and echoed by the webhook.
const (
	MetadataOrderID = "order_id"
	MetadataUserID  = "user_id"
)

type CreatePaymentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	ReturnURL      string
	IdempotencyKey string
	Metadata       map[string]string
	Receipt        *Receipt
}

type Receipt struct {
	CustomerEmail string
	Items         []ReceiptItem
}

type ReceiptItem struct {
	Description string
	Quantity    int
	Amount      decimal.Decimal
	VATCode     int
}

// Session is a created payment awaiting user confirmation on the provider side.
type Session struct {
	ID              string
	Status          string
	ConfirmationURL string
}

type Info struct {
	ID     string
	Status string
	Paid   bool
}
