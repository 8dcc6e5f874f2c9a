package order

import (
	"time"

	"courseshop-be/internal/course"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal reports whether no further automated transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

type Order struct {
	ID         int64
	UserID     int64
	CourseID   int64
	TotalPrice decimal.Decimal
	Status     Status
	PaymentID  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Complete moves a non-terminal order to completed and records the provider
// payment id. It returns false when the order is already terminal.
func (o *Order) Complete(paymentID string) bool {
	if o.Status.IsTerminal() {
		return false
	}
	o.Status = StatusCompleted
	if paymentID != "" {
		o.PaymentID = &paymentID
	}
	return true
}

// Cancel moves a non-terminal order to canceled. The payment id is left as is.
func (o *Order) Cancel() bool {
	if o.Status.IsTerminal() {
		return false
	}
	o.Status = StatusCanceled
	return true
}

func (o *Order) HasPaymentID() bool {
	return o.PaymentID != nil && *o.PaymentID != ""
}

// Buyer identifies the user placing an order.
type Buyer struct {
	UserID int64
	Email  string
}

// PaymentEvent is a gateway notification already correlated to an order.
type PaymentEvent struct {
	Type      string
	PaymentID string
	Status    string
	OrderID   int64
	UserID    int64
}

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomePending  Outcome = "pending"
	OutcomeCanceled Outcome = "canceled"
)

// StatusView is what the return/cancel pages render.
type StatusView struct {
	Order   *Order
	Outcome Outcome
	Message string
}

// CheckoutForm is the confirmation form payload.
type CheckoutForm struct {
	Course     *course.Course
	TotalPrice decimal.Decimal
	Message    string
}

// CheckoutResult is either a redirect target or a form to render.
type CheckoutResult struct {
	RedirectURL      string
	AlreadyPurchased bool
	Form             *CheckoutForm
}

func (r *CheckoutResult) IsRedirect() bool {
	return r != nil && r.RedirectURL != ""
}
