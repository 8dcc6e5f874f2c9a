package order

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentUnavailable = errors.New("payment could not be created")
	ErrUnauthorized       = errors.New("unauthorized")
)

const (
	msgPaymentFailed    = "Payment processing error. Please try again."
	msgPaymentSucceeded = "Payment succeeded! Course access is open."
	msgPaymentCanceled  = "Payment was canceled."
	msgPaymentPending   = "Payment is being processed."
)
