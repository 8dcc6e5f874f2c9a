package order

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"courseshop-be/internal/course"
	"courseshop-be/internal/logger"
	"courseshop-be/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PurchaseChecker answers whether a user already owns a course. It may be stale.
type PurchaseChecker interface {
	IsPurchased(ctx context.Context, userID, courseID int64) (bool, error)
}

// Publisher is notified after an order reaches completed.
type Publisher interface {
	PublishOrderCompleted(ctx context.Context, o *Order) error
}

type Service interface {
	CheckoutForm(ctx context.Context, buyer Buyer, courseID int64) (*CheckoutResult, error)
	Checkout(ctx context.Context, buyer Buyer, courseID int64) (*CheckoutResult, error)
	ApplyPaymentEvent(ctx context.Context, ev PaymentEvent) (*Order, bool, error)
	CheckStatus(ctx context.Context, userID, orderID int64) (*StatusView, error)
}

type Options struct {
	// BaseURL is the public origin used to build gateway return URLs.
	BaseURL  string
	Currency string
	VATCode  int
}

const rollbackTimeout = 5 * time.Second

type service struct {
	repo      Repository
	courses   course.Repository
	gateway   payment.Gateway
	purchases PurchaseChecker
	publisher Publisher
	opts      Options
}

func NewService(
	repo Repository,
	courses course.Repository,
	gateway payment.Gateway,
	purchases PurchaseChecker,
	publisher Publisher,
	opts Options,
) Service {
	if opts.Currency == "" {
		opts.Currency = "RUB"
	}
	return &service{
		repo:      repo,
		courses:   courses,
		gateway:   gateway,
		purchases: purchases,
		publisher: publisher,
		opts:      opts,
	}
}

// CourseURL is where an already purchased course redirects to.
func CourseURL(courseID int64) string {
	return "/courses/" + strconv.FormatInt(courseID, 10)
}

// ReturnURL builds the gateway return URL for an order.
func (s *service) ReturnURL(orderID int64) string {
	q := url.Values{"order_id": {strconv.FormatInt(orderID, 10)}}
	return s.opts.BaseURL + "/orders/yookassa/success?" + q.Encode()
}

// prepare loads the course and short-circuits when it is already owned.
func (s *service) prepare(ctx context.Context, buyer Buyer, courseID int64) (*course.Course, *CheckoutResult, error) {
	c, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}

	purchased, err := s.purchases.IsPurchased(ctx, buyer.UserID, c.ID)
	if err != nil {
		return nil, nil, err
	}
	if purchased {
		return c, &CheckoutResult{RedirectURL: CourseURL(c.ID), AlreadyPurchased: true}, nil
	}
	return c, nil, nil
}

func (s *service) CheckoutForm(ctx context.Context, buyer Buyer, courseID int64) (*CheckoutResult, error) {
	c, done, err := s.prepare(ctx, buyer, courseID)
	if err != nil || done != nil {
		return done, err
	}
	return &CheckoutResult{Form: &CheckoutForm{Course: c, TotalPrice: c.Price}}, nil
}

// Checkout creates a pending order and a payment session for it. When the
// session cannot be created the order is deleted again and the returned result
// carries the form with a user-facing message alongside ErrPaymentUnavailable.
func (s *service) Checkout(ctx context.Context, buyer Buyer, courseID int64) (*CheckoutResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
		zap.Int64("user_id", buyer.UserID),
		zap.Int64("course_id", courseID),
	)

	c, done, err := s.prepare(ctx, buyer, courseID)
	if err != nil || done != nil {
		return done, err
	}

	o := &Order{
		UserID:     buyer.UserID,
		CourseID:   c.ID,
		TotalPrice: c.Price,
		Status:     StatusPending,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}
	log = log.With(zap.Int64("order_id", o.ID))

	session, err := s.createPayment(ctx, buyer, c, o)
	if err == nil {
		err = s.repo.SetPaymentID(ctx, o.ID, session.ID)
	}
	if err != nil {
		log.Error("payment creation failed, rolling back order", zap.Error(err))
		if delErr := s.rollback(ctx, o.ID); delErr != nil {
			log.Error("failed to delete order after payment failure", zap.Error(delErr))
		}
		form := &CheckoutForm{Course: c, TotalPrice: c.Price, Message: msgPaymentFailed}
		return &CheckoutResult{Form: form}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	log.Info("payment session created", zap.String("payment_id", session.ID))
	return &CheckoutResult{RedirectURL: session.ConfirmationURL}, nil
}

// rollback deletes an order whose payment session failed. It outlives the
// request context so a disconnecting client cannot leave the row behind.
func (s *service) rollback(ctx context.Context, orderID int64) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	return s.repo.Delete(ctx, orderID)
}

func (s *service) createPayment(ctx context.Context, buyer Buyer, c *course.Course, o *Order) (*payment.Session, error) {
	req := payment.CreatePaymentRequest{
		Amount:         o.TotalPrice,
		Currency:       s.opts.Currency,
		Description:    fmt.Sprintf("Order %d: %s", o.ID, c.Title),
		ReturnURL:      s.ReturnURL(o.ID),
		IdempotencyKey: uuid.NewString(),
		Metadata: map[string]string{
			payment.MetadataOrderID: strconv.FormatInt(o.ID, 10),
			payment.MetadataUserID:  strconv.FormatInt(o.UserID, 10),
		},
	}

	if s.opts.VATCode > 0 && buyer.Email != "" {
		req.Receipt = &payment.Receipt{
			CustomerEmail: buyer.Email,
			Items: []payment.ReceiptItem{{
				Description: c.Title,
				Quantity:    1,
				Amount:      o.TotalPrice,
				VATCode:     s.opts.VATCode,
			}},
		}
	}

	return s.gateway.CreatePayment(ctx, req)
}

// ApplyPaymentEvent reconciles a gateway notification under the order row lock.
// It reports whether the order was mutated.
func (s *service) ApplyPaymentEvent(ctx context.Context, ev PaymentEvent) (*Order, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ApplyPaymentEvent"),
		zap.Int64("order_id", ev.OrderID),
		zap.String("event", ev.Type),
		zap.String("payment_id", ev.PaymentID),
	)

	var changed bool
	o, err := s.repo.WithOrderLock(ctx, ev.OrderID, ev.UserID, func(o *Order) (bool, error) {
		if o.Status.IsTerminal() {
			log.Info("order already final", zap.String("status", string(o.Status)))
			return false, nil
		}

		switch {
		case ev.Type == payment.EventPaymentSucceeded && ev.Status == payment.StatusSucceeded:
			if o.HasPaymentID() && *o.PaymentID != ev.PaymentID {
				log.Warn("payment id differs from checkout session, overwriting",
					zap.String("stored_payment_id", *o.PaymentID))
			}
			changed = o.Complete(ev.PaymentID)
		case ev.Type == payment.EventPaymentCanceled && ev.Status == payment.StatusCanceled:
			changed = o.Cancel()
		default:
			log.Info("ignoring payment event", zap.String("payment_status", ev.Status))
		}
		return changed, nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		log.Info("order reconciled from webhook", zap.String("status", string(o.Status)))
		s.notifyCompleted(ctx, o)
	}
	return o, changed, nil
}

// CheckStatus renders the return page outcome, querying the gateway when the
// order is still open. Gateway failures never change the order.
func (s *service) CheckStatus(ctx context.Context, userID, orderID int64) (*StatusView, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CheckStatus"),
		zap.Int64("order_id", orderID),
	)

	o, err := s.repo.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	if o.Status.IsTerminal() || !o.HasPaymentID() {
		return viewFor(o), nil
	}

	info, err := s.gateway.FindPayment(ctx, *o.PaymentID)
	if err != nil {
		log.Error("payment status lookup failed", zap.Error(err))
		return viewFor(o), nil
	}

	var apply func(o *Order) bool
	switch info.Status {
	case payment.StatusSucceeded:
		apply = func(o *Order) bool { return o.Complete(info.ID) }
	case payment.StatusCanceled, payment.StatusFailed:
		apply = func(o *Order) bool { return o.Cancel() }
	default:
		return viewFor(o), nil
	}

	var changed bool
	locked, err := s.repo.WithOrderLock(ctx, o.ID, userID, func(o *Order) (bool, error) {
		if o.Status.IsTerminal() {
			return false, nil
		}
		changed = apply(o)
		return changed, nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		log.Error("failed to apply polled status", zap.Error(err))
		return viewFor(o), nil
	}

	if changed {
		log.Info("order reconciled from status poll", zap.String("status", string(locked.Status)))
		s.notifyCompleted(ctx, locked)
	}
	return viewFor(locked), nil
}

func (s *service) notifyCompleted(ctx context.Context, o *Order) {
	if s.publisher == nil || o.Status != StatusCompleted {
		return
	}
	if err := s.publisher.PublishOrderCompleted(ctx, o); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order completed",
			zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func viewFor(o *Order) *StatusView {
	switch o.Status {
	case StatusCompleted:
		return &StatusView{Order: o, Outcome: OutcomeSuccess, Message: msgPaymentSucceeded}
	case StatusCanceled:
		return &StatusView{Order: o, Outcome: OutcomeCanceled, Message: msgPaymentCanceled}
	default:
		return &StatusView{Order: o, Outcome: OutcomePending, Message: msgPaymentPending}
	}
}
