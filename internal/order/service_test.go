package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"courseshop-be/internal/course"
	"courseshop-be/internal/payment"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockRepository) SetPaymentID(ctx context.Context, orderID int64, paymentID string) error {
	args := m.Called(ctx, orderID, paymentID)
	return args.Error(0)
}

func (m *MockRepository) GetForUser(ctx context.Context, orderID, userID int64) (*Order, error) {
	args := m.Called(ctx, orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) ExistsCompleted(ctx context.Context, userID, courseID int64) (bool, error) {
	args := m.Called(ctx, userID, courseID)
	return args.Bool(0), args.Error(1)
}

// WithOrderLock hands the stored order to fn, so state carries across calls
// the way the locked row would.
func (m *MockRepository) WithOrderLock(ctx context.Context, orderID, userID int64, fn LockedFunc) (*Order, error) {
	args := m.Called(ctx, orderID, userID)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	o := args.Get(0).(*Order)
	if _, err := fn(o); err != nil {
		return nil, err
	}
	return o, nil
}

type MockCourseRepository struct {
	mock.Mock
}

func (m *MockCourseRepository) GetByID(ctx context.Context, id int64) (*course.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*course.Course), args.Error(1)
}

func (m *MockCourseRepository) ListBlocks(ctx context.Context, courseID int64) ([]course.Block, error) {
	args := m.Called(ctx, courseID)
	return args.Get(0).([]course.Block), args.Error(1)
}

func (m *MockCourseRepository) List(ctx context.Context) ([]course.Course, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]course.Course), args.Error(1)
}

func (m *MockCourseRepository) Search(ctx context.Context, query string, limit int) ([]course.Course, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]course.Course), args.Error(1)
}

func (m *MockCourseRepository) NextContent(ctx context.Context, courseID, blockID int64, subBlockID *int64) (*course.Content, error) {
	args := m.Called(ctx, courseID, blockID, subBlockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*course.Content), args.Error(1)
}

func (m *MockCourseRepository) ContentUpTo(ctx context.Context, courseID, blockID int64, subBlockID *int64) ([]course.Content, error) {
	args := m.Called(ctx, courseID, blockID, subBlockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]course.Content), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePayment(ctx context.Context, req payment.CreatePaymentRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) FindPayment(ctx context.Context, id string) (*payment.Info, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Info), args.Error(1)
}

type MockPurchaseChecker struct {
	mock.Mock
}

func (m *MockPurchaseChecker) IsPurchased(ctx context.Context, userID, courseID int64) (bool, error) {
	args := m.Called(ctx, userID, courseID)
	return args.Bool(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderCompleted(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type serviceDeps struct {
	repo      *MockRepository
	courses   *MockCourseRepository
	gateway   *MockGateway
	purchases *MockPurchaseChecker
	publisher *MockPublisher
}

func newTestService(opts Options) (Service, *serviceDeps) {
	d := &serviceDeps{
		repo:      new(MockRepository),
		courses:   new(MockCourseRepository),
		gateway:   new(MockGateway),
		purchases: new(MockPurchaseChecker),
		publisher: new(MockPublisher),
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://shop.example"
	}
	return NewService(d.repo, d.courses, d.gateway, d.purchases, d.publisher, opts), d
}

func strPtr(s string) *string { return &s }

var testCourse = &course.Course{ID: 7, Title: "Go in practice", Price: decimal.NewFromInt(1000)}

func TestService_CheckoutForm(t *testing.T) {
	ctx := context.Background()
	buyer := Buyer{UserID: 42, Email: "a@b.c"}

	t.Run("RendersForm", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.courses.On("GetByID", ctx, int64(7)).Return(testCourse, nil)
		d.purchases.On("IsPurchased", ctx, int64(42), int64(7)).Return(false, nil)

		res, err := svc.CheckoutForm(ctx, buyer, 7)
		require.NoError(t, err)
		assert.False(t, res.IsRedirect())
		require.NotNil(t, res.Form)
		assert.True(t, decimal.NewFromInt(1000).Equal(res.Form.TotalPrice))
		d.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("AlreadyPurchased", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.courses.On("GetByID", ctx, int64(7)).Return(testCourse, nil)
		d.purchases.On("IsPurchased", ctx, int64(42), int64(7)).Return(true, nil)

		res, err := svc.CheckoutForm(ctx, buyer, 7)
		require.NoError(t, err)
		assert.True(t, res.AlreadyPurchased)
		assert.Equal(t, "/courses/7", res.RedirectURL)
	})

	t.Run("CourseNotFound", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.courses.On("GetByID", ctx, int64(8)).Return(nil, course.ErrCourseNotFound)

		res, err := svc.CheckoutForm(ctx, buyer, 8)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, course.ErrCourseNotFound)
	})
}

func TestService_Checkout(t *testing.T) {
	ctx := context.Background()
	buyer := Buyer{UserID: 42, Email: "a@b.c"}

	t.Run("Success", func(t *testing.T) {
		svc, d := newTestService(Options{VATCode: 1})
		d.courses.On("GetByID", ctx, int64(7)).Return(testCourse, nil)
		d.purchases.On("IsPurchased", ctx, int64(42), int64(7)).Return(false, nil)
		d.repo.On("Create", ctx, mock.MatchedBy(func(o *Order) bool {
			return o.UserID == 42 && o.CourseID == 7 &&
				o.Status == StatusPending && o.TotalPrice.Equal(decimal.NewFromInt(1000))
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*Order).ID = 1
		}).Return(nil)
		d.gateway.On("CreatePayment", ctx, mock.MatchedBy(func(req payment.CreatePaymentRequest) bool {
			return req.Amount.Equal(decimal.NewFromInt(1000)) &&
				req.Currency == "RUB" &&
				req.IdempotencyKey != "" &&
				req.ReturnURL == "https://shop.example/orders/yookassa/success?order_id=1" &&
				req.Metadata[payment.MetadataOrderID] == "1" &&
				req.Metadata[payment.MetadataUserID] == "42" &&
				req.Receipt != nil && req.Receipt.CustomerEmail == "a@b.c" &&
				req.Receipt.Items[0].VATCode == 1
		})).Return(&payment.Session{ID: "abc", ConfirmationURL: "https://pay/abc"}, nil)
		d.repo.On("SetPaymentID", ctx, int64(1), "abc").Return(nil)

		res, err := svc.Checkout(ctx, buyer, 7)
		require.NoError(t, err)
		assert.True(t, res.IsRedirect())
		assert.Equal(t, "https://pay/abc", res.RedirectURL)
		d.gateway.AssertNumberOfCalls(t, "CreatePayment", 1)
		d.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("NoReceiptWithoutVAT", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.courses.On("GetByID", ctx, int64(7)).Return(testCourse, nil)
		d.purchases.On("IsPurchased", ctx, int64(42), int64(7)).Return(false, nil)
		d.repo.On("Create", ctx, mock.Anything).Return(nil)
		d.gateway.On("CreatePayment", ctx, mock.MatchedBy(func(req payment.CreatePaymentRequest) bool {
			return req.Receipt == nil
		})).Return(&payment.Session{ID: "abc", ConfirmationURL: "https://pay/abc"}, nil)
		d.repo.On("SetPaymentID", ctx, mock.Anything, "abc").Return(nil)

		_, err := svc.Checkout(ctx, buyer, 7)
		require.NoError(t, err)
		d.gateway.AssertExpectations(t)
	})

	t.Run("GatewayFailureDeletesOrder", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.courses.On("GetByID", ctx, int64(7)).Return(testCourse, nil)
		d.purchases.On("IsPurchased", ctx, int64(42), int64(7)).Return(false, nil)
		d.repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*Order).ID = 3
		}).Return(nil)
		d.gateway.On("CreatePayment", ctx, mock.Anything).Return(nil, errors.New("timeout"))
		d.repo.On("Delete", mock.Anything, int64(3)).Return(nil)

		res, err := svc.Checkout(ctx, buyer, 7)
		assert.ErrorIs(t, err, ErrPaymentUnavailable)
		require.NotNil(t, res)
		require.NotNil(t, res.Form)
		assert.Equal(t, msgPaymentFailed, res.Form.Message)
		d.repo.AssertCalled(t, "Delete", mock.Anything, int64(3))
		d.repo.AssertNotCalled(t, "SetPaymentID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StoringPaymentIDFailsDeletesOrder", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.courses.On("GetByID", ctx, int64(7)).Return(testCourse, nil)
		d.purchases.On("IsPurchased", ctx, int64(42), int64(7)).Return(false, nil)
		d.repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*Order).ID = 4
		}).Return(nil)
		d.gateway.On("CreatePayment", ctx, mock.Anything).
			Return(&payment.Session{ID: "abc", ConfirmationURL: "https://pay/abc"}, nil)
		d.repo.On("SetPaymentID", ctx, int64(4), "abc").Return(errors.New("db down"))
		d.repo.On("Delete", mock.Anything, int64(4)).Return(nil)

		_, err := svc.Checkout(ctx, buyer, 7)
		assert.ErrorIs(t, err, ErrPaymentUnavailable)
		d.repo.AssertCalled(t, "Delete", mock.Anything, int64(4))
	})

	t.Run("AlreadyPurchasedCreatesNothing", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.courses.On("GetByID", ctx, int64(7)).Return(testCourse, nil)
		d.purchases.On("IsPurchased", ctx, int64(42), int64(7)).Return(true, nil)

		res, err := svc.Checkout(ctx, buyer, 7)
		require.NoError(t, err)
		assert.True(t, res.AlreadyPurchased)
		d.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		d.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
	})
}

func TestService_Checkout_RollbackSurvivesCanceledContext(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	courses := new(MockCourseRepository)
	gateway := new(MockGateway)
	purchases := new(MockPurchaseChecker)
	svc := NewService(NewRepository(db), courses, gateway, purchases, new(MockPublisher),
		Options{BaseURL: "https://shop.example"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	courses.On("GetByID", mock.Anything, int64(7)).Return(testCourse, nil)
	purchases.On("IsPurchased", mock.Anything, int64(42), int64(7)).Return(false, nil)
	now := time.Now()
	sqlMock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(42), int64(7), sqlmock.AnyArg(), "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(42, now, now))
	// The client goes away while the gateway call is in flight.
	gateway.On("CreatePayment", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.New("client disconnected"))
	sqlMock.ExpectExec(`DELETE FROM orders WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.Checkout(ctx, Buyer{UserID: 42, Email: "a@b.c"}, 7)
	assert.ErrorIs(t, err, ErrPaymentUnavailable)
	require.NotNil(t, res)
	require.NotNil(t, res.Form)
	assert.NoError(t, sqlMock.ExpectationsWereMet(), "pending order must be deleted")
}

func TestService_ApplyPaymentEvent(t *testing.T) {
	ctx := context.Background()

	succeeded := PaymentEvent{
		Type: payment.EventPaymentSucceeded, Status: payment.StatusSucceeded,
		PaymentID: "abc", OrderID: 1, UserID: 42,
	}

	t.Run("SucceededThenDuplicate", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, CourseID: 7, Status: StatusPending, PaymentID: strPtr("abc")}
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)
		d.publisher.On("PublishOrderCompleted", ctx, stored).Return(nil).Once()

		o, changed, err := svc.ApplyPaymentEvent(ctx, succeeded)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusCompleted, o.Status)

		o, changed, err = svc.ApplyPaymentEvent(ctx, succeeded)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, StatusCompleted, o.Status)
		d.publisher.AssertNumberOfCalls(t, "PublishOrderCompleted", 1)
	})

	t.Run("DifferentPaymentIDOverwrites", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("old")}
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)
		d.publisher.On("PublishOrderCompleted", ctx, stored).Return(nil)

		_, changed, err := svc.ApplyPaymentEvent(ctx, succeeded)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "abc", *stored.PaymentID)
	})

	t.Run("Canceled", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("abc")}
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)

		_, changed, err := svc.ApplyPaymentEvent(ctx, PaymentEvent{
			Type: payment.EventPaymentCanceled, Status: payment.StatusCanceled,
			PaymentID: "abc", OrderID: 1, UserID: 42,
		})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusCanceled, stored.Status)
		d.publisher.AssertNotCalled(t, "PublishOrderCompleted", mock.Anything, mock.Anything)
	})

	t.Run("CanceledAfterCompletedIsNoop", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusCompleted, PaymentID: strPtr("abc")}
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)

		_, changed, err := svc.ApplyPaymentEvent(ctx, PaymentEvent{
			Type: payment.EventPaymentCanceled, Status: payment.StatusCanceled,
			PaymentID: "abc", OrderID: 1, UserID: 42,
		})
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, StatusCompleted, stored.Status)
	})

	t.Run("MismatchedTypeAndStatusIgnored", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending}
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)

		for _, ev := range []PaymentEvent{
			{Type: payment.EventPaymentSucceeded, Status: payment.StatusPending, OrderID: 1, UserID: 42},
			{Type: payment.EventPaymentWaitingForCapture, Status: payment.StatusWaitingForCapture, OrderID: 1, UserID: 42},
			{Type: "refund.succeeded", Status: payment.StatusSucceeded, OrderID: 1, UserID: 42},
		} {
			_, changed, err := svc.ApplyPaymentEvent(ctx, ev)
			require.NoError(t, err)
			assert.False(t, changed)
		}
		assert.Equal(t, StatusPending, stored.Status)
	})

	t.Run("OrderNotFound", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(nil, ErrOrderNotFound)

		_, _, err := svc.ApplyPaymentEvent(ctx, succeeded)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("PublishFailureIsNotFatal", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("abc")}
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)
		d.publisher.On("PublishOrderCompleted", ctx, stored).Return(errors.New("broker down"))

		_, changed, err := svc.ApplyPaymentEvent(ctx, succeeded)
		require.NoError(t, err)
		assert.True(t, changed)
	})
}

func TestService_CheckStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("PollerCompletesBeforeWebhook", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("abc")}
		d.repo.On("GetForUser", ctx, int64(1), int64(42)).Return(stored, nil)
		d.gateway.On("FindPayment", ctx, "abc").
			Return(&payment.Info{ID: "abc", Status: payment.StatusSucceeded, Paid: true}, nil)
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)
		d.publisher.On("PublishOrderCompleted", ctx, stored).Return(nil).Once()

		view, err := svc.CheckStatus(ctx, 42, 1)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, view.Outcome)
		assert.Equal(t, msgPaymentSucceeded, view.Message)

		// the late webhook finds a terminal order
		_, changed, err := svc.ApplyPaymentEvent(ctx, PaymentEvent{
			Type: payment.EventPaymentSucceeded, Status: payment.StatusSucceeded,
			PaymentID: "abc", OrderID: 1, UserID: 42,
		})
		require.NoError(t, err)
		assert.False(t, changed)
		d.publisher.AssertNumberOfCalls(t, "PublishOrderCompleted", 1)
	})

	t.Run("GatewayCanceledOrFailed", func(t *testing.T) {
		for _, status := range []string{payment.StatusCanceled, payment.StatusFailed} {
			svc, d := newTestService(Options{})
			stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("abc")}
			d.repo.On("GetForUser", ctx, int64(1), int64(42)).Return(stored, nil)
			d.gateway.On("FindPayment", ctx, "abc").Return(&payment.Info{ID: "abc", Status: status}, nil)
			d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(stored, nil)

			view, err := svc.CheckStatus(ctx, 42, 1)
			require.NoError(t, err)
			assert.Equal(t, OutcomeCanceled, view.Outcome, status)
			assert.Equal(t, StatusCanceled, stored.Status)
		}
	})

	t.Run("GatewayStillPending", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("abc")}
		d.repo.On("GetForUser", ctx, int64(1), int64(42)).Return(stored, nil)
		d.gateway.On("FindPayment", ctx, "abc").
			Return(&payment.Info{ID: "abc", Status: payment.StatusWaitingForCapture}, nil)

		view, err := svc.CheckStatus(ctx, 42, 1)
		require.NoError(t, err)
		assert.Equal(t, OutcomePending, view.Outcome)
		d.repo.AssertNotCalled(t, "WithOrderLock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("GatewayErrorRendersPending", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("abc")}
		d.repo.On("GetForUser", ctx, int64(1), int64(42)).Return(stored, nil)
		d.gateway.On("FindPayment", ctx, "abc").Return(nil, errors.New("timeout"))

		view, err := svc.CheckStatus(ctx, 42, 1)
		require.NoError(t, err)
		assert.Equal(t, OutcomePending, view.Outcome)
		assert.Equal(t, StatusPending, stored.Status)
	})

	t.Run("TerminalSkipsGateway", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusCanceled, PaymentID: strPtr("abc")}
		d.repo.On("GetForUser", ctx, int64(1), int64(42)).Return(stored, nil)

		view, err := svc.CheckStatus(ctx, 42, 1)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCanceled, view.Outcome)
		d.gateway.AssertNotCalled(t, "FindPayment", mock.Anything, mock.Anything)
	})

	t.Run("NoPaymentIDSkipsGateway", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending}
		d.repo.On("GetForUser", ctx, int64(1), int64(42)).Return(stored, nil)

		view, err := svc.CheckStatus(ctx, 42, 1)
		require.NoError(t, err)
		assert.Equal(t, OutcomePending, view.Outcome)
		d.gateway.AssertNotCalled(t, "FindPayment", mock.Anything, mock.Anything)
	})

	t.Run("ForeignOrder", func(t *testing.T) {
		svc, d := newTestService(Options{})
		d.repo.On("GetForUser", ctx, int64(1), int64(99)).Return(nil, ErrOrderNotFound)

		view, err := svc.CheckStatus(ctx, 99, 1)
		assert.Nil(t, view)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("LockFailureRendersCurrentState", func(t *testing.T) {
		svc, d := newTestService(Options{})
		stored := &Order{ID: 1, UserID: 42, Status: StatusPending, PaymentID: strPtr("abc")}
		d.repo.On("GetForUser", ctx, int64(1), int64(42)).Return(stored, nil)
		d.gateway.On("FindPayment", ctx, "abc").
			Return(&payment.Info{ID: "abc", Status: payment.StatusSucceeded}, nil)
		d.repo.On("WithOrderLock", ctx, int64(1), int64(42)).Return(nil, errors.New("deadlock"))

		view, err := svc.CheckStatus(ctx, 42, 1)
		require.NoError(t, err)
		assert.Equal(t, OutcomePending, view.Outcome)
	})
}
