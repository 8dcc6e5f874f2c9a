package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"courseshop-be/internal/logger"

	"go.uber.org/zap"
)

// LockedFunc inspects and may mutate an order held under a row lock.
// It reports whether the order was changed and must be written back.
type LockedFunc func(o *Order) (changed bool, err error)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Delete(ctx context.Context, orderID int64) error
	SetPaymentID(ctx context.Context, orderID int64, paymentID string) error
	GetForUser(ctx context.Context, orderID, userID int64) (*Order, error)
	ExistsCompleted(ctx context.Context, userID, courseID int64) (bool, error)

	// WithOrderLock loads the order with SELECT ... FOR UPDATE and keeps the
	// lock until fn returns and any write is committed.
	WithOrderLock(ctx context.Context, orderID, userID int64, fn LockedFunc) (*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, user_id, course_id, total_price, status, yookassa_payment_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o         Order
		paymentID sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CourseID, &o.TotalPrice,
		&o.Status, &paymentID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		o.PaymentID = &paymentID.String
	}
	return &o, nil
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	const q = `
		INSERT INTO orders (user_id, course_id, total_price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	if o.Status == "" {
		o.Status = StatusPending
	}

	err := r.db.QueryRowContext(ctx, q, o.UserID, o.CourseID, o.TotalPrice, o.Status).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orderID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("delete order %d: %w", orderID, err)
	}
	return nil
}

// SetPaymentID stores the payment session id; an id that is already set is kept.
func (r *repository) SetPaymentID(ctx context.Context, orderID int64, paymentID string) error {
	const q = `
		UPDATE orders
		SET yookassa_payment_id = $1, updated_at = NOW()
		WHERE id = $2 AND yookassa_payment_id IS NULL
	`

	res, err := r.db.ExecContext(ctx, q, paymentID, orderID)
	if err != nil {
		return fmt.Errorf("set payment id for order %d: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) GetForUser(ctx context.Context, orderID, userID int64) (*Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	o, err := scanOrder(r.db.QueryRowContext(ctx, q, orderID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return o, nil
}

func (r *repository) ExistsCompleted(ctx context.Context, userID, courseID int64) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE user_id = $1 AND course_id = $2 AND status = $3
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, userID, courseID, StatusCompleted).Scan(&exists); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

func (r *repository) WithOrderLock(ctx context.Context, orderID, userID int64, fn LockedFunc) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.Int64("order_id", orderID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`

	o, err := scanOrder(tx.QueryRowContext(ctx, q, orderID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %d: %w", orderID, err)
	}

	changed, err := fn(o)
	if err != nil {
		return nil, err
	}

	if changed {
		const upd = `
			UPDATE orders
			SET status = $1, yookassa_payment_id = $2, updated_at = NOW()
			WHERE id = $3
			RETURNING updated_at
		`
		var paymentID sql.NullString
		if o.PaymentID != nil {
			paymentID = sql.NullString{String: *o.PaymentID, Valid: true}
		}

		if err := tx.QueryRowContext(ctx, upd, o.Status, paymentID, o.ID).Scan(&o.UpdatedAt); err != nil {
			log.Error("failed to write order status", zap.Error(err))
			return nil, fmt.Errorf("update order %d: %w", orderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order %d: %w", orderID, err)
	}

	if changed {
		log.Info("order status written", zap.String("status", string(o.Status)))
	}
	return o, nil
}
