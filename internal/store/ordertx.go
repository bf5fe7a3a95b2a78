package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/ordering"
)

// OrderTransactor runs order placement against Postgres. Each attempt is a
// READ COMMITTED transaction; deadlocks and serialization failures restart
// the whole unit of work.
type OrderTransactor struct {
	db         *sql.DB
	maxRetries int
	logger     logrus.FieldLogger
	onRetry    func()
}

// NewOrderTransactor returns a transactor; onRetry, if not nil, is called
// each time an attempt is abandoned for another.
func NewOrderTransactor(db *sql.DB, maxRetries int, logger logrus.FieldLogger, onRetry func()) *OrderTransactor {
	return &OrderTransactor{db: db, maxRetries: maxRetries, logger: logger, onRetry: onRetry}
}

func (t *OrderTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ordering.Tx) error) error {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = t.maxRetries
	opts.OnRetry = func(attempt int, err error) {
		t.logger.WithError(err).WithField("attempt", attempt).Warn("retrying order transaction")
		if t.onRetry != nil {
			t.onRetry()
		}
	}

	return database.WithRetry(ctx, t.db, opts, func(tx *sql.Tx) error {
		return fn(ctx, orderTx{tx: tx})
	})
}

type orderTx struct {
	tx *sql.Tx
}

// LockBook waits for concurrent placements holding the same row.
func (o orderTx) LockBook(ctx context.Context, bookID string) (*models.Book, error) {
	query, args, err := psql.Select(bookColumns...).
		From("books").
		Where("id = ?", bookID).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build book lock: %w", err)
	}

	book, err := scanBook(o.tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBookNotFound
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}

	return book, nil
}

func (o orderTx) DecrementStock(ctx context.Context, bookID string, quantity int) error {
	result, err := o.tx.ExecContext(ctx,
		`UPDATE books
		 SET stock = stock - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, bookID)
	if err != nil {
		if database.IsCheckViolation(err, "books_stock_non_negative") {
			return database.ErrInsufficientStock
		}
		return fmt.Errorf("update stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func (o orderTx) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := o.tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_amount, shipping_address, payment_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.UserID, order.Status, order.TotalAmount, order.ShippingAddress,
		order.PaymentID, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err, "orders_user_id_fkey") {
			return fmt.Errorf("%w: user %s", database.ErrReferenceMissing, order.UserID)
		}
		return err
	}
	return nil
}

func (o orderTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	_, err := o.tx.ExecContext(ctx,
		`INSERT INTO order_items (id, order_id, book_id, quantity, unit_price, position, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.OrderID, item.BookID, item.Quantity, item.UnitPrice, item.Position, item.CreatedAt)
	return err
}
