package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
)

const orderColumns = "id, user_id, status, total_amount, shipping_address, payment_id, created_at, updated_at"

func scanOrder(row scanner) (*models.Order, error) {
	order := &models.Order{}
	var paymentID sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress,
		&paymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		order.PaymentID = &paymentID.String
	}
	return order, nil
}

func GetOrder(ctx context.Context, q Querier, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := attachItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrders returns orders newest first. An empty userID lists every order.
func ListOrders(ctx context.Context, q Querier, userID string, page Page) ([]models.Order, error) {
	b := psql.Select(orderColumns).From("orders")
	if userID != "" {
		b = b.Where(sq.Eq{"user_id": userID})
	}

	query, args, err := b.
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Skip)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build order list: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		out = append(out, *order)
	}
	return out, nil
}

// attachItems loads the items of all given orders in one query.
func attachItems(ctx context.Context, q Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[string][]models.OrderItem, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
		byID[order.ID] = nil
	}

	query := `
		SELECT id, order_id, book_id, quantity, unit_price, position, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.BookID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Position,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		byID[item.OrderID] = append(byID[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, order := range orders {
		order.SetItems(byID[order.ID])
	}
	return nil
}

// OrderUpdate lists the fields to change; nil pointers are left untouched.
type OrderUpdate struct {
	Status          *models.OrderStatus
	ShippingAddress *string
	PaymentID       *string
}

func UpdateOrder(ctx context.Context, q Querier, id string, upd OrderUpdate) (*models.Order, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, database.ErrInvalidInput
	}

	b := psql.Update("orders").Set("updated_at", time.Now().UTC()).Where(sq.Eq{"id": id})
	if upd.Status != nil {
		b = b.Set("status", string(*upd.Status))
	}
	if upd.ShippingAddress != nil {
		b = b.Set("shipping_address", *upd.ShippingAddress)
	}
	if upd.PaymentID != nil {
		b = b.Set("payment_id", *upd.PaymentID)
	}

	query, args, err := b.Suffix("RETURNING " + orderColumns).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build order update: %w", err)
	}

	order, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := attachItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}
