// Package ordering places orders: it validates a cart against the catalog,
// snapshots prices, decrements stock and persists the order with its items
// inside a single transaction.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
)

// LineItem is one requested (book, quantity) pair of a cart.
type LineItem struct {
	BookID   string
	Quantity int
}

// BookRepository reads and mutates catalog rows inside a transaction.
type BookRepository interface {
	// LockBook returns the book and holds a row lock on it until the
	// transaction ends. Missing books yield database.ErrBookNotFound.
	LockBook(ctx context.Context, bookID string) (*models.Book, error)
	// DecrementStock subtracts quantity only if enough stock remains and
	// returns database.ErrInsufficientStock otherwise.
	DecrementStock(ctx context.Context, bookID string, quantity int) error
}

// OrderRepository persists orders and their items inside a transaction.
type OrderRepository interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
}

// Tx is the unit of work handed to WithinTx callbacks.
type Tx interface {
	BookRepository
	OrderRepository
}

// Transactor runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise. Implementations may run fn more than once when the
// store reports a retryable conflict.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Recorder receives the outcome of every placement attempt.
type Recorder interface {
	ObservePlacement(outcome string, duration time.Duration)
}

const (
	OutcomePlaced            = "placed"
	OutcomeInvalidInput      = "invalid_input"
	OutcomeNotFound          = "not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomePersistence       = "persistence_failure"
)

type Service struct {
	transactor Transactor
	logger     logrus.FieldLogger
	recorder   Recorder
	timeout    time.Duration
	now        func() time.Time
	newID      func() string
}

type Option func(*Service)

// WithTimeout bounds a single placement, retries included.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

func NewService(transactor Transactor, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		transactor: transactor,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder turns a cart into a pending order owned by userID. Either every
// stock decrement, the order and all of its items are committed, or nothing
// is. The returned error is one of *InvalidInputError, *NotFoundError,
// *InsufficientStockError or *PersistenceError.
func (s *Service) PlaceOrder(ctx context.Context, userID, shippingAddress string, items []LineItem) (*models.Order, error) {
	start := time.Now()

	order, err := s.placeOrder(ctx, userID, shippingAddress, items)

	outcome := outcomeOf(err)
	if s.recorder != nil {
		s.recorder.ObservePlacement(outcome, time.Since(start))
	}

	log := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"lines":   len(items),
		"outcome": outcome,
	})
	switch outcome {
	case OutcomePlaced:
		log.WithFields(logrus.Fields{
			"order_id":     order.ID,
			"total_amount": order.TotalAmount.StringFixed(2),
		}).Info("order placed")
	case OutcomePersistence:
		log.WithError(err).Error("order placement failed")
	default:
		log.WithError(err).Info("order rejected")
	}

	return order, err
}

func (s *Service) placeOrder(ctx context.Context, userID, shippingAddress string, items []LineItem) (*models.Order, error) {
	if err := validateCart(userID, shippingAddress, items); err != nil {
		return nil, err
	}
	shippingAddress = strings.TrimSpace(shippingAddress)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var placed *models.Order
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := s.placeInTx(ctx, tx, userID, shippingAddress, items)
		if err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, asPlacementError(err)
	}

	return placed, nil
}

type stagedLine struct {
	bookID    string
	quantity  int
	unitPrice decimal.Decimal
}

func (s *Service) placeInTx(ctx context.Context, tx Tx, userID, shippingAddress string, items []LineItem) (*models.Order, error) {
	books := make(map[string]*models.Book, len(items))
	remaining := make(map[string]int, len(items))
	lockOrder := make([]string, 0, len(items))
	lines := make([]stagedLine, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		book, ok := books[item.BookID]
		if !ok {
			locked, err := tx.LockBook(ctx, item.BookID)
			if errors.Is(err, database.ErrBookNotFound) {
				return nil, &NotFoundError{BookID: item.BookID}
			}
			if err != nil {
				return nil, fmt.Errorf("lock book %s: %w", item.BookID, err)
			}
			book = locked
			books[item.BookID] = book
			remaining[item.BookID] = book.Stock
			lockOrder = append(lockOrder, item.BookID)
		}

		available := remaining[item.BookID]
		if available < item.Quantity {
			return nil, &InsufficientStockError{
				BookID:    item.BookID,
				Title:     book.Title,
				Requested: item.Quantity,
				Available: available,
			}
		}

		unitPrice := book.Price
		total = total.Add(unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		remaining[item.BookID] = available - item.Quantity
		lines = append(lines, stagedLine{
			bookID:    item.BookID,
			quantity:  item.Quantity,
			unitPrice: unitPrice,
		})
	}

	for _, bookID := range lockOrder {
		book := books[bookID]
		quantity := book.Stock - remaining[bookID]
		err := tx.DecrementStock(ctx, bookID, quantity)
		if errors.Is(err, database.ErrInsufficientStock) {
			// The row changed despite the lock; report what this order saw.
			return nil, &InsufficientStockError{
				BookID:    bookID,
				Title:     book.Title,
				Requested: quantity,
				Available: book.Stock,
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decrement stock of %s: %w", bookID, err)
		}
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:              s.newID(),
		UserID:          userID,
		Status:          models.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	orderItems := make([]models.OrderItem, 0, len(lines))
	for i, line := range lines {
		item := models.OrderItem{
			ID:        s.newID(),
			OrderID:   order.ID,
			BookID:    line.bookID,
			Quantity:  line.quantity,
			UnitPrice: line.unitPrice,
			Position:  i,
			CreatedAt: now,
		}
		if err := tx.InsertOrderItem(ctx, &item); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		orderItems = append(orderItems, item)
	}
	order.SetItems(orderItems)

	return order, nil
}

func validateCart(userID, shippingAddress string, items []LineItem) error {
	if strings.TrimSpace(userID) == "" {
		return &InvalidInputError{Field: "user_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return &InvalidInputError{Field: "shipping_address", Reason: "must not be empty"}
	}
	if len(items) == 0 {
		return &InvalidInputError{Field: "items", Reason: "order must contain at least one item"}
	}
	for i, item := range items {
		if strings.TrimSpace(item.BookID) == "" {
			return &InvalidInputError{Field: fmt.Sprintf("items[%d].book_id", i), Reason: "must not be empty"}
		}
		if item.Quantity < 1 {
			return &InvalidInputError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: fmt.Sprintf("must be at least 1, got %d", item.Quantity),
			}
		}
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomePlaced
	case errors.Is(err, database.ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, database.ErrBookNotFound):
		return OutcomeNotFound
	case errors.Is(err, database.ErrInsufficientStock):
		return OutcomeInsufficientStock
	default:
		return OutcomePersistence
	}
}
