// Package memory is an in-process backend with the same semantics as the
// Postgres store. Transactions are serialized by a single mutex and work on
// staged copies that are swapped in on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/ordering"
	"github.com/safar/go-bookshop/internal/store"
)

// Fault operations observed by a FaultFunc.
const (
	OpLockBook        = "lock_book"
	OpDecrementStock  = "decrement_stock"
	OpInsertOrder     = "insert_order"
	OpInsertOrderItem = "insert_order_item"
)

// FaultFunc may return an error to make the named operation fail.
type FaultFunc func(op string) error

type Store struct {
	mu        sync.Mutex
	users     map[string]models.User
	books     map[string]models.Book
	orders    map[string]models.Order
	items     []models.OrderItem
	addresses map[string]models.ShippingAddress
	wishlist  []models.WishlistItem
	fault     FaultFunc
	now       func() time.Time
}

func New() *Store {
	return &Store{
		users:     map[string]models.User{},
		books:     map[string]models.Book{},
		orders:    map[string]models.Order{},
		addresses: map[string]models.ShippingAddress{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetFault installs f for subsequent transactions; nil clears it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// PutBook inserts or replaces a book as is, keeping its ID.
func (s *Store) PutBook(book models.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.ID] = book
}

// PutUser inserts or replaces a user as is, keeping its ID.
func (s *Store) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// Stock returns the current stock of a book and whether it exists.
func (s *Store) Stock(bookID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[bookID]
	return book.Stock, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) OrderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// WithinTx implements ordering.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ordering.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:  s,
		books:  make(map[string]models.Book, len(s.books)),
		orders: map[string]models.Order{},
	}
	for id, book := range s.books {
		tx.books[id] = book
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.books = tx.books
	for id, order := range tx.orders {
		s.orders[id] = order
	}
	s.items = append(s.items, tx.items...)
	return nil
}

type memTx struct {
	store  *Store
	books  map[string]models.Book
	orders map[string]models.Order
	items  []models.OrderItem
}

func (t *memTx) fail(op string) error {
	if t.store.fault == nil {
		return nil
	}
	return t.store.fault(op)
}

func (t *memTx) LockBook(_ context.Context, bookID string) (*models.Book, error) {
	if err := t.fail(OpLockBook); err != nil {
		return nil, err
	}
	book, ok := t.books[bookID]
	if !ok {
		return nil, database.ErrBookNotFound
	}
	return &book, nil
}

func (t *memTx) DecrementStock(_ context.Context, bookID string, quantity int) error {
	if err := t.fail(OpDecrementStock); err != nil {
		return err
	}
	book, ok := t.books[bookID]
	if !ok || book.Stock < quantity {
		return database.ErrInsufficientStock
	}
	book.Stock -= quantity
	book.UpdatedAt = t.store.now()
	t.books[bookID] = book
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, order *models.Order) error {
	if err := t.fail(OpInsertOrder); err != nil {
		return err
	}
	stored := *order
	stored.Items = nil
	stored.ItemCount = 0
	t.orders[order.ID] = stored
	return nil
}

func (t *memTx) InsertOrderItem(_ context.Context, item *models.OrderItem) error {
	if err := t.fail(OpInsertOrderItem); err != nil {
		return err
	}
	if _, ok := t.orders[item.OrderID]; !ok {
		return database.ErrReferenceMissing
	}
	t.items = append(t.items, *item)
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, params store.CreateUserParams) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(params.Email))
	for _, user := range s.users {
		if user.Email == email {
			return nil, database.ErrEmailTaken
		}
	}

	now := s.now()
	user := models.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: params.HashedPassword,
		FullName:       params.FullName,
		IsActive:       params.IsActive,
		IsAdmin:        params.IsAdmin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, database.ErrUserNotFound
}

func (s *Store) ListUsers(_ context.Context, page store.Page) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return window(users, page), nil
}

func (s *Store) UpdateUser(_ context.Context, id string, upd store.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		for _, other := range s.users {
			if other.ID != id && other.Email == email {
				return nil, database.ErrEmailTaken
			}
		}
		user.Email = email
	}
	if upd.HashedPassword != nil {
		user.HashedPassword = *upd.HashedPassword
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	if upd.IsAdmin != nil {
		user.IsAdmin = *upd.IsAdmin
	}
	user.UpdatedAt = s.now()
	s.users[id] = user
	return &user, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return database.ErrUserNotFound
	}

	items := s.items[:0]
	for _, item := range s.items {
		if s.orders[item.OrderID].UserID != id {
			items = append(items, item)
		}
	}
	s.items = items
	for orderID, order := range s.orders {
		if order.UserID == id {
			delete(s.orders, orderID)
		}
	}
	wishlist := s.wishlist[:0]
	for _, entry := range s.wishlist {
		if entry.UserID != id {
			wishlist = append(wishlist, entry)
		}
	}
	s.wishlist = wishlist
	delete(s.addresses, id)
	delete(s.users, id)
	return nil
}

func window[T any](all []T, page store.Page) []T {
	if page.Skip >= len(all) {
		return []T{}
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end]
}
