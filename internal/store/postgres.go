package store

import (
	"context"
	"database/sql"

	"github.com/safar/go-bookshop/internal/models"
)

// Postgres exposes the package functions as methods bound to a pool, so
// handlers can depend on small interfaces instead of *sql.DB.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	return CreateUser(ctx, p.db, params)
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	return GetUser(ctx, p.db, id)
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return GetUserByEmail(ctx, p.db, email)
}

func (p *Postgres) ListUsers(ctx context.Context, page Page) ([]models.User, error) {
	return ListUsers(ctx, p.db, page)
}

func (p *Postgres) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	return UpdateUser(ctx, p.db, id, upd)
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	return DeleteUser(ctx, p.db, id)
}

func (p *Postgres) CreateBook(ctx context.Context, params CreateBookParams) (*models.Book, error) {
	return CreateBook(ctx, p.db, params)
}

func (p *Postgres) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return GetBook(ctx, p.db, id)
}

func (p *Postgres) ListBooks(ctx context.Context, filter BookFilter, page Page) ([]models.Book, error) {
	return ListBooks(ctx, p.db, filter, page)
}

func (p *Postgres) UpdateBook(ctx context.Context, id string, upd BookUpdate) (*models.Book, error) {
	return UpdateBook(ctx, p.db, id, upd)
}

func (p *Postgres) DeleteBook(ctx context.Context, id string) error {
	return DeleteBook(ctx, p.db, id)
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return GetOrder(ctx, p.db, id)
}

func (p *Postgres) ListOrders(ctx context.Context, userID string, page Page) ([]models.Order, error) {
	return ListOrders(ctx, p.db, userID, page)
}

func (p *Postgres) UpdateOrder(ctx context.Context, id string, upd OrderUpdate) (*models.Order, error) {
	return UpdateOrder(ctx, p.db, id, upd)
}

func (p *Postgres) GetAddress(ctx context.Context, userID string) (*models.ShippingAddress, error) {
	return GetAddress(ctx, p.db, userID)
}

func (p *Postgres) CreateAddress(ctx context.Context, userID string, params AddressParams) (*models.ShippingAddress, error) {
	return CreateAddress(ctx, p.db, userID, params)
}

func (p *Postgres) UpsertAddress(ctx context.Context, userID string, params AddressParams) (*models.ShippingAddress, error) {
	return UpsertAddress(ctx, p.db, userID, params)
}

func (p *Postgres) DeleteAddress(ctx context.Context, userID string) error {
	return DeleteAddress(ctx, p.db, userID)
}

func (p *Postgres) ListWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	return ListWishlist(ctx, p.db, userID)
}

func (p *Postgres) AddToWishlist(ctx context.Context, userID, bookID string) (*models.WishlistItem, error) {
	return AddToWishlist(ctx, p.db, userID, bookID)
}

func (p *Postgres) RemoveFromWishlist(ctx context.Context, userID, bookID string) error {
	return RemoveFromWishlist(ctx, p.db, userID, bookID)
}

func (p *Postgres) InWishlist(ctx context.Context, userID, bookID string) (bool, error) {
	return InWishlist(ctx, p.db, userID, bookID)
}
