package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/store"
)

func (s *Store) CreateBook(_ context.Context, params store.CreateBookParams) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, book := range s.books {
		if book.ISBN == params.ISBN {
			return nil, database.ErrISBNTaken
		}
	}
	if params.Stock < 0 {
		return nil, database.ErrInvalidInput
	}

	now := s.now()
	book := models.Book{
		ID:              uuid.NewString(),
		Title:           params.Title,
		Author:          params.Author,
		Description:     params.Description,
		Cover:           params.Cover,
		Price:           params.Price,
		Category:        params.Category,
		PublicationDate: params.PublicationDate,
		Publisher:       params.Publisher,
		ISBN:            params.ISBN,
		Pages:           params.Pages,
		Format:          params.Format,
		Featured:        params.Featured,
		Stock:           params.Stock,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.books[book.ID] = book
	return &book, nil
}

func (s *Store) GetBook(_ context.Context, id string) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return nil, database.ErrBookNotFound
	}
	return &book, nil
}

func (s *Store) ListBooks(_ context.Context, filter store.BookFilter, page store.Page) ([]models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	books := make([]models.Book, 0, len(s.books))
	for _, book := range s.books {
		if filter.Category != "" && filter.Category != "all" && book.Category != filter.Category {
			continue
		}
		if filter.Featured != nil && book.Featured != *filter.Featured {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(book.Title), search) &&
			!strings.Contains(strings.ToLower(book.Author), search) &&
			!strings.Contains(strings.ToLower(book.Description), search) {
			continue
		}
		books = append(books, book)
	}

	sortBy := store.ParseBookSort(string(filter.Sort))
	sort.Slice(books, func(i, j int) bool {
		a, b := books[i], books[j]
		switch sortBy {
		case store.SortTitleDesc:
			if a.Title != b.Title {
				return a.Title > b.Title
			}
		case store.SortPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case store.SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		default:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		}
		return a.ID < b.ID
	})

	return window(books, page), nil
}

func (s *Store) UpdateBook(_ context.Context, id string, upd store.BookUpdate) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return nil, database.ErrBookNotFound
	}
	if upd.ISBN != nil {
		for _, other := range s.books {
			if other.ID != id && other.ISBN == *upd.ISBN {
				return nil, database.ErrISBNTaken
			}
		}
		book.ISBN = *upd.ISBN
	}
	if upd.Stock != nil {
		if *upd.Stock < 0 {
			return nil, database.ErrInvalidInput
		}
		book.Stock = *upd.Stock
	}
	if upd.Title != nil {
		book.Title = *upd.Title
	}
	if upd.Author != nil {
		book.Author = *upd.Author
	}
	if upd.Description != nil {
		book.Description = *upd.Description
	}
	if upd.Cover != nil {
		book.Cover = *upd.Cover
	}
	if upd.Price != nil {
		book.Price = *upd.Price
	}
	if upd.Category != nil {
		book.Category = *upd.Category
	}
	if upd.PublicationDate != nil {
		book.PublicationDate = *upd.PublicationDate
	}
	if upd.Publisher != nil {
		book.Publisher = *upd.Publisher
	}
	if upd.Pages != nil {
		book.Pages = *upd.Pages
	}
	if upd.Format != nil {
		book.Format = *upd.Format
	}
	if upd.Featured != nil {
		book.Featured = *upd.Featured
	}
	book.UpdatedAt = s.now()
	s.books[id] = book
	return &book, nil
}

func (s *Store) DeleteBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return database.ErrBookNotFound
	}
	for _, item := range s.items {
		if item.BookID == id {
			return database.ErrBookInUse
		}
	}
	wishlist := s.wishlist[:0]
	for _, entry := range s.wishlist {
		if entry.BookID != id {
			wishlist = append(wishlist, entry)
		}
	}
	s.wishlist = wishlist
	delete(s.books, id)
	return nil
}

// Orders

func (s *Store) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	order.SetItems(s.itemsOf(id))
	return &order, nil
}

func (s *Store) ListOrders(_ context.Context, userID string, page store.Page) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if userID != "" && order.UserID != userID {
			continue
		}
		order.SetItems(s.itemsOf(order.ID))
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return window(orders, page), nil
}

func (s *Store) UpdateOrder(_ context.Context, id string, upd store.OrderUpdate) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if upd.Status != nil && !upd.Status.Valid() {
		return nil, database.ErrInvalidInput
	}
	order, ok := s.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	if upd.Status != nil {
		order.Status = *upd.Status
	}
	if upd.ShippingAddress != nil {
		order.ShippingAddress = *upd.ShippingAddress
	}
	if upd.PaymentID != nil {
		paymentID := *upd.PaymentID
		order.PaymentID = &paymentID
	}
	order.UpdatedAt = s.now()
	s.orders[id] = order

	order.SetItems(s.itemsOf(id))
	return &order, nil
}

func (s *Store) itemsOf(orderID string) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range s.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items
}

// Shipping addresses

func (s *Store) GetAddress(_ context.Context, userID string) (*models.ShippingAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.addresses[userID]
	if !ok {
		return nil, database.ErrAddressNotFound
	}
	return &addr, nil
}

func (s *Store) CreateAddress(_ context.Context, userID string, params store.AddressParams) (*models.ShippingAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addresses[userID]; ok {
		return nil, database.ErrAddressExists
	}
	return s.putAddress(userID, uuid.NewString(), params)
}

func (s *Store) UpsertAddress(_ context.Context, userID string, params store.AddressParams) (*models.ShippingAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if existing, ok := s.addresses[userID]; ok {
		id = existing.ID
	}
	return s.putAddress(userID, id, params)
}

func (s *Store) putAddress(userID, id string, params store.AddressParams) (*models.ShippingAddress, error) {
	if _, ok := s.users[userID]; !ok {
		return nil, database.ErrUserNotFound
	}
	addr := models.ShippingAddress{
		ID:            id,
		UserID:        userID,
		StreetAddress: params.StreetAddress,
		City:          params.City,
		State:         params.State,
		PostalCode:    params.PostalCode,
		Country:       params.Country,
	}
	s.addresses[userID] = addr
	return &addr, nil
}

func (s *Store) DeleteAddress(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addresses[userID]; !ok {
		return database.ErrAddressNotFound
	}
	delete(s.addresses, userID)
	return nil
}

// Wishlist

func (s *Store) ListWishlist(_ context.Context, userID string) ([]models.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.WishlistItem{}
	for _, entry := range s.wishlist {
		if entry.UserID != userID {
			continue
		}
		book := s.books[entry.BookID]
		entry.Book = &book
		items = append(items, entry)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})
	return items, nil
}

func (s *Store) AddToWishlist(_ context.Context, userID, bookID string) (*models.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return nil, database.ErrBookNotFound
	}
	for _, entry := range s.wishlist {
		if entry.UserID == userID && entry.BookID == bookID {
			entry.Book = &book
			return &entry, nil
		}
	}

	entry := models.WishlistItem{
		ID:      uuid.NewString(),
		UserID:  userID,
		BookID:  bookID,
		AddedAt: s.now(),
	}
	s.wishlist = append(s.wishlist, entry)
	entry.Book = &book
	return &entry, nil
}

func (s *Store) RemoveFromWishlist(_ context.Context, userID, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.wishlist {
		if entry.UserID == userID && entry.BookID == bookID {
			s.wishlist = append(s.wishlist[:i], s.wishlist[i+1:]...)
			return nil
		}
	}
	return database.ErrWishlistItemNotFound
}

func (s *Store) InWishlist(_ context.Context, userID, bookID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.wishlist {
		if entry.UserID == userID && entry.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}
