package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
)

// ListWishlist returns the user's wishlist, most recently added first, with
// each entry's book embedded.
func ListWishlist(ctx context.Context, q Querier, userID string) ([]models.WishlistItem, error) {
	query := `
		SELECT w.id, w.user_id, w.book_id, w.added_at,
		       b.id, b.title, b.author, b.description, b.cover, b.price, b.category,
		       b.publication_date, b.publisher, b.isbn, b.pages, b.format, b.featured,
		       b.stock, b.created_at, b.updated_at
		FROM wishlist_items w
		JOIN books b ON b.id = w.book_id
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC, w.id`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var (
			item models.WishlistItem
			book models.Book
		)
		err := rows.Scan(
			&item.ID, &item.UserID, &item.BookID, &item.AddedAt,
			&book.ID, &book.Title, &book.Author, &book.Description, &book.Cover, &book.Price, &book.Category,
			&book.PublicationDate, &book.Publisher, &book.ISBN, &book.Pages, &book.Format, &book.Featured,
			&book.Stock, &book.CreatedAt, &book.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		item.Book = &book
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// AddToWishlist is idempotent: adding a book twice returns the existing
// entry. Unknown books yield ErrBookNotFound.
func AddToWishlist(ctx context.Context, q Querier, userID, bookID string) (*models.WishlistItem, error) {
	book, err := GetBook(ctx, q, bookID)
	if err != nil {
		return nil, err
	}

	item := &models.WishlistItem{}
	err = q.QueryRowContext(ctx,
		`INSERT INTO wishlist_items (id, user_id, book_id, added_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT ON CONSTRAINT uq_user_book_wishlist DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, user_id, book_id, added_at`,
		uuid.NewString(), userID, bookID).Scan(&item.ID, &item.UserID, &item.BookID, &item.AddedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err, "wishlist_items_book_id_fkey") {
			return nil, database.ErrBookNotFound
		}
		if database.IsForeignKeyViolation(err, "wishlist_items_user_id_fkey") {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("add to wishlist: %w", err)
	}

	item.Book = book
	return item, nil
}

func RemoveFromWishlist(ctx context.Context, q Querier, userID, bookID string) error {
	result, err := q.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND book_id = $2`,
		userID, bookID)
	if err != nil {
		return fmt.Errorf("remove from wishlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrWishlistItemNotFound
	}

	return nil
}

func InWishlist(ctx context.Context, q Querier, userID, bookID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM wishlist_items WHERE user_id = $1 AND book_id = $2)",
		userID, bookID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}
