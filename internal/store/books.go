package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
)

var bookColumns = []string{
	"id", "title", "author", "description", "cover", "price", "category",
	"publication_date", "publisher", "isbn", "pages", "format", "featured",
	"stock", "created_at", "updated_at",
}

func scanBook(row scanner) (*models.Book, error) {
	book := &models.Book{}
	err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Description,
		&book.Cover,
		&book.Price,
		&book.Category,
		&book.PublicationDate,
		&book.Publisher,
		&book.ISBN,
		&book.Pages,
		&book.Format,
		&book.Featured,
		&book.Stock,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}

type CreateBookParams struct {
	Title           string
	Author          string
	Description     string
	Cover           string
	Price           decimal.Decimal
	Category        string
	PublicationDate string
	Publisher       string
	ISBN            string
	Pages           int
	Format          string
	Featured        bool
	Stock           int
}

func CreateBook(ctx context.Context, q Querier, params CreateBookParams) (*models.Book, error) {
	now := time.Now().UTC()
	query, args, err := psql.Insert("books").
		Columns(bookColumns...).
		Values(
			uuid.NewString(), params.Title, params.Author, params.Description, params.Cover,
			params.Price, params.Category, params.PublicationDate, params.Publisher, params.ISBN,
			params.Pages, params.Format, params.Featured, params.Stock, now, now,
		).
		Suffix("RETURNING " + strings.Join(bookColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build book insert: %w", err)
	}

	book, err := scanBook(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if database.IsUniqueViolation(err, "books_isbn_key") {
			return nil, database.ErrISBNTaken
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	return book, nil
}

func GetBook(ctx context.Context, q Querier, id string) (*models.Book, error) {
	query, args, err := psql.Select(bookColumns...).From("books").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build book select: %w", err)
	}

	book, err := scanBook(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return book, nil
}

// BookSort names a catalog ordering accepted by ListBooks.
type BookSort string

const (
	SortTitleAsc  BookSort = "title-asc"
	SortTitleDesc BookSort = "title-desc"
	SortPriceAsc  BookSort = "price-asc"
	SortPriceDesc BookSort = "price-desc"
)

var bookOrderBy = map[BookSort]string{
	SortTitleAsc:  "title ASC",
	SortTitleDesc: "title DESC",
	SortPriceAsc:  "price ASC",
	SortPriceDesc: "price DESC",
}

// ParseBookSort maps an empty or unknown value to title-asc.
func ParseBookSort(s string) BookSort {
	if _, ok := bookOrderBy[BookSort(s)]; ok {
		return BookSort(s)
	}
	return SortTitleAsc
}

type BookFilter struct {
	// Category "all" or empty disables the filter.
	Category string
	// Search matches title, author or description case-insensitively.
	Search   string
	Featured *bool
	Sort     BookSort
}

func ListBooks(ctx context.Context, q Querier, filter BookFilter, page Page) ([]models.Book, error) {
	b := psql.Select(bookColumns...).From("books")

	if filter.Category != "" && filter.Category != "all" {
		b = b.Where(sq.Eq{"category": filter.Category})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		b = b.Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"author": pattern},
			sq.ILike{"description": pattern},
		})
	}
	if filter.Featured != nil {
		b = b.Where(sq.Eq{"featured": *filter.Featured})
	}

	query, args, err := b.
		OrderBy(bookOrderBy[ParseBookSort(string(filter.Sort))], "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Skip)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build book list: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return books, nil
}

// BookUpdate lists the fields to change; nil pointers are left untouched.
type BookUpdate struct {
	Title           *string
	Author          *string
	Description     *string
	Cover           *string
	Price           *decimal.Decimal
	Category        *string
	PublicationDate *string
	Publisher       *string
	ISBN            *string
	Pages           *int
	Format          *string
	Featured        *bool
	Stock           *int
}

func (u BookUpdate) setMap() map[string]any {
	set := map[string]any{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Author != nil {
		set["author"] = *u.Author
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Cover != nil {
		set["cover"] = *u.Cover
	}
	if u.Price != nil {
		set["price"] = *u.Price
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.PublicationDate != nil {
		set["publication_date"] = *u.PublicationDate
	}
	if u.Publisher != nil {
		set["publisher"] = *u.Publisher
	}
	if u.ISBN != nil {
		set["isbn"] = *u.ISBN
	}
	if u.Pages != nil {
		set["pages"] = *u.Pages
	}
	if u.Format != nil {
		set["format"] = *u.Format
	}
	if u.Featured != nil {
		set["featured"] = *u.Featured
	}
	if u.Stock != nil {
		set["stock"] = *u.Stock
	}
	return set
}

func UpdateBook(ctx context.Context, q Querier, id string, upd BookUpdate) (*models.Book, error) {
	set := upd.setMap()
	set["updated_at"] = time.Now().UTC()

	query, args, err := psql.Update("books").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(bookColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build book update: %w", err)
	}

	book, err := scanBook(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, database.ErrBookNotFound
		case database.IsUniqueViolation(err, "books_isbn_key"):
			return nil, database.ErrISBNTaken
		case database.IsCheckViolation(err, ""):
			return nil, database.ErrInvalidInput
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	return book, nil
}

// DeleteBook drops the book and any wishlist entries pointing at it. Books
// that appear in orders are kept; order history must stay intact.
func DeleteBook(ctx context.Context, db *sql.DB, id string) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM wishlist_items WHERE book_id = $1`, id); err != nil {
			return fmt.Errorf("delete wishlist entries: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
		if err != nil {
			if database.IsForeignKeyViolation(err, "order_items_book_id_fkey") {
				return database.ErrBookInUse
			}
			return fmt.Errorf("delete book: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrBookNotFound
		}

		return nil
	})
}
