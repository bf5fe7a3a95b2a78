// Package seed loads the bootstrap admin account and the sample catalog.
// Running it twice leaves the database unchanged.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/auth"
	"github.com/safar/go-bookshop/internal/config"
	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/store"
)

//go:embed books.json
var sampleBooks []byte

type Users interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error)
}

type Books interface {
	CreateBook(ctx context.Context, params store.CreateBookParams) (*models.Book, error)
}

type sampleBook struct {
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Description     string          `json:"description"`
	Cover           string          `json:"cover"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	PublicationDate string          `json:"publicationDate"`
	Publisher       string          `json:"publisher"`
	ISBN            string          `json:"isbn"`
	Pages           int             `json:"pages"`
	Format          string          `json:"format"`
	Featured        bool            `json:"featured"`
}

// Result counts the rows actually inserted.
type Result struct {
	AdminCreated bool
	BooksCreated int
}

func Run(ctx context.Context, users Users, books Books, cfg config.SeedConfig, bcryptCost int, logger logrus.FieldLogger) (Result, error) {
	var res Result

	created, err := ensureAdmin(ctx, users, cfg, bcryptCost)
	if err != nil {
		return res, err
	}
	res.AdminCreated = created
	if created {
		logger.WithField("email", cfg.AdminEmail).Info("admin user created")
	}

	var samples []sampleBook
	if err := json.Unmarshal(sampleBooks, &samples); err != nil {
		return res, fmt.Errorf("decode sample books: %w", err)
	}

	for _, b := range samples {
		_, err := books.CreateBook(ctx, store.CreateBookParams{
			Title:           b.Title,
			Author:          b.Author,
			Description:     b.Description,
			Cover:           b.Cover,
			Price:           b.Price,
			Category:        b.Category,
			PublicationDate: b.PublicationDate,
			Publisher:       b.Publisher,
			ISBN:            b.ISBN,
			Pages:           b.Pages,
			Format:          b.Format,
			Featured:        b.Featured,
			Stock:           cfg.BookStock,
		})
		if errors.Is(err, database.ErrISBNTaken) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed book %q: %w", b.ISBN, err)
		}
		res.BooksCreated++
	}

	logger.WithField("created", res.BooksCreated).Info("sample books loaded")
	return res, nil
}

func ensureAdmin(ctx context.Context, users Users, cfg config.SeedConfig, bcryptCost int) (bool, error) {
	_, err := users.GetUserByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return false, fmt.Errorf("look up admin: %w", err)
	}

	hash, err := auth.HashPassword(cfg.AdminPassword, bcryptCost)
	if err != nil {
		return false, err
	}

	_, err = users.CreateUser(ctx, store.CreateUserParams{
		Email:          cfg.AdminEmail,
		HashedPassword: hash,
		FullName:       "Admin User",
		IsActive:       true,
		IsAdmin:        true,
	})
	if errors.Is(err, database.ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
