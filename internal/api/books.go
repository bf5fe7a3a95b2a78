package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/safar/go-bookshop/internal/store"
)

const featuredLimit = 8

type createBookRequest struct {
	Title           string          `json:"title"            validate:"required"`
	Author          string          `json:"author"           validate:"required"`
	Description     string          `json:"description"`
	Cover           string          `json:"cover"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"         validate:"required"`
	PublicationDate string          `json:"publication_date"`
	Publisher       string          `json:"publisher"`
	ISBN            string          `json:"isbn"             validate:"required"`
	Pages           int             `json:"pages"            validate:"gte=0"`
	Format          string          `json:"format"`
	Featured        bool            `json:"featured"`
	Stock           int             `json:"stock"            validate:"gte=0"`
}

type updateBookRequest struct {
	Title           *string          `json:"title"            validate:"omitempty,min=1"`
	Author          *string          `json:"author"           validate:"omitempty,min=1"`
	Description     *string          `json:"description"`
	Cover           *string          `json:"cover"`
	Price           *decimal.Decimal `json:"price"`
	Category        *string          `json:"category"         validate:"omitempty,min=1"`
	PublicationDate *string          `json:"publication_date"`
	Publisher       *string          `json:"publisher"`
	ISBN            *string          `json:"isbn"             validate:"omitempty,min=1"`
	Pages           *int             `json:"pages"            validate:"omitempty,gte=0"`
	Format          *string          `json:"format"`
	Featured        *bool            `json:"featured"`
	Stock           *int             `json:"stock"            validate:"omitempty,gte=0"`
}

func bookFilterFromQuery(r *http.Request) store.BookFilter {
	q := r.URL.Query()
	filter := store.BookFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     store.ParseBookSort(q.Get("sort")),
	}
	if featured, err := strconv.ParseBool(q.Get("featured")); err == nil {
		filter.Featured = &featured
	}
	return filter
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.Books.ListBooks(r.Context(), bookFilterFromQuery(r), pageFromQuery(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (s *Server) featuredBooks(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = featuredLimit
	}

	featured := true
	books, err := s.Books.ListBooks(r.Context(), store.BookFilter{Featured: &featured}, store.NewPage(0, limit))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (s *Server) booksByCategory(w http.ResponseWriter, r *http.Request) {
	filter := bookFilterFromQuery(r)
	filter.Category = chi.URLParam(r, "category")

	books, err := s.Books.ListBooks(r.Context(), filter, pageFromQuery(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.Books.GetBook(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, book)
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusUnprocessableEntity, "price must not be negative")
		return
	}

	book, err := s.Books.CreateBook(r.Context(), store.CreateBookParams{
		Title:           req.Title,
		Author:          req.Author,
		Description:     req.Description,
		Cover:           req.Cover,
		Price:           req.Price,
		Category:        req.Category,
		PublicationDate: req.PublicationDate,
		Publisher:       req.Publisher,
		ISBN:            req.ISBN,
		Pages:           req.Pages,
		Format:          req.Format,
		Featured:        req.Featured,
		Stock:           req.Stock,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.requestLogger(r).WithField("book_id", book.ID).Info("book created")
	respondJSON(w, http.StatusCreated, book)
}

func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	var req updateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		respondError(w, http.StatusUnprocessableEntity, "price must not be negative")
		return
	}

	book, err := s.Books.UpdateBook(r.Context(), chi.URLParam(r, "bookID"), store.BookUpdate{
		Title:           req.Title,
		Author:          req.Author,
		Description:     req.Description,
		Cover:           req.Cover,
		Price:           req.Price,
		Category:        req.Category,
		PublicationDate: req.PublicationDate,
		Publisher:       req.Publisher,
		ISBN:            req.ISBN,
		Pages:           req.Pages,
		Format:          req.Format,
		Featured:        req.Featured,
		Stock:           req.Stock,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, book)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.Books.DeleteBook(r.Context(), chi.URLParam(r, "bookID")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
