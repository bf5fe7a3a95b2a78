package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type wishlistRequest struct {
	BookID string `json:"book_id" validate:"required"`
}

func (s *Server) listWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.Wishlist.ListWishlist(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := s.Wishlist.AddToWishlist(r.Context(), currentUser(r.Context()).ID, req.BookID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	err := s.Wishlist.RemoveFromWishlist(r.Context(), currentUser(r.Context()).ID, chi.URLParam(r, "bookID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkWishlist(w http.ResponseWriter, r *http.Request) {
	exists, err := s.Wishlist.InWishlist(r.Context(), currentUser(r.Context()).ID, chi.URLParam(r, "bookID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
