package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/safar/go-bookshop/internal/auth"
	"github.com/safar/go-bookshop/internal/store"
)

func pageFromQuery(r *http.Request) store.Page {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return store.NewPage(skip, limit)
}

type updateMeRequest struct {
	Email    *string `json:"email"     validate:"omitempty,email"`
	Password *string `json:"password"  validate:"omitempty,min=8"`
	FullName *string `json:"full_name"`
}

type updateUserRequest struct {
	updateMeRequest
	IsActive *bool `json:"is_active"`
	IsAdmin  *bool `json:"is_admin"`
}

func (s *Server) userUpdate(req updateMeRequest) (store.UserUpdate, error) {
	upd := store.UserUpdate{Email: req.Email, FullName: req.FullName}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password, s.cost)
		if err != nil {
			return upd, err
		}
		upd.HashedPassword = &hash
	}
	return upd, nil
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r.Context()))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upd, err := s.userUpdate(req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	user, err := s.Users.UpdateUser(r.Context(), currentUser(r.Context()).ID, upd)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Users.ListUsers(r.Context(), pageFromQuery(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r.Context())
	userID := chi.URLParam(r, "userID")
	if userID == me.ID {
		respondJSON(w, http.StatusOK, me)
		return
	}
	if !me.IsAdmin {
		respondError(w, http.StatusForbidden, "The user doesn't have enough privileges")
		return
	}

	user, err := s.Users.GetUser(r.Context(), userID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upd, err := s.userUpdate(req.updateMeRequest)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	upd.IsActive = req.IsActive
	upd.IsAdmin = req.IsAdmin

	user, err := s.Users.UpdateUser(r.Context(), chi.URLParam(r, "userID"), upd)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.Users.DeleteUser(r.Context(), userID); err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.requestLogger(r).WithField("user_id", userID).Info("user deleted")
	w.WriteHeader(http.StatusNoContent)
}
