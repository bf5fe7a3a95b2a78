package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/safar/go-bookshop/internal/auth"
	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/store"
)

type ctxKey int

const userKey ctxKey = iota

func currentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// authenticate resolves the bearer token to an active user.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		userID, err := s.Tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		user, err := s.Users.GetUser(r.Context(), userID)
		if errors.Is(err, database.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		if !user.IsActive {
			respondError(w, http.StatusBadRequest, "Inactive user")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := currentUser(r.Context()); user == nil || !user.IsAdmin {
			respondError(w, http.StatusForbidden, "The user doesn't have enough privileges")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type registerRequest struct {
	Email    string `json:"email"     validate:"required,email"`
	Password string `json:"password"  validate:"required,min=8"`
	FullName string `json:"full_name"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password, s.cost)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	user, err := s.Users.CreateUser(r.Context(), store.CreateUserParams{
		Email:          req.Email,
		HashedPassword: hash,
		FullName:       req.FullName,
		IsActive:       true,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.requestLogger(r).WithField("user_id", user.ID).Info("user registered")
	respondJSON(w, http.StatusCreated, user)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// login accepts the OAuth2 password form (username, password) or the same
// fields as JSON.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var username, password string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password" validate:"required"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		username, password = req.Username, req.Password
		if username == "" {
			username = req.Email
		}
	} else {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusUnprocessableEntity, "Invalid form body")
			return
		}
		username, password = r.PostForm.Get("username"), r.PostForm.Get("password")
	}
	if username == "" || password == "" {
		respondError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	user, err := s.Users.GetUserByEmail(r.Context(), username)
	if errors.Is(err, database.ErrUserNotFound) {
		respondError(w, http.StatusBadRequest, "Incorrect email or password")
		return
	}
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := auth.VerifyPassword(user.HashedPassword, password); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if !user.IsActive {
		respondError(w, http.StatusBadRequest, "Inactive user")
		return
	}

	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
