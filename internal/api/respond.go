package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/auth"
	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/ordering"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail})
}

type errorMapping struct {
	target error
	status int
	detail string
}

var errorMappings = []errorMapping{
	{database.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{database.ErrBookNotFound, http.StatusNotFound, "Book not found"},
	{database.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{database.ErrAddressNotFound, http.StatusNotFound, "Shipping address not found"},
	{database.ErrWishlistItemNotFound, http.StatusNotFound, "Book not found in wishlist"},
	{database.ErrEmailTaken, http.StatusBadRequest, "A user with this email already exists in the system"},
	{database.ErrAddressExists, http.StatusBadRequest, "User already has a shipping address. Use PUT to update."},
	{database.ErrISBNTaken, http.StatusBadRequest, "A book with this ISBN already exists"},
	{database.ErrInsufficientStock, http.StatusBadRequest, "Not enough stock"},
	{database.ErrBookInUse, http.StatusConflict, "Book is referenced by existing orders"},
	{database.ErrInvalidInput, http.StatusUnprocessableEntity, "Invalid input"},
	{auth.ErrInvalidCredentials, http.StatusBadRequest, "Incorrect email or password"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "Could not validate credentials"},
}

// statusFor maps a domain error to its HTTP status and client-facing
// detail. Placement errors carry their own message.
func statusFor(err error) (int, string) {
	var (
		invalid  *ordering.InvalidInputError
		notFound *ordering.NotFoundError
		stock    *ordering.InsufficientStockError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, invalid.Error()
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &stock):
		return http.StatusBadRequest, stock.Error()
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.detail
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// respondErr writes the mapped error and logs server-side failures.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).WithError(err).Error("request failed")
	}
	respondError(w, status, detail)
}

// decodeJSON decodes and validates the body into dst. It writes the error
// response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondError(w, http.StatusUnprocessableEntity, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
