package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/safar/go-bookshop/internal/auth"
	"github.com/safar/go-bookshop/internal/config"
	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/metrics"
	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/ordering"
	"github.com/safar/go-bookshop/internal/store/memory"
)

type testEnv struct {
	handler http.Handler
	store   *memory.Store
	tokens  *auth.Tokens
	alice   models.User
	bob     models.User
	admin   models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st := memory.New()
	tokens := auth.NewTokens("test-secret", time.Hour)

	hash, err := auth.HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{store: st, tokens: tokens}
	env.alice = models.User{ID: "u-alice", Email: "alice@example.com", HashedPassword: hash, IsActive: true}
	env.bob = models.User{ID: "u-bob", Email: "bob@example.com", HashedPassword: hash, IsActive: true}
	env.admin = models.User{ID: "u-admin", Email: "admin@example.com", HashedPassword: hash, IsActive: true, IsAdmin: true}
	for _, u := range []models.User{env.alice, env.bob, env.admin} {
		st.PutUser(u)
	}

	st.PutBook(models.Book{ID: "B1", Title: "Dune", Author: "Frank Herbert", Category: "fiction",
		ISBN: "isbn-1", Price: decimal.RequireFromString("10.00"), Stock: 5, Featured: true})
	st.PutBook(models.Book{ID: "B2", Title: "Emma", Author: "Jane Austen", Category: "classics",
		ISBN: "isbn-2", Price: decimal.RequireFromString("7.50"), Stock: 2})

	cfg := &config.Config{
		Server: config.ServerConfig{APIPrefix: "/api/v1", ProjectName: "Orphaleia Bookshop"},
		Auth:   config.AuthConfig{BcryptCost: bcrypt.MinCost},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowCredentials: true},
	}
	srv := NewServer(cfg, Deps{
		Users:     st,
		Books:     st,
		Orders:    st,
		Addresses: st,
		Wishlist:  st,
		Placer:    ordering.NewService(st, logger),
		Tokens:    tokens,
		Metrics:   metrics.New(),
		Logger:    logger,
	})
	env.handler = srv.Routes()
	return env
}

func (e *testEnv) token(t *testing.T, u models.User) string {
	t.Helper()
	token, err := e.tokens.Issue(u.ID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Detail
}

func TestWelcomeAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to Orphaleia Bookshop API"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bookshop_http_requests_total")
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", env.token(t, env.alice), map[string]any{
		"shipping_address": "221B Baker Street",
		"items":            []map[string]any{{"book_id": "B1", "quantity": 5}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, env.alice.ID, order.UserID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("50.00")), "total %s", order.TotalAmount)
	assert.Equal(t, 1, order.ItemCount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "B1", order.Items[0].BookID)

	stock, _ := env.store.Stock("B1")
	assert.Equal(t, 0, stock)
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name       string
		token      bool
		body       map[string]any
		wantStatus int
		wantDetail string
	}{
		{
			name:       "unauthenticated",
			body:       map[string]any{"shipping_address": "x", "items": []map[string]any{{"book_id": "B1", "quantity": 1}}},
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Not authenticated",
		},
		{
			name:       "unknown book",
			token:      true,
			body:       map[string]any{"shipping_address": "x", "items": []map[string]any{{"book_id": "B1", "quantity": 2}, {"book_id": "nope", "quantity": 1}}},
			wantStatus: http.StatusNotFound,
			wantDetail: "Book with ID nope not found",
		},
		{
			name:       "insufficient stock",
			token:      true,
			body:       map[string]any{"shipping_address": "x", "items": []map[string]any{{"book_id": "B2", "quantity": 3}}},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Not enough stock for book 'Emma'. Available: 2 (book B2, requested 3)",
		},
		{
			name:       "empty cart",
			token:      true,
			body:       map[string]any{"shipping_address": "x", "items": []map[string]any{}},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "zero quantity",
			token:      true,
			body:       map[string]any{"shipping_address": "x", "items": []map[string]any{{"book_id": "B1", "quantity": 0}}},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			token := ""
			if tt.token {
				token = env.token(t, env.alice)
			}

			rec := env.do(t, http.MethodPost, "/api/v1/orders", token, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, detailOf(t, rec))
			}

			stock1, _ := env.store.Stock("B1")
			stock2, _ := env.store.Stock("B2")
			assert.Equal(t, 5, stock1)
			assert.Equal(t, 2, stock2)
			assert.Zero(t, env.store.OrderCount())
		})
	}
}

func TestOrderReadKeepsLineOrder(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, env.alice)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"shipping_address": "221B Baker Street",
		"items": []map[string]any{
			{"book_id": "B2", "quantity": 1},
			{"book_id": "B1", "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+placed.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var read models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &read))

	require.Len(t, read.Items, 2)
	for i, item := range read.Items {
		assert.Equal(t, placed.Items[i].BookID, item.BookID)
		assert.Equal(t, i, item.Position)
	}
	assert.Equal(t, "B2", read.Items[0].BookID)
}

func TestOrderPermissions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", env.token(t, env.alice), map[string]any{
		"shipping_address": "221B Baker Street",
		"items":            []map[string]any{{"book_id": "B1", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	path := "/api/v1/orders/" + order.ID

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, env.token(t, env.alice), nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, env.token(t, env.admin), nil).Code)

	rec = env.do(t, http.MethodGet, path, env.token(t, env.bob), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions", detailOf(t, rec))

	rec = env.do(t, http.MethodPut, path, env.token(t, env.alice), map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions to update status", detailOf(t, rec))

	rec = env.do(t, http.MethodPut, path, env.token(t, env.alice), map[string]any{"payment_id": "pay_1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, path, env.token(t, env.admin), map[string]any{"status": "refunded"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPut, path, env.token(t, env.admin), map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
	require.NotNil(t, updated.PaymentID)
	assert.Equal(t, "pay_1", *updated.PaymentID)

	var mine []models.Order
	rec = env.do(t, http.MethodGet, "/api/v1/orders", env.token(t, env.bob), nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Empty(t, mine)

	var all []models.Order
	rec = env.do(t, http.MethodGet, "/api/v1/orders", env.token(t, env.admin), nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "Carol@Example.com", "password": "longenough", "full_name": "Carol",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hashed_password")

	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "carol@example.com", "password": "longenough",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A user with this email already exists in the system", detailOf(t, rec))

	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "dave@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	form := url.Values{"username": {"carol@example.com"}, "password": {"longenough"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	login := httptest.NewRecorder()
	env.handler.ServeHTTP(login, req)
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())

	var tok tokenResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)

	rec = env.do(t, http.MethodGet, "/api/v1/users/me", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "carol@example.com", me.Email)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "carol@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Incorrect email or password", detailOf(t, rec))
}

func TestRegisterNeverGrantsAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "mallory@example.com", "password": "longenough", "is_admin": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.IsAdmin)

	token := env.token(t, created)
	rec = env.do(t, http.MethodPost, "/api/v1/books", token, map[string]any{
		"title": "Forged", "author": "Nobody", "category": "fiction", "isbn": "isbn-forged", "price": "1.00",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/books/B1", token, map[string]any{"stock": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	stock, _ := env.store.Stock("B1")
	assert.Equal(t, 5, stock)
}

func TestInactiveUserIsRejected(t *testing.T) {
	env := newTestEnv(t)
	inactive := env.bob
	inactive.IsActive = false
	env.store.PutUser(inactive)

	rec := env.do(t, http.MethodGet, "/api/v1/users/me", env.token(t, inactive), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Inactive user", detailOf(t, rec))

	rec = env.do(t, http.MethodGet, "/api/v1/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOnlyRoutes(t *testing.T) {
	env := newTestEnv(t)
	book := map[string]any{
		"title": "Ulysses", "author": "James Joyce", "category": "classics",
		"isbn": "isbn-3", "price": "18.00", "stock": 4,
	}

	rec := env.do(t, http.MethodPost, "/api/v1/books", env.token(t, env.alice), book)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users", env.token(t, env.alice), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/books", env.token(t, env.admin), book)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/books", env.token(t, env.admin), book)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users/"+env.bob.ID, env.token(t, env.alice), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/users/"+env.bob.ID, env.token(t, env.admin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookListing(t *testing.T) {
	env := newTestEnv(t)

	var books []models.Book
	rec := env.do(t, http.MethodGet, "/api/v1/books?sort=price-desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books))
	require.Len(t, books, 2)
	assert.Equal(t, "B1", books[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/books?search=austen", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books))
	require.Len(t, books, 1)
	assert.Equal(t, "B2", books[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/books/featured", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books))
	require.Len(t, books, 1)
	assert.Equal(t, "B1", books[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/books/category/classics", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books))
	require.Len(t, books, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/books/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Book not found", detailOf(t, rec))
}

func TestShippingAddressAndWishlist(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, env.alice)
	addr := map[string]any{
		"street_address": "1 Main St", "city": "Springfield", "postal_code": "12345", "country": "US",
	}

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/shipping-addresses/me", token, nil).Code)
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/shipping-addresses/me", token, addr).Code)

	rec := env.do(t, http.MethodPost, "/api/v1/shipping-addresses/me", token, addr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	addr["city"] = "Shelbyville"
	rec = env.do(t, http.MethodPut, "/api/v1/shipping-addresses/me", token, addr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Shelbyville")
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/shipping-addresses/me", token, nil).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/wishlist", token, map[string]any{"book_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 2; i++ {
		rec = env.do(t, http.MethodPost, "/api/v1/wishlist", token, map[string]any{"book_id": "B1"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var items []models.WishlistItem
	rec = env.do(t, http.MethodGet, "/api/v1/wishlist", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Book)
	assert.Equal(t, "Dune", items[0].Book.Title)

	rec = env.do(t, http.MethodGet, "/api/v1/wishlist/check/B1", token, nil)
	assert.JSONEq(t, `{"exists":true}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/wishlist/B1", token, nil).Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/wishlist/B1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Book not found in wishlist", detailOf(t, rec))
}

func TestCORSAllowsConfiguredAndLocalOrigins(t *testing.T) {
	env := newTestEnv(t)

	for origin, allowed := range map[string]bool{
		"https://shop.example.com": true,
		"http://localhost:5173":    true,
		"http://127.0.0.1":         true,
		"https://evil.example.com": false,
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/books", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		if allowed {
			assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"), origin)
		} else {
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), origin)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&ordering.InvalidInputError{Field: "items", Reason: "empty"}, http.StatusUnprocessableEntity},
		{&ordering.NotFoundError{BookID: "B9"}, http.StatusNotFound},
		{&ordering.InsufficientStockError{Title: "Dune", Available: 1}, http.StatusBadRequest},
		{&ordering.PersistenceError{Err: errors.New("conn reset")}, http.StatusInternalServerError},
		{database.ErrOrderNotFound, http.StatusNotFound},
		{database.ErrBookInUse, http.StatusConflict},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, detail := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.NotEmpty(t, detail)
	}

	_, detail := statusFor(&ordering.NotFoundError{BookID: "B9"})
	assert.Equal(t, "Book with ID B9 not found", detail)
}
