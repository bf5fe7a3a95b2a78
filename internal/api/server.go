// Package api is the HTTP surface of the bookshop.
package api

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/auth"
	"github.com/safar/go-bookshop/internal/config"
	"github.com/safar/go-bookshop/internal/metrics"
	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/ordering"
	"github.com/safar/go-bookshop/internal/store"
)

type UserStore interface {
	CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, page store.Page) ([]models.User, error)
	UpdateUser(ctx context.Context, id string, upd store.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type BookStore interface {
	CreateBook(ctx context.Context, params store.CreateBookParams) (*models.Book, error)
	GetBook(ctx context.Context, id string) (*models.Book, error)
	ListBooks(ctx context.Context, filter store.BookFilter, page store.Page) ([]models.Book, error)
	UpdateBook(ctx context.Context, id string, upd store.BookUpdate) (*models.Book, error)
	DeleteBook(ctx context.Context, id string) error
}

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, page store.Page) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id string, upd store.OrderUpdate) (*models.Order, error)
}

type AddressStore interface {
	GetAddress(ctx context.Context, userID string) (*models.ShippingAddress, error)
	CreateAddress(ctx context.Context, userID string, params store.AddressParams) (*models.ShippingAddress, error)
	UpsertAddress(ctx context.Context, userID string, params store.AddressParams) (*models.ShippingAddress, error)
	DeleteAddress(ctx context.Context, userID string) error
}

type WishlistStore interface {
	ListWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error)
	AddToWishlist(ctx context.Context, userID, bookID string) (*models.WishlistItem, error)
	RemoveFromWishlist(ctx context.Context, userID, bookID string) error
	InWishlist(ctx context.Context, userID, bookID string) (bool, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID, shippingAddress string, items []ordering.LineItem) (*models.Order, error)
}

// Deps are the collaborators behind the handlers. Metrics and Health are
// optional.
type Deps struct {
	Users     UserStore
	Books     BookStore
	Orders    OrderStore
	Addresses AddressStore
	Wishlist  WishlistStore
	Placer    OrderPlacer
	Tokens    *auth.Tokens
	Metrics   *metrics.Metrics
	Health    func(ctx context.Context) error
	Logger    logrus.FieldLogger
}

type Server struct {
	Deps
	server config.ServerConfig
	cors   config.CORSConfig
	cost   int
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Server{
		Deps:   deps,
		server: cfg.Server,
		cors:   cfg.CORS,
		cost:   cfg.Auth.BcryptCost,
	}
}

var localOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1)(:[0-9]+)?$`)

// Routes builds the router. API routes live under the configured prefix;
// the welcome, health and metrics endpoints sit at the root.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())
	if s.Metrics != nil {
		r.Use(s.instrument)
	}

	r.Get("/", s.welcome)
	r.Get("/healthz", s.healthz)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Route(s.server.APIPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", s.getMe)
				r.Put("/me", s.updateMe)
				r.Get("/{userID}", s.getUser)
				r.With(s.requireAdmin).Get("/", s.listUsers)
				r.With(s.requireAdmin).Put("/{userID}", s.updateUser)
				r.With(s.requireAdmin).Delete("/{userID}", s.deleteUser)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.createOrder)
				r.Get("/", s.listOrders)
				r.Get("/user", s.listMyOrders)
				r.Get("/{orderID}", s.getOrder)
				r.Put("/{orderID}", s.updateOrder)
			})

			r.Route("/shipping-addresses/me", func(r chi.Router) {
				r.Get("/", s.getAddress)
				r.Post("/", s.createAddress)
				r.Put("/", s.upsertAddress)
				r.Delete("/", s.deleteAddress)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", s.listWishlist)
				r.Post("/", s.addToWishlist)
				r.Get("/check/{bookID}", s.checkWishlist)
				r.Delete("/{bookID}", s.removeFromWishlist)
			})
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.listBooks)
			r.Get("/featured", s.featuredBooks)
			r.Get("/category/{category}", s.booksByCategory)
			r.Get("/{bookID}", s.getBook)

			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, s.requireAdmin)
				r.Post("/", s.createBook)
				r.Put("/{bookID}", s.updateBook)
				r.Delete("/{bookID}", s.deleteBook)
			})
		})
	})

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cors.AllowedOrigins))
	for _, origin := range s.cors.AllowedOrigins {
		allowed[origin] = true
	}

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return allowed[origin] || allowed["*"] || localOrigin.MatchString(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: s.cors.AllowCredentials,
		MaxAge:           s.cors.MaxAge,
	})
}

func (s *Server) requestLogger(r *http.Request) logrus.FieldLogger {
	return s.Logger.WithField("request_id", middleware.GetReqID(r.Context()))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.requestLogger(r).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Info("request completed")
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}

func (s *Server) welcome(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to " + s.server.ProjectName + " API",
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		if err := s.Health(r.Context()); err != nil {
			s.requestLogger(r).WithError(err).Warn("health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
