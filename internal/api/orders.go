package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/models"
	"github.com/safar/go-bookshop/internal/ordering"
	"github.com/safar/go-bookshop/internal/store"
)

type orderItemRequest struct {
	BookID   string `json:"book_id"  validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

type createOrderRequest struct {
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	Items           []orderItemRequest `json:"items"            validate:"required,min=1,dive"`
}

type updateOrderRequest struct {
	Status          *models.OrderStatus `json:"status"`
	ShippingAddress *string             `json:"shipping_address" validate:"omitempty,min=1"`
	PaymentID       *string             `json:"payment_id"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]ordering.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ordering.LineItem{BookID: item.BookID, Quantity: item.Quantity})
	}

	order, err := s.Placer.PlaceOrder(r.Context(), currentUser(r.Context()).ID, req.ShippingAddress, items)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// listOrders shows admins every order and everyone else their own.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r.Context())
	userID := me.ID
	if me.IsAdmin {
		userID = ""
	}
	s.respondOrders(w, r, userID)
}

func (s *Server) listMyOrders(w http.ResponseWriter, r *http.Request) {
	s.respondOrders(w, r, currentUser(r.Context()).ID)
}

func (s *Server) respondOrders(w http.ResponseWriter, r *http.Request, userID string) {
	orders, err := s.Orders.ListOrders(r.Context(), userID, pageFromQuery(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.Orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	me := currentUser(r.Context())
	if order.UserID != me.ID && !me.IsAdmin {
		respondError(w, http.StatusForbidden, "Not enough permissions")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := s.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	me := currentUser(r.Context())
	if req.Status != nil && !me.IsAdmin {
		respondError(w, http.StatusForbidden, "Not enough permissions to update status")
		return
	}
	if order.UserID != me.ID && !me.IsAdmin {
		respondError(w, http.StatusForbidden, "Not enough permissions")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		respondError(w, http.StatusUnprocessableEntity,
			"status must be one of: pending, processing, shipped, delivered, cancelled")
		return
	}

	updated, err := s.Orders.UpdateOrder(r.Context(), orderID, store.OrderUpdate{
		Status:          req.Status,
		ShippingAddress: req.ShippingAddress,
		PaymentID:       req.PaymentID,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.requestLogger(r).WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   updated.Status,
	}).Info("order updated")
	respondJSON(w, http.StatusOK, updated)
}
