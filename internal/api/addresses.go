package api

import (
	"net/http"

	"github.com/safar/go-bookshop/internal/store"
)

type addressRequest struct {
	StreetAddress string `json:"street_address" validate:"required"`
	City          string `json:"city"           validate:"required"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"    validate:"required"`
	Country       string `json:"country"        validate:"required"`
}

func (a addressRequest) params() store.AddressParams {
	return store.AddressParams{
		StreetAddress: a.StreetAddress,
		City:          a.City,
		State:         a.State,
		PostalCode:    a.PostalCode,
		Country:       a.Country,
	}
}

func (s *Server) getAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := s.Addresses.GetAddress(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, addr)
}

func (s *Server) createAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	addr, err := s.Addresses.CreateAddress(r.Context(), currentUser(r.Context()).ID, req.params())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, addr)
}

func (s *Server) upsertAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	addr, err := s.Addresses.UpsertAddress(r.Context(), currentUser(r.Context()).ID, req.params())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, addr)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := s.Addresses.DeleteAddress(r.Context(), currentUser(r.Context()).ID); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
