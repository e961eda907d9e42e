package handler

import (
	"net/http"

	"github.com/go-blood-connect/internal/application/location"
	"github.com/go-blood-connect/internal/domain"
	"github.com/go-chi/chi/v5"
)

// LocationHandler manages the caller's preferred donation areas.
type LocationHandler struct {
	svc location.Service
}

func NewLocationHandler(svc location.Service) *LocationHandler { return &LocationHandler{svc: svc} }

func (h *LocationHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req domain.RegisterLocationRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := h.svc.Register(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	if list == nil {
		list = []domain.DonorLocation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "location deleted"})
}
