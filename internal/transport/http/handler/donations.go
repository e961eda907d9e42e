package handler

import (
	"context"
	"net/http"

	"github.com/go-blood-connect/internal/application/donation"
	"github.com/go-blood-connect/internal/domain"
	"github.com/go-chi/chi/v5"
)

// DonationHandler serves the donation request workflow.
type DonationHandler struct {
	svc donation.Service
}

func NewDonationHandler(svc donation.Service) *DonationHandler { return &DonationHandler{svc: svc} }

func (h *DonationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req domain.CreateDonationRequest
	if !decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreateRequest(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *DonationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req domain.UpdateDonationRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateRequest(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *DonationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req domain.AcceptDonationRequest
	if !decode(w, r, &req) {
		return
	}
	acc, err := h.svc.Accept(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *DonationHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.Withdraw, "acceptance withdrawn")
}

func (h *DonationHandler) Ignore(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.Ignore, "request ignored")
}

func (h *DonationHandler) respond(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, donorID, requestID string, req domain.AcceptDonationRequest) error, msg string) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req domain.AcceptDonationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := fn(r.Context(), userID, chi.URLParam(r, "id"), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

func (h *DonationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req domain.CompleteDonationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Complete(r.Context(), userID, chi.URLParam(r, "id"), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "donation completed"})
}

// List returns the caller's own requests, optionally filtered by ?status=.
func (h *DonationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	status := domain.DonationStatus(r.URL.Query().Get("status"))
	list, err := h.svc.ListRequests(r.Context(), userID, status)
	if err != nil {
		httpError(w, err)
		return
	}
	if list == nil {
		list = []domain.DonationRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DonationHandler) ListAccepted(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListAccepted(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if list == nil {
		list = []domain.AcceptedDonation{}
	}
	writeJSON(w, http.StatusOK, list)
}
