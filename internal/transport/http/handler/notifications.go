package handler

import (
	"context"
	"net/http"

	"github.com/go-blood-connect/internal/domain"
	"github.com/go-chi/chi/v5"
)

type notificationService interface {
	UpdateBloodDonationNotificationStatus(ctx context.Context, userID, requestID string, t domain.NotificationType, status domain.NotificationStatus) (domain.Notification, error)
	GetIgnoredDonorList(ctx context.Context, requestID string) ([]domain.Notification, error)
	GetRejectedDonorsCount(ctx context.Context, requestID string) (int, error)
}

type statusUpdate struct {
	Type   domain.NotificationType   `json:"type" validate:"required,oneof=BLOOD_REQ_POST REQ_ACCEPTED"`
	Status domain.NotificationStatus `json:"status" validate:"required,oneof=PENDING ACCEPTED COMPLETED IGNORED"`
}

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	svc notificationService
}

func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// UpdateStatus moves the caller's notification for a request to a new status.
func (h *NotificationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body statusUpdate
	if !decode(w, r, &body) {
		return
	}
	n, err := h.svc.UpdateBloodDonationNotificationStatus(r.Context(), userID, chi.URLParam(r, "requestId"), body.Type, body.Status)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) ListIgnored(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.GetIgnoredDonorList(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) CountRejections(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetRejectedDonorsCount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: n})
}
