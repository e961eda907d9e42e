package handler

import (
	"context"
	"net/http"

	"github.com/go-blood-connect/internal/domain"
)

type deviceRegistrar interface {
	StoreDevice(ctx context.Context, reg domain.DeviceRegistration) error
}

// DeviceHandler registers push devices.
type DeviceHandler struct {
	svc deviceRegistrar
}

func NewDeviceHandler(svc deviceRegistrar) *DeviceHandler { return &DeviceHandler{svc: svc} }

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var reg domain.DeviceRegistration
	if !decode(w, r, &reg) {
		return
	}
	reg.UserID = userID
	if err := h.svc.StoreDevice(r.Context(), reg); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "device registered"})
}
