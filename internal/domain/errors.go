package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	ErrStoreWrite            = errors.New("store write failed")
	ErrStoreRead             = errors.New("database error")
	ErrIndexNotFound         = errors.New("index not found")
	ErrNotificationsNotFound = errors.New("notifications does not exist")
	ErrEndpointRegistration  = errors.New("failed to store endpoint ARN")
	ErrNotifyUser            = errors.New("failed to notify user")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

// EndpointExistsError is returned by the push gateway when a device token is
// already bound to an endpoint. EndpointArn identifies that endpoint.
type EndpointExistsError struct {
	EndpointArn string
}

func (e *EndpointExistsError) Error() string {
	return fmt.Sprintf("endpoint %s already exists", e.EndpointArn)
}
