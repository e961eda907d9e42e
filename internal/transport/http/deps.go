package http

import (
	"context"

	"github.com/go-blood-connect/internal/application/donation"
	"github.com/go-blood-connect/internal/application/location"
	"github.com/go-blood-connect/internal/application/notification"
	"github.com/go-blood-connect/internal/application/user"
	jwtinfra "github.com/go-blood-connect/internal/infrastructure/jwt"
	"go.uber.org/zap"
)

// tokenVerifier is the part of the JWT provider the router needs.
type tokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Deps holds the application services the router exposes.
type Deps struct {
	Users         user.Service
	Locations     location.Service
	Donations     donation.Service
	Notifications notification.Service
	Verifier      tokenVerifier
	// Ready reports whether downstream dependencies can serve traffic.
	Ready func(ctx context.Context) error
	Log   *zap.Logger
}
