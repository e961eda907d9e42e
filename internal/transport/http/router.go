package http

import (
	"github.com/go-blood-connect/internal/config"
	"github.com/go-blood-connect/internal/transport/http/handler"
	appmiddleware "github.com/go-blood-connect/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) *chi.Mux {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on routes that fan out notifications.
	fanOutRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.Ready)
	userH := handler.NewUserHandler(deps.Users)
	deviceH := handler.NewDeviceHandler(deps.Notifications)
	locationH := handler.NewLocationHandler(deps.Locations)
	donationH := handler.NewDonationHandler(deps.Donations)
	notifH := handler.NewNotificationHandler(deps.Notifications)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Verifier))

			r.Post("/devices", deviceH.Register)

			r.Get("/users/me", userH.Get)
			r.Put("/users/me", userH.Upsert)

			r.Post("/locations", locationH.Register)
			r.Get("/locations", locationH.List)
			r.Delete("/locations/{id}", locationH.Delete)

			r.Get("/donations", donationH.List)
			r.With(fanOutRL.Limit).Post("/donations", donationH.Create)
			r.With(fanOutRL.Limit).Patch("/donations/{id}", donationH.Update)
			r.Post("/donations/{id}/accept", donationH.Accept)
			r.Delete("/donations/{id}/accept", donationH.Withdraw)
			r.Post("/donations/{id}/ignore", donationH.Ignore)
			r.Post("/donations/{id}/complete", donationH.Complete)
			r.Get("/donations/{id}/accepted", donationH.ListAccepted)
			r.Get("/donations/{id}/ignored", notifH.ListIgnored)
			r.Get("/donations/{id}/rejections", notifH.CountRejections)

			r.Put("/notifications/{requestId}/status", notifH.UpdateStatus)
		})
	})

	return r
}
