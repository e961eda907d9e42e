package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-blood-connect/internal/app"
	"github.com/go-blood-connect/internal/config"
	jwtinfra "github.com/go-blood-connect/internal/infrastructure/jwt"
	"github.com/go-blood-connect/internal/pkg/logger"
	transporthttp "github.com/go-blood-connect/internal/transport/http"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Creates the table locally; in AWS the table is provisioned ahead of time.
	a, err := app.Build(context.Background(), cfg, zl, !cfg.Production())
	if err != nil {
		zl.Fatal("wire services", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		zl.Fatal("jwt provider", zap.Error(err))
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Users:         a.Users,
		Locations:     a.Locations,
		Donations:     a.Donations,
		Notifications: a.Notifications,
		Verifier:      jwtProvider,
		Ready:         a.Ready,
		Log:           zl,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("forced shutdown", zap.Error(err))
		return
	}
	zl.Info("server stopped")
}
