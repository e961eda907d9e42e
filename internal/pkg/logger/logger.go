package logger

import (
	"github.com/go-blood-connect/internal/config"
	"go.uber.org/zap"
)

// New returns the JSON production logger in production and the console
// development logger everywhere else.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
