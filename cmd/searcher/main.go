// Command searcher consumes delayed donor search jobs and runs the next search round.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-blood-connect/internal/app"
	"github.com/go-blood-connect/internal/config"
	"github.com/go-blood-connect/internal/pkg/logger"
	"github.com/go-blood-connect/internal/transport/queue"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	a, err := app.Build(context.Background(), cfg, zl, false)
	if err != nil {
		zl.Fatal("wire services", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	consumer := queue.NewConsumer(a.Notifications, a.Donations, zl.Named("searcher"))
	lambda.Start(consumer.HandleSearchJobs)
}
