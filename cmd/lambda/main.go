// Command lambda serves the HTTP API behind API Gateway (HTTP API, payload v2).
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-blood-connect/internal/app"
	"github.com/go-blood-connect/internal/config"
	jwtinfra "github.com/go-blood-connect/internal/infrastructure/jwt"
	"github.com/go-blood-connect/internal/pkg/logger"
	transporthttp "github.com/go-blood-connect/internal/transport/http"
	"go.uber.org/zap"
)

var chiLambda *chiadapter.ChiLambdaV2

func init() {
	cfg := config.Load()
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	a, err := app.Build(context.Background(), cfg, zl, false)
	if err != nil {
		zl.Fatal("wire services", zap.Error(err))
	}
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		zl.Fatal("jwt provider", zap.Error(err))
	}

	chiLambda = chiadapter.NewV2(transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Users:         a.Users,
		Locations:     a.Locations,
		Donations:     a.Donations,
		Notifications: a.Notifications,
		Verifier:      jwtProvider,
		Ready:         a.Ready,
		Log:           zl,
	}))
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(handler)
}
