// Package app wires configuration, AWS clients and application services.
// Every entrypoint under cmd/ builds the same graph through Build.
package app

import (
	"context"
	"fmt"

	"github.com/go-blood-connect/internal/application/donation"
	"github.com/go-blood-connect/internal/application/donorsearch"
	"github.com/go-blood-connect/internal/application/location"
	"github.com/go-blood-connect/internal/application/notification"
	"github.com/go-blood-connect/internal/application/user"
	"github.com/go-blood-connect/internal/config"
	"github.com/go-blood-connect/internal/infrastructure/dynamo"
	"github.com/go-blood-connect/internal/infrastructure/redis"
	"github.com/go-blood-connect/internal/infrastructure/sns"
	"github.com/go-blood-connect/internal/infrastructure/sqs"
	"github.com/go-blood-connect/internal/pkg/cache"
	"go.uber.org/zap"
)

// App holds the wired services.
type App struct {
	Users         user.Service
	Locations     location.Service
	Notifications notification.Service
	Donations     donation.Service

	// Ready reports whether the table can serve traffic.
	Ready func(ctx context.Context) error

	closers []func() error
}

// Build connects to AWS (and Redis when configured) and assembles the services.
// When bootstrap is true the table is created if it does not exist.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, bootstrap bool) (*App, error) {
	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	dynamoClient := dynamo.NewClient(awsCfg, cfg)
	if bootstrap {
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTable, log)
	}

	a := &App{
		Ready: func(ctx context.Context) error { return dynamo.TableReady(ctx, dynamoClient, cfg.DynamoTable) },
	}

	endpoints, err := a.endpointCache(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	users := user.NewService(dynamo.NewUserRepo(dynamoClient, cfg.DynamoTable))
	locations := dynamo.NewLocationRepo(dynamoClient, cfg.DynamoTable)
	queue := sqs.NewQueue(sqs.NewClient(awsCfg, cfg))

	notifications := notification.NewService(notification.Deps{
		Store:       dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTable),
		Users:       users,
		Push:        sns.NewGateway(sns.NewClient(awsCfg, cfg), cfg.APNSPlatformArn, cfg.FCMPlatformArn),
		Queue:       queue,
		Cache:       endpoints,
		Log:         log.Named("notification"),
		QueueURL:    cfg.NotificationQueueURL,
		FanOutLimit: cfg.FanOutLimit,
	})

	a.Users = users
	a.Notifications = notifications
	a.Locations = location.NewService(locations)
	a.Donations = donation.NewService(donation.Deps{
		Requests:       dynamo.NewDonationRequestRepo(dynamoClient, cfg.DynamoTable),
		Accepted:       dynamo.NewAcceptedDonationRepo(dynamoClient, cfg.DynamoTable),
		Notifications:  notifications,
		Users:          users,
		Finder:         donorsearch.NewSearcher(locations, cfg.SearchPrecision, log.Named("donorsearch")),
		Queue:          queue,
		Log:            log.Named("donation"),
		SearchQueueURL: cfg.SearchQueueURL,
		MaxRetries:     cfg.SearchMaxRetries,
	})
	return a, nil
}

// endpointCache picks Redis when REDIS_URL is set so warm entries are shared
// across instances, and the in-process cache otherwise.
func (a *App) endpointCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (notification.EndpointCache, error) {
	if cfg.RedisURL == "" {
		return cache.New(cfg.EndpointCacheTTL, cfg.EndpointCacheSize), nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return redis.NewEndpointCache(client, cfg.EndpointCacheTTL, log.Named("endpoint-cache")), nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
