// Package queue adapts SQS Lambda events to the application services.
package queue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-blood-connect/internal/domain"
	"github.com/go-blood-connect/internal/pkg/validate"
	"go.uber.org/zap"
)

type pushSender interface {
	SendPushNotification(ctx context.Context, attrs domain.NotificationAttributes, recipientID string) error
}

type searchRunner interface {
	ContinueSearch(ctx context.Context, job domain.SearchJob) error
}

// Consumer handles batches from the notification and donor search queues.
// Records that fail processing are reported back so SQS redelivers only those.
// Records that can never succeed (bad JSON, failed validation) are logged and
// acknowledged.
type Consumer struct {
	push   pushSender
	search searchRunner
	log    *zap.Logger
}

func NewConsumer(push pushSender, search searchRunner, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{push: push, search: search, log: log}
}

// HandleNotifications delivers one push notification per record.
func (c *Consumer) HandleNotifications(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	return c.each(ctx, ev, func(ctx context.Context, msg events.SQSMessage) error {
		var attrs domain.NotificationAttributes
		if !c.decode(msg, &attrs) {
			return nil
		}
		return c.push.SendPushNotification(ctx, attrs, attrs.RecipientID)
	})
}

// HandleSearchJobs runs one donor search round per record.
func (c *Consumer) HandleSearchJobs(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	return c.each(ctx, ev, func(ctx context.Context, msg events.SQSMessage) error {
		var job domain.SearchJob
		if !c.decode(msg, &job) {
			return nil
		}
		return c.search.ContinueSearch(ctx, job)
	})
}

func (c *Consumer) each(ctx context.Context, ev events.SQSEvent, fn func(context.Context, events.SQSMessage) error) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, msg := range ev.Records {
		if err := fn(ctx, msg); err != nil {
			c.log.Error("queue record failed", zap.String("message_id", msg.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		}
	}
	return resp, nil
}

func (c *Consumer) decode(msg events.SQSMessage, v interface{}) bool {
	if err := json.Unmarshal([]byte(msg.Body), v); err != nil {
		c.log.Warn("dropping undecodable queue record", zap.String("message_id", msg.MessageId), zap.Error(err))
		return false
	}
	if err := validate.Struct(v); err != nil {
		c.log.Warn("dropping invalid queue record", zap.String("message_id", msg.MessageId), zap.Error(err))
		return false
	}
	return true
}
