package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-blood-connect/internal/config"
)

// MaxDelay is the longest delivery delay SQS accepts.
const MaxDelay = 15 * time.Minute

type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

func NewClient(awsCfg aws.Config, cfg *config.Config) *sqs.Client {
	var opts []func(*sqs.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sqs.NewFromConfig(awsCfg, opts...)
}

// Queue sends JSON encoded jobs.
type Queue struct {
	client API
}

func NewQueue(client API) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Send(ctx context.Context, queueURL string, job any) error {
	return q.SendDelayed(ctx, queueURL, job, 0)
}

// SendDelayed hides the job from consumers for delay, capped at MaxDelay.
func (q *Queue) SendDelayed(ctx context.Context, queueURL string, job any, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	delay = min(max(delay, 0), MaxDelay)

	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: int32(delay / time.Second),
	}); err != nil {
		return fmt.Errorf("send message to %s: %w", queueURL, err)
	}
	return nil
}
