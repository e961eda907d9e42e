package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/go-blood-connect/internal/config"
	"github.com/go-blood-connect/internal/domain"
)

const defaultMessage = "Blood Connect"

// API is the subset of the SNS client used by the gateway.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	GetEndpointAttributes(ctx context.Context, in *sns.GetEndpointAttributesInput, optFns ...func(*sns.Options)) (*sns.GetEndpointAttributesOutput, error)
	SetEndpointAttributes(ctx context.Context, in *sns.SetEndpointAttributesInput, optFns ...func(*sns.Options)) (*sns.SetEndpointAttributesOutput, error)
}

// NewClient creates an SNS client, pointed at cfg.AWSEndpointURL when set.
func NewClient(awsCfg aws.Config, cfg *config.Config) *sns.Client {
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, opts...)
}

// Gateway publishes push notifications to mobile platform endpoints.
type Gateway struct {
	client    API
	platforms map[domain.Platform]string
}

func NewGateway(client API, apnsPlatformArn, fcmPlatformArn string) *Gateway {
	return &Gateway{
		client: client,
		platforms: map[domain.Platform]string{
			domain.PlatformAPNS: apnsPlatformArn,
			domain.PlatformFCM:  fcmPlatformArn,
		},
	}
}

type pushContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushData struct {
	Title   string                  `json:"title"`
	Body    string                  `json:"body"`
	Type    domain.NotificationType `json:"type"`
	Payload map[string]any          `json:"payload,omitempty"`
}

type gcmMessage struct {
	Notification pushContent `json:"notification"`
	Data         pushData    `json:"data"`
}

type apsBody struct {
	Alert pushContent `json:"alert"`
	Sound string      `json:"sound"`
}

// apnsMessage carries the custom data next to aps, where iOS hands it to the app.
type apnsMessage struct {
	Aps     apsBody                 `json:"aps"`
	Type    domain.NotificationType `json:"type"`
	Payload map[string]any          `json:"payload,omitempty"`
}

// buildMessage renders the per-protocol message document SNS expects with
// MessageStructure=json. The GCM and APNS entries are themselves JSON strings.
func buildMessage(msg domain.NotificationAttributes) (string, error) {
	content := pushContent{Title: msg.Title, Body: msg.Body}
	gcm, err := json.Marshal(gcmMessage{
		Notification: content,
		Data:         pushData{Title: msg.Title, Body: msg.Body, Type: msg.Type, Payload: msg.Payload},
	})
	if err != nil {
		return "", err
	}
	apns, err := json.Marshal(apnsMessage{
		Aps:     apsBody{Alert: content, Sound: "default"},
		Type:    msg.Type,
		Payload: msg.Payload,
	})
	if err != nil {
		return "", err
	}
	doc, err := json.Marshal(map[string]string{
		"default": defaultMessage,
		"GCM":     string(gcm),
		"APNS":    string(apns),
	})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

func (g *Gateway) Publish(ctx context.Context, msg domain.NotificationAttributes, endpointArn string) error {
	body, err := buildMessage(msg)
	if err != nil {
		return fmt.Errorf("build push message: %w", err)
	}
	if _, err := g.client.Publish(ctx, &sns.PublishInput{
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
		TargetArn:        aws.String(endpointArn),
	}); err != nil {
		return fmt.Errorf("publish to %s: %w", endpointArn, err)
	}
	return nil
}

// CreatePlatformEndpoint registers a device token under the platform
// application of its platform. A token already bound to an endpoint with
// different attributes yields *domain.EndpointExistsError.
func (g *Gateway) CreatePlatformEndpoint(ctx context.Context, reg domain.DeviceRegistration) (string, error) {
	platformArn, ok := g.platforms[reg.Platform]
	if !ok || platformArn == "" {
		return "", fmt.Errorf("unsupported platform %q: %w", reg.Platform, domain.ErrBadRequest)
	}
	out, err := g.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(platformArn),
		Token:                  aws.String(reg.DeviceToken),
		CustomUserData:         aws.String(reg.UserID),
	})
	if err != nil {
		if arn, ok := existingEndpoint(err); ok {
			return "", &domain.EndpointExistsError{EndpointArn: arn}
		}
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (g *Gateway) GetEndpointAttributes(ctx context.Context, endpointArn string) (map[string]string, error) {
	out, err := g.client.GetEndpointAttributes(ctx, &sns.GetEndpointAttributesInput{
		EndpointArn: aws.String(endpointArn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint attributes: %w", err)
	}
	if out.Attributes == nil {
		return map[string]string{}, nil
	}
	return out.Attributes, nil
}

func (g *Gateway) SetEndpointAttributes(ctx context.Context, endpointArn string, attrs map[string]string) error {
	if _, err := g.client.SetEndpointAttributes(ctx, &sns.SetEndpointAttributesInput{
		EndpointArn: aws.String(endpointArn),
		Attributes:  attrs,
	}); err != nil {
		return fmt.Errorf("failed to set endpoint attributes: %w", err)
	}
	return nil
}

var existingEndpointPattern = regexp.MustCompile(`Endpoint (arn:\S+) already exists`)

// existingEndpoint extracts the endpoint ARN SNS reports when a token is
// already registered.
func existingEndpoint(err error) (string, bool) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "InvalidParameter" {
		return "", false
	}
	m := existingEndpointPattern.FindStringSubmatch(apiErr.ErrorMessage())
	if m == nil {
		return "", false
	}
	return m[1], true
}
