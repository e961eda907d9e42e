package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/go-blood-connect/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, _ ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.CreatePlatformEndpointOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) GetEndpointAttributes(ctx context.Context, in *sns.GetEndpointAttributesInput, _ ...func(*sns.Options)) (*sns.GetEndpointAttributesOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.GetEndpointAttributesOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) SetEndpointAttributes(ctx context.Context, in *sns.SetEndpointAttributesInput, _ ...func(*sns.Options)) (*sns.SetEndpointAttributesOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.SetEndpointAttributesOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

const (
	apnsArn = "arn:aws:sns:us-east-1:1:app/APNS/bc"
	fcmArn  = "arn:aws:sns:us-east-1:1:app/GCM/bc"
)

func newGateway(api *mockAPI) *Gateway { return NewGateway(api, apnsArn, fcmArn) }

// --- tests ---

func TestPublish_MessageShape(t *testing.T) {
	api := &mockAPI{}
	var in *sns.PublishInput
	api.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in = args.Get(1).(*sns.PublishInput)
	}).Return(&sns.PublishOutput{}, nil)

	err := newGateway(api).Publish(context.Background(), domain.NotificationAttributes{
		Title:   "Blood Request",
		Body:    "Urgent O+ blood needed",
		Type:    domain.NotificationTypeRequestPost,
		Payload: map[string]any{"requestPostId": "r1"},
	}, "arn:endpoint/1")
	require.NoError(t, err)

	assert.Equal(t, "json", aws.ToString(in.MessageStructure))
	assert.Equal(t, "arn:endpoint/1", aws.ToString(in.TargetArn))

	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.Message)), &doc))
	assert.Equal(t, "Blood Connect", doc["default"])

	var gcm struct {
		Notification map[string]string `json:"notification"`
		Data         map[string]any    `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc["GCM"]), &gcm))
	assert.Equal(t, map[string]string{"title": "Blood Request", "body": "Urgent O+ blood needed"}, gcm.Notification)
	assert.Equal(t, "BLOOD_REQ_POST", gcm.Data["type"])
	assert.Equal(t, map[string]any{"requestPostId": "r1"}, gcm.Data["payload"])

	var apns struct {
		Aps struct {
			Alert map[string]string `json:"alert"`
			Sound string            `json:"sound"`
		} `json:"aps"`
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc["APNS"]), &apns))
	assert.Equal(t, map[string]string{"title": "Blood Request", "body": "Urgent O+ blood needed"}, apns.Aps.Alert)
	assert.Equal(t, "default", apns.Aps.Sound)
	assert.Equal(t, "BLOOD_REQ_POST", apns.Type)
	assert.Equal(t, map[string]any{"requestPostId": "r1"}, apns.Payload)
}

func TestPublish_Failure(t *testing.T) {
	api := &mockAPI{}
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("endpoint disabled"))

	err := newGateway(api).Publish(context.Background(), domain.NotificationAttributes{Title: "t", Body: "b"}, "arn:e")
	assert.ErrorContains(t, err, "endpoint disabled")
}

func TestCreatePlatformEndpoint_ChoosesPlatformApplication(t *testing.T) {
	cases := map[domain.Platform]string{domain.PlatformAPNS: apnsArn, domain.PlatformFCM: fcmArn}
	for platform, appArn := range cases {
		t.Run(string(platform), func(t *testing.T) {
			api := &mockAPI{}
			api.On("CreatePlatformEndpoint", mock.Anything, mock.MatchedBy(func(in *sns.CreatePlatformEndpointInput) bool {
				return aws.ToString(in.PlatformApplicationArn) == appArn &&
					aws.ToString(in.Token) == "tok" &&
					aws.ToString(in.CustomUserData) == "u1"
			})).Return(&sns.CreatePlatformEndpointOutput{EndpointArn: aws.String("arn:endpoint/new")}, nil)

			arn, err := newGateway(api).CreatePlatformEndpoint(context.Background(), domain.DeviceRegistration{
				UserID: "u1", DeviceToken: "tok", Platform: platform,
			})
			require.NoError(t, err)
			assert.Equal(t, "arn:endpoint/new", arn)
			api.AssertExpectations(t)
		})
	}
}

func TestCreatePlatformEndpoint_UnsupportedPlatform(t *testing.T) {
	api := &mockAPI{}
	_, err := newGateway(api).CreatePlatformEndpoint(context.Background(), domain.DeviceRegistration{Platform: "WNS"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	api.AssertNotCalled(t, "CreatePlatformEndpoint", mock.Anything, mock.Anything)
}

func TestCreatePlatformEndpoint_ExistingEndpoint(t *testing.T) {
	api := &mockAPI{}
	api.On("CreatePlatformEndpoint", mock.Anything, mock.Anything).Return(nil, &smithy.GenericAPIError{
		Code:    "InvalidParameter",
		Message: "Invalid parameter: Token Reason: Endpoint arn:aws:sns:us-east-1:1:endpoint/GCM/bc/abc already exists with the same Token, but different attributes.",
	})

	_, err := newGateway(api).CreatePlatformEndpoint(context.Background(), domain.DeviceRegistration{
		UserID: "u2", DeviceToken: "tok", Platform: domain.PlatformFCM,
	})

	var exists *domain.EndpointExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "arn:aws:sns:us-east-1:1:endpoint/GCM/bc/abc", exists.EndpointArn)
}

func TestExistingEndpoint(t *testing.T) {
	_, ok := existingEndpoint(&smithy.GenericAPIError{Code: "InvalidParameter", Message: "Invalid parameter: Token"})
	assert.False(t, ok)

	_, ok = existingEndpoint(&smithy.GenericAPIError{Code: "Throttling", Message: "Endpoint arn:x already exists"})
	assert.False(t, ok)

	_, ok = existingEndpoint(errors.New("Endpoint arn:x already exists"))
	assert.False(t, ok)
}

func TestEndpointAttributes(t *testing.T) {
	api := &mockAPI{}
	api.On("GetEndpointAttributes", mock.Anything, mock.Anything).
		Return(&sns.GetEndpointAttributesOutput{Attributes: map[string]string{"CustomUserData": "u1"}}, nil)
	api.On("SetEndpointAttributes", mock.Anything, mock.MatchedBy(func(in *sns.SetEndpointAttributesInput) bool {
		return in.Attributes[domain.EndpointAttrOwner] == "u2"
	})).Return(&sns.SetEndpointAttributesOutput{}, nil)

	g := newGateway(api)
	attrs, err := g.GetEndpointAttributes(context.Background(), "arn:e")
	require.NoError(t, err)
	assert.Equal(t, "u1", attrs[domain.EndpointAttrOwner])

	require.NoError(t, g.SetEndpointAttributes(context.Background(), "arn:e", map[string]string{domain.EndpointAttrOwner: "u2"}))
	api.AssertExpectations(t)
}
